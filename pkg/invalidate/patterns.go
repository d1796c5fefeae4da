// Package invalidate maps domain write events to the cache key patterns they
// make stale and purges those patterns concurrently.
package invalidate

import (
	"net/url"

	"github.com/Sternrassler/readpath-cache/pkg/cache"
)

// Pattern families shared with the read side. Readers must build their keys
// under these namespaces for invalidation to reach them.
const (
	NamespaceTopic    = "topic"
	NamespaceTopics   = "topics"
	NamespaceOpinion  = "opinion"
	NamespaceOpinions = "opinions"
	NamespaceUser     = "user"
	NamespaceUsers    = "users"
	NamespaceStats    = "stats"
)

// PlatformStatsKey holds platform-wide aggregates.
var PlatformStatsKey = cache.Key(NamespaceStats, "platform")

// TopicPatterns returns the patterns made stale by a topic mutation.
func TopicPatterns(topicID string) []string {
	return []string{
		cache.Key(NamespaceTopic, topicID, cache.Wildcard),
		cache.Key(NamespaceTopics, "list", cache.Wildcard),
		cache.Key(NamespaceTopics, "search", cache.Wildcard),
		cache.Key(NamespaceTopics, "category", cache.Wildcard),
		PlatformStatsKey,
	}
}

// OpinionPatterns returns the patterns made stale by an opinion mutation.
// topicID may be empty when the parent topic is unknown.
func OpinionPatterns(opinionID, topicID string) []string {
	patterns := []string{
		cache.Key(NamespaceOpinion, opinionID),
		cache.Key(NamespaceOpinion, opinionID, cache.Wildcard),
		cache.Key(NamespaceOpinions, "recent", cache.Wildcard),
		PlatformStatsKey,
	}
	if topicID != "" {
		patterns = append(patterns,
			cache.Key(NamespaceTopic, topicID, "opinions", cache.Wildcard),
			cache.Key(NamespaceTopic, topicID, "political-dist"),
			cache.Key(NamespaceTopic, topicID, "full"),
		)
	}
	return patterns
}

// UserPatterns returns the patterns made stale by a user mutation.
func UserPatterns(userID string) []string {
	return []string{
		cache.Key(NamespaceUser, userID, cache.Wildcard),
		cache.Key(NamespaceUsers, "active-distribution"),
	}
}

// VoteKey is the key of userID's vote on an opinion. The user id is
// percent-encoded so ids differing only by the delimiter stay distinct.
func VoteKey(opinionID, userID string) string {
	return cache.Key(NamespaceOpinion, opinionID, "vote", url.QueryEscape(userID))
}

// VotePatterns returns the patterns made stale by a vote.
func VotePatterns(opinionID, userID string) []string {
	return []string{
		VoteKey(opinionID, userID),
		cache.Key(NamespaceOpinion, opinionID),
	}
}
