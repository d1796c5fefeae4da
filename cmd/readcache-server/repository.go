package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var errNotFound = errors.New("not found")

// Topic is a discussion topic.
type Topic struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Opinion is a user's opinion on a topic.
type Opinion struct {
	ID      string `json:"id"`
	TopicID string `json:"topicId"`
	Text    string `json:"text"`
	Votes   int    `json:"votes"`
}

// Vote is a user's vote on an opinion.
type Vote struct {
	OpinionID string `json:"opinionId"`
	UserID    string `json:"userId"`
	Value     int    `json:"value"`
}

// PlatformStats aggregates the whole repository.
type PlatformStats struct {
	Topics   int `json:"topics"`
	Opinions int `json:"opinions"`
	Votes    int `json:"votes"`
}

// repository is the source of truth the cache sits in front of. Every read
// is counted so tests can tell a cache hit from a recomputation.
type repository struct {
	mu       sync.RWMutex
	topics   map[string]Topic
	opinions map[string]Opinion
	votes    map[string]map[string]int // opinion -> user -> value
	reads    int
	latency  time.Duration
}

func newRepository(latency time.Duration) *repository {
	now := time.Now().UTC()
	r := &repository{
		topics: map[string]Topic{
			"1": {ID: "1", Title: "Public transit funding", Category: "policy", UpdatedAt: now},
			"2": {ID: "2", Title: "Four-day work week", Category: "economy", UpdatedAt: now},
		},
		opinions: map[string]Opinion{
			"10": {ID: "10", TopicID: "1", Text: "Fund it from congestion charges"},
			"11": {ID: "11", TopicID: "1", Text: "Prioritise rural routes"},
			"20": {ID: "20", TopicID: "2", Text: "Pilot it in the public sector first"},
		},
		votes:   make(map[string]map[string]int),
		latency: latency,
	}
	return r
}

func (r *repository) read(ctx context.Context) error {
	r.mu.Lock()
	r.reads++
	r.mu.Unlock()

	if r.latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.latency):
		return nil
	}
}

// Reads returns how many reads reached the repository.
func (r *repository) Reads() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reads
}

func (r *repository) Topic(ctx context.Context, id string) (Topic, error) {
	if err := r.read(ctx); err != nil {
		return Topic{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.topics[id]
	if !ok {
		return Topic{}, errNotFound
	}
	return t, nil
}

func (r *repository) UpdateTopic(id, title, category string) (Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.topics[id]
	if !ok {
		return Topic{}, errNotFound
	}
	if title != "" {
		t.Title = title
	}
	if category != "" {
		t.Category = category
	}
	t.UpdatedAt = time.Now().UTC()
	r.topics[id] = t
	return t, nil
}

func (r *repository) Opinions(ctx context.Context, topicID string) ([]Opinion, error) {
	if err := r.read(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.topics[topicID]; !ok {
		return nil, errNotFound
	}
	out := make([]Opinion, 0)
	for _, o := range r.opinions {
		if o.TopicID == topicID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *repository) Vote(ctx context.Context, opinionID, userID string) (Vote, error) {
	if err := r.read(ctx); err != nil {
		return Vote{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.opinions[opinionID]; !ok {
		return Vote{}, errNotFound
	}
	return Vote{OpinionID: opinionID, UserID: userID, Value: r.votes[opinionID][userID]}, nil
}

// CastVote records value (+1 or -1) for userID, replacing an earlier vote.
// It returns the updated opinion.
func (r *repository) CastVote(opinionID, userID string, value int) (Opinion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.opinions[opinionID]
	if !ok {
		return Opinion{}, errNotFound
	}
	if r.votes[opinionID] == nil {
		r.votes[opinionID] = make(map[string]int)
	}
	o.Votes += value - r.votes[opinionID][userID]
	r.votes[opinionID][userID] = value
	r.opinions[opinionID] = o
	return o, nil
}

func (r *repository) PlatformStats(ctx context.Context) (PlatformStats, error) {
	if err := r.read(ctx); err != nil {
		return PlatformStats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := PlatformStats{Topics: len(r.topics), Opinions: len(r.opinions)}
	for _, users := range r.votes {
		stats.Votes += len(users)
	}
	return stats, nil
}
