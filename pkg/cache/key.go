package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

const (
	// Delimiter separates key segments.
	Delimiter = ":"

	// Wildcard marks a prefix pattern in InvalidatePattern.
	Wildcard = "*"

	// delimiterEscape replaces Delimiter inside a single part.
	delimiterEscape = "_"

	// hashBytes is the number of SHA-256 bytes kept by KeyHash (16 hex chars).
	hashBytes = 8
)

// Key builds a deterministic cache key from parts.
// Format: part1:part2:part3
//
// nil parts are dropped. A delimiter inside a part is replaced so segment
// boundaries stay unambiguous:
//
//	Key("topic", 42, "counts") // topic:42:counts
//	Key("a:b", "c")            // a_b:c
//	Key("user", nil, "feed")   // user:feed
//
// Part order is significant; callers must keep it consistent.
func Key(parts ...any) string {
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		s, ok := stringify(part)
		if !ok {
			continue
		}
		segments = append(segments, strings.ReplaceAll(s, Delimiter, delimiterEscape))
	}
	return strings.Join(segments, Delimiter)
}

// stringify renders a key part. ok is false for nil values.
func stringify(part any) (string, bool) {
	switch v := part.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case fmt.Stringer:
		if isNilPointer(v) {
			return "", false
		}
		return v.String(), true
	}

	rv := reflect.ValueOf(part)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		return stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(part), true
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// KeyHash builds a key from a prefix and a digest of v's JSON encoding.
// Format: <prefix>:<first 16 hex chars of SHA-256(JSON(v))>
//
// Map keys are encoded in sorted order; struct fields in declaration order.
// Two values that encode differently hash differently even when they are
// semantically equal.
func KeyHash(prefix string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnserializable, err)
	}

	sum := sha256.Sum256(data)
	return prefix + Delimiter + hex.EncodeToString(sum[:hashBytes]), nil
}
