package cache

import (
	"strings"
	"testing"
)

type topicID string

func (id topicID) String() string { return "t-" + string(id) }

func TestKey(t *testing.T) {
	id := "42"
	var nilID *string
	var nilStringer *topicRef

	tests := []struct {
		name  string
		parts []any
		want  string
	}{
		{
			name:  "namespace id field",
			parts: []any{"topic", 42, "counts"},
			want:  "topic:42:counts",
		},
		{
			name:  "delimiter inside part is escaped",
			parts: []any{"a:b", "c"},
			want:  "a_b:c",
		},
		{
			name:  "nil parts are dropped",
			parts: []any{"user", nil, "feed"},
			want:  "user:feed",
		},
		{
			name:  "nil pointer dropped, pointer dereferenced",
			parts: []any{"topic", nilID, &id},
			want:  "topic:42",
		},
		{
			name:  "typed nil stringer dropped",
			parts: []any{"topic", nilStringer, "x"},
			want:  "topic:x",
		},
		{
			name:  "stringer",
			parts: []any{"topic", topicID("9")},
			want:  "topic:t-9",
		},
		{
			name:  "mixed scalars",
			parts: []any{"q", int64(-3), uint64(7), 1.5, true},
			want:  "q:-3:7:1.5:true",
		},
		{
			name:  "wildcard survives",
			parts: []any{"topic", "1", Wildcard},
			want:  "topic:1:*",
		},
		{
			name:  "empty string is kept as segment",
			parts: []any{"a", "", "b"},
			want:  "a::b",
		},
		{
			name:  "no parts",
			parts: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.parts...); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

type topicRef struct{ id string }

func (r *topicRef) String() string { return r.id }

// TestKey_SegmentCount ensures embedded delimiters never add segments.
func TestKey_SegmentCount(t *testing.T) {
	inputs := [][]any{
		{"a:b", "c"},
		{"::", ":x:"},
		{"route", "/api/topics?q=a:b", "user", "u:1"},
	}

	for _, parts := range inputs {
		key := Key(parts...)
		if got := len(strings.Split(key, Delimiter)); got != len(parts) {
			t.Errorf("Key(%v) = %q has %d segments, want %d", parts, key, got, len(parts))
		}
	}
}

func TestKey_Deterministic(t *testing.T) {
	first := Key("topic", 42, "opinions", "page", 2)
	for i := 0; i < 10; i++ {
		if got := Key("topic", 42, "opinions", "page", 2); got != first {
			t.Errorf("run %d: Key() = %q, want %q (not deterministic)", i, got, first)
		}
	}

	if Key("a", "b") == Key("b", "a") {
		t.Error("Key() should be order sensitive")
	}
}

func TestKeyHash(t *testing.T) {
	type args struct {
		Category string `json:"category"`
		Page     int    `json:"page"`
	}

	k1, err := KeyHash("topics:search", args{Category: "politics", Page: 1})
	if err != nil {
		t.Fatalf("KeyHash() error = %v", err)
	}
	k2, _ := KeyHash("topics:search", args{Category: "politics", Page: 1})
	k3, _ := KeyHash("topics:search", args{Category: "politics", Page: 2})

	if k1 != k2 {
		t.Errorf("KeyHash() not deterministic: %q vs %q", k1, k2)
	}
	if k1 == k3 {
		t.Errorf("KeyHash() collision for different args: %q", k1)
	}
	if !strings.HasPrefix(k1, "topics:search:") {
		t.Errorf("KeyHash() = %q, want prefix %q", k1, "topics:search:")
	}
	if digest := strings.TrimPrefix(k1, "topics:search:"); len(digest) != 2*hashBytes {
		t.Errorf("digest length = %d, want %d", len(digest), 2*hashBytes)
	}
}

func TestKeyHash_MapOrder(t *testing.T) {
	a, _ := KeyHash("p", map[string]any{"a": 1, "b": 2})
	b, _ := KeyHash("p", map[string]any{"b": 2, "a": 1})
	if a != b {
		t.Errorf("KeyHash() differs for equal maps: %q vs %q", a, b)
	}
}

func TestKeyHash_Unserializable(t *testing.T) {
	if _, err := KeyHash("p", make(chan int)); err == nil {
		t.Error("KeyHash() with channel should return error")
	}
}

func TestTier_TTL(t *testing.T) {
	if TierShort.TTL() >= TierMedium.TTL() || TierMedium.TTL() >= TierLong.TTL() {
		t.Error("tiers should be ordered short < medium < long")
	}
	if got := Tier("bogus").TTL(); got != TierMedium.TTL() {
		t.Errorf("unknown tier TTL = %v, want %v", got, TierMedium.TTL())
	}
	if got := TierShort.Seconds(); got != 60 {
		t.Errorf("TierShort.Seconds() = %d, want 60", got)
	}
}
