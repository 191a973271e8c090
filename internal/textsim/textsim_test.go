package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"BothEmpty", "", "", 0},
		{"LeftEmpty", "", "abc", 3},
		{"RightEmpty", "abc", "", 3},
		{"Identical", "kitten", "kitten", 0},
		{"Classic", "kitten", "sitting", 3},
		{"SingleSubstitution", "cat", "car", 1},
		{"Insertion", "cat", "cart", 1},
		{"Unicode", "héllo", "hello", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b))
		})
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	t.Run("Identical", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1.0, Similarity("parser", "parser"))
	})

	t.Run("BothEmpty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1.0, Similarity("", ""))
	})

	t.Run("CompletelyDifferent", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	})

	t.Run("NormalizedByLongerString", func(t *testing.T) {
		t.Parallel()
		// distance 1 over max length 4
		assert.InDelta(t, 0.75, Similarity("cat", "cart"), 1e-9)
	})

	t.Run("Symmetric", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, Similarity("handler", "handlers"), Similarity("handlers", "handler"))
	})
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	t.Run("BothEmpty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1.0, Jaccard(nil, nil))
	})

	t.Run("OneEmpty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.0, Jaccard([]string{"a"}, nil))
	})

	t.Run("Identical", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1.0, Jaccard([]string{"a", "b"}, []string{"b", "a"}))
	})

	t.Run("PartialOverlap", func(t *testing.T) {
		t.Parallel()
		// intersection {b}, union {a, b, c}
		assert.InDelta(t, 1.0/3.0, Jaccard([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
	})

	t.Run("DuplicatesIgnored", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1.0, Jaccard([]string{"a", "a", "b"}, []string{"a", "b", "b"}))
	})
}
