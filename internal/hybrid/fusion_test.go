package hybrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carqa/carqa/internal/vectorstore"
)

func doc(id, content string) vectorstore.Document {
	return vectorstore.Document{ID: id, Content: content}
}

func TestFuse(t *testing.T) {
	t.Run("combines scores for documents in both lists", func(t *testing.T) {
		dense := []candidate{{doc: doc("d1", "shared passage"), score: 1.0}}
		sparse := []candidate{{doc: doc("s1", "shared passage"), score: 2.0}}

		fused := fuse(dense, sparse, 0.7, 0.3, 10)
		require.Len(t, fused, 1)
		assert.InDelta(t, 1.0*0.7+2.0*0.3, fused[0].Score, 1e-9)
	})

	t.Run("deduplicates by content not by id", func(t *testing.T) {
		dense := []candidate{
			{doc: doc("a", "the engine is superb"), score: 1.0},
			{doc: doc("b", "ride comfort is firm"), score: 0.5},
		}
		sparse := []candidate{
			// Same content as dense "a" under a different ID.
			{doc: doc("z", "the engine is superb"), score: 3.0},
		}

		fused := fuse(dense, sparse, 0.7, 0.3, 10)
		require.Len(t, fused, 2)

		contents := []string{fused[0].Document.Content, fused[1].Document.Content}
		assert.Contains(t, contents, "the engine is superb")
		assert.Contains(t, contents, "ride comfort is firm")
	})

	t.Run("ranks by descending combined score", func(t *testing.T) {
		dense := []candidate{
			{doc: doc("a", "first"), score: 1.0},
			{doc: doc("b", "second"), score: 0.5},
		}
		sparse := []candidate{
			{doc: doc("c", "third"), score: 5.0},
		}

		fused := fuse(dense, sparse, 0.7, 0.3, 10)
		require.Len(t, fused, 3)
		for i := 1; i < len(fused); i++ {
			assert.GreaterOrEqual(t, fused[i-1].Score, fused[i].Score)
		}
		assert.Equal(t, "third", fused[0].Document.Content)
	})

	t.Run("trims to k", func(t *testing.T) {
		dense := []candidate{
			{doc: doc("a", "one"), score: 1.0},
			{doc: doc("b", "two"), score: 0.5},
			{doc: doc("c", "three"), score: 0.33},
		}

		fused := fuse(dense, nil, 0.7, 0.3, 2)
		require.Len(t, fused, 2)
		assert.Equal(t, "one", fused[0].Document.Content)
		assert.Equal(t, "two", fused[1].Document.Content)
	})

	t.Run("breaks ties by first appearance", func(t *testing.T) {
		dense := []candidate{
			{doc: doc("a", "alpha"), score: 1.0},
			{doc: doc("b", "beta"), score: 1.0},
		}

		fused := fuse(dense, nil, 0.5, 0.5, 10)
		require.Len(t, fused, 2)
		assert.Equal(t, "alpha", fused[0].Document.Content)
		assert.Equal(t, "beta", fused[1].Document.Content)
	})

	t.Run("is deterministic across runs", func(t *testing.T) {
		dense := []candidate{
			{doc: doc("a", "alpha"), score: 1.0},
			{doc: doc("b", "beta"), score: 0.5},
			{doc: doc("c", "gamma"), score: 0.33},
		}
		sparse := []candidate{
			{doc: doc("x", "beta"), score: 1.5},
			{doc: doc("y", "delta"), score: 1.5},
		}

		first := fuse(dense, sparse, 0.7, 0.3, 10)
		for i := 0; i < 20; i++ {
			again := fuse(dense, sparse, 0.7, 0.3, 10)
			assert.Equal(t, first, again)
		}
	})

	t.Run("returns empty for non-positive k", func(t *testing.T) {
		dense := []candidate{{doc: doc("a", "alpha"), score: 1.0}}
		assert.Empty(t, fuse(dense, nil, 0.7, 0.3, 0))
		assert.Empty(t, fuse(dense, nil, 0.7, 0.3, -1))
	})

	t.Run("handles empty inputs", func(t *testing.T) {
		assert.Empty(t, fuse(nil, nil, 0.7, 0.3, 5))
	})
}

func TestRankScores(t *testing.T) {
	results := []vectorstore.SearchResult{
		{Document: doc("a", "one"), Score: 0.99},
		{Document: doc("b", "two"), Score: 0.42},
		{Document: doc("c", "three"), Score: 0.12},
	}

	scored := rankScores(results)
	require.Len(t, scored, 3)
	assert.InDelta(t, 1.0, scored[0].score, 1e-9)
	assert.InDelta(t, 0.5, scored[1].score, 1e-9)
	assert.InDelta(t, 1.0/3.0, scored[2].score, 1e-9)
}

func TestRawScores(t *testing.T) {
	results := []vectorstore.SearchResult{
		{Document: doc("a", "one"), Score: 1.5},
		{Document: doc("b", "two"), Score: 0.25},
	}

	scored := rawScores(results)
	require.Len(t, scored, 2)
	assert.InDelta(t, 1.5, scored[0].score, 1e-6)
	assert.InDelta(t, 0.25, scored[1].score, 1e-6)
}
