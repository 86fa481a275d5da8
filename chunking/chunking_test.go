package chunking

import (
	"math/rand/v2"
	"testing"

	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ones(n int) []int {
	counts := make([]int, n)
	for i := range counts {
		counts[i] = 1
	}
	return counts
}

func TestSplitCounts(t *testing.T) {
	testCases := []struct {
		name          string
		counts        []int
		limit, stride int
		want          []Span
	}{
		{"no-stride", ones(10), 5, 0, []Span{{0, 5}, {5, 10}}},
		{"stride", ones(10), 5, 2, []Span{{0, 5}, {3, 8}, {6, 10}}},
		{"trailing", []int{2, 2, 2}, 4, 0, []Span{{0, 2}, {2, 3}}},
		{"stride-too-large", []int{3, 3, 3}, 4, 1, []Span{{0, 1}, {1, 2}, {2, 3}}},
		{"fits-in-one", []int{1, 2, 3}, 10, 2, []Span{{0, 3}}},
		{"empty-words", []int{0, 0, 1, 1}, 1, 0, []Span{{0, 3}, {3, 4}}},
		{"exact", []int{5}, 5, 0, []Span{{0, 1}}},
		{"short-span-stride", []int{2, 2, 2, 2, 2}, 5, 1, []Span{{0, 2}, {1, 3}, {2, 4}, {3, 5}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitCounts(tc.counts, tc.limit, tc.stride)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	spans, err := SplitCounts(nil, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestSplitCountsErrors(t *testing.T) {
	_, err := SplitCounts([]int{1, 6, 1}, 5, 0)
	assert.True(t, errors.Is(err, ErrWordTooLong), "got %v", err)
	_, err = SplitCounts([]int{1}, 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidOptions), "got %v", err)
	_, err = SplitCounts([]int{1}, 3, -1)
	assert.True(t, errors.Is(err, ErrInvalidOptions), "got %v", err)
}

func TestSplitCountsProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	for range 200 {
		numWords := rng.IntN(40)
		limit := 1 + rng.IntN(12)
		stride := rng.IntN(4)
		counts := make([]int, numWords)
		for i := range counts {
			counts[i] = rng.IntN(limit + 1)
		}
		spans, err := SplitCounts(counts, limit, stride)
		require.NoError(t, err)

		covered := make([]bool, numWords)
		for i, span := range spans {
			require.Greater(t, span.Len(), 0)
			total := 0
			for _, w := range span.Words() {
				covered[w] = true
				total += counts[w]
			}
			assert.LessOrEqual(t, total, limit)
			if i > 0 {
				prev := spans[i-1]
				assert.Greater(t, span.Start, prev.Start)
				assert.LessOrEqual(t, span.Start, prev.End)
				if stride == 0 {
					assert.Equal(t, prev.End, span.Start)
				}
			}
		}
		for w, ok := range covered {
			assert.True(t, ok, "word %d not in any chunk", w)
		}
		if numWords > 0 {
			assert.Equal(t, 0, spans[0].Start)
			assert.Equal(t, numWords, spans[len(spans)-1].End)
		}
	}
}

func TestWordCounts(t *testing.T) {
	counts, err := WordCounts([]int{api.NoWord, 0, 0, 1, api.NoWord}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, counts)

	for _, wordIDs := range [][]int{{0, 1, 0}, {3}, {-2}} {
		_, err = WordCounts(wordIDs, 3)
		assert.True(t, errors.Is(err, ErrMalformedWordIDs), "word ids %v: got %v", wordIDs, err)
	}
}

// charTokenizer encodes each byte of a word as one token, and surrounds the encoding with 2
// special tokens (id 0).
type charTokenizer struct{}

func (charTokenizer) Encode(text string) []int {
	ids := make([]int, len(text))
	for i := range len(text) {
		ids[i] = int(text[i])
	}
	return ids
}
func (charTokenizer) Decode(ids []int) string {
	b := make([]byte, len(ids))
	for i, id := range ids {
		b[i] = byte(id)
	}
	return string(b)
}
func (charTokenizer) SpecialTokenID(api.SpecialToken) (int, error) { return 0, nil }
func (c charTokenizer) EncodeWords(words []string, opts api.EncodeOptions) api.WordEncoding {
	perWord := make([][]int, len(words))
	for i, word := range words {
		perWord[i] = c.Encode(word)
	}
	return api.BuildWordEncoding(perWord, []int{0}, []int{0}, opts)
}
func (charTokenizer) NumSpecialTokensToAdd() int { return 2 }
func (charTokenizer) WithSpecialTokens(ids []int) []int {
	return append(append([]int{0}, ids...), 0)
}
func (charTokenizer) IsSpecialID(id int) bool         { return id == 0 }
func (charTokenizer) IDToToken(id int) (string, bool) { return string(rune(id)), true }

func TestSplit(t *testing.T) {
	tok := charTokenizer{}
	words := []string{"a", "bb", "ccc", "d"}

	spans, err := Split(words, tok, Options{MaxLength: 5})
	require.NoError(t, err)
	assert.Equal(t, []Span{{0, 2}, {2, 3}, {3, 4}}, spans)
	assert.Equal(t, []string{"a", "bb"}, Slice(spans[0], words))

	spans, err = Split(words, tok, Options{MaxLength: 5, WordStride: 1})
	require.NoError(t, err)
	assert.Equal(t, []Span{{0, 2}, {1, 2}, {2, 3}, {3, 4}}, spans)

	// Re-encoding each chunk fits in MaxLength, and aligns one word id per token.
	for _, span := range spans {
		enc := tok.EncodeWords(Slice(span, words), api.EncodeOptions{AddSpecialTokens: true})
		assert.LessOrEqual(t, enc.Len(), 5)
		assert.Len(t, enc.WordIDs, enc.Len())
	}

	_, err = Split(words, tok, Options{MaxLength: 4})
	assert.True(t, errors.Is(err, ErrWordTooLong), "got %v", err)
	_, err = Split(words, tok, Options{MaxLength: 2})
	assert.True(t, errors.Is(err, ErrInvalidOptions), "got %v", err)
	_, err = Split(words, tok, Options{MaxLength: 0})
	assert.True(t, errors.Is(err, ErrInvalidOptions), "got %v", err)
	_, err = Split(words, tok, Options{MaxLength: 10, WordStride: -1})
	assert.True(t, errors.Is(err, ErrInvalidOptions), "got %v", err)
}

func TestSplitWordIDs(t *testing.T) {
	// 10 words of one sub-token each, no special tokens.
	wordIDs := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	spans, err := SplitWordIDs(wordIDs, 10, Options{MaxLength: 5})
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, spans[0].Words())
	assert.Equal(t, []int{5, 6, 7, 8, 9}, spans[1].Words())

	_, err = SplitWordIDs([]int{0, 1, 0}, 2, Options{MaxLength: 5})
	assert.True(t, errors.Is(err, ErrMalformedWordIDs))
}
