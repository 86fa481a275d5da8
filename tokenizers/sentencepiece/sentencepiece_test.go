package sentencepiece

import (
	"testing"

	"github.com/gomlx/hftasks/hub"
	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flanT5 downloads google/flan-t5-small's tokenizer, which uses sentencepiece, or skips the
// test if the Hub is not reachable.
func flanT5(t *testing.T, config *api.Config) *Tokenizer {
	repo := hub.New("google/flan-t5-small")
	if !repo.HasFile("tokenizer.model") {
		t.Skip("tokenizer.model not found in repo")
	}
	tokenizerFile, err := repo.DownloadFile("tokenizer.model")
	require.NoError(t, err)
	tok, err := NewFromFile(config, tokenizerFile)
	require.NoError(t, err)
	return tok
}

func TestEncodeWithSpans(t *testing.T) {
	tok := flanT5(t, nil)
	inputs := []string{
		"hello",
		"hello world",
		"The quick brown fox jumps over the lazy dog.",
		"Multiple  spaces   here",
		"Hello, 世界!",
		"Emoji: 🎉",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			result := tok.EncodeWithSpans(input)
			assert.Equal(t, tok.Encode(input), result.IDs)
			require.Len(t, result.Spans, len(result.IDs))
			for i, span := range result.Spans {
				assert.GreaterOrEqual(t, span.Start, 0, "token #%d", i)
				assert.LessOrEqual(t, span.Start, span.End, "token #%d", i)
				assert.LessOrEqual(t, span.End, len(input), "token #%d", i)
			}
		})
	}

	result := tok.EncodeWithSpans("")
	assert.Empty(t, result.IDs)
	assert.Empty(t, result.Spans)
}

func TestEncodeWords(t *testing.T) {
	tok := flanT5(t, nil)
	eos, err := tok.SpecialTokenID(api.TokEndOfSentence)
	require.NoError(t, err)
	assert.Equal(t, 1, tok.NumSpecialTokensToAdd())
	assert.True(t, tok.IsSpecialID(eos))

	words := []string{"Paris", "is", "beautiful"}
	enc := tok.EncodeWords(words, api.EncodeOptions{AddSpecialTokens: true})
	require.Equal(t, len(enc.IDs), len(enc.WordIDs))
	assert.Equal(t, eos, enc.IDs[len(enc.IDs)-1])
	assert.Equal(t, api.NoWord, enc.WordIDs[len(enc.WordIDs)-1])
	assert.Equal(t, 3, enc.NumWords())
	assert.Equal(t, 0, enc.WordIDs[0])

	// Without the end-of-sentence token.
	noEos := false
	tok = flanT5(t, &api.Config{AddEosToken: &noEos})
	assert.Equal(t, 0, tok.NumSpecialTokensToAdd())
	enc = tok.EncodeWords(words, api.EncodeOptions{AddSpecialTokens: true})
	assert.NotContains(t, enc.WordIDs, api.NoWord)
}

func TestFindSubstring(t *testing.T) {
	assert.Equal(t, 6, findSubstring("hello world", "world", 0))
	assert.Equal(t, -1, findSubstring("hello world", "hello", 1))
	assert.Equal(t, -1, findSubstring("hello", "o", 5))
}
