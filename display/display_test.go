package display

import (
	"strings"
	"testing"

	"github.com/gomlx/hftasks/labeling"
	"github.com/gomlx/hftasks/tokenizers/hftokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordLabels(t *testing.T) {
	out := WordLabels([][]labeling.WordLabel{
		{{Word: "Peter", Label: "B-PER"}, {Word: "Blackburn", Label: "I-PER"}},
		{{Word: "BRUSSELS", Label: "B-LOC"}},
		{{Word: "hidden", Label: "O"}},
	}, 2, 0)
	assert.Contains(t, out, "word / target label")
	assert.Contains(t, out, "(Peter, B-PER) (Blackburn, I-PER)")
	assert.Contains(t, out, "(BRUSSELS, B-LOC)")
	assert.NotContains(t, out, "hidden")
}

func TestTokenLabels(t *testing.T) {
	out := TokenLabels([][]labeling.TokenLabel{
		{{Token: "york", Label: "B-LOC"}, {Token: "##er", Label: labeling.DefaultIgnoreToken}},
	}, 0, 12)
	assert.Contains(t, out, "york:B-LOC")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, "##er")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 0))
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abc", 2))
	assert.Equal(t, "世...", truncate("世界", 1))
}

func TestMaskedLM(t *testing.T) {
	tok, err := hftokenizer.NewFromContent(nil, []byte(`{
	  "added_tokens": [
	    {"id": 0, "content": "[PAD]", "special": true},
	    {"id": 1, "content": "[MASK]", "special": true},
	    {"id": 2, "content": "[CLS]", "special": true},
	    {"id": 3, "content": "[SEP]", "special": true}
	  ],
	  "pre_tokenizer": {"type": "Whitespace"},
	  "model": {"type": "WordLevel", "unk_token": "[PAD]",
	    "vocab": {"[PAD]": 0, "[MASK]": 1, "[CLS]": 2, "[SEP]": 3, "the": 4, "cat": 5, "sat": 6}}
	}`))
	require.NoError(t, err)
	out := MaskedLM(tok, [][]int{{2, 4, 1, 6, 3}}, [][]int{{-100, -100, 5, -100, -100}}, -100, 0, 0)
	lines := strings.Join(strings.Fields(out), " ")
	assert.Contains(t, lines, "the [cat] sat")
	assert.Contains(t, lines, "the [[MASK]] sat")
	assert.NotContains(t, lines, "[CLS]")
}
