package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/hftasks/collate"
	"github.com/gomlx/hftasks/datasets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenizerJSON = `{
  "added_tokens": [
    {"id": 0, "content": "[PAD]", "special": true},
    {"id": 1, "content": "[UNK]", "special": true},
    {"id": 2, "content": "[CLS]", "special": true},
    {"id": 3, "content": "[SEP]", "special": true}
  ],
  "normalizer": {"type": "BertNormalizer", "lowercase": true},
  "pre_tokenizer": {"type": "BertPreTokenizer"},
  "post_processor": {"type": "BertProcessing", "sep": ["[SEP]", 3], "cls": ["[CLS]", 2]},
  "decoder": {"type": "WordPiece", "prefix": "##"},
  "model": {
    "type": "WordPiece",
    "unk_token": "[UNK]",
    "vocab": {"[PAD]": 0, "[UNK]": 1, "[CLS]": 2, "[SEP]": 3, "new": 4, "york": 5, "##er": 6, "is": 7, "big": 8}
  }
}`

func writeTokenizer(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	require.NoError(t, os.WriteFile(path, []byte(tokenizerJSON), 0o644))
	return path
}

// run the application with the arguments, and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	app := newApp(Config{CacheDir: t.TempDir()}, UI{Out: &out, Err: &errOut})
	err := app.RunContext(context.Background(), append([]string{"hftasks"}, args...))
	return out.String(), err
}

func TestArchs(t *testing.T) {
	out, err := run(t, "archs")
	require.NoError(t, err)
	assert.Contains(t, strings.Split(out, "\n"), "bert")
	assert.Contains(t, strings.Split(out, "\n"), "xlm_roberta")

	out, err = run(t, "archs", "--arch", "distilbert")
	require.NoError(t, err)
	assert.Contains(t, out, "tasks: MaskedLM, MultipleChoice, QuestionAnswering, SequenceClassification, TokenClassification")
	assert.Contains(t, out, "DistilBertForTokenClassification\n")

	_, err = run(t, "archs", "--arch", "nope")
	assert.Error(t, err)
}

func TestChunk(t *testing.T) {
	tokPath := writeTokenizer(t)
	out, err := run(t, "chunk", "--tokenizer", tokPath, "--words", "new york is big new york is big",
		"--max-length", "5", "--stride", "0")
	require.NoError(t, err)
	assert.Equal(t, "[0, 3) new york is\n[3, 6) big new york\n[6, 8) is big\n", out)

	out, err = run(t, "chunk", "--tokenizer", tokPath, "--words", "new yorker is big", "--max-length", "4", "--stride", "1")
	require.NoError(t, err)
	assert.Equal(t, "[0, 1) new\n[1, 2) yorker\n[2, 4) is big\n", out)

	_, err = run(t, "chunk", "--tokenizer", tokPath, "--words", "yorker", "--max-length", "3", "--stride", "0")
	assert.Error(t, err)

	_, err = run(t, "chunk", "--tokenizer", tokPath)
	assert.Error(t, err)
}

func TestNER(t *testing.T) {
	tokPath := writeTokenizer(t)
	dataPath := filepath.Join(t.TempDir(), "train.parquet")
	require.NoError(t, datasets.WriteTokenClassification(dataPath, []datasets.TokenClassificationRow{
		{ID: "a", Tokens: []string{"New", "Yorker", "is", "big"}, NERTags: []int64{1, 2, 0, 0}},
		{ID: "b", Tokens: []string{"big", "New", "York"}, NERTags: []int64{0, 1, 2}, IsValid: true},
	}))

	outPath := filepath.Join(t.TempDir(), "batch.safetensors")
	out, err := run(t, "ner", "--tokenizer", tokPath, "--data", dataPath,
		"--labels", "O", "--labels", "B-LOC", "--labels", "I-LOC", "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 examples (1 train, 1 valid) processed into 2 sequences, 3 labels")
	assert.Contains(t, out, "first batch:")
	assert.Contains(t, out, "Yorker")
	assert.Contains(t, out, "I-LOC")

	batch, metadata, err := collate.Load(outPath)
	require.NoError(t, err)
	assert.Equal(t, "a,b", metadata["ids"])
	assert.Equal(t, [][]int{{2, 4, 5, 6, 7, 8, 3}, {2, 8, 4, 5, 3, 0, 0}}, batch.InputIDs)
	assert.Equal(t, [][]int{{-100, 1, 2, -100, 0, 0, -100}, {-100, 0, 1, 2, -100, -100, -100}}, batch.Labels)

	// Without label names, labels are named by their ids.
	out, err = run(t, "ner", "--tokenizer", tokPath, "--data", dataPath, "--chunk", "--max-length", "4",
		"--stride", "0", "--strategy", "same")
	require.NoError(t, err)
	assert.Contains(t, out, "2 examples (1 train, 1 valid) processed into 5 sequences, 3 labels")

	_, err = run(t, "ner", "--tokenizer", tokPath)
	assert.Error(t, err)
	_, err = run(t, "ner", "--tokenizer", tokPath, "--data", dataPath, "--strategy", "last")
	assert.Error(t, err)
}

func TestLM(t *testing.T) {
	tokPath := writeTokenizer(t)
	textPath := filepath.Join(t.TempDir(), "texts.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("new york is big\n\nnew york is big\nnew york is big\nnew york is big\n"), 0o644))

	out, err := run(t, "lm", "--tokenizer", tokPath, "--text", textPath, "--chunk-size", "6")
	require.NoError(t, err)
	assert.Contains(t, out, "Causal (CausalLM): 5 samples")

	// The tokenizer has no mask token.
	_, err = run(t, "lm", "--tokenizer", tokPath, "--text", textPath, "--chunk-size", "6", "--objective", "mlm")
	assert.Error(t, err)

	_, err = run(t, "lm", "--tokenizer", tokPath, "--text", textPath, "--objective", "seq2seq")
	assert.Error(t, err)
}
