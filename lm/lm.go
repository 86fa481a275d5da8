// Package lm prepares data for language modeling: it cuts a corpus of texts into chunks of a fixed
// number of tokens, and builds the inputs and targets for causal (next token prediction) and
// masked language models.
package lm

import (
	"slices"
	"strings"

	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Tokenizer needed to chunk texts.
type Tokenizer interface {
	api.TokenizerWithSpans

	// NumSpecialTokensToAdd returns how many special tokens are added to each chunk when encoded.
	NumSpecialTokensToAdd() int
}

// ChunkOptions configures ChunkTexts.
type ChunkOptions struct {
	// ChunkSize is the number of tokens of the encoded chunks, special tokens included.
	ChunkSize int

	// Separator is inserted (surrounded by spaces) between the concatenated texts. Usually the
	// tokenizer's end-of-sentence or separator token. If empty, texts are joined by a space.
	Separator string

	// BatchSize is the number of texts concatenated together: chunks never span texts of different
	// batches. If 0, all texts are concatenated.
	BatchSize int
}

// ChunkTexts concatenates the texts, separated by opts.Separator, and cuts the result into chunks
// that encode to a fixed number of tokens.
//
// Each chunk holds ChunkSize - NumSpecialTokensToAdd() - 1 tokens, leaving room for the special
// tokens and the shifted target of causal models. The trailing partial chunk of each batch is dropped.
// The chunks are returned as the text they cover in the concatenation.
func ChunkTexts(tok Tokenizer, texts []string, opts ChunkOptions) ([]string, error) {
	maxTokens := opts.ChunkSize - tok.NumSpecialTokensToAdd() - 1
	if maxTokens <= 0 {
		return nil, errors.Errorf("ChunkSize=%d too small for %d special tokens", opts.ChunkSize, tok.NumSpecialTokensToAdd())
	}
	if len(texts) == 0 {
		return nil, nil
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	var chunks []string
	for batch := range slices.Chunk(texts, batchSize) {
		chunks = append(chunks, chunkBatch(tok, batch, opts.Separator, maxTokens)...)
	}
	klog.V(1).Infof("lm: %d texts cut into %d chunks of %d tokens", len(texts), len(chunks), maxTokens)
	return chunks, nil
}

func chunkBatch(tok Tokenizer, texts []string, separator string, maxTokens int) []string {
	sep := " "
	if separator != "" {
		sep = " " + separator + " "
	}
	concat := strings.Join(texts, sep)
	spans := tok.EncodeWithSpans(concat).Spans
	total := (len(spans) / maxTokens) * maxTokens
	var chunks []string
	for i := 0; i < total; i += maxTokens {
		chunkSpans := spans[i : i+maxTokens]
		start, end := chunkSpans[0].Start, chunkSpans[0].End
		for _, span := range chunkSpans[1:] {
			start = min(start, span.Start)
			end = max(end, span.End)
		}
		chunks = append(chunks, concat[start:end])
	}
	return chunks
}
