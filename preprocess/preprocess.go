// Package preprocess converts token classification datasets (words with one label each) into
// model inputs: token ids with the word labels aligned to the tokens.
//
// Long examples are either truncated, or split into chunks of words that fit the model's
// maximum length (see Config.ChunkExamples), each chunk tokenized and aligned independently.
package preprocess

import (
	"context"
	"runtime"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/gomlx/hftasks/chunking"
	"github.com/gomlx/hftasks/labeling"
	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Example of a token classification dataset: a list of words with one label per word.
type Example struct {
	// ID of the example. If empty, a random UUID is assigned.
	ID string

	Words  []string
	Labels []labeling.Label

	// IsValid marks validation examples.
	IsValid bool
}

// Processed is an Example (or a chunk of one) converted to model inputs.
type Processed struct {
	// ID of the example it came from: chunks of the same example share it.
	ID string

	InputIDs      []int
	AttentionMask []int

	// WordIDs holds the index (into Words) of the word of each token, or api.NoWord.
	WordIDs []int

	// AlignedLabels holds one label id per token.
	AlignedLabels []int

	// Words and Labels of the chunk (or of the whole example, if not chunked).
	Words  []string
	Labels []labeling.Label

	// Span of the words of the original example. It covers all words if the example was not chunked.
	Span chunking.Span

	IsValid bool
}

// Len returns the number of tokens.
func (p *Processed) Len() int { return len(p.InputIDs) }

// Config for TokenClassification.
type Config struct {
	// MaxLength is the maximum number of tokens of the processed examples, special tokens included.
	// Longer examples are truncated, or chunked if ChunkExamples is set.
	// 0 means no limit, and it is only valid without ChunkExamples.
	MaxLength int `validate:"gte=0,required_if=ChunkExamples true"`

	// ChunkExamples splits examples longer than MaxLength into chunks, instead of truncating them.
	ChunkExamples bool

	// WordStride is the number of words consecutive chunks overlap by.
	WordStride int `validate:"gte=0"`

	// IgnoreID is the label id of tokens that are excluded from the loss.
	IgnoreID int

	// LabelNames is the label vocabulary. If empty, it's built from the label names used in the
	// examples, sorted.
	LabelNames []string

	// Strategy used to align the word labels to the tokens.
	Strategy labeling.Strategy `validate:"gte=0,lte=2"`

	// BatchSize is the number of examples processed per task.
	BatchSize int `validate:"gt=0"`

	// Parallelism is the maximum number of batches processed concurrently. 0 uses runtime.NumCPU().
	Parallelism int `validate:"gte=0"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxLength:  512,
		WordStride: 2,
		IgnoreID:   labeling.DefaultIgnoreID,
		Strategy:   labeling.OnlyFirstToken,
		BatchSize:  1000,
	}
}

var validate = validator.New()

// Validate the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid preprocessing configuration")
	}
	return nil
}

// TokenClassification preprocesses token classification datasets. Create it with
// NewTokenClassification.
//
// It is safe for concurrent use if the tokenizer is.
type TokenClassification struct {
	tok     api.WordTokenizer
	config  Config
	aligner labeling.Aligner
}

// NewTokenClassification returns a preprocessor using the given tokenizer.
func NewTokenClassification(tok api.WordTokenizer, config Config) (*TokenClassification, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxLength > 0 && config.MaxLength <= tok.NumSpecialTokensToAdd() {
		return nil, errors.Errorf("MaxLength=%d leaves no room for words after the %d special tokens",
			config.MaxLength, tok.NumSpecialTokensToAdd())
	}
	return &TokenClassification{
		tok:     tok,
		config:  config,
		aligner: labeling.Aligner{Strategy: config.Strategy, IgnoreID: config.IgnoreID},
	}, nil
}

// Config returns the configuration used.
func (tc *TokenClassification) Config() Config { return tc.config }

// Vocab returns the label vocabulary for the examples: the configured LabelNames, or the sorted
// label names used in the examples. It returns nil if no names are configured and all labels
// are integer ids.
func (tc *TokenClassification) Vocab(examples ...[]Example) (*labeling.Vocab, error) {
	if len(tc.config.LabelNames) > 0 {
		return labeling.NewVocab(tc.config.LabelNames)
	}
	var names [][]string
	for _, set := range examples {
		for _, ex := range set {
			var exNames []string
			for _, label := range ex.Labels {
				if label.IsName() {
					exNames = append(exNames, label.String())
				}
			}
			names = append(names, exNames)
		}
	}
	vocab := labeling.VocabFromSequences(names)
	if vocab.Len() == 0 {
		return nil, nil
	}
	return vocab, nil
}

// Process the training and validation examples. Validation examples are marked with IsValid, and
// returned after the training ones, preserving the order.
//
// It returns the processed examples (more than given if chunked) and the label vocabulary used.
func (tc *TokenClassification) Process(ctx context.Context, train, valid []Example) ([]Processed, *labeling.Vocab, error) {
	vocab, err := tc.Vocab(train, valid)
	if err != nil {
		return nil, nil, err
	}
	examples := make([]Example, 0, len(train)+len(valid))
	examples = append(examples, train...)
	for _, ex := range valid {
		ex.IsValid = true
		examples = append(examples, ex)
	}

	batches := slices.Collect(slices.Chunk(examples, tc.config.BatchSize))
	results := make([][]Processed, len(batches))
	klog.V(1).Infof("preprocess: %d examples (%d validation) in %d batches", len(examples), len(valid), len(batches))

	g, ctx := errgroup.WithContext(ctx)
	parallelism := tc.config.Parallelism
	if parallelism == 0 {
		parallelism = runtime.NumCPU()
	}
	g.SetLimit(parallelism)
	for batchIdx, batch := range batches {
		g.Go(func() error {
			processed := make([]Processed, 0, len(batch))
			for _, ex := range batch {
				if err := ctx.Err(); err != nil {
					return err
				}
				exProcessed, err := tc.ProcessExample(ex, vocab)
				if err != nil {
					return errors.WithMessagef(err, "batch %d", batchIdx)
				}
				processed = append(processed, exProcessed...)
			}
			results[batchIdx] = processed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	all := slices.Concat(results...)
	klog.V(1).Infof("preprocess: %d processed examples", len(all))
	return all, vocab, nil
}

// ProcessExample tokenizes one example and aligns its labels. It returns more than one Processed
// if the example is chunked.
//
// vocab is used to resolve labels given by name, and can be nil if they are all integer ids.
func (tc *TokenClassification) ProcessExample(ex Example, vocab *labeling.Vocab) ([]Processed, error) {
	if len(ex.Words) != len(ex.Labels) {
		return nil, errors.Errorf("example %q has %d words but %d labels", ex.ID, len(ex.Words), len(ex.Labels))
	}
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	full := chunking.Span{Start: 0, End: len(ex.Words)}
	if !tc.config.ChunkExamples {
		p, err := tc.encode(ex, full, tc.config.MaxLength, vocab)
		if err != nil {
			return nil, err
		}
		return []Processed{p}, nil
	}

	enc := tc.tok.EncodeWords(ex.Words, api.EncodeOptions{})
	if enc.Len()+tc.tok.NumSpecialTokensToAdd() <= tc.config.MaxLength {
		p, err := tc.encode(ex, full, 0, vocab)
		if err != nil {
			return nil, err
		}
		return []Processed{p}, nil
	}
	spans, err := chunking.SplitWordIDs(enc.WordIDs, len(ex.Words), chunking.Options{
		MaxLength:        tc.config.MaxLength,
		WordStride:       tc.config.WordStride,
		NumSpecialTokens: tc.tok.NumSpecialTokensToAdd(),
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "chunking example %q", ex.ID)
	}
	klog.V(2).Infof("preprocess: example %q with %d tokens split in %d chunks", ex.ID, enc.Len(), len(spans))
	processed := make([]Processed, 0, len(spans))
	for _, span := range spans {
		p, err := tc.encode(ex, span, 0, vocab)
		if err != nil {
			return nil, err
		}
		processed = append(processed, p)
	}
	return processed, nil
}

// encode the words of the span of the example, and align their labels.
func (tc *TokenClassification) encode(ex Example, span chunking.Span, maxLength int, vocab *labeling.Vocab) (Processed, error) {
	words := chunking.Slice(span, ex.Words)
	labels := chunking.Slice(span, ex.Labels)
	enc := tc.tok.EncodeWords(words, api.EncodeOptions{AddSpecialTokens: true, MaxLength: maxLength})
	aligned, err := tc.aligner.Align(enc.WordIDs, labels, vocab)
	if err != nil {
		return Processed{}, errors.WithMessagef(err, "aligning labels of example %q", ex.ID)
	}
	mask := make([]int, enc.Len())
	for i := range mask {
		mask[i] = 1
	}
	return Processed{
		ID:            ex.ID,
		InputIDs:      enc.IDs,
		AttentionMask: mask,
		WordIDs:       enc.WordIDs,
		AlignedLabels: aligned,
		Words:         words,
		Labels:        labels,
		Span:          span,
		IsValid:       ex.IsValid,
	}, nil
}
