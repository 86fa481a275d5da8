// Package chunking splits documents given as lists of words into chunks that fit a model's
// maximum input length, without splitting any word's sub-tokens across chunks.
//
// Chunks are contiguous ranges of words. With a WordStride > 0, consecutive chunks overlap by
// that many words, so words near a chunk boundary are seen with context on both sides.
package chunking

import (
	"github.com/go-playground/validator/v10"
	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
)

var (
	// ErrWordTooLong is returned when a single word has more sub-tokens than fit in a chunk.
	ErrWordTooLong = errors.New("word too long for chunk")

	// ErrInvalidOptions is returned for Options that can't produce any chunk.
	ErrInvalidOptions = errors.New("invalid chunking options")

	// ErrMalformedWordIDs is returned when the word ids of the tokens refer to words outside of the
	// document, or the sub-tokens of a word are not contiguous.
	ErrMalformedWordIDs = errors.New("malformed word ids")
)

var validate = validator.New()

// Options for chunking.
type Options struct {
	// MaxLength is the maximum number of tokens of a chunk, including special tokens.
	MaxLength int `validate:"gt=0"`

	// WordStride is the number of words consecutive chunks overlap by.
	WordStride int `validate:"gte=0"`

	// NumSpecialTokens is the number of special tokens the tokenizer adds to each chunk.
	// Split sets it from the tokenizer.
	NumSpecialTokens int `validate:"gte=0"`
}

// Limit returns the number of content tokens that fit in a chunk.
func (o Options) Limit() int { return o.MaxLength - o.NumSpecialTokens }

// Validate returns an error wrapping ErrInvalidOptions if the options can't be used.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Wrapf(ErrInvalidOptions, "%v", err)
	}
	if o.Limit() <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "MaxLength=%d leaves no room for content after %d special tokens",
			o.MaxLength, o.NumSpecialTokens)
	}
	return nil
}

// Span is a chunk: the words with index in [Start, End).
type Span struct {
	Start, End int
}

// Len returns the number of words in the span.
func (s Span) Len() int { return s.End - s.Start }

// Words returns the indices of the words in the span.
func (s Span) Words() []int {
	indices := make([]int, 0, s.Len())
	for i := s.Start; i < s.End; i++ {
		indices = append(indices, i)
	}
	return indices
}

// Slice returns the words of the span.
func Slice[T any](s Span, words []T) []T {
	return words[s.Start:s.End]
}

// SplitCounts splits a document, given as the number of sub-tokens of each of its words, into
// spans of at most limit sub-tokens.
//
// Each span is extended while the next word fits. The next span starts stride words before the
// end of the previous one, or right after it if that wouldn't move forward. The last span always
// ends at the last word. An empty document yields no spans.
//
// The overlap is stride words even when the previous span closed below the limit. Overlapping
// by stride-1 words in that case, as some chunkers do, is deliberately not done: the overlap
// doesn't depend on how full the previous span was.
func SplitCounts(counts []int, limit, stride int) ([]Span, error) {
	if limit <= 0 {
		return nil, errors.Wrapf(ErrInvalidOptions, "limit of tokens per chunk must be > 0, got %d", limit)
	}
	if stride < 0 {
		return nil, errors.Wrapf(ErrInvalidOptions, "word stride must be >= 0, got %d", stride)
	}
	for wordIdx, count := range counts {
		if count > limit {
			return nil, errors.Wrapf(ErrWordTooLong, "word #%d has %d sub-tokens, but chunks fit only %d",
				wordIdx, count, limit)
		}
	}

	var spans []Span
	numWords := len(counts)
	start := 0
	for start < numWords {
		end, total := start, 0
		for end < numWords && total+counts[end] <= limit {
			total += counts[end]
			end++
		}
		spans = append(spans, Span{Start: start, End: end})
		if end == numWords {
			break
		}
		next := end
		if stride > 0 && end-stride > start {
			next = end - stride
		}
		start = next
	}
	return spans, nil
}

// WordCounts returns the number of sub-tokens of each of the numWords words, given the word id
// of each token (api.NoWord tokens are skipped).
//
// It returns an error wrapping ErrMalformedWordIDs if a word id is out of range, or if the
// sub-tokens of a word are not contiguous.
func WordCounts(wordIDs []int, numWords int) ([]int, error) {
	counts := make([]int, numWords)
	last := api.NoWord
	for i, wordID := range wordIDs {
		if wordID == api.NoWord {
			continue
		}
		if wordID < 0 || wordID >= numWords {
			return nil, errors.Wrapf(ErrMalformedWordIDs, "token #%d refers to word %d, document has %d words",
				i, wordID, numWords)
		}
		if wordID != last && counts[wordID] > 0 {
			return nil, errors.Wrapf(ErrMalformedWordIDs, "sub-tokens of word %d are not contiguous (token #%d)",
				wordID, i)
		}
		counts[wordID]++
		last = wordID
	}
	return counts, nil
}

// SplitWordIDs splits a document of numWords words, given the word id of each of its tokens
// (as returned by api.WordTokenizer.EncodeWords without special tokens).
func SplitWordIDs(wordIDs []int, numWords int, opts Options) ([]Span, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	counts, err := WordCounts(wordIDs, numWords)
	if err != nil {
		return nil, err
	}
	return SplitCounts(counts, opts.Limit(), opts.WordStride)
}

// Split tokenizes the words once and splits them into spans whose encoding, with the tokenizer's
// special tokens, fits in opts.MaxLength. opts.NumSpecialTokens is taken from the tokenizer.
func Split(words []string, tok api.WordTokenizer, opts Options) ([]Span, error) {
	opts.NumSpecialTokens = tok.NumSpecialTokensToAdd()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	enc := tok.EncodeWords(words, api.EncodeOptions{})
	return SplitWordIDs(enc.WordIDs, len(words), opts)
}
