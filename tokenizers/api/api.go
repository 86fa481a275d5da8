// Package api defines the Tokenizer API.
// It's just a hack to break the cyclic dependency, and allow the users to import `tokenizers` and get the
// default implementations.
package api

// TokenSpan represents the byte span of a token in the original text.
// Start and End are byte offsets (not rune offsets), suitable for slicing
// Go strings directly: originalText[span.Start:span.End].
type TokenSpan struct {
	Start int // start byte position (inclusive)
	End   int // end byte position (exclusive)
}

// EncodingResult contains tokens with their spans in the original text.
type EncodingResult struct {
	IDs   []int       // token IDs
	Spans []TokenSpan // byte spans for each token (use originalText[span.Start:span.End] to extract)
}

// Tokenizer interface allows one convert test to "tokens" (integer ids) and back.
//
// It also allows mapping of special tokens: tokens with a common semantic (like padding) but that
// may map to different ids (int) for different tokenizers.
type Tokenizer interface {
	Encode(text string) []int
	Decode([]int) string

	// SpecialTokenID returns ID for given special token if registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// TokenizerWithSpans extends Tokenizer with span tracking capability.
// It is used to map tokens back to byte positions in the original text, e.g. when
// cutting concatenated texts into fixed size chunks for language modeling.
type TokenizerWithSpans interface {
	Tokenizer
	// EncodeWithSpans returns tokens along with their byte spans in the original text.
	EncodeWithSpans(text string) EncodingResult
}

// WordTokenizer is a Tokenizer that can encode text already split into words, keeping
// track of which word each sub-token came from.
//
// This is what token classification (NER, POS tagging) needs: labels are given per word, and
// must be aligned to the sub-tokens the model sees.
type WordTokenizer interface {
	Tokenizer

	// EncodeWords encodes each word separately and returns the concatenated token ids, along with
	// the index of the word each token belongs to (NoWord for special tokens).
	EncodeWords(words []string, opts EncodeOptions) WordEncoding

	// NumSpecialTokensToAdd returns how many special tokens EncodeWords adds when
	// EncodeOptions.AddSpecialTokens is set.
	NumSpecialTokensToAdd() int

	// WithSpecialTokens returns a copy of ids surrounded by the special tokens EncodeWords adds.
	WithSpecialTokens(ids []int) []int

	// IsSpecialID reports whether id is one of the tokenizer's special tokens.
	IsSpecialID(id int) bool

	// IDToToken converts a token ID to its string.
	IDToToken(id int) (string, bool)
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSpecialTokensCount
)

// String implements fmt.Stringer.
func (t SpecialToken) String() string {
	switch t {
	case TokBeginningOfSentence:
		return "beginning_of_sentence"
	case TokEndOfSentence:
		return "end_of_sentence"
	case TokUnknown:
		return "unknown"
	case TokPad:
		return "pad"
	case TokMask:
		return "mask"
	case TokClassification:
		return "classification"
	}
	return "special_tokens_count"
}
