// Package tiktoken implements a tokenizer based on OpenAI's BPE encodings (cl100k_base,
// p50k_base, r50k_base, o200k_base), using github.com/pkoukk/tiktoken-go.
//
// The encoding files are downloaded (and cached) by tiktoken-go on first use.
package tiktoken

import (
	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

// knownSpecialTokens are looked up in each encoding: not all encodings define all of them.
var knownSpecialTokens = []string{
	"<|endoftext|>", "<|fim_prefix|>", "<|fim_middle|>", "<|fim_suffix|>", "<|endofprompt|>",
}

// Tokenizer wraps a tiktoken encoding.
//
// Special tokens in the text are encoded literally, as regular text.
// EncodeWords encodes each word with a leading space, and adds no special tokens, like GPT models.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
	name     string

	eosID      int
	specialIDs map[int]string
}

// Compile time assert that Tokenizer implements the api interfaces.
var (
	_ api.Tokenizer          = &Tokenizer{}
	_ api.TokenizerWithSpans = &Tokenizer{}
	_ api.WordTokenizer      = &Tokenizer{}
)

// New creates a Tokenizer for the given encoding name, e.g. "cl100k_base".
func New(encodingName string) (*Tokenizer, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tiktoken encoding %q", encodingName)
	}
	return newTokenizer(encoding, encodingName), nil
}

// NewForModel creates a Tokenizer for the encoding used by the given OpenAI model, e.g. "gpt-4".
func NewForModel(modelName string) (*Tokenizer, error) {
	encoding, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tiktoken encoding for model %q", modelName)
	}
	return newTokenizer(encoding, modelName), nil
}

func newTokenizer(encoding *tiktoken.Tiktoken, name string) *Tokenizer {
	t := &Tokenizer{
		encoding:   encoding,
		name:       name,
		eosID:      -1,
		specialIDs: make(map[int]string),
	}
	for _, special := range knownSpecialTokens {
		ids := encoding.Encode(special, []string{"all"}, nil)
		if len(ids) != 1 {
			// Not a special token in this encoding.
			continue
		}
		t.specialIDs[ids[0]] = special
		if special == "<|endoftext|>" {
			t.eosID = ids[0]
		}
	}
	return t
}

// Name of the encoding or model used to create the tokenizer.
func (t *Tokenizer) Name() string { return t.name }

// Encode returns the text encoded into a sequence of ids.
func (t *Tokenizer) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

// EncodeWithSpans returns the text encoded into ids along with their byte spans.
// It implements api.TokenizerWithSpans.
func (t *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	ids := t.Encode(text)
	spans := make([]api.TokenSpan, len(ids))
	pos := 0
	for i, id := range ids {
		// A token may hold only part of a multi-byte character: len counts bytes, so it still adds up.
		n := len(t.encoding.Decode([]int{id}))
		end := min(pos+n, len(text))
		spans[i] = api.TokenSpan{Start: pos, End: end}
		pos = end
	}
	return api.EncodingResult{IDs: ids, Spans: spans}
}

// Decode returns the text from a sequence of ids.
func (t *Tokenizer) Decode(ids []int) string {
	return t.encoding.Decode(ids)
}

// SpecialTokenID implements api.Tokenizer. Only the end-of-sentence token ("<|endoftext|>") is defined.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	if token == api.TokEndOfSentence && t.eosID >= 0 {
		return t.eosID, nil
	}
	return 0, errors.Errorf("special token %s not defined for tiktoken encoding %q", token, t.name)
}

// EncodeWords implements api.WordTokenizer.
func (t *Tokenizer) EncodeWords(words []string, opts api.EncodeOptions) api.WordEncoding {
	perWord := make([][]int, len(words))
	for i, word := range words {
		perWord[i] = t.Encode(" " + word)
	}
	return api.BuildWordEncoding(perWord, nil, nil, opts)
}

// NumSpecialTokensToAdd implements api.WordTokenizer: tiktoken adds no special tokens.
func (t *Tokenizer) NumSpecialTokensToAdd() int { return 0 }

// WithSpecialTokens implements api.WordTokenizer. It returns a copy of ids.
func (t *Tokenizer) WithSpecialTokens(ids []int) []int {
	return append([]int(nil), ids...)
}

// IsSpecialID implements api.WordTokenizer.
func (t *Tokenizer) IsSpecialID(id int) bool {
	_, found := t.specialIDs[id]
	return found
}

// IDToToken returns the text of a single token. It implements api.WordTokenizer.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	if special, found := t.specialIDs[id]; found {
		return special, true
	}
	if id < 0 {
		return "", false
	}
	token := t.encoding.Decode([]int{id})
	return token, token != ""
}
