// Package sentencepiece implements a tokenizers.Tokenizer based on SentencePiece tokenizer.
package sentencepiece

import (
	"strings"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/hftasks/hub"
	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
)

// New creates a SentencePiece tokenizer based on the "tokenizer.model" file, which must be a
// SentencePiece Model proto.
//
// It implements a tokenizers.TokenizerConstructor function signature.
func New(config *api.Config, repo *hub.Repo) (api.Tokenizer, error) {
	if !repo.HasFile("tokenizer.model") {
		return nil, errors.Errorf("\"tokenizer.model\" file not found in repo %q", repo.ID)
	}
	tokenizerFile, err := repo.DownloadFile("tokenizer.model")
	if err != nil {
		return nil, errors.Wrapf(err, "can't download tokenizer.model file")
	}
	return NewFromFile(config, tokenizerFile)
}

// NewFromFile creates a SentencePiece tokenizer from a local "tokenizer.model" file.
// config (from tokenizer_config.json) is optional and can be nil.
func NewFromFile(config *api.Config, filePath string) (*Tokenizer, error) {
	proc, err := esentencepiece.NewProcessorFromPath(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", filePath)
	}
	return newTokenizer(config, proc), nil
}

func newTokenizer(config *api.Config, proc *esentencepiece.Processor) *Tokenizer {
	p := &Tokenizer{
		Processor: proc,
		Info:      proc.ModelInfo(),
	}
	addBos, addEos := false, true
	if config != nil {
		if config.AddBosToken != nil {
			addBos = *config.AddBosToken
		}
		if config.AddEosToken != nil {
			addEos = *config.AddEosToken
		}
	}
	if addBos && p.Info.BeginningOfSentenceID >= 0 {
		p.prefixIDs = []int{p.Info.BeginningOfSentenceID}
	}
	if addEos && p.Info.EndOfSentenceID >= 0 {
		p.suffixIDs = []int{p.Info.EndOfSentenceID}
	}
	return p
}

// Tokenizer implements tokenizers.Tokenizer interface based on SentencePiece tokenizer by Google.
//
// EncodeWords adds the end-of-sentence token (like T5 does) unless the configuration's
// "add_eos_token" says otherwise, and the beginning-of-sentence token only if "add_bos_token" is set.
type Tokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo

	prefixIDs, suffixIDs []int
}

// Compile time assert that sentencepiece.Tokenizer implements the api interfaces.
var (
	_ api.Tokenizer          = &Tokenizer{}
	_ api.TokenizerWithSpans = &Tokenizer{}
	_ api.WordTokenizer      = &Tokenizer{}
)

// Encode returns the text encoded into a sequence of ids.
func (p *Tokenizer) Encode(text string) []int {
	tokens := p.Processor.Encode(text)
	return sliceMap(tokens, func(t esentencepiece.Token) int { return t.ID })
}

// EncodeWithSpans returns the text encoded into a sequence of ids along with their byte spans.
// It implements api.TokenizerWithSpans.
func (p *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	tokens := p.Processor.Encode(text)
	ids := make([]int, len(tokens))
	spans := make([]api.TokenSpan, len(tokens))

	// Track position in original text by matching token pieces.
	pos := 0
	for i, tok := range tokens {
		ids[i] = tok.ID

		// SentencePiece uses U+2581 as the space replacement.
		matchPiece, hasLeadingSpace := strings.CutPrefix(tok.Text, "▁")
		if hasLeadingSpace {
			for pos < len(text) && isSpace(text[pos]) {
				pos++
			}
		}

		start := pos
		if matchPiece == "" {
			// The token represents just the space.
			if hasLeadingSpace && start > 0 && isSpace(text[start-1]) {
				start--
			}
			spans[i] = api.TokenSpan{Start: start, End: pos}
			continue
		}
		if foundAt := findSubstring(text, matchPiece, pos); foundAt >= 0 {
			start = foundAt
			pos = foundAt + len(matchPiece)
		} else {
			pos = min(pos+len(matchPiece), len(text))
		}
		spans[i] = api.TokenSpan{Start: start, End: pos}
	}

	return api.EncodingResult{
		IDs:   ids,
		Spans: spans,
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// findSubstring finds the first occurrence of substr in s starting from position start.
// Returns the byte position of the match, or -1 if not found.
func findSubstring(s, substr string, start int) int {
	if start >= len(s) {
		return -1
	}
	idx := strings.Index(s[start:], substr)
	if idx < 0 {
		return -1
	}
	return start + idx
}

// EncodeWords encodes each word separately. Since SentencePiece prepends the "▁" to the text, each
// word is tokenized as if it followed a space. It implements api.WordTokenizer.
func (p *Tokenizer) EncodeWords(words []string, opts api.EncodeOptions) api.WordEncoding {
	perWord := make([][]int, len(words))
	for i, word := range words {
		perWord[i] = p.Encode(word)
	}
	return api.BuildWordEncoding(perWord, p.prefixIDs, p.suffixIDs, opts)
}

// NumSpecialTokensToAdd implements api.WordTokenizer.
func (p *Tokenizer) NumSpecialTokensToAdd() int {
	return len(p.prefixIDs) + len(p.suffixIDs)
}

// WithSpecialTokens implements api.WordTokenizer.
func (p *Tokenizer) WithSpecialTokens(ids []int) []int {
	result := make([]int, 0, len(p.prefixIDs)+len(ids)+len(p.suffixIDs))
	result = append(result, p.prefixIDs...)
	result = append(result, ids...)
	return append(result, p.suffixIDs...)
}

// IsSpecialID implements api.WordTokenizer.
func (p *Tokenizer) IsSpecialID(id int) bool {
	if id < 0 {
		return false
	}
	return id == p.Info.BeginningOfSentenceID || id == p.Info.EndOfSentenceID ||
		id == p.Info.PadID || id == p.Info.UnknownID
}

// IDToToken returns the decoded text of a single token. It implements api.WordTokenizer.
func (p *Tokenizer) IDToToken(id int) (string, bool) {
	if id < 0 || id >= p.Info.VocabularySize {
		return "", false
	}
	return p.Processor.Decode([]int{id}), true
}

// VocabSize returns the number of tokens in the model.
func (p *Tokenizer) VocabSize() int { return p.Info.VocabularySize }

// Decode returns the text from a sequence of ids.
func (p *Tokenizer) Decode(ids []int) string {
	return p.Processor.Decode(ids)
}

// SpecialTokenID returns the token for the given symbol, or an error if not known.
func (p *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	var id int
	switch token {
	case api.TokUnknown:
		id = p.Info.UnknownID
	case api.TokPad:
		id = p.Info.PadID
	case api.TokBeginningOfSentence:
		id = p.Info.BeginningOfSentenceID
	case api.TokEndOfSentence:
		id = p.Info.EndOfSentenceID
	default:
		return 0, errors.Errorf("unknown special token: %s (%d)", token, int(token))
	}
	if id < 0 {
		return 0, errors.Errorf("special token %s not defined in the sentencepiece model", token)
	}
	return id, nil
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}
