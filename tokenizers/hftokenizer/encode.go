package hftokenizer

import (
	"strings"
	"unicode/utf8"

	"github.com/gomlx/hftasks/tokenizers/api"
)

// Encode converts text to a sequence of token IDs. Special tokens are not added.
func (t *Tokenizer) Encode(text string) []int {
	return t.EncodeWithSpans(text).IDs
}

// EncodeWithSpans converts text to token IDs, along with the byte span of each token in text.
//
// When a token can't be mapped precisely back to the text (e.g. unknown tokens, or normalizers
// that change the length of the text), it gets the span of the whole word it came from.
func (t *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	var result api.EncodingResult
	for _, seg := range t.splitAddedTokens(text) {
		if seg.id >= 0 {
			result.IDs = append(result.IDs, seg.id)
			result.Spans = append(result.Spans, api.TokenSpan{Start: seg.start, End: seg.end})
			continue
		}
		pieces := t.preTokenize(newPreToken(text[seg.start:seg.end], seg.start))
		if t.addPrefixSpace && len(pieces) > 0 && !strings.HasPrefix(pieces[0].text, " ") {
			pieces[0].prefixed = true
		}
		for _, piece := range pieces {
			ids := t.tokenizeWord(t.modelInput(piece))
			result.IDs = append(result.IDs, ids...)
			result.Spans = append(result.Spans, t.tokenSpans(piece, ids)...)
		}
	}
	return result
}

// EncodeWords encodes each word separately, and returns the concatenated tokens along with the
// index of the word each token came from. It implements api.WordTokenizer.
//
// For byte-level and metaspace tokenizers, where a space is part of the token, each word is
// encoded as if preceded by a space, so words are tokenized the same way they would be in
// the middle of a sentence.
func (t *Tokenizer) EncodeWords(words []string, opts api.EncodeOptions) api.WordEncoding {
	perWord := make([][]int, len(words))
	for i, word := range words {
		if t.byteLevel || t.metaspace {
			word = " " + word
		}
		perWord[i] = t.Encode(word)
	}
	return api.BuildWordEncoding(perWord, t.prefixIDs, t.suffixIDs, opts)
}

// WithSpecialTokens returns a copy of ids surrounded by the special tokens of the post-processor.
// It implements api.WordTokenizer.
func (t *Tokenizer) WithSpecialTokens(ids []int) []int {
	result := make([]int, 0, len(t.prefixIDs)+len(ids)+len(t.suffixIDs))
	result = append(result, t.prefixIDs...)
	result = append(result, ids...)
	return append(result, t.suffixIDs...)
}

// segment of the input text: either an added token (id >= 0) or text to be tokenized (id == -1).
type segment struct {
	start, end, id int
}

// splitAddedTokens splits text around the added tokens, which are matched literally, longest first.
func (t *Tokenizer) splitAddedTokens(text string) []segment {
	if len(t.addedContents) == 0 {
		if text == "" {
			return nil
		}
		return []segment{{start: 0, end: len(text), id: -1}}
	}
	var segments []segment
	last := 0
	for i := 0; i < len(text); {
		content := t.matchAddedToken(text[i:])
		if content == "" {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}
		if i > last {
			segments = append(segments, segment{start: last, end: i, id: -1})
		}
		segments = append(segments, segment{start: i, end: i + len(content), id: t.addedTokens[content]})
		i += len(content)
		last = i
	}
	if last < len(text) {
		segments = append(segments, segment{start: last, end: len(text), id: -1})
	}
	return segments
}

func (t *Tokenizer) matchAddedToken(text string) string {
	for _, content := range t.addedContents {
		if strings.HasPrefix(text, content) {
			return content
		}
	}
	return ""
}

// modelInput transforms a pre-token into the string the model tokenizes.
func (t *Tokenizer) modelInput(p preToken) string {
	word := t.normalize(p.text)
	if p.prefixed {
		word = " " + word
	}
	switch {
	case t.byteLevel:
		word = byteLevelEncode(word)
	case t.metaspace:
		word = strings.ReplaceAll(word, " ", metaspaceChar)
	}
	return word
}

// tokenSpans maps the tokens of one pre-token back to byte spans of the original text.
func (t *Tokenizer) tokenSpans(p preToken, ids []int) []api.TokenSpan {
	spans := make([]api.TokenSpan, len(ids))
	lengths := make([]int, len(ids))
	total := 0
	for i, id := range ids {
		token, found := t.idToToken[id]
		if !found || id == t.unkID {
			total = -1
			break
		}
		n := t.rawLength(token, i)
		if i == 0 && p.prefixed {
			n--
		}
		if n < 0 {
			total = -1
			break
		}
		lengths[i] = n
		total += n
	}
	if total != p.end-p.start {
		for i := range spans {
			spans[i] = api.TokenSpan{Start: p.start, End: p.end}
		}
		return spans
	}
	pos := p.start
	for i, n := range lengths {
		spans[i] = api.TokenSpan{Start: pos, End: pos + n}
		pos += n
	}
	return spans
}

// rawLength returns the number of bytes of the (un-normalized) text the token stands for.
func (t *Tokenizer) rawLength(token string, idx int) int {
	switch {
	case t.byteLevel:
		return len(byteLevelDecode(token))
	case t.metaspace:
		return len(strings.ReplaceAll(token, metaspaceChar, " "))
	}
	model := &t.tokenizer.Model
	if model.Type == "WordPiece" && idx > 0 {
		token = strings.TrimPrefix(token, t.subwordPrefix())
	}
	if model.EndOfWordSuffix != "" {
		token = strings.TrimSuffix(token, model.EndOfWordSuffix)
	}
	return len(token)
}

func (t *Tokenizer) subwordPrefix() string {
	if prefix := t.tokenizer.Model.ContinuingSubwordPrefix; prefix != "" {
		return prefix
	}
	return "##"
}

// tokenizeWord tokenizes a single word according to the model type.
func (t *Tokenizer) tokenizeWord(word string) []int {
	switch t.tokenizer.Model.Type {
	case "WordPiece":
		return t.wordPieceTokenize(word)
	case "BPE":
		return t.bpeTokenize(word)
	case "Unigram":
		return t.unigramTokenize(word)
	default:
		if id, ok := t.tokenizer.Model.Vocab[word]; ok {
			return []int{id}
		}
		if t.unkID >= 0 {
			return []int{t.unkID}
		}
		return nil
	}
}

// wordPieceTokenize implements WordPiece tokenization (used by BERT).
func (t *Tokenizer) wordPieceTokenize(word string) []int {
	if word == "" {
		return nil
	}
	maxChars := t.tokenizer.Model.MaxInputCharsPerWord
	if maxChars == 0 {
		maxChars = 100
	}
	if utf8.RuneCountInString(word) > maxChars {
		if t.unkID >= 0 {
			return []int{t.unkID}
		}
		return nil
	}

	prefix := t.subwordPrefix()
	var tokens []int
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for start < end {
			substr := word[start:end]
			if start > 0 {
				substr = prefix + substr
			}
			if id, ok := t.tokenizer.Model.Vocab[substr]; ok {
				tokens = append(tokens, id)
				found = true
				break
			}
			// Back off one rune, never splitting a multi-byte character.
			_, size := utf8.DecodeLastRuneInString(word[start:end])
			end -= size
		}
		if !found {
			if t.unkID >= 0 {
				return []int{t.unkID}
			}
			return nil
		}
		start = end
	}
	return tokens
}

// bpeTokenize implements BPE tokenization (used by GPT-2, RoBERTa).
func (t *Tokenizer) bpeTokenize(word string) []int {
	if word == "" {
		return nil
	}
	symbols := t.initialBPESymbols(word)
	for len(symbols) > 1 {
		bestRank, bestIdx := -1, -1
		for i := 0; i < len(symbols)-1; i++ {
			if rank, ok := t.mergeRanks[symbols[i]+" "+symbols[i+1]]; ok {
				if bestRank == -1 || rank < bestRank {
					bestRank, bestIdx = rank, i
				}
			}
		}
		if bestIdx == -1 {
			break
		}
		merged := symbols[bestIdx] + symbols[bestIdx+1]
		symbols = append(symbols[:bestIdx+1], symbols[bestIdx+2:]...)
		symbols[bestIdx] = merged
	}

	var ids []int
	for _, sym := range symbols {
		if id, ok := t.tokenizer.Model.Vocab[sym]; ok {
			ids = append(ids, id)
		} else if t.unkID >= 0 {
			ids = append(ids, t.unkID)
		}
	}
	return ids
}

// initialBPESymbols splits a word into its characters, the starting point of the BPE merges.
func (t *Tokenizer) initialBPESymbols(word string) []string {
	symbols := make([]string, 0, len(word))
	for _, r := range word {
		symbols = append(symbols, string(r))
	}
	if suffix := t.tokenizer.Model.EndOfWordSuffix; suffix != "" && len(symbols) > 0 {
		symbols[len(symbols)-1] += suffix
	}
	return symbols
}

// unigramTokenize implements a greedy longest-match approximation of Unigram tokenization.
func (t *Tokenizer) unigramTokenize(word string) []int {
	var ids []int
	runes := []rune(word)
	for start := 0; start < len(runes); {
		found := false
		for end := len(runes); end > start; end-- {
			if id, ok := t.tokenizer.Model.Vocab[string(runes[start:end])]; ok {
				ids = append(ids, id)
				found = true
				start = end
				break
			}
		}
		if !found {
			if id, ok := t.tokenizer.Model.Vocab[string(runes[start])]; ok {
				ids = append(ids, id)
			} else if t.unkID >= 0 {
				ids = append(ids, t.unkID)
			}
			start++
		}
	}
	return ids
}
