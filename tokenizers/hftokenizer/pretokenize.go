package hftokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// preToken is a piece of the input text produced by the pre-tokenizer.
type preToken struct {
	text string

	// start, end are the byte offsets of text in the original input.
	start, end int

	// prefixed is set when a space not present in the original input must be prepended to text
	// before running the model (add_prefix_space).
	prefixed bool
}

func newPreToken(text string, start int) preToken {
	return preToken{text: text, start: start, end: start + len(text)}
}

// sub returns the piece p.text[i:j], with its offsets.
func (p preToken) sub(i, j int) preToken {
	return preToken{text: p.text[i:j], start: p.start + i, end: p.start + j}
}

// normalize applies the normalizer to the text.
func (t *Tokenizer) normalize(text string) string {
	if t.tokenizer.Normalizer == nil {
		return text
	}
	return t.applyNormalizer(text, t.tokenizer.Normalizer)
}

func (t *Tokenizer) applyNormalizer(text string, n *Normalizer) string {
	switch n.Type {
	case "Lowercase":
		return strings.ToLower(text)
	case "NFD":
		return norm.NFD.String(text)
	case "NFC":
		return norm.NFC.String(text)
	case "NFKC":
		return norm.NFKC.String(text)
	case "NFKD":
		return norm.NFKD.String(text)
	case "StripAccents":
		return removeAccents(norm.NFD.String(text))
	case "Strip":
		if n.Left {
			text = strings.TrimLeftFunc(text, unicode.IsSpace)
		}
		if n.Right {
			text = strings.TrimRightFunc(text, unicode.IsSpace)
		}
		return text
	case "BertNormalizer":
		result := cleanText(text)
		stripAccents := n.Lowercase
		if n.StripAccents != nil {
			stripAccents = *n.StripAccents
		}
		if stripAccents {
			result = removeAccents(norm.NFD.String(result))
		}
		if n.Lowercase {
			result = strings.ToLower(result)
		}
		return result
	case "Replace":
		if n.Pattern == nil || n.Pattern.String == "" {
			return text
		}
		return strings.ReplaceAll(text, n.Pattern.String, n.Content)
	case "Prepend":
		if text == "" {
			return text
		}
		return n.Prepend + text
	case "Sequence":
		result := text
		for i := range n.Normalizers {
			result = t.applyNormalizer(result, &n.Normalizers[i])
		}
		return result
	default:
		return text
	}
}

// preTokenize splits a piece of text into words, keeping track of their offsets.
func (t *Tokenizer) preTokenize(p preToken) []preToken {
	if t.tokenizer.PreTokenizer == nil {
		return splitPieces(p, isWhitespace, nil)
	}
	return t.applyPreTokenizer(p, t.tokenizer.PreTokenizer)
}

func (t *Tokenizer) applyPreTokenizer(p preToken, pt *PreTokenizer) []preToken {
	switch pt.Type {
	case "BertPreTokenizer":
		return splitPieces(p, isWhitespace, isPunctuation)
	case "Whitespace":
		return splitWordsAndSymbols(p)
	case "WhitespaceSplit":
		return splitPieces(p, isWhitespace, nil)
	case "Punctuation":
		return splitPieces(p, nil, isPunctuation)
	case "ByteLevel":
		if pt.UseRegex != nil && !*pt.UseRegex {
			return []preToken{p}
		}
		return byteLevelSplit(p)
	case "Metaspace":
		return spaceAttachedSplit(p)
	case "Split":
		if t.byteLevel {
			return byteLevelSplit(p)
		}
		return splitPieces(p, isWhitespace, nil)
	case "Sequence":
		result := []preToken{p}
		for i := range pt.PreTokenizers {
			var next []preToken
			for _, piece := range result {
				next = append(next, t.applyPreTokenizer(piece, &pt.PreTokenizers[i])...)
			}
			result = next
		}
		return result
	default:
		return splitPieces(p, isWhitespace, nil)
	}
}

// splitPieces splits p on runes for which isSep returns true (they are dropped), and isolates
// runes for which isolate returns true in their own piece. Either function can be nil.
func splitPieces(p preToken, isSep, isolate func(r rune) bool) []preToken {
	var pieces []preToken
	current := -1
	flush := func(end int) {
		if current >= 0 && end > current {
			pieces = append(pieces, p.sub(current, end))
		}
		current = -1
	}
	for i, r := range p.text {
		switch {
		case isSep != nil && isSep(r):
			flush(i)
		case isolate != nil && isolate(r):
			flush(i)
			pieces = append(pieces, p.sub(i, i+utf8.RuneLen(r)))
		default:
			if current < 0 {
				current = i
			}
		}
	}
	flush(len(p.text))
	return pieces
}

// splitWordsAndSymbols splits into runs of word characters and runs of other non-space
// characters, like the `\w+|[^\w\s]+` pattern.
func splitWordsAndSymbols(p preToken) []preToken {
	var pieces []preToken
	current, currentIsWord := -1, false
	for i, r := range p.text {
		if isWhitespace(r) {
			if current >= 0 {
				pieces = append(pieces, p.sub(current, i))
			}
			current = -1
			continue
		}
		word := isWordChar(r)
		if current >= 0 && word != currentIsWord {
			pieces = append(pieces, p.sub(current, i))
			current = -1
		}
		if current < 0 {
			current, currentIsWord = i, word
		}
	}
	if current >= 0 {
		pieces = append(pieces, p.sub(current, len(p.text)))
	}
	return pieces
}

// spaceAttachedSplit splits before each space that follows a non-space, so spaces stay attached
// to the beginning of the following word.
func spaceAttachedSplit(p preToken) []preToken {
	var pieces []preToken
	current := 0
	prev := ' '
	for i, r := range p.text {
		if r == ' ' && prev != ' ' && i > current {
			pieces = append(pieces, p.sub(current, i))
			current = i
		}
		prev = r
	}
	if current < len(p.text) {
		pieces = append(pieces, p.sub(current, len(p.text)))
	}
	return pieces
}

// byteLevelSplit implements the GPT-2 pre-tokenization pattern:
//
//	's|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+
func byteLevelSplit(p preToken) []preToken {
	var pieces []preToken
	s := p.text
	for i := 0; i < len(s); {
		if n := contractionLen(s[i:]); n > 0 {
			pieces = append(pieces, p.sub(i, i+n))
			i += n
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		j := i
		if r == ' ' && i+size < len(s) {
			if next, _ := utf8.DecodeRuneInString(s[i+size:]); !unicode.IsSpace(next) {
				j, r = i+size, next
			}
		}

		end := j
		if unicode.IsSpace(r) {
			for end < len(s) {
				rr, sz := utf8.DecodeRuneInString(s[end:])
				if !unicode.IsSpace(rr) {
					break
				}
				end += sz
			}
			if end < len(s) {
				// The last space is left to the following word.
				if _, lastSize := utf8.DecodeLastRuneInString(s[i:end]); end-lastSize > i {
					end -= lastSize
				}
			}
		} else {
			class := runeClass(r)
			for end < len(s) {
				rr, sz := utf8.DecodeRuneInString(s[end:])
				if unicode.IsSpace(rr) || runeClass(rr) != class {
					break
				}
				end += sz
			}
		}
		pieces = append(pieces, p.sub(i, end))
		i = end
	}
	return pieces
}

var contractions = []string{"'s", "'t", "'re", "'ve", "'m", "'ll", "'d"}

func contractionLen(s string) int {
	if !strings.HasPrefix(s, "'") {
		return 0
	}
	for _, c := range contractions {
		if strings.HasPrefix(s, c) {
			return len(c)
		}
	}
	return 0
}

const (
	classLetter = iota
	classNumber
	classOther
)

func runeClass(r rune) int {
	switch {
	case unicode.IsLetter(r):
		return classLetter
	case unicode.IsNumber(r):
		return classNumber
	default:
		return classOther
	}
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
