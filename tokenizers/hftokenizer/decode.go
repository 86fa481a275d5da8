package hftokenizer

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Decode converts a sequence of token IDs back to text.
func (t *Tokenizer) Decode(ids []int) string {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		if token, ok := t.idToToken[id]; ok {
			tokens = append(tokens, token)
		}
	}
	if t.tokenizer.Decoder == nil {
		return strings.Join(wordPieceDecode(tokens, t.subwordPrefix()), "")
	}
	return strings.Join(t.applyDecoder(tokens, t.tokenizer.Decoder), "")
}

// applyDecoder transforms the list of tokens: decoders can be chained in a "Sequence", and the
// final result is the concatenation of the tokens.
func (t *Tokenizer) applyDecoder(tokens []string, d *Decoder) []string {
	switch d.Type {
	case "WordPiece":
		prefix := d.Prefix
		if prefix == "" {
			prefix = "##"
		}
		return wordPieceDecode(tokens, prefix)
	case "ByteLevel":
		return []string{byteLevelDecode(strings.Join(tokens, ""))}
	case "Metaspace":
		text := strings.ReplaceAll(strings.Join(tokens, ""), metaspaceChar, " ")
		if d.PrependScheme != "never" {
			text = strings.TrimPrefix(text, " ")
		}
		return []string{text}
	case "BPEDecoder":
		return t.bpeDecode(tokens, d.Suffix)
	case "Replace":
		if d.Pattern == nil || d.Pattern.String == "" {
			return tokens
		}
		result := make([]string, len(tokens))
		for i, tok := range tokens {
			result[i] = strings.ReplaceAll(tok, d.Pattern.String, d.Content)
		}
		return result
	case "Strip":
		result := make([]string, len(tokens))
		for i, tok := range tokens {
			for range d.Start {
				tok = strings.TrimPrefix(tok, d.Content)
			}
			for range d.Stop {
				tok = strings.TrimSuffix(tok, d.Content)
			}
			result[i] = tok
		}
		return result
	case "ByteFallback":
		return byteFallbackDecode(tokens)
	case "Fuse":
		return []string{strings.Join(tokens, "")}
	case "Sequence":
		result := tokens
		for i := range d.Decoders {
			result = t.applyDecoder(result, &d.Decoders[i])
		}
		return result
	default:
		return tokens
	}
}

func wordPieceDecode(tokens []string, prefix string) []string {
	result := make([]string, len(tokens))
	for i, token := range tokens {
		switch {
		case strings.HasPrefix(token, prefix):
			result[i] = strings.TrimPrefix(token, prefix)
		case i > 0:
			result[i] = " " + token
		default:
			result[i] = token
		}
	}
	return result
}

func (t *Tokenizer) bpeDecode(tokens []string, suffix string) []string {
	if suffix == "" {
		suffix = t.tokenizer.Model.EndOfWordSuffix
	}
	if suffix == "" {
		return tokens
	}
	result := make([]string, len(tokens))
	for i, token := range tokens {
		if strings.HasSuffix(token, suffix) {
			token = strings.TrimSuffix(token, suffix)
			if i < len(tokens)-1 {
				token += " "
			}
		}
		result[i] = token
	}
	return result
}

// byteFallbackDecode converts runs of "<0xAB>" tokens back to the bytes they represent.
func byteFallbackDecode(tokens []string) []string {
	var result []string
	var pending []byte
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if utf8.Valid(pending) {
			result = append(result, string(pending))
		} else {
			for range pending {
				result = append(result, string(utf8.RuneError))
			}
		}
		pending = pending[:0]
	}
	for _, token := range tokens {
		if len(token) == 6 && strings.HasPrefix(token, "<0x") && strings.HasSuffix(token, ">") {
			if b, err := strconv.ParseUint(token[3:5], 16, 8); err == nil {
				pending = append(pending, byte(b))
				continue
			}
		}
		flush()
		result = append(result, token)
	}
	flush()
	return result
}
