package api

// NoWord is the word index assigned to tokens that don't belong to any word: special tokens
// like [CLS], [SEP], padding, etc.
const NoWord = -1

// EncodeOptions configures WordTokenizer.EncodeWords.
type EncodeOptions struct {
	// AddSpecialTokens adds the tokenizer's special tokens (e.g. [CLS] ... [SEP]) around the words.
	AddSpecialTokens bool

	// MaxLength, if > 0, truncates the encoding so its total length (special tokens included)
	// doesn't exceed it. Content tokens are dropped from the end, special tokens are always kept:
	// a MaxLength smaller than the number of special tokens yields only the special tokens, so
	// callers must check it leaves room for the words.
	MaxLength int
}

// WordEncoding is the result of encoding a list of words.
type WordEncoding struct {
	// IDs of the tokens.
	IDs []int

	// WordIDs holds, for each token in IDs, the index of the word it came from, or NoWord.
	WordIDs []int
}

// Len returns the number of tokens.
func (e WordEncoding) Len() int { return len(e.IDs) }

// NumWords returns the number of distinct words present in the encoding: after truncation
// this may be less than the number of words given.
func (e WordEncoding) NumWords() int {
	n := 0
	last := NoWord
	for _, w := range e.WordIDs {
		if w != NoWord && w != last {
			n++
		}
		if w != NoWord {
			last = w
		}
	}
	return n
}

// BuildWordEncoding assembles a WordEncoding from the per-word token ids and the special tokens
// to prepend/append. It's shared by the WordTokenizer implementations.
//
// If opts.AddSpecialTokens is false, prefix and suffix are ignored.
func BuildWordEncoding(perWord [][]int, prefix, suffix []int, opts EncodeOptions) WordEncoding {
	if !opts.AddSpecialTokens {
		prefix, suffix = nil, nil
	}
	contentLen := 0
	for _, ids := range perWord {
		contentLen += len(ids)
	}
	budget := contentLen
	if opts.MaxLength > 0 {
		budget = max(0, min(contentLen, opts.MaxLength-len(prefix)-len(suffix)))
	}

	total := len(prefix) + budget + len(suffix)
	enc := WordEncoding{
		IDs:     make([]int, 0, total),
		WordIDs: make([]int, 0, total),
	}
	for _, id := range prefix {
		enc.IDs = append(enc.IDs, id)
		enc.WordIDs = append(enc.WordIDs, NoWord)
	}
	remaining := budget
	for wordIdx, ids := range perWord {
		if remaining == 0 {
			break
		}
		if len(ids) > remaining {
			ids = ids[:remaining]
		}
		for _, id := range ids {
			enc.IDs = append(enc.IDs, id)
			enc.WordIDs = append(enc.WordIDs, wordIdx)
		}
		remaining -= len(ids)
	}
	for _, id := range suffix {
		enc.IDs = append(enc.IDs, id)
		enc.WordIDs = append(enc.WordIDs, NoWord)
	}
	return enc
}
