package labeling

import (
	"strconv"

	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
)

// DefaultIgnoreToken is the label name shown for ignored tokens by TokenLabels.
const DefaultIgnoreToken = "[xIGNx]"

// TokenLabel is a token string paired with its label name.
type TokenLabel struct {
	Token, Label string
}

// WordLabel is a word paired with its label name.
type WordLabel struct {
	Word, Label string
}

// labelIDName returns the name of the label id. Without vocabulary, labels are named by their ids.
func labelIDName(vocab *Vocab, id int) (string, bool) {
	if vocab == nil {
		if id < 0 {
			return "", false
		}
		return strconv.Itoa(id), true
	}
	return vocab.Name(id)
}

// TokenLabels pairs each non-special token of inputIDs with the name of its label in labelIDs.
// Tokens whose label is ignoreID get ignoreToken as label (see DefaultIgnoreToken).
// If vocab is nil, as for datasets with integer labels, labels are named by their ids.
//
// It is the inverse of an alignment, used to inspect processed examples. E.g., for a RoBERTa
// tokenizer: [{"ĠWay", "B-PER"}, {"de", "I-PER"}, {"ĠGill", "I-PER"}, ...].
func TokenLabels(tok api.WordTokenizer, inputIDs, labelIDs []int, vocab *Vocab, ignoreID int, ignoreToken string) ([]TokenLabel, error) {
	if len(inputIDs) != len(labelIDs) {
		return nil, errors.Errorf("TokenLabels: %d input ids but %d label ids", len(inputIDs), len(labelIDs))
	}
	pairs := make([]TokenLabel, 0, len(inputIDs))
	for i, id := range inputIDs {
		if tok.IsSpecialID(id) {
			continue
		}
		token, found := tok.IDToToken(id)
		if !found {
			return nil, errors.Errorf("TokenLabels: token id %d at position %d not in the tokenizer vocabulary", id, i)
		}
		label := ignoreToken
		if labelIDs[i] != ignoreID {
			name, found := labelIDName(vocab, labelIDs[i])
			if !found {
				return nil, errors.Wrapf(ErrUnknownLabel, "label id %d at position %d", labelIDs[i], i)
			}
			label = name
		}
		pairs = append(pairs, TokenLabel{Token: token, Label: label})
	}
	return pairs, nil
}

// WordLabels reconstructs the (word, label) pairs of an aligned example: each word gets the
// label of its first sub-token.
//
// wordIDs and labelIDs are per token, as returned by the tokenizer and by Aligner.Align.
// Words with no tokens (e.g. dropped by truncation) are not included, and words whose first
// sub-token label is ignoreID are skipped. If vocab is nil, labels are named by their ids.
func WordLabels(words []string, wordIDs, labelIDs []int, vocab *Vocab, ignoreID int) ([]WordLabel, error) {
	if len(wordIDs) != len(labelIDs) {
		return nil, errors.Errorf("WordLabels: %d word ids but %d label ids", len(wordIDs), len(labelIDs))
	}
	var pairs []WordLabel
	current := api.NoWord
	for i, wordID := range wordIDs {
		if wordID == api.NoWord || wordID == current {
			current = wordID
			continue
		}
		current = wordID
		if wordID < 0 || wordID >= len(words) {
			return nil, errors.Wrapf(ErrWordIndexOutOfRange, "token #%d refers to word %d, but there are %d words",
				i, wordID, len(words))
		}
		if labelIDs[i] == ignoreID {
			continue
		}
		name, found := labelIDName(vocab, labelIDs[i])
		if !found {
			return nil, errors.Wrapf(ErrUnknownLabel, "label id %d at position %d", labelIDs[i], i)
		}
		pairs = append(pairs, WordLabel{Word: words[wordID], Label: name})
	}
	return pairs, nil
}
