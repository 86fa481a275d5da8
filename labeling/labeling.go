// Package labeling aligns word-level labels to the sub-word tokens produced by a tokenizer, for
// token classification tasks (NER, POS tagging, etc.).
//
// Tokenizers split words into one or more sub-tokens, and add special tokens that belong to no
// word. Given the word index of each token (see api.WordEncoding.WordIDs), an Aligner produces
// one label id per token, according to its Strategy. Tokens that should not contribute to the
// loss or metrics get the Aligner's IgnoreID.
//
// Example:
//
//	vocab, _ := labeling.NewVocab([]string{"O", "B-PER", "I-PER"})
//	aligner := labeling.NewAligner(labeling.BeginInside)
//	ids, err := aligner.Align([]int{0, 0, api.NoWord}, labeling.Names("B-PER"), vocab)
//	// ids == [1, 2, -100]
package labeling

import (
	"strconv"
	"strings"

	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
)

// DefaultIgnoreID is the label id of tokens excluded from the loss: the usual value of the
// "ignore index" of cross-entropy losses.
const DefaultIgnoreID = -100

var (
	// ErrUnknownLabel is returned when a label name is not in the vocabulary, or an integer label
	// is not a valid vocabulary index.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrWordIndexOutOfRange is returned when a token refers to a word that doesn't have a label.
	ErrWordIndexOutOfRange = errors.New("word index out of range")

	// ErrUnknownStrategy is returned for invalid Strategy values.
	ErrUnknownStrategy = errors.New("unknown labeling strategy")
)

// Strategy defines which sub-tokens of a word get the word's label.
type Strategy int

const (
	// OnlyFirstToken labels the first sub-token of each word; the other sub-tokens are ignored.
	OnlyFirstToken Strategy = iota

	// SameLabel gives every sub-token of a word the word's label.
	SameLabel

	// BeginInside labels the first sub-token of each word with the word's label, and the other
	// sub-tokens with its "I-" variant: a word labeled "B-PER" split into 3 sub-tokens is labeled
	// "B-PER", "I-PER", "I-PER".
	//
	// Continuation sub-tokens are ignored if the "I-" variant is not in the vocabulary, if the label
	// name is shorter than 2 characters, or if the labels are integers and no vocabulary is given.
	BeginInside
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	switch s {
	case OnlyFirstToken:
		return "OnlyFirstToken"
	case SameLabel:
		return "SameLabel"
	case BeginInside:
		return "BeginInside"
	default:
		return "Strategy(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseStrategy converts a name to a Strategy. Accepted names (case-insensitive) are the
// String() values and the short forms "first", "same" and "bi".
func ParseStrategy(name string) (Strategy, error) {
	normalized := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(name))
	switch normalized {
	case "onlyfirsttoken", "first":
		return OnlyFirstToken, nil
	case "samelabel", "same":
		return SameLabel, nil
	case "begininside", "bi":
		return BeginInside, nil
	}
	return 0, errors.Wrapf(ErrUnknownStrategy, "%q (valid values: first, same, bi)", name)
}

// Label of a word: either an integer id (an index into the label vocabulary) or a label name.
// Create it with ID or Name.
type Label struct {
	id     int
	name   string
	isName bool
}

// ID returns a Label given by its integer id.
func ID(id int) Label { return Label{id: id} }

// Name returns a Label given by its name, resolved through the label vocabulary.
func Name(name string) Label { return Label{name: name, isName: true} }

// IDs converts integer ids to Labels.
func IDs(ids ...int) []Label {
	labels := make([]Label, len(ids))
	for i, id := range ids {
		labels[i] = ID(id)
	}
	return labels
}

// Names converts label names to Labels.
func Names(names ...string) []Label {
	labels := make([]Label, len(names))
	for i, name := range names {
		labels[i] = Name(name)
	}
	return labels
}

// IsName returns whether the label is given by name.
func (l Label) IsName() bool { return l.isName }

// String implements fmt.Stringer.
func (l Label) String() string {
	if l.isName {
		return l.name
	}
	return strconv.Itoa(l.id)
}

// resolve returns the label's id.
func (l Label) resolve(vocab *Vocab) (int, error) {
	if !l.isName {
		if vocab != nil && (l.id < 0 || l.id >= vocab.Len()) {
			return 0, errors.Wrapf(ErrUnknownLabel, "label id %d not in vocabulary of %d labels", l.id, vocab.Len())
		}
		return l.id, nil
	}
	if vocab == nil {
		return 0, errors.Wrapf(ErrUnknownLabel, "label %q given by name, but no label vocabulary", l.name)
	}
	id, found := vocab.Index(l.name)
	if !found {
		return 0, errors.Wrapf(ErrUnknownLabel, "label %q", l.name)
	}
	return id, nil
}

// labelName returns the label's name, if it is known.
func (l Label) labelName(vocab *Vocab) (string, bool) {
	if l.isName {
		return l.name, true
	}
	if vocab == nil {
		return "", false
	}
	return vocab.Name(l.id)
}

// Aligner aligns word labels to tokens. The zero value uses OnlyFirstToken with an IgnoreID of 0,
// so prefer NewAligner.
//
// It holds no state and is safe for concurrent use.
type Aligner struct {
	Strategy Strategy

	// IgnoreID is the label id given to tokens excluded from the loss.
	IgnoreID int
}

// NewAligner returns an Aligner with the given strategy and DefaultIgnoreID.
func NewAligner(strategy Strategy) Aligner {
	return Aligner{Strategy: strategy, IgnoreID: DefaultIgnoreID}
}

// Align returns one label id per entry of wordIDs.
//
// wordIDs holds, for each token, the index of its word in labels, or api.NoWord for tokens that
// are not part of any word (special tokens), which always get IgnoreID.
// vocab is needed to resolve labels given by name and for the BeginInside strategy; it can be
// nil if labels are integer ids. It is only read.
func (a Aligner) Align(wordIDs []int, labels []Label, vocab *Vocab) ([]int, error) {
	aligned := make([]int, len(wordIDs))
	current := api.NoWord
	for i, wordID := range wordIDs {
		if wordID == api.NoWord {
			aligned[i] = a.IgnoreID
			current = api.NoWord
			continue
		}
		if wordID < 0 || wordID >= len(labels) {
			return nil, errors.Wrapf(ErrWordIndexOutOfRange, "token #%d refers to word %d, but there are %d word labels",
				i, wordID, len(labels))
		}
		label := labels[wordID]
		newWord := wordID != current
		current = wordID

		var err error
		switch a.Strategy {
		case SameLabel:
			aligned[i], err = label.resolve(vocab)
		case OnlyFirstToken:
			if newWord {
				aligned[i], err = label.resolve(vocab)
			} else {
				aligned[i] = a.IgnoreID
			}
		case BeginInside:
			if newWord {
				aligned[i], err = label.resolve(vocab)
			} else {
				aligned[i] = a.insideID(label, vocab)
			}
		default:
			return nil, errors.Wrapf(ErrUnknownStrategy, "%s", a.Strategy)
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "word %d (token #%d)", wordID, i)
		}
	}
	return aligned, nil
}

// insideID returns the id of the "I-" variant of the label, or IgnoreID if there is none.
func (a Aligner) insideID(label Label, vocab *Vocab) int {
	if vocab == nil {
		return a.IgnoreID
	}
	name, found := label.labelName(vocab)
	if !found || len(name) < 2 {
		return a.IgnoreID
	}
	if id, found := vocab.Index("I-" + name[2:]); found {
		return id
	}
	return a.IgnoreID
}
