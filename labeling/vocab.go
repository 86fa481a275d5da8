package labeling

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrDuplicateLabel is returned by NewVocab when a label name is repeated.
var ErrDuplicateLabel = errors.New("duplicate label")

// Vocab is the ordered set of label names: the position of a name is its label id.
//
// It is immutable once created, and safe for concurrent use. A nil *Vocab is empty.
type Vocab struct {
	names []string
	index map[string]int
}

// NewVocab creates a vocabulary with the given label names, in the given order.
func NewVocab(names []string) (*Vocab, error) {
	v := &Vocab{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	copy(v.names, names)
	for i, name := range names {
		if _, found := v.index[name]; found {
			return nil, errors.Wrapf(ErrDuplicateLabel, "label %q at positions %d and %d", name, v.index[name], i)
		}
		v.index[name] = i
	}
	return v, nil
}

// VocabFromSequences builds the vocabulary from all labels used in the given label sequences:
// the unique names, sorted.
func VocabFromSequences(sequences [][]string) *Vocab {
	seen := make(map[string]bool)
	var names []string
	for _, seq := range sequences {
		for _, name := range seq {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	v, _ := NewVocab(names) // Names are unique.
	return v
}

// Len returns the number of labels.
func (v *Vocab) Len() int {
	if v == nil {
		return 0
	}
	return len(v.names)
}

// Names returns a copy of the label names, in order.
func (v *Vocab) Names() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.names...)
}

// Index returns the id of the label name.
func (v *Vocab) Index(name string) (int, bool) {
	if v == nil {
		return 0, false
	}
	id, found := v.index[name]
	return id, found
}

// Name returns the name of the label id.
func (v *Vocab) Name(id int) (string, bool) {
	if v == nil || id < 0 || id >= len(v.names) {
		return "", false
	}
	return v.names[id], true
}

// Encode converts label names to ids.
func (v *Vocab) Encode(names []string) ([]int, error) {
	ids := make([]int, len(names))
	for i, name := range names {
		id, found := v.Index(name)
		if !found {
			return nil, errors.Wrapf(ErrUnknownLabel, "label %q at position %d", name, i)
		}
		ids[i] = id
	}
	return ids, nil
}

// Decode converts label ids back to names. Positions with ignoreID are dropped, so the result
// can be shorter than ids.
func (v *Vocab) Decode(ids []int, ignoreID int) ([]string, error) {
	names := make([]string, 0, len(ids))
	for i, id := range ids {
		if id == ignoreID {
			continue
		}
		name, found := v.Name(id)
		if !found {
			return nil, errors.Wrapf(ErrUnknownLabel, "label id %d at position %d", id, i)
		}
		names = append(names, name)
	}
	return names, nil
}
