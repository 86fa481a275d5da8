package lm

import (
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
)

// Type of language model trained.
type Type int

const (
	CausalLM Type = iota
	MaskedLM
)

// String implements fmt.Stringer.
func (t Type) String() string {
	if t == MaskedLM {
		return "MaskedLM"
	}
	return "CausalLM"
}

// Objective defines how inputs and targets are built from a chunk of tokens.
type Objective int

const (
	// Causal is next token prediction: the targets are the inputs shifted left by one, ending with
	// the end-of-sentence token.
	Causal Objective = iota

	// BertMLM is the BERT masked language model: 15% of the non-special tokens are selected
	// for prediction, of those 80% are replaced by the mask token, 10% by random tokens and the rest
	// kept unchanged. Only the selected tokens have labels.
	BertMLM
)

// String implements fmt.Stringer.
func (o Objective) String() string {
	switch o {
	case Causal:
		return "Causal"
	case BertMLM:
		return "BertMLM"
	}
	return "Objective(?)"
}

// ParseObjective parses the objective name, case-insensitive: "causal", or "mlm" (or "bertmlm").
func ParseObjective(name string) (Objective, error) {
	switch strings.ToLower(name) {
	case "causal", "clm":
		return Causal, nil
	case "mlm", "bertmlm", "bert_mlm":
		return BertMLM, nil
	}
	return 0, errors.Errorf("unknown language modeling objective %q (valid values: causal, mlm)", name)
}

// Type returns the type of language model trained with the objective.
func (o Objective) Type() Type {
	if o == BertMLM {
		return MaskedLM
	}
	return CausalLM
}

// Sample with inputs and targets for language modeling.
type Sample struct {
	// InputIDs fed to the model: for BertMLM some of them are masked.
	InputIDs []int

	// Labels is the loss target: the ids to predict, with IgnoreID in the positions that don't count.
	Labels []int

	// Targets are the ids the model should predict at each position. For Causal it's the input
	// shifted left, for BertMLM it equals Labels.
	Targets []int
}

// BuilderTokenizer provides the special tokens used to build samples.
type BuilderTokenizer interface {
	SpecialTokenID(token api.SpecialToken) (int, error)
	IsSpecialID(id int) bool
}

// Builder builds Samples for an Objective. Create it with NewBuilder.
//
// It owns a random number generator (used by BertMLM), so it is not safe for concurrent use:
// create one per goroutine.
type Builder struct {
	objective Objective
	ignoreID  int
	rng       *rand.Rand

	padID, eosID, maskID int
	vocabSize            int
	isSpecial            func(id int) bool
}

// NewBuilder returns a Builder for the objective.
//
// Causal requires the tokenizer's end-of-sentence token; a pad token is optional. BertMLM requires
// the mask token, and vocabSize > 0 to draw random tokens.
// rng can't be nil: use a seeded generator for reproducible masks.
func NewBuilder(tok BuilderTokenizer, objective Objective, ignoreID, vocabSize int, rng *rand.Rand) (*Builder, error) {
	if rng == nil {
		return nil, errors.New("lm.NewBuilder requires a random number generator")
	}
	b := &Builder{
		objective: objective,
		ignoreID:  ignoreID,
		rng:       rng,
		padID:     -1,
		eosID:     -1,
		maskID:    -1,
		vocabSize: vocabSize,
		isSpecial: tok.IsSpecialID,
	}
	if id, err := tok.SpecialTokenID(api.TokPad); err == nil {
		b.padID = id
	}
	var err error
	switch objective {
	case Causal:
		b.eosID, err = tok.SpecialTokenID(api.TokEndOfSentence)
		if err != nil {
			return nil, errors.WithMessage(err, "causal language modeling requires an end-of-sentence token")
		}
	case BertMLM:
		b.maskID, err = tok.SpecialTokenID(api.TokMask)
		if err != nil {
			return nil, errors.WithMessage(err, "masked language modeling requires a mask token")
		}
		if vocabSize <= 0 {
			return nil, errors.Errorf("masked language modeling requires the vocabulary size, got %d", vocabSize)
		}
	default:
		return nil, errors.Errorf("unknown language modeling objective %s", objective)
	}
	return b, nil
}

// Objective returns the objective of the builder.
func (b *Builder) Objective() Objective { return b.objective }

// Build the sample for the given token ids. ids is not modified.
func (b *Builder) Build(ids []int) (Sample, error) {
	if b.objective == BertMLM {
		return b.buildMLM(ids)
	}
	return b.buildCausal(ids), nil
}

// BuildBatch builds the samples for each of the sequences.
func (b *Builder) BuildBatch(batch [][]int) ([]Sample, error) {
	samples := make([]Sample, len(batch))
	for i, ids := range batch {
		var err error
		samples[i], err = b.Build(ids)
		if err != nil {
			return nil, errors.WithMessagef(err, "sequence #%d", i)
		}
	}
	return samples, nil
}

func (b *Builder) buildCausal(ids []int) Sample {
	labels := slices.Clone(ids)
	if b.padID >= 0 {
		for i, id := range labels {
			if id == b.padID {
				labels[i] = b.ignoreID
			}
		}
	}
	var targets []int
	if len(ids) > 0 {
		targets = append(slices.Clone(ids[1:]), b.eosID)
	}
	return Sample{InputIDs: slices.Clone(ids), Labels: labels, Targets: targets}
}

// buildMLM selects positions in a random order. The 15%, 80% and 10% counts are truncated to
// integers, so short sequences may get no masks at all.
func (b *Builder) buildMLM(ids []int) (Sample, error) {
	n := len(ids)
	order := b.rng.Perm(n)
	numSelected := int(float64(n) * 0.15)
	numMask := int(float64(numSelected) * 0.8)
	numRandom := int(float64(numSelected) * 0.1)

	selected := make([]int, 0, numSelected)
	for _, idx := range order {
		if len(selected) == numSelected {
			break
		}
		if id := ids[idx]; id == b.maskID || !b.isSpecial(id) {
			selected = append(selected, idx)
		}
	}

	inputs := slices.Clone(ids)
	if numMask > 0 && len(selected) >= numMask {
		for _, idx := range selected[:numMask] {
			inputs[idx] = b.maskID
		}
	}
	if numRandom > 0 && len(selected) >= numMask+numRandom {
		randomIDs, err := b.randomTokenIDs(numRandom)
		if err != nil {
			return Sample{}, err
		}
		for i, idx := range selected[numMask : numMask+numRandom] {
			inputs[idx] = randomIDs[i]
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = b.ignoreID
	}
	for _, idx := range selected {
		labels[idx] = ids[idx]
	}
	return Sample{InputIDs: inputs, Labels: labels, Targets: slices.Clone(labels)}, nil
}

// randomTokenIDs returns n distinct random token ids.
func (b *Builder) randomTokenIDs(n int) ([]int, error) {
	if n > b.vocabSize {
		return nil, errors.Errorf("can't draw %d distinct tokens from a vocabulary of %d", n, b.vocabSize)
	}
	seen := make(map[int]bool, n)
	ids := make([]int, 0, n)
	for len(ids) < n {
		id := b.rng.IntN(b.vocabSize)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
