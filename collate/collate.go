// Package collate pads variable length token sequences into rectangular batches, and converts them
// to GoMLX tensors.
package collate

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Side where padding is added.
type Side int

const (
	// Right pads after the sequence, the default.
	Right Side = iota

	// Left pads before the sequence, as used by decoder-only models for generation.
	Left
)

// Sample is one sequence of a batch.
type Sample struct {
	InputIDs []int

	// Labels, if not nil, must have the same length as InputIDs.
	Labels []int
}

// Collator pads samples into batches.
type Collator struct {
	// PadID is the token id used to pad InputIDs.
	PadID int

	// IgnoreID is the label used to pad Labels.
	IgnoreID int

	// Side where padding is added.
	Side Side

	// MaxLength, if > 0, truncates longer sequences (from the end).
	MaxLength int

	// PadToMultipleOf, if > 0, rounds the batch sequence length up to a multiple of it.
	PadToMultipleOf int
}

// Batch of padded sequences, all with the same length.
type Batch struct {
	InputIDs      [][]int
	AttentionMask [][]int

	// Labels is nil if the samples had no labels.
	Labels [][]int
}

// Size returns the number of sequences in the batch.
func (b *Batch) Size() int { return len(b.InputIDs) }

// SeqLen returns the length of the sequences in the batch.
func (b *Batch) SeqLen() int {
	if len(b.InputIDs) == 0 {
		return 0
	}
	return len(b.InputIDs[0])
}

// Collate pads the samples to the length of the longest one (after truncation to MaxLength).
//
// Either all samples have labels, or none has.
func (c Collator) Collate(samples []Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errors.New("can't collate an empty batch")
	}
	withLabels := samples[0].Labels != nil
	seqLen := 0
	for i, s := range samples {
		if (s.Labels != nil) != withLabels {
			return nil, errors.Errorf("sample #%d: either all samples have labels, or none", i)
		}
		if withLabels && len(s.Labels) != len(s.InputIDs) {
			return nil, errors.Errorf("sample #%d has %d input ids but %d labels", i, len(s.InputIDs), len(s.Labels))
		}
		seqLen = max(seqLen, c.truncatedLen(len(s.InputIDs)))
	}
	if c.PadToMultipleOf > 0 && seqLen%c.PadToMultipleOf != 0 {
		seqLen += c.PadToMultipleOf - seqLen%c.PadToMultipleOf
	}

	batch := &Batch{
		InputIDs:      make([][]int, len(samples)),
		AttentionMask: make([][]int, len(samples)),
	}
	if withLabels {
		batch.Labels = make([][]int, len(samples))
	}
	for i, s := range samples {
		n := c.truncatedLen(len(s.InputIDs))
		ones := make([]int, n)
		for j := range ones {
			ones[j] = 1
		}
		batch.InputIDs[i] = c.pad(s.InputIDs[:n], seqLen, c.PadID)
		batch.AttentionMask[i] = c.pad(ones, seqLen, 0)
		if withLabels {
			batch.Labels[i] = c.pad(s.Labels[:n], seqLen, c.IgnoreID)
		}
	}
	return batch, nil
}

func (c Collator) truncatedLen(n int) int {
	if c.MaxLength > 0 {
		return min(n, c.MaxLength)
	}
	return n
}

// pad returns a copy of values padded to length with value.
func (c Collator) pad(values []int, length, value int) []int {
	padded := make([]int, length)
	offset := 0
	if c.Side == Left {
		offset = length - len(values)
	}
	for i := range padded {
		padded[i] = value
	}
	copy(padded[offset:], values)
	return padded
}

// Tensors returns the batch as int32 tensors shaped [batchSize, seqLen]. labels is nil if the batch
// has no labels.
func (b *Batch) Tensors() (inputIDs, attentionMask, labels *tensors.Tensor) {
	inputIDs = toTensor(b.InputIDs)
	attentionMask = toTensor(b.AttentionMask)
	if b.Labels != nil {
		labels = toTensor(b.Labels)
	}
	return
}

func toTensor(rows [][]int) *tensors.Tensor {
	seqLen := 0
	if len(rows) > 0 {
		seqLen = len(rows[0])
	}
	flat := make([]int32, 0, len(rows)*seqLen)
	for _, row := range rows {
		for _, v := range row {
			flat = append(flat, int32(v))
		}
	}
	return tensors.FromFlatDataAndDimensions(flat, len(rows), seqLen)
}
