package collate

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/hftasks/safetensors"
	"github.com/pkg/errors"
)

// Names of the batch tensors in saved files.
const (
	InputIDsName      = "input_ids"
	AttentionMaskName = "attention_mask"
	LabelsName        = "labels"
)

// Save the batch to a .safetensors file, with the given metadata.
func (b *Batch) Save(path string, metadata map[string]string) error {
	inputIDs, attentionMask, labels := b.Tensors()
	entries := []safetensors.TensorAndName{
		{Name: InputIDsName, Tensor: inputIDs},
		{Name: AttentionMaskName, Tensor: attentionMask},
	}
	if labels != nil {
		entries = append(entries, safetensors.TensorAndName{Name: LabelsName, Tensor: labels})
	}
	return safetensors.Write(path, entries, metadata)
}

// Load a batch saved with Batch.Save. It returns the batch and the file metadata.
func Load(path string) (*Batch, map[string]string, error) {
	r, err := safetensors.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = r.Close() }()

	b := &Batch{}
	for _, name := range []string{InputIDsName, AttentionMaskName, LabelsName} {
		if _, found := r.Header.Tensors[name]; !found {
			if name == LabelsName {
				continue
			}
			return nil, nil, errors.Errorf("%s has no %q tensor", path, name)
		}
		t, err := r.ReadTensor(name)
		if err != nil {
			return nil, nil, err
		}
		rows, err := fromTensor(t)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "tensor %q of %s", name, path)
		}
		switch name {
		case InputIDsName:
			b.InputIDs = rows
		case AttentionMaskName:
			b.AttentionMask = rows
		case LabelsName:
			b.Labels = rows
		}
	}
	if len(b.AttentionMask) != len(b.InputIDs) || (b.Labels != nil && len(b.Labels) != len(b.InputIDs)) {
		return nil, nil, errors.Errorf("%s has tensors with different batch sizes", path)
	}
	return b, r.Metadata(), nil
}

func fromTensor(t *tensors.Tensor) ([][]int, error) {
	values, ok := t.Value().([][]int32)
	if !ok {
		return nil, errors.Errorf("expected an int32 tensor of rank 2, got shape %s", t.Shape())
	}
	rows := make([][]int, len(values))
	for i, row := range values {
		rows[i] = make([]int, len(row))
		for j, v := range row {
			rows[i][j] = int(v)
		}
	}
	return rows, nil
}
