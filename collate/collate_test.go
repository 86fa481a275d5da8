package collate

import (
	"path/filepath"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples() []Sample {
	return []Sample{
		{InputIDs: []int{2, 10, 11, 3}, Labels: []int{-100, 1, 0, -100}},
		{InputIDs: []int{2, 12, 3}, Labels: []int{-100, 2, -100}},
	}
}

func TestCollate(t *testing.T) {
	c := Collator{PadID: 0, IgnoreID: -100}
	batch, err := c.Collate(samples())
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Size())
	assert.Equal(t, 4, batch.SeqLen())
	assert.Equal(t, [][]int{{2, 10, 11, 3}, {2, 12, 3, 0}}, batch.InputIDs)
	assert.Equal(t, [][]int{{1, 1, 1, 1}, {1, 1, 1, 0}}, batch.AttentionMask)
	assert.Equal(t, [][]int{{-100, 1, 0, -100}, {-100, 2, -100, -100}}, batch.Labels)
}

func TestCollateLeftPadding(t *testing.T) {
	c := Collator{PadID: 9, IgnoreID: -1, Side: Left, PadToMultipleOf: 3}
	batch, err := c.Collate(samples())
	require.NoError(t, err)
	assert.Equal(t, [][]int{{9, 9, 2, 10, 11, 3}, {9, 9, 9, 2, 12, 3}}, batch.InputIDs)
	assert.Equal(t, [][]int{{0, 0, 1, 1, 1, 1}, {0, 0, 0, 1, 1, 1}}, batch.AttentionMask)
	assert.Equal(t, [][]int{{-1, -1, -100, 1, 0, -100}, {-1, -1, -1, -100, 2, -100}}, batch.Labels)
}

func TestCollateTruncation(t *testing.T) {
	c := Collator{MaxLength: 2}
	batch, err := c.Collate([]Sample{{InputIDs: []int{5, 6, 7}}, {InputIDs: []int{8}}})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{5, 6}, {8, 0}}, batch.InputIDs)
	assert.Nil(t, batch.Labels)
}

func TestCollateErrors(t *testing.T) {
	c := Collator{}
	_, err := c.Collate(nil)
	assert.Error(t, err)
	_, err = c.Collate([]Sample{{InputIDs: []int{1, 2}, Labels: []int{1}}})
	assert.Error(t, err)
	_, err = c.Collate([]Sample{{InputIDs: []int{1}, Labels: []int{1}}, {InputIDs: []int{1}}})
	assert.Error(t, err)
}

func TestTensors(t *testing.T) {
	batch, err := Collator{IgnoreID: -100}.Collate(samples())
	require.NoError(t, err)
	inputIDs, mask, labels := batch.Tensors()
	require.NotNil(t, labels)
	assert.Equal(t, []int{2, 4}, inputIDs.Shape().Dimensions)
	assert.Equal(t, dtypes.Int32, inputIDs.DType())
	assert.Equal(t, [][]int32{{2, 10, 11, 3}, {2, 12, 3, 0}}, inputIDs.Value())
	assert.Equal(t, [][]int32{{1, 1, 1, 1}, {1, 1, 1, 0}}, mask.Value())
	assert.Equal(t, [][]int32{{-100, 1, 0, -100}, {-100, 2, -100, -100}}, labels.Value())

	batch.Labels = nil
	_, _, labels = batch.Tensors()
	assert.Nil(t, labels)
}

func TestSaveAndLoad(t *testing.T) {
	batch, err := Collator{IgnoreID: -100}.Collate(samples())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "batch.safetensors")
	require.NoError(t, batch.Save(path, map[string]string{"split": "train"}))

	loaded, metadata, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"split": "train"}, metadata)
	assert.Equal(t, batch, loaded)

	// Without labels.
	batch, err = Collator{}.Collate([]Sample{{InputIDs: []int{5, 6}}})
	require.NoError(t, err)
	require.NoError(t, batch.Save(path, nil))
	loaded, _, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{5, 6}}, loaded.InputIDs)
	assert.Nil(t, loaded.Labels)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.safetensors"))
	assert.Error(t, err)
}
