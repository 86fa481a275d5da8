package safetensors

import (
	"io"
	"iter"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// Reader provides access to the tensors of a memory-mapped .safetensors file.
// Create it with Open, and Close it when done.
type Reader struct {
	reader     *mmap.ReaderAt
	dataOffset int64
	Header     *Header
}

// Open memory-maps the .safetensors file and parses its header.
func Open(path string) (*Reader, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %s", path)
	}
	header, dataOffset, err := parseHeader(io.NewSectionReader(reader, 0, int64(reader.Len())))
	if err != nil {
		_ = reader.Close()
		return nil, errors.WithMessagef(err, "file %s", path)
	}
	return &Reader{reader: reader, dataOffset: dataOffset, Header: header}, nil
}

// Close closes the underlying memory-mapped file.
func (r *Reader) Close() error {
	return r.reader.Close()
}

// Metadata returns the free-form metadata stored in the file.
func (r *Reader) Metadata() map[string]string {
	return r.Header.Metadata
}

// ReadTensor reads a tensor by name.
func (r *Reader) ReadTensor(tensorName string) (*tensors.Tensor, error) {
	meta, ok := r.Header.Tensors[tensorName]
	if !ok {
		return nil, errors.Errorf("tensor %s not found", tensorName)
	}
	dtype, err := dtypeToGoMLX(meta.Dtype)
	if err != nil {
		return nil, err
	}
	t := tensors.FromShape(shapes.Make(dtype, meta.Shape...))
	expectedBytes := int64(t.Shape().Size()) * int64(dtype.Size())
	if stored := meta.DataOffsets[1] - meta.DataOffsets[0]; stored != expectedBytes {
		return nil, errors.Errorf("tensor %s of shape %s stored with %d bytes, expected %d",
			tensorName, t.Shape(), stored, expectedBytes)
	}

	offset := r.dataOffset + meta.DataOffsets[0]
	var readErr error
	t.MutableBytes(func(data []byte) {
		_, readErr = r.reader.ReadAt(data, offset)
		if readErr == io.EOF && len(data) == 0 {
			readErr = nil
		}
	})
	if readErr != nil {
		return nil, errors.Wrapf(readErr, "failed to read tensor %s", tensorName)
	}
	return t, nil
}

// TensorAndName holds a tensor name and its GoMLX tensor data.
type TensorAndName struct {
	Name   string
	Tensor *tensors.Tensor
}

// Iter returns an iterator over all tensors, in the order of their data in the file.
func (r *Reader) Iter() iter.Seq2[TensorAndName, error] {
	return func(yield func(TensorAndName, error) bool) {
		for _, name := range r.Header.Names() {
			t, err := r.ReadTensor(name)
			if err != nil {
				yield(TensorAndName{}, err)
				return
			}
			if !yield(TensorAndName{Name: name, Tensor: t}, nil) {
				return
			}
		}
	}
}
