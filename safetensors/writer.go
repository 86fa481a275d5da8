package safetensors

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// headerAlignment is the alignment of the data section: the JSON header is padded with spaces.
const headerAlignment = 8

// Write the tensors, in the given order, and the metadata to a .safetensors file.
//
// The file is first written to a temporary file, renamed to path on success.
func Write(path string, entries []TensorAndName, metadata map[string]string) error {
	header := make(map[string]any, len(entries)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}
	var offset int64
	for _, entry := range entries {
		if _, found := header[entry.Name]; found || entry.Name == metadataKey {
			return errors.Errorf("duplicate or reserved tensor name %q", entry.Name)
		}
		code, err := dtypeFromGoMLX(entry.Tensor.DType())
		if err != nil {
			return errors.WithMessagef(err, "tensor %s", entry.Name)
		}
		size := int64(entry.Tensor.Shape().Size()) * int64(entry.Tensor.DType().Size())
		header[entry.Name] = &TensorMetadata{
			Dtype:       code,
			Shape:       entry.Tensor.Shape().Dimensions,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to encode header")
	}
	for len(headerBytes)%headerAlignment != 0 {
		headerBytes = append(headerBytes, ' ')
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", tmpPath)
	}
	w := bufio.NewWriter(f)
	err = binary.Write(w, binary.LittleEndian, uint64(len(headerBytes)))
	if err == nil {
		_, err = w.Write(headerBytes)
	}
	for _, entry := range entries {
		if err != nil {
			break
		}
		entry.Tensor.MutableBytes(func(data []byte) {
			_, err = w.Write(data)
		})
	}
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "failed to rename %s to %s", tmpPath, path)
	}
	return nil
}
