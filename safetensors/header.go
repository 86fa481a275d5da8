package safetensors

import (
	"cmp"
	"encoding/binary"
	"encoding/json"
	"io"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// metadataKey is the header entry holding the free-form string metadata.
const metadataKey = "__metadata__"

// maxHeaderSize is a sanity limit on the JSON header size.
const maxHeaderSize = 100 * 1024 * 1024

// Header represents the JSON header of a safetensors file.
type Header struct {
	Tensors  map[string]*TensorMetadata // Tensor name -> metadata
	Metadata map[string]string          // Optional __metadata__ field
}

// TensorMetadata of a single tensor in a safetensors file.
type TensorMetadata struct {
	Name        string   `json:"-"`
	Dtype       string   `json:"dtype"`        // F32, I32, I64, etc.
	Shape       []int    `json:"shape"`        // Tensor dimensions
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end) byte offsets, relative to the data section
}

// Names returns the tensor names, in the order of their data in the file.
func (h *Header) Names() []string {
	names := make([]string, 0, len(h.Tensors))
	for name := range h.Tensors {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(h.Tensors[a].DataOffsets[0], h.Tensors[b].DataOffsets[0]), cmp.Compare(a, b))
	})
	return names
}

// parseHeader reads and parses the header from a safetensors file.
// Safetensors format:
//
//	[8 bytes: header size as little-endian u64]
//	[header_size bytes: JSON header]
//	[remaining bytes: tensor data]
//
// It returns the header and the offset of the data section.
func parseHeader(r io.Reader) (*Header, int64, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, 0, errors.Wrap(err, "failed to read header size")
	}
	if headerSize > maxHeaderSize {
		return nil, 0, errors.Errorf("header size too large: %d bytes", headerSize)
	}
	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, 0, errors.Wrap(err, "failed to read header JSON")
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &rawHeader); err != nil {
		return nil, 0, errors.Wrap(err, "failed to parse header JSON")
	}
	header := &Header{
		Tensors:  make(map[string]*TensorMetadata),
		Metadata: make(map[string]string),
	}
	for key, value := range rawHeader {
		if key == metadataKey {
			if err := json.Unmarshal(value, &header.Metadata); err != nil {
				return nil, 0, errors.Wrapf(err, "failed to parse %s", metadataKey)
			}
			continue
		}
		var tm TensorMetadata
		if err := json.Unmarshal(value, &tm); err != nil {
			return nil, 0, errors.Wrapf(err, "failed to parse tensor metadata for %s", key)
		}
		tm.Name = key
		header.Tensors[key] = &tm
	}
	return header, int64(8 + headerSize), nil
}

// dtypeNames maps safetensors dtype codes to GoMLX dtype names.
var dtypeNames = map[string]string{
	"BOOL": "Bool",
	"I8":   "Int8",
	"I16":  "Int16",
	"I32":  "Int32",
	"I64":  "Int64",
	"U8":   "Uint8",
	"U16":  "Uint16",
	"U32":  "Uint32",
	"U64":  "Uint64",
	"F16":  "Float16",
	"BF16": "BFloat16",
	"F32":  "Float32",
	"F64":  "Float64",
}

func dtypeToGoMLX(code string) (dtypes.DType, error) {
	if name, found := dtypeNames[code]; found {
		if dtype, found := dtypes.MapOfNames[name]; found {
			return dtype, nil
		}
	}
	return dtypes.InvalidDType, errors.Errorf("dtype %q not supported", code)
}

func dtypeFromGoMLX(dtype dtypes.DType) (string, error) {
	for code, name := range dtypeNames {
		if mapped, found := dtypes.MapOfNames[name]; found && mapped == dtype {
			return code, nil
		}
	}
	return "", errors.Errorf("dtype %s not supported by safetensors", dtype)
}
