// Package dataset loads the lake temperature study data: labeled
// (feature, temperature) samples and unlabeled shallow/deep depth-paired
// feature samples, both stored as MATLAB Level 5 .mat files.
package dataset

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// MAT-file data element types.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miINT64      = 12
	miUINT64     = 13
	miMATRIX     = 14
	miCOMPRESSED = 15
)

// MAT-file array classes (numeric subset).
const (
	mxDOUBLE = 6
	mxSINGLE = 7
	mxINT8   = 8
	mxUINT8  = 9
	mxINT16  = 10
	mxUINT16 = 11
	mxINT32  = 12
	mxUINT32 = 13
)

// Array is a named numeric array read from a .mat file, converted to
// row-major float64 regardless of the on-disk element type.
type Array struct {
	Name string
	Dims []int
	Data []float64
}

// NumElems returns the total element count.
func (a *Array) NumElems() int {
	n := 1
	for _, d := range a.Dims {
		n *= d
	}
	return n
}

// Squeeze drops singleton dimensions, leaving at least one.
func (a *Array) Squeeze() {
	dims := make([]int, 0, len(a.Dims))
	for _, d := range a.Dims {
		if d != 1 {
			dims = append(dims, d)
		}
	}
	if len(dims) == 0 {
		dims = []int{1}
	}
	a.Dims = dims
}

// ReadMATFile parses a MATLAB Level 5 .mat file and returns its numeric
// arrays keyed by variable name. Cell, struct, char, sparse, and complex
// variables are not supported and produce an error when encountered.
func ReadMATFile(path string) (map[string]*Array, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(raw) < 128 {
		return nil, fmt.Errorf("%s: file too short for MAT header (%d bytes)", path, len(raw))
	}

	version := binary.LittleEndian.Uint16(raw[124:126])
	endian := string(raw[126:128])
	if endian == "MI" {
		return nil, fmt.Errorf("%s: big-endian MAT files are not supported", path)
	}
	if endian != "IM" || version != 0x0100 {
		return nil, fmt.Errorf("%s: not a MATLAB Level 5 file (version %#04x, endian %q)", path, version, endian)
	}

	arrays := make(map[string]*Array)
	offset := 128
	for offset < len(raw) {
		dtype, payload, next, err := readElement(raw, offset)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		switch dtype {
		case miCOMPRESSED:
			inflated, err := inflate(payload)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to decompress element: %w", path, err)
			}
			innerType, innerPayload, _, err := readElement(inflated, 0)
			if err != nil {
				return nil, fmt.Errorf("%s: corrupt compressed element: %w", path, err)
			}
			if innerType == miMATRIX {
				arr, err := parseMatrix(innerPayload)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", path, err)
				}
				arrays[arr.Name] = arr
			}
		case miMATRIX:
			arr, err := parseMatrix(payload)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			arrays[arr.Name] = arr
		default:
			// Non-matrix top-level elements carry no variables; skip.
		}

		offset = next
	}

	return arrays, nil
}

// readElement decodes one tagged data element starting at offset, handling
// the packed small-element format, and returns the element type, its
// payload, and the offset of the next element (8-byte aligned).
func readElement(raw []byte, offset int) (dtype int, payload []byte, next int, err error) {
	if offset+8 > len(raw) {
		return 0, nil, 0, fmt.Errorf("truncated element tag at offset %d", offset)
	}

	word := binary.LittleEndian.Uint32(raw[offset : offset+4])
	if word>>16 != 0 {
		// Small data element: type and byte count packed into one word,
		// up to four data bytes follow in the tag itself.
		size := int(word >> 16)
		dtype = int(word & 0xFFFF)
		if size > 4 {
			return 0, nil, 0, fmt.Errorf("small element at offset %d claims %d bytes", offset, size)
		}
		return dtype, raw[offset+4 : offset+4+size], offset + 8, nil
	}

	dtype = int(word)
	size := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
	if offset+8+size > len(raw) {
		return 0, nil, 0, fmt.Errorf("element at offset %d overruns file (size %d)", offset, size)
	}

	payload = raw[offset+8 : offset+8+size]
	next = offset + 8 + size
	// Compressed elements are not padded; everything else aligns to 8 bytes.
	if dtype != miCOMPRESSED && next%8 != 0 {
		next += 8 - next%8
	}
	return dtype, payload, next, nil
}

func inflate(payload []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// parseMatrix decodes the subelements of a miMATRIX payload.
func parseMatrix(payload []byte) (*Array, error) {
	offset := 0

	// Array flags: class in the low byte of the first word, complex bit 11.
	dtype, flags, next, err := readElement(payload, offset)
	if err != nil {
		return nil, err
	}
	if dtype != miUINT32 || len(flags) < 4 {
		return nil, fmt.Errorf("malformed array flags subelement (type %d)", dtype)
	}
	flagWord := binary.LittleEndian.Uint32(flags[:4])
	class := int(flagWord & 0xFF)
	complexFlag := flagWord&0x0800 != 0
	offset = next

	if class < mxDOUBLE || class > mxUINT32 {
		return nil, fmt.Errorf("unsupported array class %d (only numeric arrays)", class)
	}
	if complexFlag {
		return nil, fmt.Errorf("complex arrays are not supported")
	}

	// Dimensions.
	dtype, dimData, next, err := readElement(payload, offset)
	if err != nil {
		return nil, err
	}
	if dtype != miINT32 || len(dimData)%4 != 0 {
		return nil, fmt.Errorf("malformed dimensions subelement (type %d)", dtype)
	}
	dims := make([]int, len(dimData)/4)
	for i := range dims {
		dims[i] = int(int32(binary.LittleEndian.Uint32(dimData[i*4 : i*4+4])))
		if dims[i] <= 0 {
			return nil, fmt.Errorf("non-positive dimension %d", dims[i])
		}
	}
	if len(dims) > 2 {
		return nil, fmt.Errorf("arrays with %d dimensions are not supported", len(dims))
	}
	offset = next

	// Array name.
	dtype, nameData, next, err := readElement(payload, offset)
	if err != nil {
		return nil, err
	}
	if dtype != miINT8 {
		return nil, fmt.Errorf("malformed array name subelement (type %d)", dtype)
	}
	name := string(nameData)
	offset = next

	// Real part.
	dtype, realData, _, err := readElement(payload, offset)
	if err != nil {
		return nil, err
	}
	colMajor, err := decodeNumeric(dtype, realData)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}

	expected := 1
	for _, d := range dims {
		expected *= d
	}
	if len(colMajor) != expected {
		return nil, fmt.Errorf("variable %q: %d elements for dims %v", name, len(colMajor), dims)
	}

	return &Array{
		Name: name,
		Dims: dims,
		Data: toRowMajor(colMajor, dims),
	}, nil
}

// decodeNumeric converts a raw element payload to float64 values.
func decodeNumeric(dtype int, data []byte) ([]float64, error) {
	switch dtype {
	case miDOUBLE:
		if len(data)%8 != 0 {
			return nil, fmt.Errorf("double payload length %d not a multiple of 8", len(data))
		}
		out := make([]float64, len(data)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
		}
		return out, nil
	case miSINGLE:
		if len(data)%4 != 0 {
			return nil, fmt.Errorf("single payload length %d not a multiple of 4", len(data))
		}
		out := make([]float64, len(data)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : i*4+4])))
		}
		return out, nil
	case miINT8:
		out := make([]float64, len(data))
		for i, b := range data {
			out[i] = float64(int8(b))
		}
		return out, nil
	case miUINT8:
		out := make([]float64, len(data))
		for i, b := range data {
			out[i] = float64(b)
		}
		return out, nil
	case miINT16:
		out := make([]float64, len(data)/2)
		for i := range out {
			out[i] = float64(int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2])))
		}
		return out, nil
	case miUINT16:
		out := make([]float64, len(data)/2)
		for i := range out {
			out[i] = float64(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		}
		return out, nil
	case miINT32:
		out := make([]float64, len(data)/4)
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(data[i*4 : i*4+4])))
		}
		return out, nil
	case miUINT32:
		out := make([]float64, len(data)/4)
		for i := range out {
			out[i] = float64(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported numeric element type %d", dtype)
	}
}

// toRowMajor converts MATLAB's column-major layout to row-major. Only the
// 2D case needs reordering; vectors are unchanged.
func toRowMajor(colMajor []float64, dims []int) []float64 {
	if len(dims) != 2 || dims[0] == 1 || dims[1] == 1 {
		out := make([]float64, len(colMajor))
		copy(out, colMajor)
		return out
	}

	rows, cols := dims[0], dims[1]
	out := make([]float64, len(colMajor))
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			out[i*cols+j] = colMajor[j*rows+i]
		}
	}
	return out
}
