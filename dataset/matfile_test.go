package dataset

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Test fixtures are synthesized byte-for-byte rather than shipped as binary
// files. The helpers below emit the Level 5 on-disk layout: a 128-byte
// header followed by tagged, 8-byte-aligned data elements.

func matHeader() []byte {
	h := make([]byte, 128)
	copy(h, []byte("MATLAB 5.0 MAT-file, test fixture"))
	binary.LittleEndian.PutUint16(h[124:126], 0x0100)
	h[126], h[127] = 'I', 'M'
	return h
}

func matElement(dtype int, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(dtype))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	for len(buf)%8 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func matSmallElement(dtype int, payload []byte) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(payload))<<16|uint32(dtype))
	copy(buf[4:], payload)
	return buf
}

// matMatrix encodes one named double matrix. colMajor follows MATLAB's
// column-major storage order. Names of up to four bytes use the packed
// small-element form the way MATLAB itself writes them.
func matMatrix(name string, dims []int, colMajor []float64) []byte {
	flags := make([]byte, 8)
	binary.LittleEndian.PutUint32(flags[0:4], uint32(mxDOUBLE))
	body := matElement(miUINT32, flags)

	dimData := make([]byte, 4*len(dims))
	for i, d := range dims {
		binary.LittleEndian.PutUint32(dimData[i*4:i*4+4], uint32(int32(d)))
	}
	body = append(body, matElement(miINT32, dimData)...)

	if len(name) <= 4 {
		body = append(body, matSmallElement(miINT8, []byte(name))...)
	} else {
		body = append(body, matElement(miINT8, []byte(name))...)
	}

	data := make([]byte, 8*len(colMajor))
	for i, v := range colMajor {
		binary.LittleEndian.PutUint64(data[i*8:i*8+8], math.Float64bits(v))
	}
	body = append(body, matElement(miDOUBLE, data)...)

	return matElement(miMATRIX, body)
}

func matCompressed(t *testing.T, element []byte) []byte {
	t.Helper()

	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	if _, err := zw.Write(element); err != nil {
		t.Fatalf("Failed to compress element: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close compressor: %v", err)
	}

	buf := make([]byte, 8, 8+zbuf.Len())
	binary.LittleEndian.PutUint32(buf[0:4], uint32(miCOMPRESSED))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(zbuf.Len()))
	return append(buf, zbuf.Bytes()...)
}

func writeMATFile(t *testing.T, name string, elements ...[]byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	content := matHeader()
	for _, el := range elements {
		content = append(content, el...)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func TestReadMATFileVector(t *testing.T) {
	path := writeMATFile(t, "vec.mat",
		matMatrix("Y", []int{4, 1}, []float64{1.5, 2.5, 3.5, 4.5}),
	)

	arrays, err := ReadMATFile(path)
	if err != nil {
		t.Fatalf("ReadMATFile failed: %v", err)
	}

	arr, ok := arrays["Y"]
	if !ok {
		t.Fatalf("Variable Y not found; got %d arrays", len(arrays))
	}
	if diff := cmp.Diff([]int{4, 1}, arr.Dims); diff != "" {
		t.Errorf("Dims mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1.5, 2.5, 3.5, 4.5}, arr.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMATFileColumnMajorConversion(t *testing.T) {
	// MATLAB stores [1 2 3; 4 5 6] as 1,4,2,5,3,6. The reader must hand
	// back row-major order.
	path := writeMATFile(t, "mat.mat",
		matMatrix("Xc_doy", []int{2, 3}, []float64{1, 4, 2, 5, 3, 6}),
	)

	arrays, err := ReadMATFile(path)
	if err != nil {
		t.Fatalf("ReadMATFile failed: %v", err)
	}

	arr := arrays["Xc_doy"]
	if arr == nil {
		t.Fatal("Variable Xc_doy not found")
	}
	if diff := cmp.Diff([]float64{1, 2, 3, 4, 5, 6}, arr.Data); diff != "" {
		t.Errorf("Row-major conversion mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMATFileLongName(t *testing.T) {
	// Names longer than four bytes cannot use the packed tag form.
	path := writeMATFile(t, "long.mat",
		matMatrix("Xc_doy1", []int{2, 2}, []float64{1, 2, 3, 4}),
	)

	arrays, err := ReadMATFile(path)
	if err != nil {
		t.Fatalf("ReadMATFile failed: %v", err)
	}
	if _, ok := arrays["Xc_doy1"]; !ok {
		t.Error("Long-named variable not found")
	}
}

func TestReadMATFileCompressed(t *testing.T) {
	element := matMatrix("Y", []int{3, 1}, []float64{7, 8, 9})
	path := writeMATFile(t, "comp.mat", matCompressed(t, element))

	arrays, err := ReadMATFile(path)
	if err != nil {
		t.Fatalf("ReadMATFile failed: %v", err)
	}
	arr := arrays["Y"]
	if arr == nil {
		t.Fatal("Variable Y not found in compressed element")
	}
	if diff := cmp.Diff([]float64{7, 8, 9}, arr.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMATFileMultipleVariables(t *testing.T) {
	path := writeMATFile(t, "multi.mat",
		matMatrix("Xc_doy1", []int{2, 2}, []float64{1, 2, 3, 4}),
		matMatrix("Xc_doy2", []int{2, 2}, []float64{5, 6, 7, 8}),
	)

	arrays, err := ReadMATFile(path)
	if err != nil {
		t.Fatalf("ReadMATFile failed: %v", err)
	}
	if len(arrays) != 2 {
		t.Errorf("Expected 2 variables, got %d", len(arrays))
	}
}

func TestReadMATFileHeaderValidation(t *testing.T) {
	t.Run("Too short", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "short.mat")
		os.WriteFile(path, []byte("stub"), 0o644)
		if _, err := ReadMATFile(path); err == nil {
			t.Error("Expected error for truncated header")
		}
	})

	t.Run("Big endian", func(t *testing.T) {
		h := matHeader()
		h[126], h[127] = 'M', 'I'
		path := filepath.Join(t.TempDir(), "be.mat")
		os.WriteFile(path, h, 0o644)
		if _, err := ReadMATFile(path); err == nil {
			t.Error("Expected error for big-endian file")
		}
	})

	t.Run("Wrong version", func(t *testing.T) {
		h := matHeader()
		binary.LittleEndian.PutUint16(h[124:126], 0x0200)
		path := filepath.Join(t.TempDir(), "v2.mat")
		os.WriteFile(path, h, 0o644)
		if _, err := ReadMATFile(path); err == nil {
			t.Error("Expected error for unsupported version")
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		if _, err := ReadMATFile(filepath.Join(t.TempDir(), "nope.mat")); err == nil {
			t.Error("Expected error for missing file")
		}
	})
}

func TestReadMATFileRejectsHighRank(t *testing.T) {
	path := writeMATFile(t, "cube.mat",
		matMatrix("cube", []int{2, 2, 2}, []float64{1, 2, 3, 4, 5, 6, 7, 8}),
	)
	if _, err := ReadMATFile(path); err == nil {
		t.Error("Expected error for 3D array")
	}
}

func TestArraySqueeze(t *testing.T) {
	arr := &Array{Name: "Y", Dims: []int{4, 1}, Data: make([]float64, 4)}
	arr.Squeeze()
	if len(arr.Dims) != 1 || arr.Dims[0] != 4 {
		t.Errorf("Squeeze gave dims %v, want [4]", arr.Dims)
	}

	scalar := &Array{Name: "s", Dims: []int{1, 1}, Data: []float64{3}}
	scalar.Squeeze()
	if len(scalar.Dims) != 1 || scalar.Dims[0] != 1 {
		t.Errorf("Squeeze on scalar gave dims %v, want [1]", scalar.Dims)
	}
}
