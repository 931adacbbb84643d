package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"unicode/utf16"
)

// Encoder writes little-endian level-5 MAT-files.
type Encoder struct {
	// Compress wraps each variable in a zlib-compressed element, the
	// default for MATLAB's save command.
	Compress bool

	// Header is the descriptive text; a default is used when empty.
	Header string
}

// Encode writes the header and every variable to w.
func (e *Encoder) Encode(w io.Writer, vars ...*Array) error {
	hdr := make([]byte, headerLen)
	text := e.Header
	if text == "" {
		text = "MATLAB 5.0 MAT-file, written by flyvfly"
	}
	if len(text) > textLen {
		text = text[:textLen]
	}
	copy(hdr, text)
	for i := len(text); i < textLen; i++ {
		hdr[i] = ' '
	}
	binary.LittleEndian.PutUint16(hdr[124:], version5)
	copy(hdr[126:], "IM")
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	for _, v := range vars {
		var body bytes.Buffer
		if err := writeMatrix(&body, v, v.Name); err != nil {
			return fmt.Errorf("encode %s: %w", v.Name, err)
		}
		out := body.Bytes()
		if e.Compress {
			var z bytes.Buffer
			zw := zlib.NewWriter(&z)
			if _, err := zw.Write(out); err != nil {
				return err
			}
			if err := zw.Close(); err != nil {
				return err
			}
			var tagged bytes.Buffer
			writeTag(&tagged, miCOMPRESSED, z.Len())
			tagged.Write(z.Bytes())
			out = tagged.Bytes()
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes vars to path, creating parent directories.
func (e *Encoder) WriteFile(path string, vars ...*Array) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := e.Encode(fh, vars...); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func writeTag(buf *bytes.Buffer, typ uint32, n int) {
	var tag [8]byte
	binary.LittleEndian.PutUint32(tag[0:], typ)
	binary.LittleEndian.PutUint32(tag[4:], uint32(n))
	buf.Write(tag[:])
}

// writeElement emits data with its tag, using the small format when it fits.
func writeElement(buf *bytes.Buffer, typ uint32, data []byte) {
	if len(data) <= 4 && len(data) > 0 {
		var word [8]byte
		binary.LittleEndian.PutUint32(word[0:], uint32(len(data))<<16|typ)
		copy(word[4:], data)
		buf.Write(word[:])
		return
	}
	writeTag(buf, typ, len(data))
	buf.Write(data)
	if p := pad8(len(data)) - len(data); p > 0 {
		buf.Write(make([]byte, p))
	}
}

func writeMatrix(buf *bytes.Buffer, a *Array, name string) error {
	var body bytes.Buffer

	if a == nil {
		// bare tag, as MATLAB writes unset struct fields
		writeTag(buf, miMATRIX, 0)
		return nil
	}

	flags := make([]byte, 8)
	binary.LittleEndian.PutUint32(flags, uint32(a.Class))
	writeElement(&body, miUINT32, flags)

	dims := make([]byte, 4*len(a.Dims))
	for i, d := range a.Dims {
		binary.LittleEndian.PutUint32(dims[4*i:], uint32(int32(d)))
	}
	writeElement(&body, miINT32, dims)
	writeElement(&body, miINT8, []byte(name))

	switch {
	case a.Class == ClassDouble:
		if len(a.Real) != a.Len() {
			return fmt.Errorf("%w: %d values for dims %v", ErrMalformedElement, len(a.Real), a.Dims)
		}
		data := make([]byte, 8*len(a.Real))
		for i, v := range a.Real {
			binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
		}
		writeElement(&body, miDOUBLE, data)

	case a.Class == ClassChar:
		units := utf16.Encode([]rune(a.Text))
		data := make([]byte, 2*len(units))
		for i, u := range units {
			binary.LittleEndian.PutUint16(data[2*i:], u)
		}
		writeElement(&body, miUINT16, data)

	case a.Class == ClassCell:
		if len(a.Cells) != a.Len() {
			return fmt.Errorf("%w: %d cells for dims %v", ErrMalformedElement, len(a.Cells), a.Dims)
		}
		for _, c := range a.Cells {
			if err := writeMatrix(&body, c, ""); err != nil {
				return err
			}
		}

	case a.Class == ClassStruct:
		if len(a.Elems) != a.Len() {
			return fmt.Errorf("%w: %d struct elements for dims %v", ErrMalformedElement, len(a.Elems), a.Dims)
		}
		nameLen := 1
		for _, f := range a.Fields {
			if len(f)+1 > nameLen {
				nameLen = len(f) + 1
			}
		}
		lenData := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenData, uint32(nameLen))
		writeElement(&body, miINT32, lenData)
		names := make([]byte, nameLen*len(a.Fields))
		for i, f := range a.Fields {
			copy(names[i*nameLen:], f)
		}
		writeElement(&body, miINT8, names)
		for _, elem := range a.Elems {
			for _, f := range a.Fields {
				if err := writeMatrix(&body, elem[f], ""); err != nil {
					return fmt.Errorf("field %s: %w", f, err)
				}
			}
		}

	default:
		return fmt.Errorf("%w: cannot encode %s", ErrUnsupportedClass, a.Class)
	}

	writeTag(buf, miMATRIX, body.Len())
	buf.Write(body.Bytes())
	return nil
}

// NewDouble builds a double array from column-major data.
func NewDouble(name string, dims []int, data []float64) *Array {
	return &Array{Name: name, Class: ClassDouble, Dims: append([]int(nil), dims...), Real: data}
}

// NewChar builds a 1×n char array.
func NewChar(name, text string) *Array {
	return &Array{Name: name, Class: ClassChar, Dims: []int{1, len([]rune(text))}, Text: text}
}

// NewCell builds a cell array from column-major elements.
func NewCell(name string, dims []int, cells []*Array) *Array {
	return &Array{Name: name, Class: ClassCell, Dims: append([]int(nil), dims...), Cells: cells}
}

// NewStruct builds a 1×1 struct array; fields keeps the given order.
func NewStruct(name string, fields []string, values map[string]*Array) *Array {
	return &Array{
		Name:   name,
		Class:  ClassStruct,
		Dims:   []int{1, 1},
		Fields: append([]string(nil), fields...),
		Elems:  []map[string]*Array{values},
	}
}

// NewStringCell builds a 1×n cell of char arrays.
func NewStringCell(name string, values []string) *Array {
	cells := make([]*Array, len(values))
	for i, v := range values {
		cells[i] = NewChar("", v)
	}
	return NewCell(name, []int{1, len(values)}, cells)
}
