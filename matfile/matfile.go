// Package matfile reads and writes MATLAB level-5 MAT-files.
//
// Only the subset needed for tracking data is supported: numeric, char,
// cell and struct arrays, optionally zlib-compressed. Numeric data of any
// storage type is widened to float64. Multi-dimensional data is kept in
// MATLAB's column-major order; use Index to compute offsets.
package matfile

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrNotMatFile       = errors.New("not a level-5 MAT-file")
	ErrVariableNotFound = errors.New("variable not found")
	ErrUnsupportedClass = errors.New("unsupported array class")
	ErrUnsupportedType  = errors.New("unsupported data type")
	ErrMalformedElement = errors.New("malformed data element")
	ErrFieldNotFound    = errors.New("struct field not found")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrWrongClass       = errors.New("wrong array class")
)

// Class is the MATLAB array class (mxCLASS).
type Class uint8

const (
	ClassCell   Class = 1
	ClassStruct Class = 2
	ClassObject Class = 3
	ClassChar   Class = 4
	ClassSparse Class = 5
	ClassDouble Class = 6
	ClassSingle Class = 7
	ClassInt8   Class = 8
	ClassUint8  Class = 9
	ClassInt16  Class = 10
	ClassUint16 Class = 11
	ClassInt32  Class = 12
	ClassUint32 Class = 13
	ClassInt64  Class = 14
	ClassUint64 Class = 15
)

// IsNumeric reports whether the class stores numbers.
func (c Class) IsNumeric() bool {
	return c >= ClassDouble && c <= ClassUint64
}

func (c Class) String() string {
	switch c {
	case ClassCell:
		return "cell"
	case ClassStruct:
		return "struct"
	case ClassObject:
		return "object"
	case ClassChar:
		return "char"
	case ClassSparse:
		return "sparse"
	case ClassDouble:
		return "double"
	case ClassSingle:
		return "single"
	case ClassInt8:
		return "int8"
	case ClassUint8:
		return "uint8"
	case ClassInt16:
		return "int16"
	case ClassUint16:
		return "uint16"
	case ClassInt32:
		return "int32"
	case ClassUint32:
		return "uint32"
	case ClassInt64:
		return "int64"
	case ClassUint64:
		return "uint64"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Array is one MATLAB array. Which fields are populated depends on Class.
type Array struct {
	Name  string
	Class Class
	Dims  []int

	// Real and Imag hold numeric data, column-major.
	Real []float64
	Imag []float64

	// Text holds char data, column-major.
	Text string

	// Cells holds cell elements, column-major.
	Cells []*Array

	// Fields is the struct field order; Elems holds one map per struct
	// element, column-major.
	Fields []string
	Elems  []map[string]*Array
}

// Len is the number of elements (product of Dims).
func (a *Array) Len() int {
	if len(a.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range a.Dims {
		n *= d
	}
	return n
}

// Empty reports whether the array holds no elements.
func (a *Array) Empty() bool { return a.Len() == 0 }

// Index converts subscripts into a column-major offset.
func (a *Array) Index(idx ...int) (int, error) {
	if len(idx) == 1 {
		if idx[0] < 0 || idx[0] >= a.Len() {
			return 0, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx[0], a.Len())
		}
		return idx[0], nil
	}
	if len(idx) > len(a.Dims) {
		// trailing singleton dimensions are implicit
		for _, v := range idx[len(a.Dims):] {
			if v != 0 {
				return 0, fmt.Errorf("%w: %v for dims %v", ErrIndexOutOfRange, idx, a.Dims)
			}
		}
		idx = idx[:len(a.Dims)]
	}
	off, stride := 0, 1
	for i, v := range idx {
		if v < 0 || v >= a.Dims[i] {
			return 0, fmt.Errorf("%w: %v for dims %v", ErrIndexOutOfRange, idx, a.Dims)
		}
		off += v * stride
		stride *= a.Dims[i]
	}
	return off, nil
}

// At returns the numeric element at the given subscripts.
func (a *Array) At(idx ...int) (float64, error) {
	if !a.Class.IsNumeric() {
		return 0, fmt.Errorf("%w: %s is %s", ErrWrongClass, a.Name, a.Class)
	}
	off, err := a.Index(idx...)
	if err != nil {
		return 0, err
	}
	return a.Real[off], nil
}

// Cell returns the cell element at the given subscripts.
func (a *Array) Cell(idx ...int) (*Array, error) {
	if a.Class != ClassCell {
		return nil, fmt.Errorf("%w: %s is %s, want cell", ErrWrongClass, a.Name, a.Class)
	}
	off, err := a.Index(idx...)
	if err != nil {
		return nil, err
	}
	return a.Cells[off], nil
}

// Field returns a field of the first struct element.
func (a *Array) Field(name string) (*Array, error) {
	return a.ElemField(0, name)
}

// ElemField returns a field of struct element i.
func (a *Array) ElemField(i int, name string) (*Array, error) {
	if a.Class != ClassStruct {
		return nil, fmt.Errorf("%w: %s is %s, want struct", ErrWrongClass, a.Name, a.Class)
	}
	if i < 0 || i >= len(a.Elems) {
		return nil, fmt.Errorf("%w: element %d of %d", ErrIndexOutOfRange, i, len(a.Elems))
	}
	v, ok := a.Elems[i][name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrFieldNotFound, name, a.Name)
	}
	return v, nil
}

// Strings flattens a char array or a cell of char arrays into strings.
// A char matrix yields one string per row.
func (a *Array) Strings() []string {
	switch a.Class {
	case ClassChar:
		if len(a.Dims) < 2 || a.Dims[0] <= 1 {
			return []string{a.Text}
		}
		rows, cols := a.Dims[0], a.Len()/a.Dims[0]
		runes := []rune(a.Text)
		out := make([]string, rows)
		for r := 0; r < rows; r++ {
			var sb strings.Builder
			for c := 0; c < cols; c++ {
				if off := r + c*rows; off < len(runes) {
					sb.WriteRune(runes[off])
				}
			}
			out[r] = strings.TrimRight(sb.String(), " ")
		}
		return out
	case ClassCell:
		var out []string
		for _, c := range a.Cells {
			out = append(out, c.Strings()...)
		}
		return out
	}
	return nil
}

// File is a decoded MAT-file.
type File struct {
	Header string
	vars   map[string]*Array
	order  []string
}

// Names returns variable names in file order.
func (f *File) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Var returns the named variable.
func (f *File) Var(name string) (*Array, error) {
	v, ok := f.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVariableNotFound, name)
	}
	return v, nil
}

// Open reads the MAT-file at path.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := Read(fh)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return f, nil
}
