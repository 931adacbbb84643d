package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf16"
)

// Data element types (miTYPE).
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
	miUTF8       = 16
	miUTF16      = 17
	miUTF32      = 18
)

const (
	headerLen   = 128
	textLen     = 116
	version5    = 0x0100
	flagComplex = 0x0800
)

type decoder struct {
	order binary.ByteOrder
}

// Read decodes a MAT-file from r. Non-matrix top-level elements are skipped.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotMatFile, len(data))
	}

	var order binary.ByteOrder
	switch string(data[126:128]) {
	case "IM":
		order = binary.LittleEndian
	case "MI":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad endian indicator %q", ErrNotMatFile, data[126:128])
	}
	if v := order.Uint16(data[124:126]); v != version5 {
		return nil, fmt.Errorf("%w: version 0x%04x", ErrNotMatFile, v)
	}

	f := &File{
		Header: strings.TrimRight(string(data[:textLen]), " \x00"),
		vars:   make(map[string]*Array),
	}
	d := &decoder{order: order}

	buf := data[headerLen:]
	for len(buf) >= 8 {
		typ, body, rest, err := d.element(buf)
		if err != nil {
			return nil, err
		}
		buf = rest

		if typ == miCOMPRESSED {
			raw, err := inflate(body)
			if err != nil {
				return nil, err
			}
			typ, body, _, err = d.element(raw)
			if err != nil {
				return nil, err
			}
		}
		if typ != miMATRIX {
			continue
		}

		arr, err := d.matrix(body)
		if err != nil {
			return nil, err
		}
		if _, dup := f.vars[arr.Name]; !dup {
			f.order = append(f.order, arr.Name)
		}
		f.vars[arr.Name] = arr
	}
	return f, nil
}

func inflate(body []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: compressed element: %v", ErrMalformedElement, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: compressed element: %v", ErrMalformedElement, err)
	}
	return raw, nil
}

func pad8(n int) int {
	if r := n % 8; r != 0 {
		return n + 8 - r
	}
	return n
}

// element splits one tagged data element off buf.
func (d *decoder) element(buf []byte) (typ uint32, body, rest []byte, err error) {
	if len(buf) < 8 {
		return 0, nil, nil, fmt.Errorf("%w: short tag (%d bytes)", ErrMalformedElement, len(buf))
	}
	first := d.order.Uint32(buf)
	if first>>16 != 0 {
		// small data element: type and size share the first word
		n := int(first >> 16)
		if n > 4 {
			return 0, nil, nil, fmt.Errorf("%w: small element of %d bytes", ErrMalformedElement, n)
		}
		return first & 0xffff, buf[4 : 4+n], buf[8:], nil
	}

	n := int(d.order.Uint32(buf[4:]))
	if n < 0 || 8+n > len(buf) {
		return 0, nil, nil, fmt.Errorf("%w: element type %d claims %d bytes, %d left", ErrMalformedElement, first, n, len(buf)-8)
	}
	next := 8 + n
	if first != miCOMPRESSED {
		next = 8 + pad8(n)
		if next > len(buf) {
			next = len(buf)
		}
	}
	return first, buf[8 : 8+n], buf[next:], nil
}

func (d *decoder) matrix(body []byte) (*Array, error) {
	a := &Array{}
	if len(body) == 0 {
		// empty cell contents are written as a bare miMATRIX tag
		a.Class = ClassDouble
		a.Dims = []int{0, 0}
		return a, nil
	}

	typ, flags, rest, err := d.element(body)
	if err != nil {
		return nil, err
	}
	if typ != miUINT32 || len(flags) != 8 {
		return nil, fmt.Errorf("%w: array flags type %d len %d", ErrMalformedElement, typ, len(flags))
	}
	word := d.order.Uint32(flags)
	a.Class = Class(word & 0xff)
	isComplex := word&flagComplex != 0

	typ, raw, rest, err := d.element(rest)
	if err != nil {
		return nil, err
	}
	dims, err := d.numbers(typ, raw)
	if err != nil {
		return nil, fmt.Errorf("dimensions: %w", err)
	}
	a.Dims = make([]int, len(dims))
	for i, v := range dims {
		a.Dims[i] = int(v)
	}

	typ, raw, rest, err = d.element(rest)
	if err != nil {
		return nil, err
	}
	a.Name = string(raw)

	switch {
	case a.Class.IsNumeric():
		typ, raw, rest, err = d.element(rest)
		if err != nil {
			return nil, err
		}
		if a.Real, err = d.numbers(typ, raw); err != nil {
			return nil, fmt.Errorf("%s real part: %w", a.Name, err)
		}
		if isComplex {
			typ, raw, _, err = d.element(rest)
			if err != nil {
				return nil, err
			}
			if a.Imag, err = d.numbers(typ, raw); err != nil {
				return nil, fmt.Errorf("%s imaginary part: %w", a.Name, err)
			}
		}
		if len(a.Real) != a.Len() {
			return nil, fmt.Errorf("%w: %s has %d values for dims %v", ErrMalformedElement, a.Name, len(a.Real), a.Dims)
		}

	case a.Class == ClassChar:
		if len(rest) == 0 {
			return a, nil
		}
		typ, raw, _, err = d.element(rest)
		if err != nil {
			return nil, err
		}
		if a.Text, err = d.text(typ, raw); err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}

	case a.Class == ClassCell:
		a.Cells = make([]*Array, a.Len())
		for i := range a.Cells {
			var sub []byte
			typ, sub, rest, err = d.element(rest)
			if err != nil {
				return nil, fmt.Errorf("%s cell %d: %w", a.Name, i, err)
			}
			if typ != miMATRIX {
				return nil, fmt.Errorf("%w: %s cell %d has type %d", ErrMalformedElement, a.Name, i, typ)
			}
			if a.Cells[i], err = d.matrix(sub); err != nil {
				return nil, fmt.Errorf("%s cell %d: %w", a.Name, i, err)
			}
		}

	case a.Class == ClassStruct:
		if err := d.structFields(a, rest); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedClass, a.Name, a.Class)
	}
	return a, nil
}

func (d *decoder) structFields(a *Array, rest []byte) error {
	typ, raw, rest, err := d.element(rest)
	if err != nil {
		return err
	}
	lens, err := d.numbers(typ, raw)
	if err != nil || len(lens) != 1 {
		return fmt.Errorf("%w: %s field name length", ErrMalformedElement, a.Name)
	}
	nameLen := int(lens[0])

	typ, raw, rest, err = d.element(rest)
	if err != nil {
		return err
	}
	if typ != miINT8 && typ != miUINT8 {
		return fmt.Errorf("%w: %s field names type %d", ErrMalformedElement, a.Name, typ)
	}
	if nameLen > 0 {
		for off := 0; off+nameLen <= len(raw); off += nameLen {
			name := raw[off : off+nameLen]
			if i := bytes.IndexByte(name, 0); i >= 0 {
				name = name[:i]
			}
			a.Fields = append(a.Fields, string(name))
		}
	}

	a.Elems = make([]map[string]*Array, a.Len())
	for i := range a.Elems {
		m := make(map[string]*Array, len(a.Fields))
		for _, field := range a.Fields {
			var sub []byte
			typ, sub, rest, err = d.element(rest)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", a.Name, field, err)
			}
			if typ != miMATRIX {
				return fmt.Errorf("%w: %s.%s has type %d", ErrMalformedElement, a.Name, field, typ)
			}
			v, err := d.matrix(sub)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", a.Name, field, err)
			}
			v.Name = field
			m[field] = v
		}
		a.Elems[i] = m
	}
	return nil
}

func typeSize(typ uint32) int {
	switch typ {
	case miINT8, miUINT8, miUTF8:
		return 1
	case miINT16, miUINT16, miUTF16:
		return 2
	case miINT32, miUINT32, miSINGLE, miUTF32:
		return 4
	case miDOUBLE, miINT64, miUINT64:
		return 8
	}
	return 0
}

// numbers widens a numeric data element to float64.
func (d *decoder) numbers(typ uint32, raw []byte) ([]float64, error) {
	size := typeSize(typ)
	if size == 0 || typ == miUTF8 || typ == miUTF16 || typ == miUTF32 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedType, typ)
	}
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes of %d-byte values", ErrMalformedElement, len(raw), size)
	}
	out := make([]float64, len(raw)/size)
	for i := range out {
		b := raw[i*size:]
		switch typ {
		case miINT8:
			out[i] = float64(int8(b[0]))
		case miUINT8:
			out[i] = float64(b[0])
		case miINT16:
			out[i] = float64(int16(d.order.Uint16(b)))
		case miUINT16:
			out[i] = float64(d.order.Uint16(b))
		case miINT32:
			out[i] = float64(int32(d.order.Uint32(b)))
		case miUINT32:
			out[i] = float64(d.order.Uint32(b))
		case miSINGLE:
			out[i] = float64(math.Float32frombits(d.order.Uint32(b)))
		case miDOUBLE:
			out[i] = math.Float64frombits(d.order.Uint64(b))
		case miINT64:
			out[i] = float64(int64(d.order.Uint64(b)))
		case miUINT64:
			out[i] = float64(d.order.Uint64(b))
		}
	}
	return out, nil
}

func (d *decoder) text(typ uint32, raw []byte) (string, error) {
	switch typ {
	case miUTF8, miINT8, miUINT8:
		return string(raw), nil
	case miUINT16, miUTF16:
		if len(raw)%2 != 0 {
			return "", fmt.Errorf("%w: odd-length UTF-16 text", ErrMalformedElement)
		}
		units := make([]uint16, len(raw)/2)
		for i := range units {
			units[i] = d.order.Uint16(raw[2*i:])
		}
		return string(utf16.Decode(units)), nil
	case miUTF32:
		if len(raw)%4 != 0 {
			return "", fmt.Errorf("%w: bad UTF-32 text", ErrMalformedElement)
		}
		runes := make([]rune, len(raw)/4)
		for i := range runes {
			runes[i] = rune(d.order.Uint32(raw[4*i:]))
		}
		return string(runes), nil
	}
	return "", fmt.Errorf("%w: text type %d", ErrUnsupportedType, typ)
}
