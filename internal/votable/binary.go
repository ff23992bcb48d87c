// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package votable

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// primitiveSize is the byte width of each VOTable primitive in BINARY streams.
var primitiveSize = map[string]int{
	"boolean":       1,
	"unsignedByte":  1,
	"short":         2,
	"int":           4,
	"long":          8,
	"char":          1,
	"unicodeChar":   2,
	"float":         4,
	"double":        8,
	"floatComplex":  8,
	"doubleComplex": 16,
}

// decodeStream decodes a base64 BINARY or BINARY2 stream. BINARY2 rows start
// with a null bitmap holding one bit per field, most significant bit first.
func decodeStream(fields []xmlField, s xmlStream, nullFlags bool) ([][]any, error) {
	if s.Href != "" {
		return nil, fmt.Errorf("remote STREAM href %q is not supported", s.Href)
	}
	if enc := strings.ToLower(s.Encoding); enc != "" && enc != "base64" {
		return nil, fmt.Errorf("unsupported STREAM encoding %q", s.Encoding)
	}

	data, err := base64.StdEncoding.DecodeString(stripSpace(s.Text))
	if err != nil {
		return nil, fmt.Errorf("decoding base64 STREAM: %w", err)
	}

	cur := &cursor{buf: data}
	var rows [][]any
	for cur.remaining() > 0 {
		var nulls []byte
		if nullFlags {
			nulls, err = cur.next((len(fields) + 7) / 8)
			if err != nil {
				return nil, fmt.Errorf("row %d null flags: %w", len(rows), err)
			}
		}

		row := make([]any, len(fields))
		for j, f := range fields {
			v, err := readField(cur, f)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", len(rows), f.Name, err)
			}
			if nulls != nil && nulls[j/8]&(0x80>>uint(j%8)) != 0 {
				v = nil
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) next(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, fmt.Errorf("stream truncated: need %d bytes, have %d", n, c.remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// elementCount returns how many primitives the field holds. Variable-size
// arrays read a 4-byte big-endian length prefix from the stream.
func elementCount(c *cursor, arraysize string) (int, error) {
	if arraysize == "" {
		return 1, nil
	}
	dims := strings.Split(arraysize, "x")
	fixed := 1
	for i, d := range dims {
		last := i == len(dims)-1
		if last && strings.HasSuffix(d, "*") {
			b, err := c.next(4)
			if err != nil {
				return 0, err
			}
			return fixed * int(binary.BigEndian.Uint32(b)), nil
		}
		n, err := strconv.Atoi(d)
		if err != nil {
			return 0, fmt.Errorf("invalid arraysize %q", arraysize)
		}
		fixed *= n
	}
	return fixed, nil
}

func readField(c *cursor, f xmlField) (any, error) {
	count, err := elementCount(c, f.Arraysize)
	if err != nil {
		return nil, err
	}

	if f.Datatype == "bit" {
		b, err := c.next((count + 7) / 8)
		if err != nil {
			return nil, err
		}
		if count == 1 {
			return b[0]&0x80 != 0, nil
		}
		bits := make([]string, count)
		for i := range bits {
			if b[i/8]&(0x80>>uint(i%8)) != 0 {
				bits[i] = "1"
			} else {
				bits[i] = "0"
			}
		}
		return strings.Join(bits, " "), nil
	}

	size, ok := primitiveSize[f.Datatype]
	if !ok {
		return nil, fmt.Errorf("unsupported datatype %q", f.Datatype)
	}
	b, err := c.next(size * count)
	if err != nil {
		return nil, err
	}

	switch f.Datatype {
	case "char":
		return nullString(strings.TrimRight(cString(b), " ")), nil
	case "unicodeChar":
		units := make([]uint16, count)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(b[2*i:])
		}
		return nullString(strings.TrimRight(cString([]byte(string(utf16.Decode(units)))), " ")), nil
	}

	if count == 1 && !isArray(f) {
		return scalar(f, b)
	}

	parts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		v, err := scalar(f, b[i*size:(i+1)*size])
		if err != nil {
			return nil, err
		}
		parts = append(parts, formatPart(v))
	}
	return strings.Join(parts, " "), nil
}

// scalar decodes one primitive, mapping NaN and VALUES null sentinels to nil.
func scalar(f xmlField, b []byte) (any, error) {
	var v any
	switch f.Datatype {
	case "boolean":
		switch b[0] {
		case 'T', 't', '1':
			return true, nil
		case 'F', 'f', '0':
			return false, nil
		}
		return nil, nil
	case "unsignedByte":
		v = int64(b[0])
	case "short":
		v = int64(int16(binary.BigEndian.Uint16(b)))
	case "int":
		v = int64(int32(binary.BigEndian.Uint32(b)))
	case "long":
		v = int64(binary.BigEndian.Uint64(b))
	case "float":
		x := float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
		if math.IsNaN(x) {
			return nil, nil
		}
		return x, nil
	case "double":
		x := math.Float64frombits(binary.BigEndian.Uint64(b))
		if math.IsNaN(x) {
			return nil, nil
		}
		return x, nil
	case "floatComplex":
		re := math.Float32frombits(binary.BigEndian.Uint32(b))
		im := math.Float32frombits(binary.BigEndian.Uint32(b[4:]))
		return fmt.Sprintf("%g %g", re, im), nil
	case "doubleComplex":
		re := math.Float64frombits(binary.BigEndian.Uint64(b))
		im := math.Float64frombits(binary.BigEndian.Uint64(b[8:]))
		return fmt.Sprintf("%g %g", re, im), nil
	default:
		return nil, fmt.Errorf("unsupported datatype %q", f.Datatype)
	}

	if f.Values != nil && f.Values.Null != "" {
		if null, err := parseInt(f.Values.Null); err == nil && v.(int64) == null {
			return nil, nil
		}
	}
	return v, nil
}

func formatPart(v any) string {
	switch x := v.(type) {
	case nil:
		return "NaN"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "T"
		}
		return "F"
	default:
		return fmt.Sprint(x)
	}
}

// cString cuts b at the first NUL byte.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}
