package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// MaxDepth bounds the nesting of arrays and objects.
const MaxDepth = 64

// SyntaxError describes input that is not a single well-formed JSON value.
// Line and Column are 1-based; Column counts bytes.
type SyntaxError struct {
	Offset int64
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at line %d column %d", e.Msg, e.Line, e.Column)
}

// Parse parses data as exactly one JSON value. Invalid UTF-8, duplicate
// object keys, trailing data and nesting deeper than MaxDepth are syntax
// errors.
func Parse(data []byte) (Value, error) {
	p := &parser{data: data, dec: json.NewDecoder(bytes.NewReader(data))}
	p.dec.UseNumber()

	if off := invalidUTF8(data); off >= 0 {
		return nil, p.errorf(off, "invalid UTF-8 byte 0x%02x", data[off])
	}

	v, err := p.value(0)
	if err != nil {
		return nil, err
	}
	if off := p.skipSpace(p.dec.InputOffset()); off < int64(len(data)) {
		return nil, p.errorf(off, "trailing data after top-level value")
	}
	return v, nil
}

type parser struct {
	data []byte
	dec  *json.Decoder
}

func (p *parser) value(depth int) (Value, error) {
	start := p.dec.InputOffset()
	tok, err := p.dec.Token()
	if err != nil {
		return nil, p.wrap(err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return p.object(start, depth+1)
		case '[':
			return p.array(start, depth+1)
		}
		return nil, p.errorf(p.skip(start), "unexpected %q", t.String())
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case nil:
		return Null{}, nil
	}
	return nil, p.errorf(p.skip(start), "unexpected token %v", tok)
}

func (p *parser) object(start int64, depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, p.errorf(p.skip(start), "nesting exceeds maximum depth of %d", MaxDepth)
	}
	obj := NewObject()
	for {
		keyStart := p.dec.InputOffset()
		tok, err := p.dec.Token()
		if err != nil {
			return nil, p.wrap(err)
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return obj, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, p.errorf(p.skip(keyStart), "expected object key")
		}
		if obj.Has(key) {
			return nil, p.errorf(p.skip(keyStart), "duplicate key %q", key)
		}
		v, err := p.value(depth)
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)
	}
}

func (p *parser) array(start int64, depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, p.errorf(p.skip(start), "nesting exceeds maximum depth of %d", MaxDepth)
	}
	arr := Array{}
	for {
		if !p.dec.More() {
			tok, err := p.dec.Token()
			if err != nil {
				return nil, p.wrap(err)
			}
			if d, ok := tok.(json.Delim); ok && d == ']' {
				return arr, nil
			}
			return nil, p.errorf(p.skipSpace(p.dec.InputOffset()), "expected ']'")
		}
		v, err := p.value(depth)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
}

// wrap converts a decoder failure into a positioned SyntaxError. The
// decoder's own offsets are relative to the value being scanned for some
// failures, so the position is taken from the decoder's input cursor, which
// rests on the offending byte or on the start of the offending literal.
func (p *parser) wrap(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return p.errorf(int64(len(p.data)), "unexpected end of input")
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return p.errorf(p.skipSpace(p.dec.InputOffset()), "%s", se.Error())
	}
	return p.errorf(p.skipSpace(p.dec.InputOffset()), "%v", err)
}

// skip advances off past whitespace and the separators the decoder has not
// consumed yet, landing on the next key or value.
func (p *parser) skip(off int64) int64 {
	for off < int64(len(p.data)) {
		switch p.data[off] {
		case ' ', '\t', '\r', '\n', ',', ':':
			off++
		default:
			return off
		}
	}
	return off
}

func (p *parser) skipSpace(off int64) int64 {
	for off < int64(len(p.data)) {
		switch p.data[off] {
		case ' ', '\t', '\r', '\n':
			off++
		default:
			return off
		}
	}
	return off
}

// invalidUTF8 returns the offset of the first byte that does not start a
// valid UTF-8 sequence, or -1.
func invalidUTF8(data []byte) int64 {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return int64(i)
		}
		i += size
	}
	return -1
}

func (p *parser) errorf(off int64, format string, args ...any) *SyntaxError {
	if off > int64(len(p.data)) {
		off = int64(len(p.data))
	}
	line, col := 1, 1
	for _, c := range p.data[:off] {
		if c == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return &SyntaxError{Offset: off, Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}
