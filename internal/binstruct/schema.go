// Package binstruct declares fixed-width byte layouts and decodes them into
// mutable typed views.
//
// A Schema is an ordered list of fields laid out back to back with no gaps.
// Decoding copies every value out of the buffer, so a View never aliases the
// bytes it came from, and encoding an unmodified View reproduces the input
// bit for bit.
package binstruct

import (
	"encoding/binary"
	"fmt"
)

// Schema is an immutable, ordered field layout.
type Schema struct {
	order   binary.ByteOrder
	fields  []Field
	offsets []int
	index   map[string]int
	size    int
}

// Define builds a schema from fields in declaration order. order applies to
// every multi-byte integer and to UTF-16 code units.
func Define(order binary.ByteOrder, fields ...Field) (*Schema, error) {
	if order == nil {
		return nil, fmt.Errorf("%w: nil byte order", ErrInvalidSchema)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}

	s := &Schema{
		order:   order,
		fields:  make([]Field, len(fields)),
		offsets: make([]int, len(fields)),
		index:   make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)

	for i, f := range s.fields {
		if f.name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", ErrInvalidSchema, i)
		}
		if _, dup := s.index[f.name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.name)
		}
		if f.width <= 0 {
			return nil, fmt.Errorf("%w: field %q has width %d", ErrInvalidSchema, f.name, f.width)
		}
		if f.kind == KindCustom && (f.codec == nil || f.codec.Decode == nil || f.codec.Encode == nil) {
			return nil, fmt.Errorf("%w: custom field %q needs a decode and encode func", ErrInvalidSchema, f.name)
		}
		if f.kind == KindUTF16 && f.width%2 != 0 {
			return nil, fmt.Errorf("%w: utf16 field %q has odd width", ErrInvalidSchema, f.name)
		}
		s.index[f.name] = i
		s.offsets[i] = s.size
		s.size += f.width
	}
	return s, nil
}

// MustDefine is like Define but panics on error. It is meant for package-level schemas.
func MustDefine(order binary.ByteOrder, fields ...Field) *Schema {
	s, err := Define(order, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Size returns the total width of the schema in bytes.
func (s *Schema) Size() int { return s.size }

// Order returns the schema byte order.
func (s *Schema) Order() binary.ByteOrder { return s.order }

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Offset returns the byte offset of the named field.
func (s *Schema) Offset(name string) (int, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.offsets[i], true
}

// New returns a view with every field zeroed.
func (s *Schema) New() *View {
	v, err := s.Decode(make([]byte, s.size))
	if err != nil {
		// zero bytes only fail for custom codecs that reject them
		panic(fmt.Sprintf("binstruct: zero view: %v", err))
	}
	return v
}

// Decode reads every field from b. Bytes past Size are ignored.
func (s *Schema) Decode(b []byte) (*View, error) {
	if len(b) < s.size {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrTruncatedBuffer, len(b), s.size)
	}

	v := &View{schema: s, values: make([]any, len(s.fields))}
	for i, f := range s.fields {
		raw := b[s.offsets[i] : s.offsets[i]+f.width]
		val, err := s.decodeField(f, raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", f.name, err)
		}
		v.values[i] = val
	}
	return v, nil
}

// Encode writes every field of v at its offset.
func (s *Schema) Encode(v *View) ([]byte, error) {
	if v == nil || v.schema != s {
		return nil, ErrSchemaMismatch
	}

	out := make([]byte, s.size)
	for i, f := range s.fields {
		dst := out[s.offsets[i] : s.offsets[i]+f.width]
		if err := s.encodeField(f, v.values[i], dst); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", f.name, err)
		}
	}
	return out, nil
}

func (s *Schema) decodeField(f Field, raw []byte) (any, error) {
	switch f.kind {
	case KindUint:
		return readUint(s.order, raw), nil
	case KindInt:
		return signExtend(readUint(s.order, raw), f.width), nil
	case KindBytes:
		return append([]byte(nil), raw...), nil
	case KindString:
		return string(raw), nil
	case KindUTF16:
		units := make([]uint16, f.width/2)
		for i := range units {
			units[i] = s.order.Uint16(raw[i*2:])
		}
		return units, nil
	case KindGUID:
		return GUIDFromBytes(raw), nil
	case KindCustom:
		return f.codec.Decode(append([]byte(nil), raw...), s.order)
	}
	return nil, fmt.Errorf("%w: %s", ErrKindMismatch, f.kind)
}

func (s *Schema) encodeField(f Field, val any, dst []byte) error {
	switch f.kind {
	case KindUint:
		writeUint(s.order, dst, val.(uint64))
	case KindInt:
		writeUint(s.order, dst, uint64(val.(int64)))
	case KindBytes:
		copy(dst, val.([]byte))
	case KindString:
		copy(dst, val.(string))
	case KindUTF16:
		for i, u := range val.([]uint16) {
			s.order.PutUint16(dst[i*2:], u)
		}
	case KindGUID:
		val.(GUID).PutBytes(dst)
	case KindCustom:
		return f.codec.Encode(val, dst, s.order)
	default:
		return fmt.Errorf("%w: %s", ErrKindMismatch, f.kind)
	}
	return nil
}

func readUint(order binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	default:
		return order.Uint64(b)
	}
}

func writeUint(order binary.ByteOrder, b []byte, x uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(x)
	case 2:
		order.PutUint16(b, uint16(x))
	case 4:
		order.PutUint32(b, uint32(x))
	default:
		order.PutUint64(b, x)
	}
}

func signExtend(x uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(x))
	case 2:
		return int64(int16(x))
	case 4:
		return int64(int32(x))
	default:
		return int64(x)
	}
}
