package binstruct

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf16"
)

// View is one decoded instance of a Schema. It owns its values; mutating a
// view never touches the buffer it was decoded from, nor any clone.
type View struct {
	schema *Schema
	values []any
}

// Schema returns the schema the view was decoded with.
func (v *View) Schema() *Schema { return v.schema }

// Encode is shorthand for v.Schema().Encode(v).
func (v *View) Encode() ([]byte, error) { return v.schema.Encode(v) }

// Clone returns a deep copy of v.
func (v *View) Clone() *View {
	c := &View{schema: v.schema, values: make([]any, len(v.values))}
	for i, val := range v.values {
		switch x := val.(type) {
		case []byte:
			c.values[i] = append([]byte(nil), x...)
		case []uint16:
			c.values[i] = append([]uint16(nil), x...)
		default:
			f := v.schema.fields[i]
			if f.kind == KindCustom && f.codec.Clone != nil {
				c.values[i] = f.codec.Clone(x)
			} else {
				c.values[i] = x
			}
		}
	}
	return c
}

func (v *View) lookup(name string, kind Kind) (int, Field, error) {
	i, ok := v.schema.index[name]
	if !ok {
		return 0, Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	f := v.schema.fields[i]
	if f.kind != kind {
		return 0, Field{}, fmt.Errorf("%w: %q is %s, not %s", ErrKindMismatch, name, f.kind, kind)
	}
	return i, f, nil
}

// Uint returns an unsigned integer field.
func (v *View) Uint(name string) (uint64, error) {
	i, _, err := v.lookup(name, KindUint)
	if err != nil {
		return 0, err
	}
	return v.values[i].(uint64), nil
}

// SetUint stores x, failing with ErrOverflow if it does not fit the field.
func (v *View) SetUint(name string, x uint64) error {
	i, f, err := v.lookup(name, KindUint)
	if err != nil {
		return err
	}
	if f.width < 8 && x>>(uint(f.width)*8) != 0 {
		return fmt.Errorf("%w: %d in %d-byte %q", ErrOverflow, x, f.width, name)
	}
	v.values[i] = x
	return nil
}

// Int returns a signed integer field.
func (v *View) Int(name string) (int64, error) {
	i, _, err := v.lookup(name, KindInt)
	if err != nil {
		return 0, err
	}
	return v.values[i].(int64), nil
}

// SetInt stores x, failing with ErrOverflow if it does not fit the field.
func (v *View) SetInt(name string, x int64) error {
	i, f, err := v.lookup(name, KindInt)
	if err != nil {
		return err
	}
	if f.width < 8 {
		bits := uint(f.width) * 8
		lo, hi := int64(math.MinInt64)>>(64-bits), int64(math.MaxInt64)>>(64-bits)
		if x < lo || x > hi {
			return fmt.Errorf("%w: %d in %d-byte %q", ErrOverflow, x, f.width, name)
		}
	}
	v.values[i] = x
	return nil
}

// Bytes returns a copy of a raw byte field.
func (v *View) Bytes(name string) ([]byte, error) {
	i, _, err := v.lookup(name, KindBytes)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), v.values[i].([]byte)...), nil
}

// SetBytes stores a copy of b, which must be exactly the field width.
func (v *View) SetBytes(name string, b []byte) error {
	i, f, err := v.lookup(name, KindBytes)
	if err != nil {
		return err
	}
	if len(b) != f.width {
		return fmt.Errorf("%w: %d bytes for %d-byte %q", ErrWidth, len(b), f.width, name)
	}
	v.values[i] = append([]byte(nil), b...)
	return nil
}

// Text returns a fixed string field with trailing NUL padding removed.
func (v *View) Text(name string) (string, error) {
	i, _, err := v.lookup(name, KindString)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(v.values[i].(string), "\x00"), nil
}

// SetText stores s zero padded to the field width.
func (v *View) SetText(name, s string) error {
	i, f, err := v.lookup(name, KindString)
	if err != nil {
		return err
	}
	if len(s) > f.width {
		return fmt.Errorf("%w: %d bytes in %d-byte %q", ErrOverflow, len(s), f.width, name)
	}
	v.values[i] = s + strings.Repeat("\x00", f.width-len(s))
	return nil
}

// UTF16 returns a UTF-16 field decoded up to the first NUL code unit.
func (v *View) UTF16(name string) (string, error) {
	i, _, err := v.lookup(name, KindUTF16)
	if err != nil {
		return "", err
	}
	units := v.values[i].([]uint16)
	for n, u := range units {
		if u == 0 {
			units = units[:n]
			break
		}
	}
	return string(utf16.Decode(units)), nil
}

// SetUTF16 stores s followed by zero code units up to the field width.
func (v *View) SetUTF16(name, s string) error {
	i, f, err := v.lookup(name, KindUTF16)
	if err != nil {
		return err
	}
	enc := utf16.Encode([]rune(s))
	if len(enc) > f.width/2 {
		return fmt.Errorf("%w: %d code units in %d-unit %q", ErrOverflow, len(enc), f.width/2, name)
	}
	units := make([]uint16, f.width/2)
	copy(units, enc)
	v.values[i] = units
	return nil
}

// UTF16Units returns a copy of every code unit of a UTF-16 field, including
// anything stored after the first NUL.
func (v *View) UTF16Units(name string) ([]uint16, error) {
	i, _, err := v.lookup(name, KindUTF16)
	if err != nil {
		return nil, err
	}
	return append([]uint16(nil), v.values[i].([]uint16)...), nil
}

// SetUTF16Units stores units, which must fill the field exactly.
func (v *View) SetUTF16Units(name string, units []uint16) error {
	i, f, err := v.lookup(name, KindUTF16)
	if err != nil {
		return err
	}
	if len(units) != f.width/2 {
		return fmt.Errorf("%w: %d code units for %d-unit %q", ErrWidth, len(units), f.width/2, name)
	}
	v.values[i] = append([]uint16(nil), units...)
	return nil
}

// GUID returns a GUID field.
func (v *View) GUID(name string) (GUID, error) {
	i, _, err := v.lookup(name, KindGUID)
	if err != nil {
		return ZeroGUID, err
	}
	return v.values[i].(GUID), nil
}

// SetGUID stores g.
func (v *View) SetGUID(name string, g GUID) error {
	i, _, err := v.lookup(name, KindGUID)
	if err != nil {
		return err
	}
	v.values[i] = g
	return nil
}

// Custom returns the decoded value of a custom field.
func (v *View) Custom(name string) (any, error) {
	i, _, err := v.lookup(name, KindCustom)
	if err != nil {
		return nil, err
	}
	return v.values[i], nil
}

// SetCustom stores x after checking that the field codec can encode it.
func (v *View) SetCustom(name string, x any) error {
	i, f, err := v.lookup(name, KindCustom)
	if err != nil {
		return err
	}
	if err := f.codec.Encode(x, make([]byte, f.width), v.schema.order); err != nil {
		return fmt.Errorf("%q: %w", name, err)
	}
	v.values[i] = x
	return nil
}
