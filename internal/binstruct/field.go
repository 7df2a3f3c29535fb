package binstruct

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies how a field is decoded and encoded.
type Kind uint8

// Field kinds
const (
	KindUint Kind = iota + 1
	KindInt
	KindBytes
	KindString
	KindUTF16
	KindGUID
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindUTF16:
		return "utf16"
	case KindGUID:
		return "guid"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Codec is a bespoke decode/encode pair for a custom field.
// Decode receives a private copy of exactly the field's bytes. Encode writes
// into a zeroed slice of the field's width. Clone may be nil when decoded
// values are immutable.
type Codec struct {
	Decode func(b []byte, order binary.ByteOrder) (any, error)
	Encode func(v any, b []byte, order binary.ByteOrder) error
	Clone  func(v any) any
}

// Field describes one fixed-width member of a schema. Fields are built with
// the constructors below and never change afterwards.
type Field struct {
	name  string
	kind  Kind
	width int
	codec *Codec
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Kind returns the field kind.
func (f Field) Kind() Kind { return f.kind }

// Width returns the field width in bytes.
func (f Field) Width() int { return f.width }

func Uint8(name string) Field  { return Field{name: name, kind: KindUint, width: 1} }
func Uint16(name string) Field { return Field{name: name, kind: KindUint, width: 2} }
func Uint32(name string) Field { return Field{name: name, kind: KindUint, width: 4} }
func Uint64(name string) Field { return Field{name: name, kind: KindUint, width: 8} }

func Int8(name string) Field  { return Field{name: name, kind: KindInt, width: 1} }
func Int16(name string) Field { return Field{name: name, kind: KindInt, width: 2} }
func Int32(name string) Field { return Field{name: name, kind: KindInt, width: 4} }
func Int64(name string) Field { return Field{name: name, kind: KindInt, width: 8} }

// Bytes declares a raw byte array of n bytes.
func Bytes(name string, n int) Field { return Field{name: name, kind: KindBytes, width: n} }

// String declares a single-byte character string of n bytes, zero padded.
func String(name string, n int) Field { return Field{name: name, kind: KindString, width: n} }

// UTF16 declares a string of units UTF-16 code units, zero padded.
func UTF16(name string, units int) Field { return Field{name: name, kind: KindUTF16, width: units * 2} }

// GUIDField declares a 16-byte mixed-endian GUID.
func GUIDField(name string) Field { return Field{name: name, kind: KindGUID, width: guidSize} }

// Custom declares an n-byte field handled by c.
func Custom(name string, n int, c Codec) Field {
	return Field{name: name, kind: KindCustom, width: n, codec: &c}
}
