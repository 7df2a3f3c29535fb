package binstruct

import "errors"

var (
	// ErrTruncatedBuffer is returned when a buffer is shorter than the schema it is decoded with.
	ErrTruncatedBuffer = errors.New("buffer shorter than schema")
	// ErrInvalidSchema is returned by Define for malformed field lists.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrSchemaMismatch is returned when a view is encoded with a schema it was not decoded from.
	ErrSchemaMismatch = errors.New("view belongs to a different schema")
	// ErrUnknownField is returned by accessors for names the schema does not declare.
	ErrUnknownField = errors.New("unknown field")
	// ErrKindMismatch is returned when an accessor does not match the field kind.
	ErrKindMismatch = errors.New("field kind mismatch")
	// ErrOverflow is returned when a value does not fit in the field width.
	ErrOverflow = errors.New("value does not fit field width")
	// ErrWidth is returned when a value has a length different from the field width.
	ErrWidth = errors.New("value length does not match field width")
)
