package gpt

import (
	"errors"

	"edltool/internal/binstruct"
)

var (
	ErrInvalidSignature    = errors.New("invalid GPT signature")
	ErrUnsupportedRevision = errors.New("unsupported GPT revision")
	ErrInvalidHeaderSize   = errors.New("invalid GPT header size")
	ErrInvalidEntrySize    = errors.New("invalid GPT partition entry size")
	ErrTruncatedBuffer     = binstruct.ErrTruncatedBuffer
	ErrChecksumCollision   = errors.New("computed checksum is zero")
	ErrInvalidSlot         = errors.New("invalid slot")
	ErrNoHeader            = errors.New("GPT header not parsed")
	ErrInvalidLayout       = errors.New("invalid GPT layout")

	// Returned only under the Strict policy; Lenient reports them in the check result.
	ErrHeaderChecksum  = errors.New("GPT header checksum mismatch")
	ErrEntriesChecksum = errors.New("GPT partition entries checksum mismatch")
	ErrLBAMismatch     = errors.New("GPT header current LBA mismatch")
)
