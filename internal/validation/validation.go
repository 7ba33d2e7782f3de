// Package validation checks user-supplied paths and reference strings
// before they reach the filesystem or the resolver cache.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Limits on untrusted input (CWE-400).
const (
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
	// MaxReferenceLength bounds a single reference string. The longest
	// real reference is well under 64 characters.
	MaxReferenceLength = 256
)

// Common validation errors.
var (
	ErrEmptyPath         = errors.New("path cannot be empty")
	ErrPathTooLong       = errors.New("path too long")
	ErrInvalidCharacter  = errors.New("invalid character")
	ErrReferenceTooLong  = errors.New("reference too long")
	ErrReferenceNotPrint = errors.New("reference contains non-printable characters")
)

// ValidatePath checks length limits and rejects null bytes and control
// characters. It does not require the path to exist.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateReference rejects reference strings that could never parse and
// would only pollute caches and logs: oversized input and input carrying
// control characters other than ordinary whitespace.
func ValidateReference(input string) error {
	if len(input) > MaxReferenceLength {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrReferenceTooLong, len(input), MaxReferenceLength)
	}
	for _, r := range input {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return ErrReferenceNotPrint
		}
	}
	return nil
}
