package vba

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("vba: validation failed")

	// ErrUnsupportedKind is returned for module kinds outside the known set.
	ErrUnsupportedKind = errors.New("vba: unsupported module kind")

	// ErrMalformed is matched by every *RecordError and by truncated dir streams.
	ErrMalformed = errors.New("vba: malformed dir stream")
)

// ValidationError reports a field that violates a format constraint.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vba: invalid %s: %s", e.Field, e.Constraint)
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationErrorf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Constraint: fmt.Sprintf(format, args...)}
}

// RecordError reports an unexpected record id in a dir stream.
type RecordError struct {
	Offset int
	Got    uint16
	Want   []uint16
}

func (e *RecordError) Error() string {
	want := ""
	for i, id := range e.Want {
		if i > 0 {
			want += " or "
		}
		want += fmt.Sprintf("0x%04X", id)
	}
	return fmt.Sprintf("vba: unexpected record 0x%04X at offset %d, expected %s", e.Got, e.Offset, want)
}

// Is makes errors.Is(err, ErrMalformed) hold.
func (e *RecordError) Is(target error) bool {
	return target == ErrMalformed
}
