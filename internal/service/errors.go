package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when the addressed record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError collects field level messages. It maps to a 422 response.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// orNil returns nil when nothing was added, so callers can write
// `return verr.orNil()`.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalid(field, msg string) error {
	verr := &ValidationError{}
	verr.Add(field, msg)
	return verr
}

// IsValidation reports whether err carries field errors and returns them.
func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

func notFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return err
}

// Field is an optional value in a full-resource update. Present=false
// leaves the stored value alone; Present with a nil Value clears it.
type Field[T any] struct {
	Present bool
	Value   *T
}

// Set returns a present field holding v.
func Set[T any](v T) Field[T] {
	return Field[T]{Present: true, Value: &v}
}

// Clear returns a present field that empties the column.
func Clear[T any]() Field[T] {
	return Field[T]{Present: true}
}
