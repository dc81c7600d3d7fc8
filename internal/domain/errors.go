package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not_found")
	ErrValidation          = errors.New("validation")
	ErrFetch               = errors.New("fetch_failed")
	ErrWrite               = errors.New("write_failed")
	ErrUpload              = errors.New("upload_failed")
	ErrObjectExists        = errors.New("object_exists")
	ErrTimeout             = errors.New("timeout")
	ErrDuplicateConnection = errors.New("connection_exists")
	ErrInvalidTransition   = errors.New("invalid_transition")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// OpError is a remote failure classified by kind (ErrFetch, ErrWrite, ErrUpload
// or ErrTimeout). errors.Is matches both the kind and the underlying cause.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func FetchError(op string, err error) error  { return newOpError(op, ErrFetch, err) }
func WriteError(op string, err error) error  { return newOpError(op, ErrWrite, err) }
func UploadError(op string, err error) error { return newOpError(op, ErrUpload, err) }

func newOpError(op string, kind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}
