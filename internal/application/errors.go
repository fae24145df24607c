package application

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrUnauthorized is returned when the caller is not an active admin.
	ErrUnauthorized = errors.New("application: unauthorized")
	ErrNotFound     = errors.New("application: not found")
	// ErrNotRegistered is returned for participant operations on an unknown username.
	ErrNotRegistered = errors.New("application: participant not registered")
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidPassphrase is returned when the admin passphrase does not verify.
	ErrInvalidPassphrase = errors.New("application: invalid passphrase")
)

// ValidationError maps input fields to the message shown to the user.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field was rejected.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Summary joins the messages sorted by field name.
func (v *ValidationError) Summary() string {
	if !v.HasErrors() {
		return ""
	}
	var b strings.Builder
	for i, field := range slices.Sorted(maps.Keys(v.FieldErrors)) {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(v.FieldErrors[field])
	}
	return b.String()
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func (v *ValidationError) merge(other *ValidationError) {
	if !other.HasErrors() {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
