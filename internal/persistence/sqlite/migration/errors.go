package migration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMigrationFailed      = errors.New("migration failed")
	ErrInvalidMigrationFile = errors.New("invalid migration file")
	ErrChecksumMismatch     = errors.New("applied migration was modified")
	ErrInvalidVersion       = errors.New("invalid migration version")
	ErrDuplicateVersion     = errors.New("duplicate migration version")
	// ErrVersionConflict covers gaps in the file sequence and applied
	// versions that no longer have a file.
	ErrVersionConflict = errors.New("migration version conflict")
)

// Source tells which side of a migration run an Error came from.
type Source string

const (
	SourceFile     Source = "file"
	SourceDatabase Source = "database"
)

// Error carries the version, path and step that failed. Version and Path are
// empty when the step is not tied to a single migration.
type Error struct {
	Source  Source
	Version string
	Path    string
	Step    string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Source))
	if e.Version != "" {
		fmt.Fprintf(&b, " migration %s", e.Version)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " [%s]", e.Path)
	}
	fmt.Fprintf(&b, ": %s: %v", e.Step, e.Err)
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func fileError(version, path, step string, err error) *Error {
	return &Error{Source: SourceFile, Version: version, Path: path, Step: step, Err: err}
}

func databaseError(version, step string, err error) *Error {
	return &Error{Source: SourceDatabase, Version: version, Step: step, Err: err}
}
