package graphmap

import (
	"errors"
	"fmt"
)

// Error is a type of error that the runtime will return
type Error string

func (err Error) Error() string {
	return string(err)
}

const (
	// ErrUnknownEngine is returned when a route names an engine the runtime
	// doesn't run
	ErrUnknownEngine Error = "unknown engine"
	// ErrCrossEngineCommit is wrapped when one commit touches tables of more
	// than one engine
	ErrCrossEngineCommit Error = "commit spans engines"
)

// CommitError has extra information about which batch of a commit failed
type CommitError struct {
	Err    error
	Engine string
	Table  string
	Kind   string
}

/*
NewCommitError returns a new CommitError object, populated with
extra information about which batch failed
*/
func NewCommitError(err error, engine, table, kind string) *CommitError {
	return &CommitError{
		Err:    err,
		Engine: engine,
		Table:  table,
		Kind:   kind,
	}
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s: Engine '%s', %s of Table '%s'", e.Err, e.Engine, e.Kind, e.Table)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

func newCrossEngineError(first, other string) error {
	return fmt.Errorf("%w: %s and %s", ErrCrossEngineCommit, first, other)
}

// IsCrossEngineCommit reports whether err was caused by a commit spanning engines
func IsCrossEngineCommit(err error) bool {
	return errors.Is(err, ErrCrossEngineCommit)
}
