package query

import (
	"fmt"
)

// Error is a type of error that query resolution will return
type Error string

func (err Error) Error() string {
	return string(err)
}

const (
	// ErrUnrecognizedEntity is wrapped when a query root can't be found
	ErrUnrecognizedEntity Error = "unrecognized entity"
	// ErrUndefinedRoot is wrapped when a query has no root and no engine name
	ErrUndefinedRoot Error = "undefined root"
	// ErrAliasConflict is wrapped when one split alias names two paths
	ErrAliasConflict Error = "alias is bound to more than one path"
	// ErrNoEngine is wrapped when a router has no engine for a query
	ErrNoEngine Error = "no engine for query"
	// ErrStructural classifies queries built with unsupported parts
	ErrStructural Error = "structural error"
)

// StructuralError is returned when a query is given parts its type doesn't
// support, like disjoint prefetches on raw SQL
type StructuralError struct {
	Query  string
	Reason string
}

/*
NewStructuralError returns a new StructuralError, populated with a description
of the query and what is wrong with it
*/
func NewStructuralError(query, format string, args ...interface{}) *StructuralError {
	return &StructuralError{
		Query:  query,
		Reason: fmt.Sprintf(format, args...),
	}
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrStructural, e.Query, e.Reason)
}

// Is matches ErrStructural
func (e *StructuralError) Is(target error) bool {
	return target == ErrStructural
}
