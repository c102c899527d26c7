package sqlengine

import (
	"fmt"
)

// Error is a type of error that sql translation and execution will return
type Error string

func (err Error) Error() string {
	return string(err)
}

const (
	// ErrUnsupported is wrapped when a query or expression has no sql form
	ErrUnsupported Error = "unsupported by sql engine"
	// ErrUnboundParameter is wrapped when a qualifier still holds a parameter
	ErrUnboundParameter Error = "unbound parameter"
	// ErrQuery classifies statements the database rejected
	ErrQuery Error = "query failed"
)

// QueryError carries the statement that failed along with the driver error
type QueryError struct {
	Engine string
	SQL    string
	Err    error
}

// NewQueryError wraps err with the engine name and statement that failed
func NewQueryError(engine, sql string, err error) *QueryError {
	return &QueryError{
		Engine: engine,
		SQL:    sql,
		Err:    err,
	}
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: engine '%s': %s: %s", ErrQuery, e.Engine, e.Err, e.SQL)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is matches ErrQuery
func (e *QueryError) Is(target error) bool {
	return target == ErrQuery
}

func unsupported(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}
