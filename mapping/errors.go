package mapping

import (
	"errors"
	"fmt"
)

// Error is a type of error that the mapping layer will return
type Error string

func (err Error) Error() string {
	return string(err)
}

const (
	// ErrConfiguration classifies broken or ambiguous mapping and query setup
	ErrConfiguration Error = "configuration error"
	// ErrPath classifies path resolution and translation failures
	ErrPath Error = "path error"
	// ErrPrimaryKey classifies primary key failures
	ErrPrimaryKey Error = "primary key error"
	// ErrNoReverseRelationship is wrapped by a PathError when a hop can't be reversed
	ErrNoReverseRelationship Error = "unable to find reverse relationship"
)

// ConfigError describes a mapping or query configuration problem
type ConfigError struct {
	Err  error
	Name string
}

/*
NewConfigError returns a new ConfigError, populated with the name of the
entity, map, alias or query that is misconfigured
*/
func NewConfigError(name, format string, args ...interface{}) *ConfigError {
	return &ConfigError{
		Err:  fmt.Errorf(format, args...),
		Name: name,
	}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: '%s': %s", ErrConfiguration, e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is matches ErrConfiguration
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// PathError has extra information about which path token failed to resolve
type PathError struct {
	Err    error
	Entity string
	Path   string
	Token  string
}

/*
NewPathError returns a new PathError object, populated with the entity the
path was resolved from, the full path and the offending token
*/
func NewPathError(reason, entity, path, token string) *PathError {
	return &PathError{
		Err:    errors.New(reason),
		Entity: entity,
		Path:   path,
		Token:  token,
	}
}

func newReverseError(entity, path string, rel Relationship) *PathError {
	return &PathError{
		Err:    ErrNoReverseRelationship,
		Entity: entity,
		Path:   path,
		Token:  qualifiedName(rel),
	}
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: Entity '%s', Path '%s', Token '%s'", e.Err, e.Entity, e.Path, e.Token)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Is matches ErrPath
func (e *PathError) Is(target error) bool {
	return target == ErrPath
}

// PrimaryKeyError holds the entity and key attribute that failed
type PrimaryKeyError struct {
	Err       error
	Entity    string
	Attribute string
	ObjectID  string
}

/*
NewPrimaryKeyError returns a new PrimaryKeyError object, populated with the
entity and attribute of the failing key
*/
func NewPrimaryKeyError(reason, entity, attribute string) *PrimaryKeyError {
	return &PrimaryKeyError{
		Err:       errors.New(reason),
		Entity:    entity,
		Attribute: attribute,
	}
}

func (e *PrimaryKeyError) Error() string {
	msg := fmt.Sprintf("%s: %s.%s", e.Err, e.Entity, e.Attribute)
	if e.ObjectID != "" {
		msg += fmt.Sprintf(", Object '%s'", e.ObjectID)
	}
	return msg
}

func (e *PrimaryKeyError) Unwrap() error {
	return e.Err
}

// Is matches ErrPrimaryKey
func (e *PrimaryKeyError) Is(target error) bool {
	return target == ErrPrimaryKey
}

func qualifiedName(rel Relationship) string {
	if rel == nil {
		return ""
	}
	if src := rel.SourceEntity(); src != nil {
		return src.Name() + "." + rel.Name()
	}
	return rel.Name()
}
