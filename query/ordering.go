package query

import (
	"github.com/skuid/graphmap/exp"
)

// Ordering is one sort spec of a query
type Ordering struct {
	Expression      *exp.Expression
	Descending      bool
	CaseInsensitive bool
}

// Asc sorts ascending by an object path
func Asc(path string) Ordering {
	return Ordering{Expression: exp.Path(path)}
}

// Desc sorts descending by an object path
func Desc(path string) Ordering {
	return Ordering{Expression: exp.Path(path), Descending: true}
}

// AscInsensitive sorts ascending, ignoring case
func AscInsensitive(path string) Ordering {
	return Ordering{Expression: exp.Path(path), CaseInsensitive: true}
}

// DescInsensitive sorts descending, ignoring case
func DescInsensitive(path string) Ordering {
	return Ordering{Expression: exp.Path(path), Descending: true, CaseInsensitive: true}
}

func (o Ordering) String() string {
	s := o.Expression.String()
	if o.Descending {
		s += ":d"
	}
	if o.CaseInsensitive {
		s += ":i"
	}
	return s
}
