/*
Package exp holds the qualifier expression tree used by queries, orderings
and entity qualifiers. Expressions are plain values: every transformation
returns a new tree and leaves its input untouched.
*/
package exp

import (
	"fmt"
	"strings"
)

// Kind identifies the type of an expression node
type Kind int

// Expression kinds
const (
	KindAnd Kind = iota
	KindOr
	KindNot
	KindEqual
	KindNotEqual
	KindLess
	KindLessOrEqual
	KindGreater
	KindGreaterOrEqual
	KindLike
	KindLikeIgnoreCase
	KindIn
	KindBetween
	KindObjPath
	KindDbPath
	KindScalar
	KindList
	KindParam
	KindFullObject
	KindTrue
	KindFalse
)

var binaryOperators = map[Kind]string{
	KindEqual:          "=",
	KindNotEqual:       "!=",
	KindLess:           "<",
	KindLessOrEqual:    "<=",
	KindGreater:        ">",
	KindGreaterOrEqual: ">=",
	KindLike:           "like",
	KindLikeIgnoreCase: "likeIgnoreCase",
}

/*
Expression is a single node of a qualifier tree. Which fields are used depends
on Kind:

	And, Or, Not, comparisons: Operands
	ObjPath, DbPath: Path and optional split Aliases (alias -> relationship path)
	Param: Path holds the parameter name
	Scalar: Value
	List: Operands, each a Scalar
	FullObject: optional single ObjPath operand, none for the query root
*/
type Expression struct {
	Kind     Kind
	Operands []*Expression
	Path     string
	Value    interface{}
	Aliases  map[string]string
}

// Path returns an object path expression
func Path(path string) *Expression {
	return &Expression{Kind: KindObjPath, Path: path}
}

// AliasedPath returns an object path whose tokens may name split aliases
func AliasedPath(path string, aliases map[string]string) *Expression {
	return &Expression{Kind: KindObjPath, Path: path, Aliases: copyAliases(aliases)}
}

// DbPath returns a database path expression
func DbPath(path string) *Expression {
	return &Expression{Kind: KindDbPath, Path: path}
}

// Scalar wraps a literal value
func Scalar(value interface{}) *Expression {
	return &Expression{Kind: KindScalar, Value: value}
}

// List wraps a list of literal values
func List(values ...interface{}) *Expression {
	ops := make([]*Expression, 0, len(values))
	for _, v := range values {
		ops = append(ops, Scalar(v))
	}
	return &Expression{Kind: KindList, Operands: ops}
}

// Param is a named parameter, bound later with Params
func Param(name string) *Expression {
	return &Expression{Kind: KindParam, Path: name}
}

// FullObject marks a column that materializes a whole object. A nil path
// stands for the query root.
func FullObject(path *Expression) *Expression {
	e := &Expression{Kind: KindFullObject}
	if path != nil {
		e.Operands = []*Expression{path}
	}
	return e
}

// True matches everything
func True() *Expression {
	return &Expression{Kind: KindTrue}
}

// False matches nothing
func False() *Expression {
	return &Expression{Kind: KindFalse}
}

// Binary builds a two operand comparison of the given kind
func Binary(kind Kind, left, right *Expression) *Expression {
	return &Expression{Kind: kind, Operands: []*Expression{left, right}}
}

// Eq is left = right
func Eq(left, right *Expression) *Expression { return Binary(KindEqual, left, right) }

// NotEq is left != right
func NotEq(left, right *Expression) *Expression { return Binary(KindNotEqual, left, right) }

// Lt is left < right
func Lt(left, right *Expression) *Expression { return Binary(KindLess, left, right) }

// LtOrEq is left <= right
func LtOrEq(left, right *Expression) *Expression { return Binary(KindLessOrEqual, left, right) }

// Gt is left > right
func Gt(left, right *Expression) *Expression { return Binary(KindGreater, left, right) }

// GtOrEq is left >= right
func GtOrEq(left, right *Expression) *Expression { return Binary(KindGreaterOrEqual, left, right) }

// Like is a case sensitive pattern match
func Like(left, pattern *Expression) *Expression { return Binary(KindLike, left, pattern) }

// LikeIgnoreCase is a case insensitive pattern match
func LikeIgnoreCase(left, pattern *Expression) *Expression {
	return Binary(KindLikeIgnoreCase, left, pattern)
}

// In matches left against a list of values
func In(left *Expression, values ...interface{}) *Expression {
	return Binary(KindIn, left, List(values...))
}

// Between matches lower <= left <= upper
func Between(left, lower, upper *Expression) *Expression {
	return &Expression{Kind: KindBetween, Operands: []*Expression{left, lower, upper}}
}

// Match is the common path = value shortcut
func Match(path string, value interface{}) *Expression {
	return Eq(Path(path), Scalar(value))
}

// MatchDb is the db path = value shortcut
func MatchDb(path string, value interface{}) *Expression {
	return Eq(DbPath(path), Scalar(value))
}

// And joins the non-nil operands. Nested ands are flattened. It returns nil
// when nothing is left and the operand itself when only one is left.
func And(ops ...*Expression) *Expression {
	return junction(KindAnd, ops)
}

// Or joins the non-nil operands, flattening nested ors
func Or(ops ...*Expression) *Expression {
	return junction(KindOr, ops)
}

// Not negates e
func Not(e *Expression) *Expression {
	if e == nil {
		return nil
	}
	return &Expression{Kind: KindNot, Operands: []*Expression{e}}
}

func junction(kind Kind, ops []*Expression) *Expression {
	flat := make([]*Expression, 0, len(ops))
	for _, op := range ops {
		if op == nil {
			continue
		}
		if op.Kind == kind {
			flat = append(flat, op.Operands...)
			continue
		}
		flat = append(flat, op)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &Expression{Kind: kind, Operands: flat}
}

// IsPath reports whether e is an object or database path
func (e *Expression) IsPath() bool {
	return e != nil && (e.Kind == KindObjPath || e.Kind == KindDbPath)
}

// IsCondition reports whether e evaluates to a boolean
func (e *Expression) IsCondition() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindObjPath, KindDbPath, KindScalar, KindList, KindParam, KindFullObject:
		return false
	}
	return true
}

// Copy returns a deep copy of e
func (e *Expression) Copy() *Expression {
	if e == nil {
		return nil
	}
	c := *e
	c.Aliases = copyAliases(e.Aliases)
	if e.Operands != nil {
		c.Operands = make([]*Expression, len(e.Operands))
		for i, op := range e.Operands {
			c.Operands[i] = op.Copy()
		}
	}
	return &c
}

/*
Transform rebuilds the tree bottom-up, passing every rebuilt node to fn. When fn
returns nil for an operand of an and/or node, the operand is dropped. Any other
node that loses an operand is dropped as well.
*/
func (e *Expression) Transform(fn func(*Expression) *Expression) *Expression {
	if e == nil {
		return nil
	}
	c := *e
	c.Aliases = copyAliases(e.Aliases)
	if e.Operands != nil {
		c.Operands = make([]*Expression, 0, len(e.Operands))
		for _, op := range e.Operands {
			t := op.Transform(fn)
			if t == nil {
				if e.Kind == KindAnd || e.Kind == KindOr {
					continue
				}
				return nil
			}
			c.Operands = append(c.Operands, t)
		}
		if (e.Kind == KindAnd || e.Kind == KindOr) && len(c.Operands) == 0 {
			return nil
		}
	}
	return fn(&c)
}

// Walk visits e and its operands depth first. Returning false from fn skips
// the operands of that node.
func (e *Expression) Walk(fn func(*Expression) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, op := range e.Operands {
		op.Walk(fn)
	}
}

/*
Params binds named parameters. A parameter missing from values either prunes
the condition that uses it (prune == true) or fails.
*/
func (e *Expression) Params(values map[string]interface{}, prune bool) (*Expression, error) {
	var missing []string
	out := e.Transform(func(n *Expression) *Expression {
		if n.Kind != KindParam {
			return n
		}
		v, ok := values[n.Path]
		if ok {
			return Scalar(v)
		}
		if prune {
			return nil
		}
		missing = append(missing, n.Path)
		return n
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// ValueFormatter renders a scalar value while formatting an expression
type ValueFormatter func(value interface{}) string

// String renders e in the textual form accepted by Parse
func (e *Expression) String() string {
	var b strings.Builder
	e.Format(&b, QuoteValue)
	return b.String()
}

// Format writes e to b, rendering scalar values with value
func (e *Expression) Format(b *strings.Builder, value ValueFormatter) {
	if e == nil {
		b.WriteString("null")
		return
	}
	switch e.Kind {
	case KindAnd, KindOr:
		sep := " and "
		if e.Kind == KindOr {
			sep = " or "
		}
		for i, op := range e.Operands {
			if i > 0 {
				b.WriteString(sep)
			}
			if op.Kind == KindOr || (op.Kind == KindAnd && e.Kind == KindOr) {
				b.WriteString("(")
				op.Format(b, value)
				b.WriteString(")")
				continue
			}
			op.Format(b, value)
		}
	case KindNot:
		b.WriteString("not (")
		e.Operands[0].Format(b, value)
		b.WriteString(")")
	case KindIn:
		e.Operands[0].Format(b, value)
		b.WriteString(" in ")
		e.Operands[1].Format(b, value)
	case KindBetween:
		e.Operands[0].Format(b, value)
		b.WriteString(" between ")
		e.Operands[1].Format(b, value)
		b.WriteString(" and ")
		e.Operands[2].Format(b, value)
	case KindObjPath:
		b.WriteString(e.Path)
	case KindDbPath:
		b.WriteString("db:")
		b.WriteString(e.Path)
	case KindScalar:
		b.WriteString(value(e.Value))
	case KindList:
		b.WriteString("(")
		for i, op := range e.Operands {
			if i > 0 {
				b.WriteString(", ")
			}
			op.Format(b, value)
		}
		b.WriteString(")")
	case KindParam:
		b.WriteString("$")
		b.WriteString(e.Path)
	case KindFullObject:
		b.WriteString("obj:")
		if len(e.Operands) > 0 {
			e.Operands[0].Format(b, value)
		}
	case KindTrue:
		b.WriteString("true")
	case KindFalse:
		b.WriteString("false")
	default:
		op, ok := binaryOperators[e.Kind]
		if !ok || len(e.Operands) != 2 {
			fmt.Fprintf(b, "<invalid kind %d>", e.Kind)
			return
		}
		e.Operands[0].Format(b, value)
		b.WriteString(" ")
		b.WriteString(op)
		b.WriteString(" ")
		e.Operands[1].Format(b, value)
	}
}

// QuoteValue is the default scalar formatter: strings are single quoted,
// nil is null and everything else uses its natural form.
func QuoteValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
	}
	return fmt.Sprint(value)
}

func copyAliases(aliases map[string]string) map[string]string {
	if len(aliases) == 0 {
		return nil
	}
	c := make(map[string]string, len(aliases))
	for k, v := range aliases {
		c[k] = v
	}
	return c
}
