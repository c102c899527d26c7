package exp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// grammarExpr parses: and-group ( or and-group )*
type grammarExpr struct {
	Or []*grammarAnd `parser:"@@ ( 'or' @@ )*"`
}

// grammarAnd parses: unary ( and unary )*
type grammarAnd struct {
	And []*grammarUnary `parser:"@@ ( 'and' @@ )*"`
}

// grammarUnary is a negation, a parenthesized group or a comparison
type grammarUnary struct {
	Not   *grammarUnary      `parser:"  'not' @@"`
	Group *grammarExpr       `parser:"| '(' @@ ')'"`
	Cmp   *grammarComparison `parser:"| @@"`
}

// grammarComparison parses: operand [tail]
type grammarComparison struct {
	Left *grammarOperand `parser:"@@"`
	Tail *grammarTail    `parser:"@@?"`
}

type grammarTail struct {
	Binary  *grammarBinary  `parser:"  @@"`
	Like    *grammarLike    `parser:"| @@"`
	In      *grammarIn      `parser:"| @@"`
	Between *grammarBetween `parser:"| @@"`
}

type grammarBinary struct {
	Op    string          `parser:"@Operator"`
	Right *grammarOperand `parser:"@@"`
}

type grammarLike struct {
	IgnoreCase bool            `parser:"( 'like' | @'likeIgnoreCase' )"`
	Pattern    *grammarOperand `parser:"@@"`
}

type grammarIn struct {
	Values []*grammarOperand `parser:"'in' '(' @@ ( ',' @@ )* ')'"`
}

type grammarBetween struct {
	Lower *grammarOperand `parser:"'between' @@"`
	Upper *grammarOperand `parser:"'and' @@"`
}

type grammarOperand struct {
	Null   bool    `parser:"  @'null'"`
	True   bool    `parser:"| @'true'"`
	False  bool    `parser:"| @'false'"`
	DbPath *string `parser:"| @DbPath"`
	Param  *string `parser:"| @Param"`
	String *string `parser:"| @String"`
	Number *string `parser:"| @Number"`
	Path   *string `parser:"| @Ident"`
}

var qualifierLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "DbPath", Pattern: `db:[A-Za-z_]\w*\+?(\.[A-Za-z_]\w*\+?)*`},
	{Name: "String", Pattern: `'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Param", Pattern: `\$[A-Za-z_]\w*`},
	{Name: "Operator", Pattern: `!=|<>|<=|>=|=|<|>`},
	{Name: "Keyword", Pattern: `\b(?i:and|or|not|likeignorecase|like|in|between|null|true|false)\b`},
	{Name: "Ident", Pattern: `[A-Za-z_]\w*\+?(?:\.[A-Za-z_]\w*\+?)*`},
	{Name: "Punct", Pattern: `[(),]`},
})

var qualifierParser = participle.MustBuild[grammarExpr](
	participle.Lexer(qualifierLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(2),
)

var operatorKinds = map[string]Kind{
	"=":  KindEqual,
	"!=": KindNotEqual,
	"<>": KindNotEqual,
	"<":  KindLess,
	"<=": KindLessOrEqual,
	">":  KindGreater,
	">=": KindGreaterOrEqual,
}

/*
Parse reads the textual qualifier form, for example

	paintings.gallery.name = 'Louvre' and db:ESTIMATED_PRICE > 1000
	artistName likeIgnoreCase 'pic%' or (dateOfBirth between $from and $to)
	paintings+.paintingTitle in ('A', 'B')
*/
func Parse(text string) (*Expression, error) {
	ast, err := qualifierParser.ParseString("", text)
	if err != nil {
		return nil, fmt.Errorf("parse qualifier %q: %w", text, err)
	}
	return ast.convert()
}

// MustParse is Parse for expressions known at compile time
func MustParse(text string) *Expression {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

func (g *grammarExpr) convert() (*Expression, error) {
	ops := make([]*Expression, 0, len(g.Or))
	for _, a := range g.Or {
		e, err := a.convert()
		if err != nil {
			return nil, err
		}
		ops = append(ops, e)
	}
	return Or(ops...), nil
}

func (g *grammarAnd) convert() (*Expression, error) {
	ops := make([]*Expression, 0, len(g.And))
	for _, u := range g.And {
		e, err := u.convert()
		if err != nil {
			return nil, err
		}
		ops = append(ops, e)
	}
	return And(ops...), nil
}

func (g *grammarUnary) convert() (*Expression, error) {
	switch {
	case g.Not != nil:
		e, err := g.Not.convert()
		if err != nil {
			return nil, err
		}
		return Not(e), nil
	case g.Group != nil:
		return g.Group.convert()
	}
	return g.Cmp.convert()
}

func (g *grammarComparison) convert() (*Expression, error) {
	left, err := g.Left.convert()
	if err != nil {
		return nil, err
	}
	if g.Tail == nil {
		if left.Kind == KindScalar {
			if b, ok := left.Value.(bool); ok {
				if b {
					return True(), nil
				}
				return False(), nil
			}
		}
		return nil, fmt.Errorf("%s is not a condition", left)
	}

	t := g.Tail
	switch {
	case t.Binary != nil:
		right, err := t.Binary.Right.convert()
		if err != nil {
			return nil, err
		}
		return Binary(operatorKinds[t.Binary.Op], left, right), nil
	case t.Like != nil:
		pattern, err := t.Like.Pattern.convert()
		if err != nil {
			return nil, err
		}
		if t.Like.IgnoreCase {
			return LikeIgnoreCase(left, pattern), nil
		}
		return Like(left, pattern), nil
	case t.In != nil:
		list := &Expression{Kind: KindList}
		for _, v := range t.In.Values {
			e, err := v.convert()
			if err != nil {
				return nil, err
			}
			list.Operands = append(list.Operands, e)
		}
		return Binary(KindIn, left, list), nil
	}
	lower, err := t.Between.Lower.convert()
	if err != nil {
		return nil, err
	}
	upper, err := t.Between.Upper.convert()
	if err != nil {
		return nil, err
	}
	return Between(left, lower, upper), nil
}

func (g *grammarOperand) convert() (*Expression, error) {
	switch {
	case g.Null:
		return Scalar(nil), nil
	case g.True:
		return Scalar(true), nil
	case g.False:
		return Scalar(false), nil
	case g.DbPath != nil:
		return DbPath(strings.TrimPrefix(*g.DbPath, "db:")), nil
	case g.Param != nil:
		return Param(strings.TrimPrefix(*g.Param, "$")), nil
	case g.String != nil:
		s, err := unquote(*g.String)
		if err != nil {
			return nil, err
		}
		return Scalar(s), nil
	case g.Number != nil:
		if strings.Contains(*g.Number, ".") {
			f, err := strconv.ParseFloat(*g.Number, 64)
			if err != nil {
				return nil, err
			}
			return Scalar(f), nil
		}
		i, err := strconv.ParseInt(*g.Number, 10, 64)
		if err != nil {
			return nil, err
		}
		return Scalar(i), nil
	}
	return Path(*g.Path), nil
}

func unquote(token string) (string, error) {
	quote := token[0]
	body := token[1 : len(token)-1]
	var b strings.Builder
	for body != "" {
		r, _, tail, err := strconv.UnquoteChar(body, quote)
		if err != nil {
			return "", fmt.Errorf("bad string literal %s: %w", token, err)
		}
		b.WriteRune(r)
		body = tail
	}
	return b.String(), nil
}
