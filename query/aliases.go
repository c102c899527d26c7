package query

import (
	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/mapping"
)

// SplitAliases maps each split alias of a query to the relationship path it
// stands for
type SplitAliases map[string]string

// Add binds alias to path. Binding an alias to the path it already has is a
// no-op, binding it to another path is a configuration error.
func (a SplitAliases) Add(alias, path string) error {
	if existing, ok := a[alias]; ok {
		if existing == path {
			return nil
		}
		return mapping.NewConfigError(alias, "%w: '%s' and '%s'", ErrAliasConflict, existing, path)
	}
	a[alias] = path
	return nil
}

// Collect adds the aliases declared by every path of expr
func (a SplitAliases) Collect(expr *exp.Expression) error {
	var failed error
	expr.Walk(func(n *exp.Expression) bool {
		if failed != nil {
			return false
		}
		if n.IsPath() {
			for alias, path := range n.Aliases {
				if err := a.Add(alias, path); err != nil {
					failed = err
					return false
				}
			}
		}
		return true
	})
	return failed
}

// resolveAliases gathers the split aliases of the qualifier, having, orderings
// and columns of a query
func resolveAliases(where, having *exp.Expression, orderings []Ordering, columns []Property) (SplitAliases, error) {
	aliases := SplitAliases{}
	exprs := []*exp.Expression{where, having}
	for _, o := range orderings {
		exprs = append(exprs, o.Expression)
	}
	for _, c := range columns {
		exprs = append(exprs, c.Expression)
	}
	for _, e := range exprs {
		if err := aliases.Collect(e); err != nil {
			return nil, err
		}
	}
	if len(aliases) == 0 {
		return nil, nil
	}
	return aliases, nil
}
