package mapping

import (
	"errors"
	"strings"

	"github.com/skuid/graphmap/exp"
)

type reverseFunc func(rel Relationship) Relationship

func reverseDb(rel Relationship) Relationship {
	if db, ok := rel.(*DbRelationship); ok {
		if rev := db.ReverseRelationship(); rev != nil {
			return rev
		}
	}
	return nil
}

func reverseObj(rel Relationship) Relationship {
	if obj, ok := rel.(*ObjRelationship); ok {
		if rev := obj.ReverseRelationship(); rev != nil {
			return rev
		}
	}
	return nil
}

/*
translateRelative rewrites path, rooted at root, so that it is rooted at the
entity reached by following relPath from root.

  - path equal to relPath: one step back through the reverse of the last hop,
    then forward again over the same hop, so the join is still expressed
  - path starting with relPath: the remaining suffix
  - anything else: tokens are matched while both paths agree, the rest of
    relPath is walked back through reverse relationships and the rest of path
    is appended

A hop without a reverse relationship fails with ErrNoReverseRelationship.
*/
func translateRelative(root Entity, path, relPath string, aliases map[string]string, reverse reverseFunc) (string, error) {
	if relPath == "" {
		return path, nil
	}
	pathTokens := strings.Split(path, ".")
	relTokens := strings.Split(relPath, ".")

	if tokensEqual(pathTokens, relTokens) {
		comps, err := root.ResolvePath(relPath, nil)
		if err != nil {
			return "", err
		}
		last := comps[len(comps)-1].Relationship
		if last == nil {
			return "", NewPathError("relationship path must end with a relationship", root.Name(), relPath, relTokens[len(relTokens)-1])
		}
		rev := reverse(last)
		if rev == nil {
			return "", newReverseError(root.Name(), relPath, last)
		}
		return rev.Name() + "." + relTokens[len(relTokens)-1], nil
	}

	if len(pathTokens) > len(relTokens) && tokensEqual(pathTokens[:len(relTokens)], relTokens) {
		return strings.Join(pathTokens[len(relTokens):], "."), nil
	}

	relComps, err := root.ResolvePath(relPath, nil)
	if err != nil {
		return "", err
	}
	pathComps, err := root.ResolvePath(path, aliases)
	if err != nil {
		return "", err
	}

	agree := 0
	for agree < len(relComps) && agree < len(pathComps) {
		r, p := relComps[agree], pathComps[agree]
		if r.Relationship == nil || p.Relationship == nil || r.Name != p.Name {
			break
		}
		agree++
	}

	tokens := make([]string, 0, len(relComps)-agree+len(pathComps)-agree)
	for i := len(relComps) - 1; i >= agree; i-- {
		hop := relComps[i].Relationship
		if hop == nil {
			return "", NewPathError("relationship path must end with a relationship", root.Name(), relPath, relComps[i].Name)
		}
		rev := reverse(hop)
		if rev == nil {
			return "", newReverseError(root.Name(), relPath, hop)
		}
		tokens = append(tokens, rev.Name())
	}
	tokens = append(tokens, componentTokens(pathComps[agree:], splitsAliasRun(pathComps, agree))...)
	return strings.Join(tokens, "."), nil
}

// componentTokens renders components back to path tokens, collapsing a run
// of components expanded from one alias into the alias itself. When the
// first run was cut by the caller it is rendered with explicit names.
func componentTokens(comps []PathComponent, cut bool) []string {
	tokens := make([]string, 0, len(comps))
	for i, c := range comps {
		sameRun := i > 0 && c.Alias != "" && comps[i-1].Alias == c.Alias
		if cut && c.Alias != "" && (i == 0 || sameRun) {
			tokens = append(tokens, c.Token())
			continue
		}
		cut = false
		switch {
		case c.Alias == "":
			tokens = append(tokens, c.Token())
		case !sameRun:
			tokens = append(tokens, c.Alias)
		}
	}
	return tokens
}

func splitsAliasRun(comps []PathComponent, at int) bool {
	if at <= 0 || at >= len(comps) {
		return false
	}
	return comps[at].Alias != "" && comps[at-1].Alias == comps[at].Alias
}

func tokensEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if StripOuterJoinMarkers(a[i]) != StripOuterJoinMarkers(b[i]) {
			return false
		}
	}
	return true
}

// TranslatePathToRelatedEntity rewrites a db path rooted here so it is rooted
// at the table reached through relPath
func (e *DbEntity) TranslatePathToRelatedEntity(path, relPath string) (string, error) {
	return translateRelative(e, path, relPath, nil, reverseDb)
}

/*
TranslateToRelatedEntity rewrites every db path of expr so the expression can
be applied to the table reached through relPath. Object paths must be converted
with ObjEntity.TranslateToDbPath first.
*/
func (e *DbEntity) TranslateToRelatedEntity(expr *exp.Expression, relPath string) (*exp.Expression, error) {
	var failed error
	out := expr.Transform(func(n *exp.Expression) *exp.Expression {
		if failed != nil {
			return n
		}
		switch n.Kind {
		case exp.KindObjPath:
			failed = NewPathError("object path in a db expression", e.name, n.Path, n.Path)
		case exp.KindDbPath:
			p, err := translateRelative(e, n.Path, relPath, n.Aliases, reverseDb)
			if err != nil {
				failed = err
				return n
			}
			n.Path = p
		}
		return n
	})
	if failed != nil {
		return nil, failed
	}
	return out, nil
}

// TranslatePathToDbPath converts an object path into the db path it maps to
func (e *ObjEntity) TranslatePathToDbPath(path string) (string, error) {
	p, _, err := e.translateToDbPath(path, nil)
	return p, err
}

func (e *ObjEntity) translateToDbPath(path string, aliases map[string]string) (string, map[string]string, error) {
	comps, err := e.ResolvePath(path, aliases)
	if err != nil {
		return "", nil, err
	}

	var dbAliases map[string]string
	tokens := make([]string, 0, len(comps))
	for i, c := range comps {
		switch {
		case c.Attribute != nil:
			attr := c.Attribute.(*ObjAttribute)
			if attr.dbAttributePath == "" {
				return "", nil, NewPathError("attribute is not mapped to a column", e.name, path, c.Name)
			}
			tokens = append(tokens, attr.dbAttributePath)
		case c.Alias != "":
			hops := dbHops(c)
			if dbAliases == nil {
				dbAliases = make(map[string]string)
			}
			if i > 0 && comps[i-1].Alias == c.Alias {
				dbAliases[c.Alias] += "." + hops
				continue
			}
			dbAliases[c.Alias] = hops
			tokens = append(tokens, c.Alias)
		default:
			tokens = append(tokens, dbHops(c))
		}
	}
	return strings.Join(tokens, "."), dbAliases, nil
}

func dbHops(c PathComponent) string {
	rel := c.Relationship.(*ObjRelationship)
	hops := rel.DbRelationships()
	names := make([]string, 0, len(hops))
	for _, hop := range hops {
		if c.JoinType == JoinLeftOuter {
			names = append(names, hop.name+OuterJoinMarker)
			continue
		}
		names = append(names, hop.name)
	}
	return strings.Join(names, ".")
}

/*
TranslateToDbPath converts every object path of expr into a db path rooted at
this entity's table. Split aliases are carried over, pointing at the db hops
the aliased relationships map to.
*/
func (e *ObjEntity) TranslateToDbPath(expr *exp.Expression) (*exp.Expression, error) {
	var failed error
	out := expr.Transform(func(n *exp.Expression) *exp.Expression {
		if failed != nil || n.Kind != exp.KindObjPath {
			return n
		}
		p, aliases, err := e.translateToDbPath(n.Path, n.Aliases)
		if err != nil {
			failed = err
			return n
		}
		return &exp.Expression{Kind: exp.KindDbPath, Path: p, Aliases: aliases}
	})
	if failed != nil {
		return nil, failed
	}
	return out, nil
}

// TranslatePathToRelatedEntity rewrites an object path rooted here so it is
// rooted at the entity reached through relPath
func (e *ObjEntity) TranslatePathToRelatedEntity(path, relPath string) (string, error) {
	return translateRelative(e, path, relPath, nil, reverseObj)
}

/*
TranslateToRelatedEntity rewrites expr so it can be applied to the entity
reached through relPath. Object paths are translated between object
relationships. When one of them has no reverse, the path is converted to a db
path and translated between tables instead.
*/
func (e *ObjEntity) TranslateToRelatedEntity(expr *exp.Expression, relPath string) (*exp.Expression, error) {
	db := e.DbEntity()
	var failed error
	var dbRelPath string
	dbRel := func() (string, error) {
		if dbRelPath != "" {
			return dbRelPath, nil
		}
		p, err := e.TranslatePathToDbPath(relPath)
		dbRelPath = p
		return p, err
	}

	out := expr.Transform(func(n *exp.Expression) *exp.Expression {
		if failed != nil {
			return n
		}
		switch n.Kind {
		case exp.KindObjPath:
			p, err := translateRelative(e, n.Path, relPath, n.Aliases, reverseObj)
			if err == nil {
				n.Path = p
				return n
			}
			if !errors.Is(err, ErrNoReverseRelationship) {
				failed = err
				return n
			}
			dbPath, aliases, err := e.translateToDbPath(n.Path, n.Aliases)
			if err != nil {
				failed = err
				return n
			}
			return e.translateDbNode(db, &exp.Expression{Kind: exp.KindDbPath, Path: dbPath, Aliases: aliases}, dbRel, &failed)
		case exp.KindDbPath:
			return e.translateDbNode(db, n, dbRel, &failed)
		}
		return n
	})
	if failed != nil {
		return nil, failed
	}
	return out, nil
}

func (e *ObjEntity) translateDbNode(db *DbEntity, n *exp.Expression, dbRel func() (string, error), failed *error) *exp.Expression {
	if db == nil {
		*failed = NewPathError("entity has no table", e.name, n.Path, "")
		return n
	}
	rel, err := dbRel()
	if err != nil {
		*failed = err
		return n
	}
	p, err := translateRelative(db, n.Path, rel, n.Aliases, reverseDb)
	if err != nil {
		*failed = err
		return n
	}
	n.Path = p
	return n
}
