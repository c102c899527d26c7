package mapping

import (
	"strings"
)

// OuterJoinMarker suffixes a relationship token that should be joined with a
// left outer join
const OuterJoinMarker = "+"

// JoinType of a relationship path component
type JoinType int

// Join types
const (
	JoinInner JoinType = iota
	JoinLeftOuter
)

// PathComponent is one resolved token of a dotted path. Exactly one of
// Attribute and Relationship is set.
type PathComponent struct {
	Name         string
	Alias        string
	Attribute    Attribute
	Relationship Relationship
	JoinType     JoinType
}

// Token renders the component back as a path token, keeping the join marker
func (c PathComponent) Token() string {
	if c.JoinType == JoinLeftOuter {
		return c.Name + OuterJoinMarker
	}
	return c.Name
}

/*
resolvePath walks path from start. Tokens may carry the outer join marker or
name a split alias, which expands to the aliased relationship path. Attributes
end a path, so an attribute anywhere but last is an error. Crossing to-many
relationships is allowed here.
*/
func resolvePath(start Entity, path string, aliases map[string]string) ([]PathComponent, error) {
	if path == "" {
		return nil, NewPathError("empty path", start.Name(), path, "")
	}

	tokens := strings.Split(path, ".")
	comps := make([]PathComponent, 0, len(tokens))
	current := start

	for i, token := range tokens {
		name, joinType := splitMarker(token)
		if name == "" {
			return nil, NewPathError("empty path component", start.Name(), path, token)
		}
		if current == nil {
			prev := comps[len(comps)-1].Relationship
			return nil, NewPathError("target entity of relationship is not mapped", start.Name(), path, qualifiedName(prev))
		}

		if aliased, ok := aliases[name]; ok {
			for _, part := range strings.Split(aliased, ".") {
				if current == nil {
					return nil, NewPathError("target entity of aliased relationship is not mapped", start.Name(), path, name)
				}
				partName, partJoin := splitMarker(part)
				if joinType == JoinLeftOuter {
					partJoin = JoinLeftOuter
				}
				rel := current.Relationship(partName)
				if rel == nil {
					return nil, NewPathError("alias does not resolve to a relationship", start.Name(), path, name)
				}
				comps = append(comps, PathComponent{Name: partName, Alias: name, Relationship: rel, JoinType: partJoin})
				current = rel.TargetEntity()
			}
			continue
		}

		if attr := current.Attribute(name); attr != nil {
			if i != len(tokens)-1 {
				return nil, NewPathError("attribute is not the last path component", start.Name(), path, token)
			}
			comps = append(comps, PathComponent{Name: name, Attribute: attr, JoinType: joinType})
			continue
		}

		if rel := current.Relationship(name); rel != nil {
			comps = append(comps, PathComponent{Name: name, Relationship: rel, JoinType: joinType})
			current = rel.TargetEntity()
			continue
		}

		return nil, NewPathError("can't resolve path component", start.Name(), path, token)
	}

	return comps, nil
}

// LastRelationship returns the last relationship of resolved components
func LastRelationship(comps []PathComponent) Relationship {
	for i := len(comps) - 1; i >= 0; i-- {
		if comps[i].Relationship != nil {
			return comps[i].Relationship
		}
	}
	return nil
}

// StripOuterJoinMarkers removes every outer join marker of a path
func StripOuterJoinMarkers(path string) string {
	return strings.ReplaceAll(path, OuterJoinMarker, "")
}

func splitMarker(token string) (string, JoinType) {
	if strings.HasSuffix(token, OuterJoinMarker) {
		return strings.TrimSuffix(token, OuterJoinMarker), JoinLeftOuter
	}
	return token, JoinInner
}
