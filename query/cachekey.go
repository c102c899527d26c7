package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/identity"
	"github.com/skuid/graphmap/mapping"
)

// Enum is implemented by enumerated values, which cache keys render by type
// and ordinal instead of by name
type Enum interface {
	EnumType() string
	Ordinal() int
}

// keyValue renders scalar values inside cache keys
type keyValue struct {
	types *mapping.ValueTypeRegistry
}

func (k keyValue) format(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case *identity.ObjectID:
		return v.String()
	case identity.Persistent:
		if id := v.ObjectID(); id != nil && !id.IsTemporary() {
			return id.String()
		}
		return fmt.Sprint(value)
	case Enum:
		return fmt.Sprintf("e:%s:%d", v.EnumType(), v.Ordinal())
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = k.format(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	}

	if fn, ok := k.types.Serializer(value); ok {
		return fn(value)
	}
	return fmt.Sprint(value)
}

func (k keyValue) expression(b *strings.Builder, e *exp.Expression) {
	e.Transform(keyPath).Format(b, k.format)
}

// keyPath folds the split aliases of a path into its text, sorted by alias,
// so the same alias bound to different relationships gives different keys
func keyPath(e *exp.Expression) *exp.Expression {
	if len(e.Aliases) == 0 || (e.Kind != exp.KindObjPath && e.Kind != exp.KindDbPath) {
		return e
	}
	names := make([]string, 0, len(e.Aliases))
	for name := range e.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(e.Path)
	b.WriteString("{")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(e.Aliases[name])
	}
	b.WriteString("}")
	e.Path = b.String()
	e.Aliases = nil
	return e
}

/*
cacheKey fingerprints a select query. The parts are written in a fixed order
so equal queries always produce equal keys:

	root name, "/c:" per column, "/" where, "/" per ordering, "/" having,
	"/o" offset, "/l" limit, then one "/p?:" entry per prefetch
*/
func cacheKey(q *SelectQuery, md *Metadata, types *mapping.ValueTypeRegistry) string {
	k := keyValue{types: types}
	var b strings.Builder

	b.WriteString(rootKeyName(md))

	for _, c := range q.columns {
		b.WriteString("/c:")
		k.expression(&b, c.Expression)
	}
	if q.where != nil {
		b.WriteString("/")
		k.expression(&b, q.where)
	}
	for _, o := range q.orderings {
		b.WriteString("/")
		k.expression(&b, o.Expression)
		if o.Descending {
			b.WriteString(":d")
		}
		if o.CaseInsensitive {
			b.WriteString(":i")
		}
	}
	if q.having != nil {
		b.WriteString("/")
		k.expression(&b, q.having)
	}
	if q.offset > 0 {
		fmt.Fprintf(&b, "/o%d", q.offset)
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, "/l%d", q.limit)
	}
	if q.prefetches != nil {
		q.prefetches.Traverse(&prefetchKey{b: &b})
	}
	return b.String()
}

func rootKeyName(md *Metadata) string {
	switch {
	case md.ObjEntity != nil:
		return md.ObjEntity.Name()
	case md.DbEntity != nil:
		return "db:" + md.DbEntity.Name()
	case md.Procedure != nil:
		return "proc:" + md.Procedure.Name()
	case md.DataMap != nil:
		return "map:" + md.DataMap.Name()
	}
	return "engine:" + md.EngineName
}

// prefetchKey writes every real prefetch node with a semantics tag
type prefetchKey struct {
	b *strings.Builder
}

func (p *prefetchKey) write(tag string, node *PrefetchTreeNode) bool {
	p.b.WriteString("/p")
	p.b.WriteString(tag)
	p.b.WriteString(":")
	p.b.WriteString(node.Path())
	return true
}

func (p *prefetchKey) StartPhantom(node *PrefetchTreeNode) bool      { return true }
func (p *prefetchKey) StartDisjoint(node *PrefetchTreeNode) bool     { return p.write("d", node) }
func (p *prefetchKey) StartDisjointByID(node *PrefetchTreeNode) bool { return p.write("i", node) }
func (p *prefetchKey) StartJoint(node *PrefetchTreeNode) bool        { return p.write("j", node) }
func (p *prefetchKey) StartUnknown(node *PrefetchTreeNode) bool      { return p.write("u", node) }
func (p *prefetchKey) Finish(node *PrefetchTreeNode)                 {}
