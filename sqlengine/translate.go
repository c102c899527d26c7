package sqlengine

import (
	"strings"

	sql "github.com/Masterminds/squirrel"

	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/mapping"
	"github.com/skuid/graphmap/query"
)

/*
Translate builds the sql statement of a routed query. Selects read every
field of their result shape under its label, so rows come back keyed the
way the shape describes them. Raw sql selects are passed through as is.
*/
func Translate(res *mapping.EntityResolver, q query.Query) (sql.Sqlizer, error) {
	md, err := q.MetaData(res)
	if err != nil {
		return nil, err
	}

	switch t := q.(type) {
	case *query.SQLSelect:
		return sql.Expr(t.SQL(), t.Args()...), nil
	case *query.PrefetchSelectQuery:
		// a prefetch rooted at the parent entity carries its parent's
		// inheritance qualifier already
		tr := &selectTranslator{res: res, md: md, inheritance: t.Reversed}
		return tr.translate(t.SelectQuery)
	case *query.SelectQuery:
		tr := &selectTranslator{res: res, md: md, inheritance: true}
		return tr.translate(t)
	}
	return nil, unsupported("query of type %T, route it first", q)
}

type selectTranslator struct {
	res         *mapping.EntityResolver
	md          *query.Metadata
	inheritance bool
	root        *Table
	conditions  *conditionBuilder
}

func (tr *selectTranslator) translate(q *query.SelectQuery) (sql.Sqlizer, error) {
	md := tr.md
	if md.DbEntity == nil {
		return nil, unsupported("select without a table")
	}
	tr.root = NewTable(md.DbEntity)
	tr.conditions = &conditionBuilder{table: tr.root}

	var selected []string
	for _, seg := range md.ResultShape {
		switch seg.Kind {
		case query.EntitySegment:
			for _, f := range seg.Fields {
				field, err := tr.column(f.DbPath, nil, f.Label)
				if err != nil {
					return nil, err
				}
				selected = append(selected, field)
			}
		case query.ScalarSegment:
			col, err := tr.toDb(seg.Column)
			if err != nil {
				return nil, err
			}
			if col.Kind != exp.KindDbPath {
				return nil, unsupported("column '%s' is not a path", seg.Label)
			}
			field, err := tr.column(col.Path, col.Aliases, seg.Label)
			if err != nil {
				return nil, err
			}
			selected = append(selected, field)
		}
	}

	where := q.Qualifier()
	if tr.inheritance && md.ObjEntity != nil {
		if tree := tr.res.InheritanceTree(md.ObjEntity.Name()); tree != nil {
			where = exp.And(where, tree.QualifierForEntityAndSubclasses())
		}
	}
	where, err := tr.toDb(where)
	if err != nil {
		return nil, err
	}
	where = exp.And(where, md.DbEntity.Qualifier)
	if where != nil {
		cond, err := tr.conditions.build(where)
		if err != nil {
			return nil, err
		}
		tr.root.AddWhere(cond)
	}
	// rows multiplied by to-many joins in the qualifier are folded back
	distinct := md.Distinct || tr.conditions.toMany

	var having sql.Sqlizer
	if h := q.HavingQualifier(); h != nil {
		h, err = tr.toDb(h)
		if err != nil {
			return nil, err
		}
		if having, err = tr.conditions.build(h); err != nil {
			return nil, err
		}
	}

	orderBys := make([]string, 0, len(q.Orderings()))
	for _, o := range q.Orderings() {
		order, err := tr.ordering(o)
		if err != nil {
			return nil, err
		}
		orderBys = append(orderBys, order)
	}

	bld := tr.root.BuildSQL()
	if distinct {
		bld = bld.Distinct()
	}
	if having != nil {
		bld = bld.GroupBy(selected...).Having(having)
	}
	if len(orderBys) > 0 {
		bld = bld.OrderBy(orderBys...)
	}
	if md.FetchLimit > 0 {
		bld = bld.Limit(uint64(md.FetchLimit))
	}
	if md.FetchOffset > 0 {
		bld = bld.Offset(uint64(md.FetchOffset))
	}
	return bld, nil
}

// column selects the column a db path ends at and returns its aliased name
func (tr *selectTranslator) column(dbPath string, aliases map[string]string, label string) (string, error) {
	comps, err := tr.md.DbEntity.ResolvePath(dbPath, aliases)
	if err != nil {
		return "", err
	}
	tbl, attr, _, err := tr.root.Resolve(comps)
	if err != nil {
		return "", err
	}
	if attr == nil {
		return "", unsupported("column '%s' does not end in a table column", label)
	}
	tbl.AddColumn(attr.Name(), label)
	return tbl.Field(attr.Name()), nil
}

func (tr *selectTranslator) ordering(o query.Ordering) (string, error) {
	e, err := tr.toDb(o.Expression)
	if err != nil {
		return "", err
	}
	if e == nil || e.Kind != exp.KindDbPath {
		return "", unsupported("ordering on '%s'", o.Expression)
	}
	field, err := tr.conditions.field(e)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if o.CaseInsensitive {
		b.WriteString("UPPER(")
		b.WriteString(field)
		b.WriteString(")")
	} else {
		b.WriteString(field)
	}
	if o.Descending {
		b.WriteString(" DESC")
	}
	return b.String(), nil
}

// toDb rewrites object paths to db paths rooted at the query table
func (tr *selectTranslator) toDb(e *exp.Expression) (*exp.Expression, error) {
	if e == nil || tr.md.ObjEntity == nil {
		return e, nil
	}
	return tr.md.ObjEntity.TranslateToDbPath(e)
}
