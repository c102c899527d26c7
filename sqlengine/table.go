package sqlengine

import (
	"fmt"
	"strings"

	sql "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/skuid/graphmap/mapping"
)

const (
	aliasedField string = "%[1]v.%[2]v"
	labeledCol   string = "%[1]v.%[2]v AS %[3]v"
	aliasedJoin  string = "%[2]v AS %[1]v ON %[3]v"
	joinCond     string = "%[1]v = %[2]v"
)

/*
Table is one aliased table of a select, and the root of the structure. Every
relationship path joined from the root gets its own alias, t0 being the root.
Paths are joined once, so two conditions on the same path share the join.
*/
type Table struct {
	root    *Table
	Counter int
	Alias   string
	Name    string
	Entity  *mapping.DbEntity
	columns []column
	Joins   []Join
	Wheres  []sql.Sqlizer

	// root only: joined tables by relationship path
	byPath map[string]*Table
}

type column struct {
	field string
	label string
}

/*
Join holds a join from a parent table, the column pairs it matches on and
whether it is an outer join
*/
type Join struct {
	Left   bool
	Parent *Table
	On     [][2]string
	Table  *Table
	ToMany bool
}

// NewTable returns the root table of a select on e
func NewTable(e *mapping.DbEntity) *Table {
	return &Table{
		Counter: 1,
		Alias:   "t0",
		Name:    e.FullyQualifiedName(),
		Entity:  e,
		byPath:  make(map[string]*Table),
	}
}

func (t *Table) rootTable() *Table {
	if t.root != nil {
		return t.root
	}
	return t
}

// AddColumn selects field of this table under label
func (t *Table) AddColumn(field, label string) {
	t.columns = append(t.columns, column{field: field, label: label})
}

// Field returns the aliased name of a column of this table
func (t *Table) Field(name string) string {
	return fmt.Sprintf(aliasedField, t.Alias, name)
}

// AddWhere adds a condition ANDed with every other one
func (t *Table) AddWhere(cond sql.Sqlizer) {
	root := t.rootTable()
	root.Wheres = append(root.Wheres, cond)
}

/*
Resolve joins every relationship of comps, reusing joins already made for the
same path, and returns the table the path ends at with the attribute it names,
if any. toMany reports whether a to-many relationship was crossed.
*/
func (t *Table) Resolve(comps []mapping.PathComponent) (tbl *Table, attr *mapping.DbAttribute, toMany bool, err error) {
	root := t.rootTable()
	tbl = t
	key := ""
	for _, c := range comps {
		if c.Attribute != nil {
			a, ok := c.Attribute.(*mapping.DbAttribute)
			if !ok {
				return nil, nil, false, unsupported("object attribute '%s' in a db path", c.Name)
			}
			return tbl, a, toMany, nil
		}

		rel, ok := c.Relationship.(*mapping.DbRelationship)
		if !ok {
			return nil, nil, false, unsupported("object relationship '%s' in a db path", c.Name)
		}
		if c.Alias != "" {
			key += "." + c.Alias + ":" + c.Token()
		} else {
			key += "." + c.Token()
		}
		toMany = toMany || rel.IsToMany()

		if joined, ok := root.byPath[key]; ok {
			tbl = joined
			continue
		}
		tbl, err = tbl.appendJoin(rel, c.JoinType == mapping.JoinLeftOuter)
		if err != nil {
			return nil, nil, false, err
		}
		root.byPath[key] = tbl
	}
	return tbl, nil, toMany, nil
}

/*
appendJoin adds a join with the proper aliasing
*/
func (t *Table) appendJoin(rel *mapping.DbRelationship, left bool) (*Table, error) {
	target := rel.Target()
	if target == nil {
		return nil, mapping.NewConfigError(rel.Name(), "target table '%s' is not mapped", rel.TargetEntityName())
	}
	if len(rel.Joins()) == 0 {
		return nil, mapping.NewConfigError(rel.Name(), "relationship has no joins")
	}

	root := t.rootTable()
	alias := fmt.Sprintf("t%d", root.Counter)
	root.Counter++

	join := Join{
		Table: &Table{
			root:   root,
			Alias:  alias,
			Name:   target.FullyQualifiedName(),
			Entity: target,
		},
		Parent: t,
		Left:   left,
		ToMany: rel.IsToMany(),
	}
	for _, j := range rel.Joins() {
		join.On = append(join.On, [2]string{j.TargetName, j.SourceName})
	}

	t.Joins = append(t.Joins, join)
	return join.Table, nil
}

/*
Columns gets the selected columns of the table with the proper alias and
their quoted labels
*/
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.columns))

	for _, col := range t.columns {
		cols = append(cols, fmt.Sprintf(labeledCol, t.Alias, col.field, pq.QuoteIdentifier(col.label)))
	}

	return cols
}

/*
Columns gets the join columns including the proper alias
*/
func (j *Join) Columns() []string {
	return j.Table.Columns()
}

// Build renders the join clause against the parent alias
func (j *Join) Build() string {
	conds := make([]string, 0, len(j.On))
	for _, on := range j.On {
		conds = append(conds, fmt.Sprintf(
			joinCond,
			j.Table.Field(on[0]),
			j.Parent.Field(on[1]),
		))
	}
	return fmt.Sprintf(
		aliasedJoin,
		j.Table.Alias,
		j.Table.Name,
		strings.Join(conds, " AND "),
	)
}

/*
BuildSQL returns a squirrel SelectBuilder, which can be used to execute the query
or to just add more to the query
*/
func (t *Table) BuildSQL() sql.SelectBuilder {
	bld := sql.Select(t.Columns()...).
		PlaceholderFormat(sql.Dollar).
		From(fmt.Sprintf("%s AS %s", t.Name, t.Alias))

	for _, join := range t.Joins {
		bld = sqlizeJoin(bld, join)
	}

	for _, where := range t.Wheres {
		bld = bld.Where(where)
	}

	return bld
}

/*
ToSQL returns the SQL statement, as it currently stands.
*/
func (t *Table) ToSQL() (string, []interface{}, error) {
	return t.BuildSQL().ToSql()
}

func sqlizeJoin(bld sql.SelectBuilder, join Join) sql.SelectBuilder {

	bld = bld.Columns(join.Columns()...)

	if join.Left {
		bld = bld.LeftJoin(join.Build())
	} else {
		bld = bld.Join(join.Build())
	}

	for _, join := range join.Table.Joins {
		bld = sqlizeJoin(bld, join)
	}

	return bld
}
