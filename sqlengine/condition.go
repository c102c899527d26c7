package sqlengine

import (
	"fmt"
	"sort"
	"strings"

	sql "github.com/Masterminds/squirrel"

	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/identity"
	"github.com/skuid/graphmap/mapping"
)

var comparisons = map[exp.Kind]string{
	exp.KindEqual:          "=",
	exp.KindNotEqual:       "<>",
	exp.KindLess:           "<",
	exp.KindLessOrEqual:    "<=",
	exp.KindGreater:        ">",
	exp.KindGreaterOrEqual: ">=",
	exp.KindLike:           "LIKE",
}

/*
conditionBuilder renders a qualifier made of db paths as a sql condition with
? placeholders. Paths are joined from table as they are found, and toMany is
set once any of them crosses a to-many relationship.
*/
type conditionBuilder struct {
	table  *Table
	toMany bool
}

func (c *conditionBuilder) build(e *exp.Expression) (sql.Sqlizer, error) {
	var b strings.Builder
	var args []interface{}
	if err := c.write(&b, &args, e); err != nil {
		return nil, err
	}
	return sql.Expr(b.String(), args...), nil
}

func (c *conditionBuilder) write(b *strings.Builder, args *[]interface{}, e *exp.Expression) error {
	switch e.Kind {
	case exp.KindAnd, exp.KindOr:
		sep := " AND "
		if e.Kind == exp.KindOr {
			sep = " OR "
		}
		for i, op := range e.Operands {
			if i > 0 {
				b.WriteString(sep)
			}
			nested := op.Kind == exp.KindOr || (op.Kind == exp.KindAnd && e.Kind == exp.KindOr)
			if nested {
				b.WriteString("(")
			}
			if err := c.write(b, args, op); err != nil {
				return err
			}
			if nested {
				b.WriteString(")")
			}
		}
		return nil

	case exp.KindNot:
		b.WriteString("NOT (")
		if err := c.write(b, args, e.Operands[0]); err != nil {
			return err
		}
		b.WriteString(")")
		return nil

	case exp.KindEqual, exp.KindNotEqual:
		left, right := e.Operands[0], e.Operands[1]
		if left.Kind == exp.KindDbPath {
			handled, err := c.relationshipMatch(b, args, e.Kind, left, right)
			if handled || err != nil {
				return err
			}
		}
		if right.Kind == exp.KindScalar && right.Value == nil {
			if err := c.write(b, args, left); err != nil {
				return err
			}
			if e.Kind == exp.KindEqual {
				b.WriteString(" IS NULL")
			} else {
				b.WriteString(" IS NOT NULL")
			}
			return nil
		}
		return c.binary(b, args, comparisons[e.Kind], left, right)

	case exp.KindLess, exp.KindLessOrEqual, exp.KindGreater, exp.KindGreaterOrEqual, exp.KindLike:
		return c.binary(b, args, comparisons[e.Kind], e.Operands[0], e.Operands[1])

	case exp.KindLikeIgnoreCase:
		b.WriteString("UPPER(")
		if err := c.write(b, args, e.Operands[0]); err != nil {
			return err
		}
		b.WriteString(") LIKE UPPER(")
		if err := c.write(b, args, e.Operands[1]); err != nil {
			return err
		}
		b.WriteString(")")
		return nil

	case exp.KindIn:
		if e.Operands[1].Kind == exp.KindList && len(e.Operands[1].Operands) == 0 {
			b.WriteString("FALSE")
			return nil
		}
		return c.binary(b, args, "IN", e.Operands[0], e.Operands[1])

	case exp.KindBetween:
		if err := c.write(b, args, e.Operands[0]); err != nil {
			return err
		}
		b.WriteString(" BETWEEN ")
		if err := c.write(b, args, e.Operands[1]); err != nil {
			return err
		}
		b.WriteString(" AND ")
		return c.write(b, args, e.Operands[2])

	case exp.KindDbPath:
		field, err := c.field(e)
		if err != nil {
			return err
		}
		b.WriteString(field)
		return nil

	case exp.KindScalar:
		b.WriteString("?")
		*args = append(*args, scalarValue(e.Value))
		return nil

	case exp.KindList:
		b.WriteString("(")
		for i, op := range e.Operands {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := c.write(b, args, op); err != nil {
				return err
			}
		}
		b.WriteString(")")
		return nil

	case exp.KindParam:
		return fmt.Errorf("%w: '%s'", ErrUnboundParameter, e.Path)

	case exp.KindTrue:
		b.WriteString("TRUE")
		return nil

	case exp.KindFalse:
		b.WriteString("FALSE")
		return nil
	}
	return unsupported("expression '%s'", e)
}

func (c *conditionBuilder) binary(b *strings.Builder, args *[]interface{}, op string, left, right *exp.Expression) error {
	if err := c.write(b, args, left); err != nil {
		return err
	}
	b.WriteString(" ")
	b.WriteString(op)
	b.WriteString(" ")
	return c.write(b, args, right)
}

// field joins the path of e and returns the aliased column it ends at
func (c *conditionBuilder) field(e *exp.Expression) (string, error) {
	comps, err := c.table.Entity.ResolvePath(e.Path, e.Aliases)
	if err != nil {
		return "", err
	}
	tbl, attr, toMany, err := c.table.Resolve(comps)
	if err != nil {
		return "", err
	}
	if attr == nil {
		return "", unsupported("path '%s' does not end in a column", e.Path)
	}
	c.toMany = c.toMany || toMany
	return tbl.Field(attr.Name()), nil
}

/*
relationshipMatch renders path = object when path ends in a relationship. To
one relationships compare the foreign key columns of the source table, to many
ones join the target and compare its primary key. It reports false when the
path ends in a column.
*/
func (c *conditionBuilder) relationshipMatch(b *strings.Builder, args *[]interface{}, kind exp.Kind, path, value *exp.Expression) (bool, error) {
	comps, err := c.table.Entity.ResolvePath(path.Path, path.Aliases)
	if err != nil {
		return true, err
	}
	rel, ok := comps[len(comps)-1].Relationship.(*mapping.DbRelationship)
	if !ok {
		return false, nil
	}
	if value.Kind != exp.KindScalar {
		return true, unsupported("relationship '%s' compared to '%s'", path.Path, value)
	}
	target := rel.Target()
	if target == nil {
		return true, mapping.NewConfigError(rel.Name(), "target table '%s' is not mapped", rel.TargetEntityName())
	}
	snapshot, err := targetSnapshot(target, value.Value)
	if err != nil {
		return true, err
	}

	var tbl *Table
	var toMany bool
	values := snapshot
	if rel.IsToMany() {
		tbl, _, toMany, err = c.table.Resolve(comps)
	} else {
		tbl, _, toMany, err = c.table.Resolve(comps[:len(comps)-1])
		if snapshot != nil {
			values = rel.SrcFkSnapshotWithTargetSnapshot(snapshot)
		} else {
			values = make(map[string]interface{})
			for _, j := range rel.Joins() {
				values[j.SourceName] = nil
			}
		}
	}
	if err != nil {
		return true, err
	}
	if values == nil {
		return true, unsupported("null match on to-many relationship '%s'", path.Path)
	}
	c.toMany = c.toMany || toMany

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	join, op, null := " AND ", " = ", " IS NULL"
	if kind == exp.KindNotEqual {
		join, op, null = " OR ", " <> ", " IS NOT NULL"
	}
	if len(keys) > 1 {
		b.WriteString("(")
	}
	for i, k := range keys {
		if i > 0 {
			b.WriteString(join)
		}
		b.WriteString(tbl.Field(k))
		if values[k] == nil {
			b.WriteString(null)
			continue
		}
		b.WriteString(op)
		b.WriteString("?")
		*args = append(*args, values[k])
	}
	if len(keys) > 1 {
		b.WriteString(")")
	}
	return true, nil
}

// targetSnapshot returns the primary key values an object value stands for
func targetSnapshot(target *mapping.DbEntity, value interface{}) (map[string]interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case identity.Persistent:
		return targetSnapshot(target, v.ObjectID())
	case *identity.ObjectID:
		if v == nil {
			return nil, nil
		}
		if v.IsTemporary() {
			return nil, mapping.NewPrimaryKeyError("object has no permanent id", target.Name(), "")
		}
		return v.IDSnapshot(), nil
	}
	pks := target.PrimaryKeyNames()
	if len(pks) != 1 {
		return nil, mapping.NewPrimaryKeyError(
			fmt.Sprintf("expected a single column primary key, got %d", len(pks)),
			target.Name(), strings.Join(pks, ","),
		)
	}
	return map[string]interface{}{pks[0]: value}, nil
}

// scalarValue binds persistent objects by their single key value
func scalarValue(value interface{}) interface{} {
	var id *identity.ObjectID
	switch v := value.(type) {
	case identity.Persistent:
		id = v.ObjectID()
	case *identity.ObjectID:
		id = v
	default:
		return value
	}
	if id == nil {
		return nil
	}
	snapshot := id.IDSnapshot()
	if len(snapshot) == 1 {
		for _, v := range snapshot {
			return v
		}
	}
	return id.String()
}
