package sqlengine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/skuid/graphmap/batch"
	"github.com/skuid/graphmap/mapping"
)

// Execer runs statements. Both *sql.DB and *sql.Tx are Execers.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

/*
PerformBatch runs one statement per row of b and returns the number of rows
changed. Deferred row values are resolved as each statement is bound. Inserts
into tables with generated columns read them back with RETURNING and record
them in the row and the object's replacement ID map.
*/
func (e *Engine) PerformBatch(ctx context.Context, exec Execer, b *batch.Batch) (int64, error) {
	if exec == nil {
		exec = e.db
	}
	e.logger.Debug("performing batch",
		zap.String("engine", e.name),
		zap.Stringer("kind", b.Kind),
		zap.String("table", b.DbEntity.Name()),
		zap.Int("rows", len(b.Rows)),
	)

	var total int64
	for _, row := range b.Rows {
		var n int64
		var err error
		switch b.Kind {
		case batch.Insert:
			n, err = e.insert(ctx, exec, b, row)
		case batch.Update:
			n, err = e.update(ctx, exec, b, row)
		case batch.Delete:
			n, err = e.delete(ctx, exec, b, row)
		default:
			err = unsupported("batch kind %s", b.Kind)
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (e *Engine) insert(ctx context.Context, exec Execer, b *batch.Batch, row *batch.Row) (int64, error) {
	names := make([]string, 0, len(b.UpdatedAttributes))
	values := make([]interface{}, 0, len(b.UpdatedAttributes))
	for _, attr := range b.UpdatedAttributes {
		v, err := row.Value(attr)
		if err != nil {
			return 0, err
		}
		names = append(names, attr.Name())
		values = append(values, v)
	}

	bld := squirrel.Insert(b.DbEntity.FullyQualifiedName()).
		PlaceholderFormat(squirrel.Dollar).
		Columns(names...).
		Values(values...)

	generated := b.DbEntity.GeneratedAttributes()
	if len(generated) == 0 {
		return e.exec(ctx, exec, bld)
	}

	returning := make([]string, 0, len(generated))
	for _, g := range generated {
		returning = append(returning, g.Name())
	}
	text, args, err := bld.Suffix("RETURNING " + strings.Join(returning, ", ")).ToSql()
	if err != nil {
		return 0, err
	}

	dest := make([]interface{}, len(generated))
	ptrs := make([]interface{}, len(generated))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := exec.QueryRowContext(ctx, text, args...).Scan(ptrs...); err != nil {
		return 0, NewQueryError(e.name, text, err)
	}
	for i, g := range generated {
		row.Values[g.Name()] = dest[i]
		if row.ObjectID != nil {
			row.ObjectID.ReplacementIDMap()[g.Name()] = dest[i]
		}
	}
	return 1, nil
}

func (e *Engine) update(ctx context.Context, exec Execer, b *batch.Batch, row *batch.Row) (int64, error) {
	bld := squirrel.Update(b.DbEntity.FullyQualifiedName()).
		PlaceholderFormat(squirrel.Dollar)
	for _, attr := range b.UpdatedAttributes {
		v, err := row.Value(attr)
		if err != nil {
			return 0, err
		}
		bld = bld.Set(attr.Name(), v)
	}
	where, err := qualifier(b.QualifierAttributes, row)
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, exec, bld.Where(where))
}

func (e *Engine) delete(ctx context.Context, exec Execer, b *batch.Batch, row *batch.Row) (int64, error) {
	where, err := qualifier(b.QualifierAttributes, row)
	if err != nil {
		return 0, err
	}
	bld := squirrel.Delete(b.DbEntity.FullyQualifiedName()).
		PlaceholderFormat(squirrel.Dollar).
		Where(where)
	return e.exec(ctx, exec, bld)
}

func qualifier(attrs []*mapping.DbAttribute, row *batch.Row) (squirrel.Eq, error) {
	if len(attrs) == 0 {
		return nil, unsupported("batch without qualifier columns")
	}
	where := make(squirrel.Eq, len(attrs))
	for _, attr := range attrs {
		v, err := row.Value(attr)
		if err != nil {
			return nil, err
		}
		where[attr.Name()] = v
	}
	return where, nil
}

func (e *Engine) exec(ctx context.Context, exec Execer, stmt squirrel.Sqlizer) (int64, error) {
	text, args, err := stmt.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := exec.ExecContext(ctx, text, args...)
	if err != nil {
		return 0, NewQueryError(e.name, text, err)
	}
	return res.RowsAffected()
}
