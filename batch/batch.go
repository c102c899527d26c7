/*
Package batch describes rows of batched INSERT, UPDATE and DELETE statements.
Row values may be deferred: a Deferred produces the real value when the
statement is bound, typically a primary key generated for a row inserted
earlier in the same commit.
*/
package batch

import (
	"github.com/skuid/graphmap/identity"
	"github.com/skuid/graphmap/mapping"
)

// MaxDeferredDepth is the number of nested deferred values Row.Value unwinds
// before it gives up on the chain
const MaxDeferredDepth = 1000

// Deferred produces a value that wasn't known when the row was built. It may
// return another Deferred.
type Deferred func() interface{}

// Kind of statement a Batch runs
type Kind int

// Batch kinds
const (
	Insert Kind = iota
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Row is one row of a batch, keyed by column name
type Row struct {
	ObjectID *identity.ObjectID
	Values   map[string]interface{}
}

// NewRow returns a row for the object
func NewRow(id *identity.ObjectID, values map[string]interface{}) *Row {
	if values == nil {
		values = make(map[string]interface{})
	}
	return &Row{ObjectID: id, Values: values}
}

/*
Value returns the value of attr, invoking deferred values until a concrete one
comes out. Every produced value replaces the row entry, so a chain is only
walked once. When a chain was unwound for a primary key column, the result is
also recorded in the object's replacement ID map.
*/
func (r *Row) Value(attr *mapping.DbAttribute) (interface{}, error) {
	name := attr.Name()
	v := r.Values[name]

	depth := 0
	for {
		d, ok := v.(Deferred)
		if !ok {
			break
		}
		depth++
		if depth >= MaxDeferredDepth {
			return nil, r.keyError("possible recursive deferred-value chain", attr)
		}
		v = d()
		r.Values[name] = v
	}

	if depth > 0 && attr.IsPrimaryKey() {
		if v == nil {
			return nil, r.keyError("failed to generate primary key", attr)
		}
		if r.ObjectID != nil {
			r.ObjectID.ReplacementIDMap()[name] = v
		}
	}
	return v, nil
}

func (r *Row) keyError(reason string, attr *mapping.DbAttribute) *mapping.PrimaryKeyError {
	entity := ""
	if e := attr.DbEntity(); e != nil {
		entity = e.Name()
	}
	err := mapping.NewPrimaryKeyError(reason, entity, attr.Name())
	if r.ObjectID != nil {
		err.ObjectID = r.ObjectID.String()
	}
	return err
}

/*
PropagatedValue defers to a key value of master that may only be generated
later in the commit. The replacement ID map wins over the current snapshot.
*/
func PropagatedValue(master *identity.ObjectID, key string) Deferred {
	return func() interface{} {
		if v, ok := master.ReplacementIDMap()[key]; ok {
			return v
		}
		return master.IDSnapshot()[key]
	}
}

// Batch is a group of rows run with the same statement shape
type Batch struct {
	Kind                Kind
	DbEntity            *mapping.DbEntity
	UpdatedAttributes   []*mapping.DbAttribute
	QualifierAttributes []*mapping.DbAttribute
	Rows                []*Row
}

/*
NewInsert returns an insert batch. Every non generated column of the table is
inserted, so generated keys are left to the database.
*/
func NewInsert(e *mapping.DbEntity) *Batch {
	var attrs []*mapping.DbAttribute
	for _, a := range e.DbAttributes() {
		if !a.IsGenerated() {
			attrs = append(attrs, a)
		}
	}
	return &Batch{Kind: Insert, DbEntity: e, UpdatedAttributes: attrs}
}

// NewUpdate returns an update batch setting updated and matching rows by the
// primary key
func NewUpdate(e *mapping.DbEntity, updated []*mapping.DbAttribute) *Batch {
	return &Batch{Kind: Update, DbEntity: e, UpdatedAttributes: updated, QualifierAttributes: e.PrimaryKeys()}
}

// NewDelete returns a delete batch matching rows by the primary key
func NewDelete(e *mapping.DbEntity) *Batch {
	return &Batch{Kind: Delete, DbEntity: e, QualifierAttributes: e.PrimaryKeys()}
}

// Add appends a row
func (b *Batch) Add(r *Row) {
	b.Rows = append(b.Rows, r)
}

// Columns returns the updated then the qualifier attributes
func (b *Batch) Columns() []*mapping.DbAttribute {
	cols := make([]*mapping.DbAttribute, 0, len(b.UpdatedAttributes)+len(b.QualifierAttributes))
	cols = append(cols, b.UpdatedAttributes...)
	return append(cols, b.QualifierAttributes...)
}
