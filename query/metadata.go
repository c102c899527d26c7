package query

import (
	"strings"

	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/mapping"
)

/*
Metadata is everything a query resolves to against one EntityResolver: the
root it selects from, paging and caching settings, the shape of the rows it
returns and the split aliases its paths use. It is derived state. Queries
recompute it whenever they are changed.
*/
type Metadata struct {
	ObjEntity *mapping.ObjEntity
	DbEntity  *mapping.DbEntity
	DataMap   *mapping.DataMap
	Procedure *mapping.Procedure
	ClassName string

	FetchLimit         int
	FetchOffset        int
	PageSize           int
	StatementFetchSize int
	FetchingDataRows   bool
	Distinct           bool

	CacheStrategy CacheStrategy
	CacheKey      string
	CacheGroup    string

	ResultShape      []ResultSegment
	PathSplitAliases SplitAliases
	PrefetchTree     *PrefetchTreeNode
	EngineName       string
}

func (md *Metadata) setObjEntity(e *mapping.ObjEntity, name string) error {
	if e == nil {
		return mapping.NewConfigError(name, "%w", ErrUnrecognizedEntity)
	}
	md.ObjEntity = e
	md.DbEntity = e.DbEntity()
	md.DataMap = e.DataMap()
	md.ClassName = e.ClassName()
	return nil
}

func (md *Metadata) setDbEntity(e *mapping.DbEntity, name string) error {
	if e == nil {
		return mapping.NewConfigError(name, "%w", ErrUnrecognizedEntity)
	}
	md.DbEntity = e
	md.DataMap = e.DataMap()
	// db roots always return raw rows
	md.FetchingDataRows = true
	return nil
}

// IsSingleScalar is true when the query returns one scalar column per row
func (md *Metadata) IsSingleScalar() bool {
	return len(md.ResultShape) == 1 && md.ResultShape[0].Kind == ScalarSegment
}

// SegmentKind tells whether a result segment is a scalar or a whole entity
type SegmentKind int

// Segment kinds
const (
	ScalarSegment SegmentKind = iota
	EntitySegment
)

/*
ResultSegment describes one column of a result row, as the caller sees it. A
scalar segment is a single expression. An entity segment spans every field
needed to build an object of Entity, and the fields of any entities joined in
by joint prefetches.
*/
type ResultSegment struct {
	Kind   SegmentKind
	Label  string
	Column *exp.Expression

	// entity segments only
	Entity       *mapping.ObjEntity
	DbEntity     *mapping.DbEntity
	DbPath       string
	Fields       []ResultField
	IdentityOnly bool
}

// ResultField is one selected table column of an entity segment. DbPath is
// rooted at the query's table and ends in the column name.
type ResultField struct {
	Label     string
	DbPath    string
	Attribute *mapping.DbAttribute
}

// shapeBuilder resolves the result shape of a select query
type shapeBuilder struct {
	md      *Metadata
	aliases map[string]string
	// joints is the tree whose joint nodes are expanded into the first entity
	// segment that can take them
	joints   *PrefetchTreeNode
	attached bool
}

func (b *shapeBuilder) build(columns []Property) ([]ResultSegment, error) {
	md := b.md
	if len(columns) == 0 {
		if md.DbEntity == nil {
			return nil, nil
		}
		seg, err := b.entitySegment("", md.ObjEntity, md.DbEntity, "", "")
		if err != nil {
			return nil, err
		}
		return []ResultSegment{seg}, nil
	}

	segments := make([]ResultSegment, 0, len(columns))
	for _, c := range columns {
		seg, err := b.column(c)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func (b *shapeBuilder) column(c Property) (ResultSegment, error) {
	md := b.md
	e := c.Expression
	if e == nil {
		return ResultSegment{}, mapping.NewConfigError(c.Name, "column has no expression")
	}

	var path string
	switch {
	case e.Kind == exp.KindFullObject && len(e.Operands) == 0:
		if md.DbEntity == nil {
			return ResultSegment{}, mapping.NewConfigError(c.Name, "full object column on a query without a table")
		}
		return b.entitySegment(c.Name, md.ObjEntity, md.DbEntity, "", "")
	case e.Kind == exp.KindFullObject:
		path = e.Operands[0].Path
	case e.Kind == exp.KindObjPath && md.ObjEntity != nil:
		comps, err := md.ObjEntity.ResolvePath(e.Path, b.merged(e.Aliases))
		if err != nil {
			return ResultSegment{}, err
		}
		last := comps[len(comps)-1]
		if last.Relationship == nil {
			return scalarSegment(c), nil
		}
		if last.Relationship.IsToMany() {
			return ResultSegment{}, mapping.NewPathError("to-many relationship can't be selected as a column", md.ObjEntity.Name(), e.Path, last.Name)
		}
		path = e.Path
	default:
		return scalarSegment(c), nil
	}

	if md.ObjEntity == nil {
		return ResultSegment{}, mapping.NewConfigError(c.Name, "full object column on a query without an entity")
	}
	comps, err := md.ObjEntity.ResolvePath(path, b.merged(e.Aliases))
	if err != nil {
		return ResultSegment{}, err
	}
	last := comps[len(comps)-1]
	rel, ok := last.Relationship.(*mapping.ObjRelationship)
	if !ok {
		return ResultSegment{}, mapping.NewPathError("full object column does not end in a relationship", md.ObjEntity.Name(), path, last.Name)
	}
	target := rel.Target()
	if target == nil {
		return ResultSegment{}, mapping.NewPathError("target entity of relationship is not mapped", md.ObjEntity.Name(), path, last.Name)
	}
	dbPath, err := md.ObjEntity.TranslatePathToDbPath(path)
	if err != nil {
		return ResultSegment{}, err
	}
	label := c.Name
	if label == "" {
		label = path
	}
	return b.entitySegment(label, target, target.DbEntity(), dbPath, label+".")
}

func scalarSegment(c Property) ResultSegment {
	label := c.Name
	if label == "" {
		label = c.Expression.String()
	}
	return ResultSegment{Kind: ScalarSegment, Label: label, Column: c.Expression}
}

/*
entitySegment selects the columns of table for an object of entity, reached
from the query root through dbPath. With pagination only the primary key is
selected. The first full segment also takes every adjacent joint prefetch.
*/
func (b *shapeBuilder) entitySegment(label string, entity *mapping.ObjEntity, table *mapping.DbEntity, dbPath, labelPrefix string) (ResultSegment, error) {
	seg := ResultSegment{
		Kind:     EntitySegment,
		Label:    label,
		Entity:   entity,
		DbEntity: table,
		DbPath:   dbPath,
	}
	if label == "" && entity != nil {
		seg.Label = entity.Name()
	}
	if table == nil {
		return seg, mapping.NewConfigError(seg.Label, "entity has no table")
	}

	if b.md.PageSize > 0 {
		seg.IdentityOnly = true
		seg.Fields = fields(table.PrimaryKeys(), dbPath, labelPrefix)
		return seg, nil
	}

	seg.Fields = fields(table.DbAttributes(), dbPath, labelPrefix)
	if b.attached || entity == nil || b.joints == nil {
		return seg, nil
	}
	b.attached = true

	for _, node := range b.joints.AdjacentJointNodes() {
		relPath := node.Path()
		comps, err := entity.ResolvePath(relPath, nil)
		if err != nil {
			return seg, err
		}
		rel, ok := comps[len(comps)-1].Relationship.(*mapping.ObjRelationship)
		if !ok {
			return seg, mapping.NewPathError("prefetch path does not end in a relationship", entity.Name(), relPath, comps[len(comps)-1].Name)
		}
		jointPath, err := entity.TranslatePathToDbPath(relPath)
		if err != nil {
			return seg, err
		}
		jointPath = outerJoined(jointPath)
		if dbPath != "" {
			jointPath = dbPath + "." + jointPath
		}
		var target *mapping.DbEntity
		if t := rel.Target(); t != nil {
			target = t.DbEntity()
		}
		if target == nil {
			return seg, mapping.NewPathError("prefetch target has no table", entity.Name(), relPath, rel.Name())
		}
		seg.Fields = append(seg.Fields, fields(target.DbAttributes(), jointPath, relPath+".")...)
	}
	return seg, nil
}

func fields(attrs []*mapping.DbAttribute, dbPath, labelPrefix string) []ResultField {
	out := make([]ResultField, 0, len(attrs))
	for _, a := range attrs {
		p := a.Name()
		if dbPath != "" {
			p = dbPath + "." + p
		}
		out = append(out, ResultField{Label: labelPrefix + a.Name(), DbPath: p, Attribute: a})
	}
	return out
}

// outerJoined marks every hop of a db relationship path as an outer join
func outerJoined(dbPath string) string {
	hops := strings.Split(dbPath, ".")
	for i, h := range hops {
		if !strings.HasSuffix(h, mapping.OuterJoinMarker) {
			hops[i] = h + mapping.OuterJoinMarker
		}
	}
	return strings.Join(hops, ".")
}

// merged overlays the aliases of one path onto the query wide ones
func (b *shapeBuilder) merged(local map[string]string) map[string]string {
	if len(local) == 0 {
		return b.aliases
	}
	if len(b.aliases) == 0 {
		return local
	}
	out := make(map[string]string, len(b.aliases)+len(local))
	for k, v := range b.aliases {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}
