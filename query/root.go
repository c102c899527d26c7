package query

import (
	"reflect"

	"github.com/skuid/graphmap/mapping"
)

// RootKind tells what a query Root refers to
type RootKind int

// Root kinds
const (
	RootNone RootKind = iota
	RootEntityName
	RootDbEntityName
	RootClass
	RootObjEntity
	RootDbEntity
	RootDataMap
	RootProcedure
)

/*
Root is what a query selects from. Names and types are looked up in the
resolver every time metadata is resolved, so a query can be built before the
mapping is loaded.
*/
type Root struct {
	Kind      RootKind
	Name      string
	Type      reflect.Type
	ObjEntity *mapping.ObjEntity
	DbEntity  *mapping.DbEntity
	DataMap   *mapping.DataMap
	Procedure *mapping.Procedure
}

// EntityRoot roots a query at an ObjEntity by name
func EntityRoot(name string) Root {
	return Root{Kind: RootEntityName, Name: name}
}

// DbEntityRoot roots a query at a table by name
func DbEntityRoot(name string) Root {
	return Root{Kind: RootDbEntityName, Name: name}
}

// ClassRoot roots a query at the ObjEntity mapped to the type of sample
func ClassRoot(sample interface{}) Root {
	return Root{Kind: RootClass, Type: reflect.TypeOf(sample)}
}

// RootForObjEntity roots a query at e
func RootForObjEntity(e *mapping.ObjEntity) Root {
	return Root{Kind: RootObjEntity, ObjEntity: e}
}

// RootForDbEntity roots a query at the table e
func RootForDbEntity(e *mapping.DbEntity) Root {
	return Root{Kind: RootDbEntity, DbEntity: e}
}

// RootForDataMap roots a query at a whole map, for raw SQL
func RootForDataMap(m *mapping.DataMap) Root {
	return Root{Kind: RootDataMap, DataMap: m}
}

// RootForProcedure roots a query at a stored procedure
func RootForProcedure(p *mapping.Procedure) Root {
	return Root{Kind: RootProcedure, Procedure: p}
}

func (r Root) String() string {
	switch r.Kind {
	case RootEntityName, RootDbEntityName:
		return r.Name
	case RootClass:
		if r.Type == nil {
			return "<nil class>"
		}
		return mapping.ClassNameOf(r.Type)
	case RootObjEntity:
		return r.ObjEntity.Name()
	case RootDbEntity:
		return r.DbEntity.Name()
	case RootDataMap:
		return r.DataMap.Name()
	case RootProcedure:
		return r.Procedure.Name()
	}
	return "<none>"
}

/*
resolve fills the entity, table, map and procedure of md. A root without a
kind is only allowed when the query names its engine.
*/
func (r Root) resolve(res *mapping.EntityResolver, md *Metadata) error {
	switch r.Kind {
	case RootNone:
		if md.EngineName == "" {
			return mapping.NewConfigError("query", "%w", ErrUndefinedRoot)
		}
		return nil
	case RootEntityName:
		return md.setObjEntity(res.ObjEntity(r.Name), r.Name)
	case RootClass:
		if r.Type == nil {
			return mapping.NewConfigError("query", "%w", ErrUndefinedRoot)
		}
		return md.setObjEntity(res.ObjEntityForType(r.Type), r.String())
	case RootObjEntity:
		return md.setObjEntity(r.ObjEntity, "<nil>")
	case RootDbEntityName:
		return md.setDbEntity(res.DbEntity(r.Name), r.Name)
	case RootDbEntity:
		return md.setDbEntity(r.DbEntity, "<nil>")
	case RootDataMap:
		if r.DataMap == nil {
			return mapping.NewConfigError("<nil>", "%w", ErrUnrecognizedEntity)
		}
		md.DataMap = r.DataMap
		return nil
	case RootProcedure:
		if r.Procedure == nil {
			return mapping.NewConfigError("<nil>", "%w", ErrUnrecognizedEntity)
		}
		md.Procedure = r.Procedure
		for _, m := range res.DataMaps() {
			if m.Procedure(r.Procedure.Name()) == r.Procedure {
				md.DataMap = m
				break
			}
		}
		return nil
	}
	return mapping.NewConfigError(r.String(), "%w", ErrUnrecognizedEntity)
}
