package loader

import (
	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/mapping"
)

// MapDescriptor is the file form of a mapping.DataMap
type MapDescriptor struct {
	Name                  string                `json:"name" validate:"required"`
	DefaultSchema         string                `json:"defaultSchema"`
	DefaultPackage        string                `json:"defaultPackage"`
	QuotingSQLIdentifiers bool                  `json:"quotingSqlIdentifiers"`
	DependsOn             []string              `json:"dependsOn"`
	DbEntities            []DbEntityDescriptor  `json:"dbEntities" validate:"dive"`
	ObjEntities           []ObjEntityDescriptor `json:"objEntities" validate:"dive"`
	Procedures            []ProcedureDescriptor `json:"procedures" validate:"dive"`
	Queries               []QueryDescriptor     `json:"queries" validate:"dive"`
}

// DbEntityDescriptor describes a table
type DbEntityDescriptor struct {
	Name          string                     `json:"name" validate:"required"`
	Catalog       string                     `json:"catalog"`
	Schema        string                     `json:"schema"`
	Qualifier     *exp.Expression            `json:"qualifier"`
	PkGenerator   *mapping.PkGenerator       `json:"pkGenerator"`
	Attributes    []DbAttributeDescriptor    `json:"attributes" validate:"required,min=1,dive"`
	Relationships []DbRelationshipDescriptor `json:"relationships" validate:"dive"`
}

// DbAttributeDescriptor describes a column
type DbAttributeDescriptor struct {
	Name       string `json:"name" validate:"required"`
	Type       string `json:"type" validate:"required"`
	PrimaryKey bool   `json:"primaryKey"`
	Generated  bool   `json:"generated"`
	Mandatory  bool   `json:"mandatory"`
	MaxLength  int    `json:"maxLength" validate:"min=0"`
	Scale      int    `json:"scale" validate:"min=0"`
}

// DbRelationshipDescriptor describes a foreign key relationship between tables
type DbRelationshipDescriptor struct {
	Name          string           `json:"name" validate:"required"`
	Target        string           `json:"target" validate:"required"`
	ToMany        bool             `json:"toMany"`
	ToDependentPK bool             `json:"toDependentPk"`
	Joins         []JoinDescriptor `json:"joins" validate:"required,min=1,dive"`
}

// JoinDescriptor is one column pair of a DbRelationship
type JoinDescriptor struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// ObjEntityDescriptor describes a persistent class
type ObjEntityDescriptor struct {
	Name               string                      `json:"name" validate:"required"`
	ClassName          string                      `json:"className"`
	DbEntity           string                      `json:"dbEntity" validate:"required_without=SuperEntity"`
	SuperEntity        string                      `json:"superEntity"`
	Abstract           bool                        `json:"abstract"`
	ReadOnly           bool                        `json:"readOnly"`
	Qualifier          *exp.Expression             `json:"qualifier"`
	LockType           string                      `json:"lockType" validate:"omitempty,oneof=none optimistic"`
	Attributes         []ObjAttributeDescriptor    `json:"attributes" validate:"dive"`
	AttributeOverrides map[string]string           `json:"attributeOverrides"`
	Relationships      []ObjRelationshipDescriptor `json:"relationships" validate:"dive"`
}

// ObjAttributeDescriptor describes a property of a persistent class
type ObjAttributeDescriptor struct {
	Name            string `json:"name" validate:"required"`
	Type            string `json:"type"`
	DbAttributePath string `json:"dbAttributePath" validate:"required"`
	UsedForLocking  bool   `json:"usedForLocking"`
	Lazy            bool   `json:"lazy"`
}

// ObjRelationshipDescriptor describes a relationship between persistent classes
type ObjRelationshipDescriptor struct {
	Name               string `json:"name" validate:"required"`
	Target             string `json:"target" validate:"required"`
	DbRelationshipPath string `json:"dbRelationshipPath" validate:"required"`
	DeleteRule         string `json:"deleteRule" validate:"omitempty,oneof=noAction nullify cascade deny"`
	UsedForLocking     bool   `json:"usedForLocking"`
}

// ProcedureDescriptor describes a stored procedure
type ProcedureDescriptor struct {
	Name           string                `json:"name" validate:"required"`
	Schema         string                `json:"schema"`
	ReturningValue bool                  `json:"returningValue"`
	Parameters     []ParameterDescriptor `json:"parameters" validate:"dive"`
}

// ParameterDescriptor is one argument of a stored procedure
type ParameterDescriptor struct {
	Name      string `json:"name" validate:"required"`
	Type      string `json:"type"`
	Direction string `json:"direction" validate:"omitempty,oneof=in out inout"`
}

// QueryDescriptor describes a named select query. The qualifier is kept as
// text since it may hold parameters that are bound when the query is run.
type QueryDescriptor struct {
	Name          string                       `json:"name" validate:"required"`
	Root          string                       `json:"root" validate:"required"`
	RootIsTable   bool                         `json:"rootIsTable"`
	Qualifier     string                       `json:"qualifier"`
	Orderings     []mapping.OrderingDescriptor `json:"orderings" validate:"dive"`
	Prefetches    []mapping.PrefetchDescriptor `json:"prefetches" validate:"dive"`
	FetchLimit    int                          `json:"fetchLimit" validate:"min=0"`
	FetchOffset   int                          `json:"fetchOffset" validate:"min=0"`
	PageSize      int                          `json:"pageSize" validate:"min=0"`
	CacheStrategy string                       `json:"cacheStrategy" validate:"omitempty,oneof=NO_CACHE LOCAL_CACHE LOCAL_CACHE_REFRESH SHARED_CACHE SHARED_CACHE_REFRESH"`
	CacheGroup    string                       `json:"cacheGroup"`
	FetchDataRows bool                         `json:"fetchDataRows"`
}

var lockTypes = map[string]mapping.LockType{
	"":           mapping.LockNone,
	"none":       mapping.LockNone,
	"optimistic": mapping.LockOptimistic,
}

var deleteRules = map[string]mapping.DeleteRule{
	"":         mapping.DeleteNoAction,
	"noAction": mapping.DeleteNoAction,
	"nullify":  mapping.DeleteNullify,
	"cascade":  mapping.DeleteCascade,
	"deny":     mapping.DeleteDeny,
}

var directions = map[string]mapping.ParameterDirection{
	"":      mapping.ParameterIn,
	"in":    mapping.ParameterIn,
	"out":   mapping.ParameterOut,
	"inout": mapping.ParameterInOut,
}
