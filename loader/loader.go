/*
Package loader reads mapping files into DataMaps. Files are JSON or YAML and
share one layout, described by MapDescriptor:

	name: gallery
	dbEntities:
	  - name: ARTIST
	    attributes:
	      - {name: ARTIST_ID, type: INTEGER, primaryKey: true, generated: true}
	      - {name: ARTIST_NAME, type: VARCHAR, mandatory: true}
	objEntities:
	  - name: Artist
	    dbEntity: ARTIST
	    attributes:
	      - {name: artistName, type: string, dbAttributePath: ARTIST_NAME}

Every problem found in a file is reported at once.
*/
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	validator "gopkg.in/go-playground/validator.v9"
	"gopkg.in/yaml.v3"

	"github.com/skuid/graphmap/decoding"
	"github.com/skuid/graphmap/mapping"
)

// Format of a mapping file
type Format int

// Supported formats
const (
	JSON Format = iota
	YAML
)

var json = decoding.GetDecoder(nil)

var validate = validator.New()

// FormatOf picks the format of a file by its extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return JSON, mapping.NewConfigError(path, "unknown mapping file extension")
}

/*
Decode reads a descriptor and validates its structure. YAML is converted to
its JSON form first so both formats go through the same decoder.
*/
func Decode(data []byte, format Format) (*MapDescriptor, error) {
	if format == YAML {
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	d := &MapDescriptor{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, err
	}
	if err := validate.Struct(d); err != nil {
		return nil, validationError(d.Name, err)
	}
	return d, nil
}

func validationError(name string, err error) error {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	if name == "" {
		name = "mapping"
	}
	var errs *multierror.Error
	for _, fe := range fieldErrs {
		errs = multierror.Append(errs, mapping.NewConfigError(name, "%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return errs.ErrorOrNil()
}

/*
Build creates the DataMap a descriptor describes. Names are not resolved
here: call Validate on the map once it is attached to its dependencies or
resolver.
*/
func Build(d *MapDescriptor) (*mapping.DataMap, error) {
	m := mapping.NewDataMap(d.Name)
	m.DefaultSchema = d.DefaultSchema
	m.DefaultPackage = d.DefaultPackage
	m.QuotingSQLIdentifiers = d.QuotingSQLIdentifiers

	var errs *multierror.Error

	for _, ed := range d.DbEntities {
		e := mapping.NewDbEntity(ed.Name)
		e.Catalog = ed.Catalog
		e.Schema = ed.Schema
		e.Qualifier = ed.Qualifier
		e.PkGenerator = ed.PkGenerator
		if err := m.AddDbEntity(e); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		for _, ad := range ed.Attributes {
			a := mapping.NewDbAttribute(ad.Name, ad.Type)
			a.Mandatory = ad.Mandatory
			a.MaxLength = ad.MaxLength
			a.Scale = ad.Scale
			if err := e.AddAttribute(a); err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			a.SetPrimaryKey(ad.PrimaryKey)
			a.SetGenerated(ad.Generated)
		}
	}

	// relationships may point at any table of the file
	for _, ed := range d.DbEntities {
		e := m.DbEntity(ed.Name)
		if e == nil {
			continue
		}
		for _, rd := range ed.Relationships {
			r := mapping.NewDbRelationship(rd.Name, rd.Target)
			if err := e.AddRelationship(r); err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			for _, jd := range rd.Joins {
				r.AddJoin(mapping.NewDbJoin(jd.Source, jd.Target))
			}
			r.SetToMany(rd.ToMany)
			r.SetToDependentPK(rd.ToDependentPK)
		}
	}

	for _, od := range d.ObjEntities {
		e := mapping.NewObjEntity(od.Name)
		if err := m.AddObjEntity(e); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		e.SetClassName(od.ClassName)
		e.SetDbEntityName(od.DbEntity)
		e.SetSuperEntityName(od.SuperEntity)
		e.Abstract = od.Abstract
		e.ReadOnly = od.ReadOnly
		e.Qualifier = od.Qualifier
		e.SetDeclaredLockType(lockTypes[od.LockType])
		for _, ad := range od.Attributes {
			a := mapping.NewObjAttribute(ad.Name, ad.Type, ad.DbAttributePath)
			a.UsedForLocking = ad.UsedForLocking
			a.Lazy = ad.Lazy
			if err := e.AddAttribute(a); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		for name, path := range od.AttributeOverrides {
			e.AddAttributeOverride(name, path)
		}
		for _, rd := range od.Relationships {
			r := mapping.NewObjRelationship(rd.Name, rd.Target)
			r.DeleteRule = deleteRules[rd.DeleteRule]
			r.UsedForLocking = rd.UsedForLocking
			if err := e.AddRelationship(r); err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			r.SetDbRelationshipPath(rd.DbRelationshipPath)
		}
	}

	for _, pd := range d.Procedures {
		p := mapping.NewProcedure(pd.Name)
		p.Schema = pd.Schema
		p.ReturningValue = pd.ReturningValue
		for _, param := range pd.Parameters {
			p.Parameters = append(p.Parameters, mapping.ProcedureParameter{
				Name:      param.Name,
				Type:      param.Type,
				Direction: directions[param.Direction],
			})
		}
		if err := m.AddProcedure(p); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	for _, qd := range d.Queries {
		q := mapping.NewQueryDescriptor(qd.Name, qd.Root)
		q.RootIsTable = qd.RootIsTable
		q.Qualifier = qd.Qualifier
		q.Orderings = qd.Orderings
		q.Prefetches = qd.Prefetches
		q.FetchLimit = qd.FetchLimit
		q.FetchOffset = qd.FetchOffset
		q.PageSize = qd.PageSize
		q.CacheStrategy = qd.CacheStrategy
		q.CacheGroup = qd.CacheGroup
		q.FetchDataRows = qd.FetchDataRows
		if err := m.AddQueryDescriptor(q); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return m, nil
}

/*
Load builds one map per document, links the maps named in dependsOn and
validates the result. Dependencies must be among the loaded documents.
*/
func Load(format Format, docs ...[]byte) ([]*mapping.DataMap, error) {
	descriptors := make([]*MapDescriptor, 0, len(docs))
	for _, data := range docs {
		d, err := Decode(data, format)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return link(descriptors)
}

// LoadFiles is Load for files, picking the format of each by its extension
func LoadFiles(paths ...string) ([]*mapping.DataMap, error) {
	descriptors := make([]*MapDescriptor, 0, len(paths))
	for _, path := range paths {
		format, err := FormatOf(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		d, err := Decode(data, format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		descriptors = append(descriptors, d)
	}
	return link(descriptors)
}

func link(descriptors []*MapDescriptor) ([]*mapping.DataMap, error) {
	maps := make([]*mapping.DataMap, 0, len(descriptors))
	byName := make(map[string]*mapping.DataMap, len(descriptors))
	for _, d := range descriptors {
		m, err := Build(d)
		if err != nil {
			return nil, err
		}
		if _, dup := byName[m.Name()]; dup {
			return nil, mapping.NewConfigError(m.Name(), "map is loaded twice")
		}
		byName[m.Name()] = m
		maps = append(maps, m)
	}

	var errs *multierror.Error
	for _, d := range descriptors {
		m := byName[d.Name]
		for _, name := range d.DependsOn {
			dep, ok := byName[name]
			if !ok {
				errs = multierror.Append(errs, mapping.NewConfigError(d.Name, "dependency %s is not loaded", name))
				continue
			}
			if err := m.AddDependency(dep); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	for _, m := range maps {
		if err := m.Validate(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return maps, nil
}
