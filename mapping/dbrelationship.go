package mapping

/*
DbRelationship is a join between two tables. The target is stored by name and
looked up through the source entity's DataMap on every call.
*/
type DbRelationship struct {
	name          string
	source        *DbEntity
	targetName    string
	joins         []*DbJoin
	toMany        bool
	toDependentPK bool
	runtime       bool
}

// NewDbRelationship returns a to-one relationship with no joins
func NewDbRelationship(name, targetEntityName string) *DbRelationship {
	return &DbRelationship{name: name, targetName: targetEntityName}
}

func (r *DbRelationship) relationship() {}

// Name of the relationship
func (r *DbRelationship) Name() string {
	return r.name
}

// SourceEntity implements Relationship
func (r *DbRelationship) SourceEntity() Entity {
	if r.source == nil {
		return nil
	}
	return r.source
}

// Source returns the owning table
func (r *DbRelationship) Source() *DbEntity {
	return r.source
}

// TargetEntityName returns the name of the target table
func (r *DbRelationship) TargetEntityName() string {
	return r.targetName
}

// SetTargetEntityName retargets the relationship
func (r *DbRelationship) SetTargetEntityName(name string) {
	r.targetName = name
	r.changed()
}

// Target resolves the target table, nil when it isn't mapped
func (r *DbRelationship) Target() *DbEntity {
	if r.source == nil || r.source.dataMap == nil {
		return nil
	}
	return r.source.dataMap.DbEntity(r.targetName)
}

// TargetEntity implements Relationship
func (r *DbRelationship) TargetEntity() Entity {
	if t := r.Target(); t != nil {
		return t
	}
	return nil
}

// IsToMany reports the cardinality
func (r *DbRelationship) IsToMany() bool {
	return r.toMany
}

// SetToMany changes the cardinality
func (r *DbRelationship) SetToMany(toMany bool) {
	r.toMany = toMany
	r.changed()
}

// IsToDependentPK reports whether the target's primary key is also a foreign
// key back to the source
func (r *DbRelationship) IsToDependentPK() bool {
	return r.toDependentPK
}

// SetToDependentPK sets the dependent key flag
func (r *DbRelationship) SetToDependentPK(dep bool) {
	r.toDependentPK = dep
	r.changed()
}

// IsRuntime reports whether the relationship was created by ApplyDBLayerDefaults
func (r *DbRelationship) IsRuntime() bool {
	return r.runtime
}

// SetRuntime flags a relationship created at runtime
func (r *DbRelationship) SetRuntime(runtime bool) {
	r.runtime = runtime
}

// Joins returns the column pairs in order
func (r *DbRelationship) Joins() []*DbJoin {
	return append([]*DbJoin(nil), r.joins...)
}

// AddJoin appends a column pair
func (r *DbRelationship) AddJoin(j *DbJoin) {
	j.relationship = r
	r.joins = append(r.joins, j)
	r.changed()
}

// RemoveAllJoins clears the column pairs
func (r *DbRelationship) RemoveAllJoins() {
	r.joins = nil
	r.changed()
}

// ReverseRelationship scans the target for a relationship back to the source
// whose joins are the exact inverse of these. It returns nil when there are no
// joins or no match.
func (r *DbRelationship) ReverseRelationship() *DbRelationship {
	target := r.Target()
	if target == nil || r.source == nil || len(r.joins) == 0 {
		return nil
	}
	for _, candidate := range target.DbRelationships() {
		if candidate.targetName != r.source.name || len(candidate.joins) != len(r.joins) {
			continue
		}
		if r.joinsReversedBy(candidate) {
			return candidate
		}
	}
	return nil
}

func (r *DbRelationship) joinsReversedBy(other *DbRelationship) bool {
	for _, j := range r.joins {
		found := false
		for _, o := range other.joins {
			if o.SourceName == j.TargetName && o.TargetName == j.SourceName {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CreateReverseRelationship builds, without registering, a relationship from
// the target back to the source with flipped joins
func (r *DbRelationship) CreateReverseRelationship(name string) *DbRelationship {
	reverse := &DbRelationship{
		name:   name,
		toMany: !r.toMany,
	}
	if r.source != nil {
		reverse.targetName = r.source.name
	}
	// the dependent side of a one-to-one stays to-one
	if r.toDependentPK && !r.toMany {
		reverse.toMany = false
	}
	for _, j := range r.joins {
		reverse.joins = append(reverse.joins, &DbJoin{
			SourceName:   j.TargetName,
			TargetName:   j.SourceName,
			relationship: reverse,
		})
	}
	return reverse
}

// IsToPK reports whether any join lands on a target primary key
func (r *DbRelationship) IsToPK() bool {
	for _, j := range r.joins {
		if t := j.Target(); t != nil && t.IsPrimaryKey() {
			return true
		}
	}
	return false
}

// IsFromPK reports whether any join starts at a source primary key
func (r *DbRelationship) IsFromPK() bool {
	for _, j := range r.joins {
		if s := j.Source(); s != nil && s.IsPrimaryKey() {
			return true
		}
	}
	return false
}

// IsToMasterPK reports a to-one PK to PK relationship where the target is the
// master of the source
func (r *DbRelationship) IsToMasterPK() bool {
	if r.toMany || r.toDependentPK {
		return false
	}
	for _, j := range r.joins {
		s, t := j.Source(), j.Target()
		if s != nil && t != nil && s.IsPrimaryKey() && t.IsPrimaryKey() {
			return true
		}
	}
	return false
}

// IsSourceIndependentFromTargetChange reports whether the source row keeps
// its values when the target changes
func (r *DbRelationship) IsSourceIndependentFromTargetChange() bool {
	return r.toMany || r.toDependentPK || !r.IsToPK()
}

// SrcFkSnapshotWithTargetSnapshot maps target values onto source columns
func (r *DbRelationship) SrcFkSnapshotWithTargetSnapshot(target map[string]interface{}) map[string]interface{} {
	snapshot := make(map[string]interface{}, len(r.joins))
	for _, j := range r.joins {
		snapshot[j.SourceName] = target[j.TargetName]
	}
	return snapshot
}

// TargetPkSnapshotWithSrcSnapshot maps source values onto target columns. It
// returns nil for to-many relationships and when any value is missing.
func (r *DbRelationship) TargetPkSnapshotWithSrcSnapshot(source map[string]interface{}) map[string]interface{} {
	if r.toMany {
		return nil
	}
	snapshot := make(map[string]interface{}, len(r.joins))
	for _, j := range r.joins {
		v := source[j.SourceName]
		if v == nil {
			return nil
		}
		snapshot[j.TargetName] = v
	}
	return snapshot
}

func (r *DbRelationship) changed() {
	if r.source != nil {
		r.source.dataMap.relationshipsChanged()
	}
}

// DbJoin pairs a source column with a target column by name. Attributes are
// resolved on every call since entities can be changed after the join is made.
type DbJoin struct {
	SourceName   string
	TargetName   string
	relationship *DbRelationship
}

// NewDbJoin returns an unattached join
func NewDbJoin(sourceName, targetName string) *DbJoin {
	return &DbJoin{SourceName: sourceName, TargetName: targetName}
}

// Relationship returns the owning relationship
func (j *DbJoin) Relationship() *DbRelationship {
	return j.relationship
}

// Source resolves the source column
func (j *DbJoin) Source() *DbAttribute {
	if j.relationship == nil || j.relationship.source == nil {
		return nil
	}
	return j.relationship.source.DbAttribute(j.SourceName)
}

// Target resolves the target column
func (j *DbJoin) Target() *DbAttribute {
	if j.relationship == nil {
		return nil
	}
	t := j.relationship.Target()
	if t == nil {
		return nil
	}
	return t.DbAttribute(j.TargetName)
}
