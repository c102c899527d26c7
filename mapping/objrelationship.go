package mapping

import (
	"strings"
	"sync"
)

// DeleteRule tells the object layer what to do with targets of a deleted source
type DeleteRule int

// Delete rules
const (
	DeleteNoAction DeleteRule = iota
	DeleteNullify
	DeleteCascade
	DeleteDeny
)

/*
ObjRelationship maps a class level relationship onto a path of one or more
DbRelationships. A path set with SetDbRelationshipPath is kept deferred until
every hop can be resolved.

toMany and read-only are derived from the hops and recomputed whenever the path
or any underlying DbRelationship changes:
  - toMany is true if any hop is to-many
  - one hop is always writable
  - two hops are writable only for a to-many, reversible-to-PK first hop followed
    by a to-one, to-PK second hop (many-to-many through a join table)
  - anything longer is read-only
*/
type ObjRelationship struct {
	name           string
	source         *ObjEntity
	targetName     string
	DeleteRule     DeleteRule
	UsedForLocking bool

	mu              sync.Mutex
	deferredPath    string
	dbRelationships []*DbRelationship
	toMany          bool
	readOnly        bool
}

// NewObjRelationship returns a relationship with an empty db path
func NewObjRelationship(name, targetEntityName string) *ObjRelationship {
	return &ObjRelationship{name: name, targetName: targetEntityName}
}

func (r *ObjRelationship) relationship() {}

// Name of the relationship
func (r *ObjRelationship) Name() string {
	return r.name
}

// SourceEntity implements Relationship
func (r *ObjRelationship) SourceEntity() Entity {
	if r.source == nil {
		return nil
	}
	return r.source
}

// Source returns the declaring entity
func (r *ObjRelationship) Source() *ObjEntity {
	return r.source
}

// TargetEntityName returns the target entity name
func (r *ObjRelationship) TargetEntityName() string {
	return r.targetName
}

// SetTargetEntityName retargets the relationship
func (r *ObjRelationship) SetTargetEntityName(name string) {
	r.targetName = name
}

// Target resolves the target entity through the source's DataMap
func (r *ObjRelationship) Target() *ObjEntity {
	if r.source == nil || r.source.dataMap == nil {
		return nil
	}
	return r.source.dataMap.ObjEntity(r.targetName)
}

// TargetEntity implements Relationship
func (r *ObjRelationship) TargetEntity() Entity {
	if t := r.Target(); t != nil {
		return t
	}
	return nil
}

// SetDbRelationshipPath replaces the hops with a dotted db path resolved lazily
func (r *ObjRelationship) SetDbRelationshipPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbRelationships = nil
	r.deferredPath = path
	r.refreshFromDeferredPath()
	r.recalculate()
}

// DbRelationshipPath returns the dotted db path of the hops
func (r *ObjRelationship) DbRelationshipPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshFromDeferredPath()
	if r.deferredPath != "" {
		return r.deferredPath
	}
	names := make([]string, 0, len(r.dbRelationships))
	for _, hop := range r.dbRelationships {
		names = append(names, hop.name)
	}
	return strings.Join(names, ".")
}

// DbRelationships returns the resolved hops. A deferred path that can't be
// resolved yet yields no hops.
func (r *ObjRelationship) DbRelationships() []*DbRelationship {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshFromDeferredPath()
	return append([]*DbRelationship(nil), r.dbRelationships...)
}

// AddDbRelationship appends a hop, which must start where the path ends
func (r *ObjRelationship) AddDbRelationship(hop *DbRelationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshFromDeferredPath()
	if r.deferredPath != "" {
		return NewConfigError(r.name, "can't append to unresolved db path %s", r.deferredPath)
	}
	if n := len(r.dbRelationships); n > 0 {
		last := r.dbRelationships[n-1]
		if hop.source == nil || last.targetName != hop.source.name {
			return NewConfigError(r.name, "db relationship %s does not continue the path at %s", hop.name, last.targetName)
		}
	}
	r.dbRelationships = append(r.dbRelationships, hop)
	r.recalculate()
	return nil
}

// ClearDbRelationships empties the db path
func (r *ObjRelationship) ClearDbRelationships() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbRelationships = nil
	r.deferredPath = ""
	r.recalculate()
}

// IsToMany is true if any hop is to-many
func (r *ObjRelationship) IsToMany() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshFromDeferredPath()
	return r.toMany
}

// IsReadOnly reports whether the relationship can't be modified
func (r *ObjRelationship) IsReadOnly() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshFromDeferredPath()
	return r.readOnly
}

// IsFlattened reports a path of more than one hop
func (r *ObjRelationship) IsFlattened() bool {
	return len(r.DbRelationships()) > 1
}

// IsToDependentEntity reports whether the first hop is to a dependent key
func (r *ObjRelationship) IsToDependentEntity() bool {
	hops := r.DbRelationships()
	return len(hops) > 0 && hops[0].IsToDependentPK()
}

// IsToPK reports whether the first hop lands on a primary key
func (r *ObjRelationship) IsToPK() bool {
	hops := r.DbRelationships()
	return len(hops) > 0 && hops[0].IsToPK()
}

// IsSourceIndependentFromTargetChange reports whether the source keeps its
// values when the target changes
func (r *ObjRelationship) IsSourceIndependentFromTargetChange() bool {
	return r.IsToMany() || r.IsFlattened() || r.IsToDependentEntity() || !r.IsToPK()
}

// IsOptional reports whether the source can exist without a target
func (r *ObjRelationship) IsOptional() bool {
	if r.IsToMany() || r.IsFlattened() {
		return true
	}
	hops := r.DbRelationships()
	if len(hops) == 0 || hops[0].IsFromPK() {
		return true
	}
	for _, j := range hops[0].joins {
		if s := j.Source(); s != nil && s.Mandatory {
			return false
		}
	}
	return true
}

// ReverseRelationship finds the target relationship whose hops are the
// reverses of these in reverse order
func (r *ObjRelationship) ReverseRelationship() *ObjRelationship {
	target := r.Target()
	if target == nil || r.source == nil {
		return nil
	}
	reversed, ok := reverseHops(r.DbRelationships())
	if !ok {
		return nil
	}
	for _, candidate := range target.ObjRelationships() {
		if candidate == r || candidate.targetName != r.source.name {
			continue
		}
		hops := candidate.DbRelationships()
		if len(hops) != len(reversed) {
			continue
		}
		match := true
		for i := range hops {
			if hops[i] != reversed[i] {
				match = false
				break
			}
		}
		if match {
			return candidate
		}
	}
	return nil
}

// ReverseDbRelationshipPath returns the db path from the target back to the
// source, failing when a hop has no reverse
func (r *ObjRelationship) ReverseDbRelationshipPath() (string, error) {
	hops := r.DbRelationships()
	names := make([]string, 0, len(hops))
	for i := len(hops) - 1; i >= 0; i-- {
		rev := hops[i].ReverseRelationship()
		if rev == nil {
			return "", newReverseError(r.sourceName(), r.name, hops[i])
		}
		names = append(names, rev.name)
	}
	return strings.Join(names, "."), nil
}

func (r *ObjRelationship) sourceName() string {
	if r.source == nil {
		return ""
	}
	return r.source.name
}

// refreshFromDeferredPath must be called with the lock held
func (r *ObjRelationship) refreshFromDeferredPath() {
	if r.deferredPath == "" || r.source == nil {
		return
	}
	db := r.source.DbEntity()
	if db == nil {
		return
	}
	comps, err := db.ResolvePath(r.deferredPath, nil)
	if err != nil {
		return
	}
	hops := make([]*DbRelationship, 0, len(comps))
	for _, c := range comps {
		hop, ok := c.Relationship.(*DbRelationship)
		if !ok {
			return
		}
		hops = append(hops, hop)
	}
	r.dbRelationships = hops
	r.deferredPath = ""
	r.recalculate()
}

// recalculate must be called with the lock held
func (r *ObjRelationship) recalculate() {
	r.toMany = false
	for _, hop := range r.dbRelationships {
		if hop.toMany {
			r.toMany = true
			break
		}
	}

	switch n := len(r.dbRelationships); {
	case n < 2:
		r.readOnly = false
	case n > 2:
		r.readOnly = true
	default:
		first, second := r.dbRelationships[0], r.dbRelationships[1]
		r.readOnly = true
		if !first.toMany || second.toMany || !second.IsToPK() {
			return
		}
		if rev := first.ReverseRelationship(); rev == nil || !rev.IsToPK() {
			return
		}
		r.readOnly = false
	}
}

func reverseHops(hops []*DbRelationship) ([]*DbRelationship, bool) {
	if len(hops) == 0 {
		return nil, false
	}
	reversed := make([]*DbRelationship, 0, len(hops))
	for i := len(hops) - 1; i >= 0; i-- {
		rev := hops[i].ReverseRelationship()
		if rev == nil {
			return nil, false
		}
		reversed = append(reversed, rev)
	}
	return reversed, true
}
