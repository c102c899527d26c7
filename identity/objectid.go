/*
Package identity holds the globally unique identity of persistent objects.
*/
package identity

import (
	"fmt"
	"sort"
	"strings"

	uuid "github.com/satori/go.uuid"
)

/*
ObjectID identifies a persistent object by entity name and primary key values.
An object that hasn't been inserted yet gets a temporary ID keyed by a random
UUID. Generated key values that become known while a unit of work is committed
are collected in the replacement ID map.
*/
type ObjectID struct {
	entityName  string
	id          map[string]interface{}
	key         uuid.UUID
	replacement map[string]interface{}
}

// Persistent is implemented by objects that carry an ObjectID
type Persistent interface {
	ObjectID() *ObjectID
}

// NewObjectID returns a permanent ID from a primary key snapshot
func NewObjectID(entityName string, id map[string]interface{}) *ObjectID {
	snapshot := make(map[string]interface{}, len(id))
	for k, v := range id {
		snapshot[k] = v
	}
	return &ObjectID{entityName: entityName, id: snapshot}
}

// NewSingleID is the NewObjectID shortcut for single column keys
func NewSingleID(entityName, key string, value interface{}) *ObjectID {
	return &ObjectID{entityName: entityName, id: map[string]interface{}{key: value}}
}

// NewTemporaryID returns an ID for an object that has no key yet
func NewTemporaryID(entityName string) *ObjectID {
	return &ObjectID{entityName: entityName, key: uuid.NewV4()}
}

// EntityName is the name of the ObjEntity the object belongs to
func (o *ObjectID) EntityName() string {
	return o.entityName
}

// IsTemporary reports whether the object has no permanent key yet
func (o *ObjectID) IsTemporary() bool {
	return o.id == nil
}

// IDSnapshot returns a copy of the primary key values
func (o *ObjectID) IDSnapshot() map[string]interface{} {
	snapshot := make(map[string]interface{}, len(o.id))
	for k, v := range o.id {
		snapshot[k] = v
	}
	return snapshot
}

// ReplacementIDMap returns the live map of key values learned during commit
func (o *ObjectID) ReplacementIDMap() map[string]interface{} {
	if o.replacement == nil {
		o.replacement = make(map[string]interface{})
	}
	return o.replacement
}

// HasReplacementID reports whether any replacement values were collected
func (o *ObjectID) HasReplacementID() bool {
	return len(o.replacement) > 0
}

/*
CreateReplacementID returns the permanent ID the object will have once the
commit finishes: the current key values overlaid with the replacement values.
*/
func (o *ObjectID) CreateReplacementID() *ObjectID {
	id := o.IDSnapshot()
	for k, v := range o.replacement {
		id[k] = v
	}
	return &ObjectID{entityName: o.entityName, id: id}
}

// Equal compares entity names and key values. Temporary IDs are only equal
// to themselves.
func (o *ObjectID) Equal(other *ObjectID) bool {
	if o == other {
		return true
	}
	if o == nil || other == nil || o.entityName != other.entityName {
		return false
	}
	if o.IsTemporary() || other.IsTemporary() {
		return o.IsTemporary() && other.IsTemporary() && o.key == other.key
	}
	if len(o.id) != len(other.id) {
		return false
	}
	for k, v := range o.id {
		ov, ok := other.id[k]
		if !ok || fmt.Sprint(v) != fmt.Sprint(ov) {
			return false
		}
	}
	return true
}

// String renders entity:key=value&key=value with keys sorted, or
// entity:tmp:uuid for temporary IDs
func (o *ObjectID) String() string {
	if o.IsTemporary() {
		return o.entityName + ":tmp:" + o.key.String()
	}
	keys := make([]string, 0, len(o.id))
	for k := range o.id {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, o.id[k]))
	}
	return o.entityName + ":" + strings.Join(parts, "&")
}
