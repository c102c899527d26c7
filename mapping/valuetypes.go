package mapping

import (
	"sync"

	"github.com/modern-go/reflect2"
)

// ValueSerializer renders a value as a stable string, for cache keys
type ValueSerializer func(value interface{}) string

// ValueTypeRegistry maps Go types to custom value serializers
type ValueTypeRegistry struct {
	mu          sync.RWMutex
	serializers map[uintptr]ValueSerializer
}

// NewValueTypeRegistry returns an empty registry
func NewValueTypeRegistry() *ValueTypeRegistry {
	return &ValueTypeRegistry{serializers: make(map[uintptr]ValueSerializer)}
}

// Register sets the serializer for the dynamic type of sample
func (r *ValueTypeRegistry) Register(sample interface{}, fn ValueSerializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializers[reflect2.RTypeOf(sample)] = fn
}

// Serializer returns the serializer registered for the type of value
func (r *ValueTypeRegistry) Serializer(value interface{}) (ValueSerializer, bool) {
	if r == nil || value == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.serializers[reflect2.RTypeOf(value)]
	return fn, ok
}
