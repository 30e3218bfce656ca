package recorder

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/pjanec/simcore/internal/ecs"
)

// PolymorphicRegistry assigns a stable 16-bit type id to every concrete
// type that can appear behind an interface-typed component field, and
// mirrors that registration into the process-wide gob registry so the
// codec can actually encode/decode the interface value. Grounded on the
// gob-based deep-copy/registration pattern used for delta-encoded
// component payloads in the wider ECS networking corpus.
type PolymorphicRegistry struct {
	mu     sync.Mutex
	byName map[string]uint16
	next   uint16
}

// NewPolymorphicRegistry creates an empty registry.
func NewPolymorphicRegistry() *PolymorphicRegistry {
	return &PolymorphicRegistry{byName: make(map[string]uint16)}
}

// Register assigns name the next free 16-bit id and registers sample's
// concrete type with the gob codec under that name.
func (p *PolymorphicRegistry) Register(name string, sample any) (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byName[name]; exists {
		return 0, fmt.Errorf("recorder: polymorphic type %q already registered", name)
	}
	if p.next == 0xFFFF {
		return 0, fmt.Errorf("recorder: polymorphic type registry is full (65535 types max)")
	}
	id := p.next
	p.next++
	p.byName[name] = id
	gob.RegisterName(name, sample)
	return id, nil
}

// codec encodes/decodes component values to/from the recording's payload
// bytes, using gob so interface-typed fields registered through a
// PolymorphicRegistry round-trip along with the rest of the struct.
type codec struct {
	registry *ecs.TypeRegistry
}

func newCodec(registry *ecs.TypeRegistry) *codec {
	return &codec{registry: registry}
}

// encode serializes v (the concrete component value behind the Component
// interface) to bytes.
func (c *codec) encode(v ecs.Component) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		if strings.Contains(err.Error(), "type not registered") {
			return nil, &ecs.StoreError{Code: ecs.ErrUnregisteredPolymorphicType, Message: err.Error()}
		}
		return nil, &ecs.StoreError{Code: ecs.ErrIoFailure, Message: err.Error()}
	}
	return buf.Bytes(), nil
}

// decode deserializes payload into a freshly-allocated value of ct's
// registered Go type, returning it as a Component.
func (c *codec) decode(ct ecs.ComponentType, payload []byte) (ecs.Component, error) {
	info, ok := c.registry.Lookup(ct)
	if !ok || info.GoType == nil {
		return nil, &ecs.StoreError{Code: ecs.ErrSchemaMismatch, Message: fmt.Sprintf("component type %d has no registered Go type for replay", ct), Component: ct}
	}
	ptr := reflect.New(info.GoType)
	if err := gob.NewDecoder(bytes.NewReader(payload)).DecodeValue(ptr); err != nil {
		return nil, &ecs.StoreError{Code: ecs.ErrSchemaMismatch, Message: err.Error(), Component: ct}
	}
	comp, ok := ptr.Elem().Interface().(ecs.Component)
	if !ok {
		return nil, &ecs.StoreError{Code: ecs.ErrSchemaMismatch, Message: "decoded value does not implement Component", Component: ct}
	}
	return comp, nil
}
