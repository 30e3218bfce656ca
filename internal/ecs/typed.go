package ecs

import "reflect"

// RegisterComponent registers Go type T under name with the given data
// policy, returning its freshly-assigned 8-bit ComponentType id. Callers
// typically do this once at store-construction time, mirroring the
// teacher's RegisterComponentType(ComponentType, func() Component)
// factory registration.
func RegisterComponent[T Component](s *Store, name string, policy DataPolicy) (ComponentType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	goType := reflect.TypeOf((*T)(nil)).Elem()
	if _, exists := s.byGoType[goType]; exists {
		return 0, newStoreError(ErrUnknownType, "component type "+name+" already registered for this Go type")
	}
	id, err := s.registry.RegisterTyped(name, policy, goType)
	if err != nil {
		return 0, err
	}
	s.byGoType[goType] = id
	return id, nil
}

func typeOf[T Component]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// AddComponent attaches a new component of type T to e. Fails with
// UnknownType if T was never registered, StaleEntity if e is invalid.
func AddComponent[T Component](s *Store, e Entity, v T) error {
	ct, ok := s.componentTypeFor(typeOf[T]())
	if !ok {
		return UnknownTypeErr(InvalidComponentType)
	}
	return s.addComponentRaw(e, ct, v, false)
}

// SetComponent overwrites (or creates) e's component of type T.
func SetComponent[T Component](s *Store, e Entity, v T) error {
	ct, ok := s.componentTypeFor(typeOf[T]())
	if !ok {
		return UnknownTypeErr(InvalidComponentType)
	}
	return s.addComponentRaw(e, ct, v, true)
}

// RemoveComponent detaches e's component of type T.
func RemoveComponent[T Component](s *Store, e Entity) error {
	ct, ok := s.componentTypeFor(typeOf[T]())
	if !ok {
		return UnknownTypeErr(InvalidComponentType)
	}
	return s.removeComponentRaw(e, ct)
}

// GetComponent returns e's component of type T. Result is undefined if e
// is not Active; callers that need non-Active access should go through a
// query built with WithLifecycle/IncludeAll.
func GetComponent[T Component](s *Store, e Entity) (T, error) {
	var zero T
	ct, ok := s.componentTypeFor(typeOf[T]())
	if !ok {
		return zero, UnknownTypeErr(InvalidComponentType)
	}
	v, err := s.getComponentRaw(e, ct)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, UnknownTypeErr(ct)
	}
	return typed, nil
}

// HasComponentChanged reports whether T's chunk covering e was written at
// a version strictly greater than since.
func HasComponentChanged[T Component](s *Store, e Entity, since uint32) bool {
	ct, ok := s.componentTypeFor(typeOf[T]())
	if !ok {
		return false
	}
	return s.HasComponentChangedRaw(ct, e, since)
}

// AnyComponentTypeChanged is AnyComponentChanged specialized on T, used
// by OnComponentChange[T] reactive triggers.
func AnyComponentTypeChanged[T Component](s *Store, since uint32) bool {
	ct, ok := s.componentTypeFor(typeOf[T]())
	if !ok {
		return false
	}
	return s.AnyComponentChanged(ct, since)
}

// ComponentTypeID returns the registered id for T, if any.
func ComponentTypeID[T Component](s *Store) (ComponentType, bool) {
	return s.componentTypeFor(typeOf[T]())
}
