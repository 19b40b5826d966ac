package types

import "sync"

// Flags carried on a Type that constrain setTufoProp updates (spec.md §3/§4.4).
type Flags struct {
	IsMin bool // updates only accept strictly smaller values
	IsMax bool // updates only accept strictly greater values
}

// Type is a named, optionally-derived type binding for a property.
type Type struct {
	Name  string
	Base  string // subof; empty if not derived
	Flags Flags
}

// Policy returns the variant this type dispatches to: "min", "max", or
// "plain" — spec.md's Design Notes call for a policy-per-flag variant
// rather than runtime attribute sniffing at each call site.
func (t Type) Policy() string {
	switch {
	case t.Flags.IsMin:
		return "min"
	case t.Flags.IsMax:
		return "max"
	default:
		return "plain"
	}
}

// TypeRegistry binds prop/form names to Types. A cortex owns exactly one
// TypeRegistry (spec.md §3 ownership).
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]Type
	forms map[string]bool
	props map[string]string // prop -> type name
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types: make(map[string]Type),
		forms: make(map[string]bool),
		props: make(map[string]string),
	}
}

// AddType registers a named type with the given base and flags.
func (r *TypeRegistry) AddType(name, base string, flags Flags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = Type{Name: name, Base: base, Flags: flags}
}

// GetType returns the named type and whether it is registered.
func (r *TypeRegistry) GetType(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// AddTufoForm registers a form name (the value tufo:form may take).
func (r *TypeRegistry) AddTufoForm(form string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[form] = true
}

// HasForm reports whether a form name is registered.
func (r *TypeRegistry) HasForm(form string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forms[form]
}

// AddTufoProp binds a property name to a type name.
func (r *TypeRegistry) AddTufoProp(prop, typeName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.props[prop] = typeName
}

// TypeOfProp resolves the type bound to a property, if any. A property
// with no explicit binding is non-ratcheting ("plain").
func (r *TypeRegistry) TypeOfProp(prop string) (Type, bool) {
	r.mu.RLock()
	typeName, ok := r.props[prop]
	r.mu.RUnlock()
	if !ok {
		return Type{}, false
	}
	return r.GetType(typeName)
}
