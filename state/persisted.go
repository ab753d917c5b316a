package state

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Slice versions. Bump when a whitelisted field changes shape.
const (
	AuthVersion     = 1
	UIVersion       = 1
	ProductsVersion = 1
)

// PersistedSlice describes one slice to the persistor: its durable key, its
// schema version and which fields may be written.
type PersistedSlice[T any] struct {
	name      string
	version   int
	whitelist []string
	get       func() T
	set       func(action string, v T)
	initial   func() T
}

// Name returns the slice name.
func (p *PersistedSlice[T]) Name() string { return p.name }

// Key returns the durable storage key.
func (p *PersistedSlice[T]) Key() string { return "persist:" + p.name }

// Version returns the schema version.
func (p *PersistedSlice[T]) Version() int { return p.version }

// Whitelist returns the JSON field names that may be persisted.
func (p *PersistedSlice[T]) Whitelist() []string { return slices.Clone(p.whitelist) }

// Snapshot returns every field of the current slice value, keyed by JSON name.
func (p *PersistedSlice[T]) Snapshot() (map[string]json.RawMessage, error) {
	return fieldsOf(p.get())
}

// Restore merges fields onto the initial value and installs the result.
// Unknown fields are ignored.
func (p *PersistedSlice[T]) Restore(fields map[string]json.RawMessage) error {
	base, err := fieldsOf(p.initial())
	if err != nil {
		return err
	}
	for k, v := range fields {
		if _, known := base[k]; known {
			base[k] = v
		}
	}
	data, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("restore %s: %w", p.name, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("restore %s: %w", p.name, err)
	}
	p.set(ActionRehydrate, v)
	return nil
}

// Reset installs the initial value.
func (p *PersistedSlice[T]) Reset() {
	p.set(ActionReset, p.initial())
}

func fieldsOf(v any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// AuthSlice persists {user, isAuthenticated, error}.
func (s *Store) AuthSlice() *PersistedSlice[AuthState] {
	return &PersistedSlice[AuthState]{
		name:      SliceAuth,
		version:   AuthVersion,
		whitelist: []string{"user", "isAuthenticated", "error"},
		get:       s.Auth,
		set: func(action string, v AuthState) {
			s.updateAuth(action, func(a *AuthState) { *a = v })
		},
		initial: initialAuth,
	}
}

// UISlice persists {theme, sidebarOpen}.
func (s *Store) UISlice() *PersistedSlice[UIState] {
	return &PersistedSlice[UIState]{
		name:      SliceUI,
		version:   UIVersion,
		whitelist: []string{"theme", "sidebarOpen"},
		get:       s.UI,
		set: func(action string, v UIState) {
			s.updateUI(action, func(u *UIState) { *u = cloneUI(v) })
		},
		initial: initialUI,
	}
}

// ProductsSlice persists {filters, pageSize, viewMode}.
func (s *Store) ProductsSlice() *PersistedSlice[ProductsState] {
	return &PersistedSlice[ProductsState]{
		name:      SliceProducts,
		version:   ProductsVersion,
		whitelist: []string{"filters", "pageSize", "viewMode"},
		get:       s.Products,
		set: func(action string, v ProductsState) {
			s.updateProducts(action, func(p *ProductsState) { *p = cloneProducts(v) })
		},
		initial: initialProducts,
	}
}
