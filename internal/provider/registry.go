package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"socialpress/internal/errs"
)

// Connectable is the piece of the capability interfaces the registry
// needs for connection testing.
type Connectable interface {
	TestConnection(ctx context.Context) error
}

// Registry maps provider type names to descriptors. It is read-mostly
// and safe for concurrent lookups. One instance exists per capability
// (one for fetchers, one for translators).
type Registry[T Connectable] struct {
	mu      sync.RWMutex
	entries map[string]Descriptor[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T Connectable]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]Descriptor[T])}
}

// Register adds or replaces a provider type. Registering the same type
// twice idempotently overwrites the earlier descriptor.
func (r *Registry[T]) Register(d Descriptor[T]) error {
	if d.Type == "" {
		return fmt.Errorf("registering provider: empty type")
	}
	if d.New == nil {
		return fmt.Errorf("registering provider %q: missing factory", d.Type)
	}
	r.mu.Lock()
	r.entries[d.Type] = d
	r.mu.Unlock()
	return nil
}

// Unregister removes a provider type. Returns whether it was present.
func (r *Registry[T]) Unregister(typ string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[typ]
	delete(r.entries, typ)
	return ok
}

// Get builds a provider instance for the given type and settings.
func (r *Registry[T]) Get(typ string, settings map[string]string) (T, error) {
	r.mu.RLock()
	d, ok := r.entries[typ]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, errs.New(errs.ProviderNotFound, "invalid provider type: %s", typ)
	}
	return d.New(settings), nil
}

// Descriptor returns the descriptor for a type.
func (r *Registry[T]) Descriptor(typ string) (Descriptor[T], error) {
	r.mu.RLock()
	d, ok := r.entries[typ]
	r.mu.RUnlock()
	if !ok {
		return Descriptor[T]{}, errs.New(errs.ProviderNotFound, "invalid provider type: %s", typ)
	}
	return d, nil
}

// Descriptors returns all registered descriptors sorted by type.
func (r *Registry[T]) Descriptors() []Descriptor[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor[T], 0, len(r.entries))
	for _, d := range r.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Validate checks that every required setting is present and non-empty,
// reporting the human-readable labels of missing fields in schema order.
func (r *Registry[T]) Validate(typ string, settings map[string]string) error {
	d, err := r.Descriptor(typ)
	if err != nil {
		return err
	}
	var missing []string
	for _, field := range d.Settings {
		if settings[field.Key] == "" {
			missing = append(missing, field.Label)
		}
	}
	if len(missing) > 0 {
		return errs.Missing(missing)
	}
	return nil
}

// TestConnection validates the settings, instantiates the provider, and
// runs its connectivity probe. Provider errors are surfaced to the
// caller, normalized into the typed taxonomy.
func (r *Registry[T]) TestConnection(ctx context.Context, typ string, settings map[string]string) error {
	if err := r.Validate(typ, settings); err != nil {
		return err
	}
	instance, err := r.Get(typ, settings)
	if err != nil {
		return err
	}
	if err := instance.TestConnection(ctx); err != nil {
		if errs.KindOf(err) == "" {
			return errs.Wrap(errs.APIError, err, "connection test failed for %s", typ)
		}
		return err
	}
	return nil
}
