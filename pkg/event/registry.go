package event

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
)

// DecodeFunc builds a concrete event from its envelope fields and an
// upcasted payload. It reports absent required fields with MissingFieldError.
type DecodeFunc func(base Base, payload Payload) (Event, error)

// Registration binds a stable event name to the concrete type that decodes it.
type Registration struct {
	// Name is the storage name, e.g. "user.created".
	Name string
	// Type is the short type name upcasters are keyed by, e.g. "UserCreated".
	Type string
	// AggregateType defaults to the part of Name before the first dot.
	AggregateType string
	// Version is the schema version the type currently writes. Defaults to 1.
	Version int
	Decode  DecodeFunc
}

// Registry maps event names to registrations and back. Populate it once at
// startup and pass it to the Codec; it is safe for concurrent reads.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Registration
	byType map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Registration),
		byType: make(map[string]string),
	}
}

// Register adds a registration. Registering the same name and type twice is a
// no-op; binding a name (or a type) that is already taken fails with
// DuplicateEventNameError.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" || reg.Type == "" {
		return fmt.Errorf("event registration requires a name and a type")
	}
	if reg.Decode == nil {
		return fmt.Errorf("event %q: decode function is required", reg.Name)
	}
	if reg.Version == 0 {
		reg.Version = 1
	}
	if reg.Version < 1 {
		return fmt.Errorf("event %q: schema version must be positive, got %d", reg.Name, reg.Version)
	}
	if reg.AggregateType == "" {
		reg.AggregateType = AggregateTypeOf(reg.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[reg.Name]; ok {
		if existing.Type == reg.Type {
			return nil
		}
		return apperrors.NewDuplicateEventName(reg.Name)
	}
	if name, ok := r.byType[reg.Type]; ok && name != reg.Name {
		return apperrors.NewDuplicateEventName(reg.Name)
	}

	r.byName[reg.Name] = reg
	r.byType[reg.Type] = reg.Name
	return nil
}

// MustRegister panics on error. Use it only from startup wiring.
func (r *Registry) MustRegister(regs ...Registration) {
	for _, reg := range regs {
		if err := r.Register(reg); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the registration for a stored event name.
func (r *Registry) Resolve(name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.byName[name]
	if !ok {
		return Registration{}, apperrors.NewUnknownEventName(name)
	}
	return reg, nil
}

// NameFor is the reverse lookup: short type name to event name.
func (r *Registry) NameFor(typeName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.byType[typeName]
	return name, ok
}

// Names lists every registered event name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
