package event

import (
	"fmt"
	"sync"
)

// UpcastFunc rewrites a payload from one schema version to the next. It
// receives a private copy and may modify it in place.
type UpcastFunc func(payload Payload) (Payload, error)

// Upcaster transforms payloads of Type stored at version From into version To.
type Upcaster struct {
	Type string
	From int
	To   int
	Fn   UpcastFunc
}

type upcastKey struct {
	typeName string
	version  int
}

// UpcasterChain holds every registered upcaster keyed by (type, from version).
type UpcasterChain struct {
	mu    sync.RWMutex
	steps map[upcastKey]Upcaster
}

func NewUpcasterChain() *UpcasterChain {
	return &UpcasterChain{steps: make(map[upcastKey]Upcaster)}
}

// Register adds a transform. Only one upcaster may start from a given version
// of a type, and it must move the version forward.
func (c *UpcasterChain) Register(u Upcaster) error {
	if u.Type == "" || u.Fn == nil {
		return fmt.Errorf("upcaster requires a type and a function")
	}
	if u.From < 1 || u.To <= u.From {
		return fmt.Errorf("upcaster %s: invalid step v%d -> v%d", u.Type, u.From, u.To)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := upcastKey{typeName: u.Type, version: u.From}
	if existing, ok := c.steps[key]; ok {
		return fmt.Errorf("upcaster %s: v%d already upcast to v%d", u.Type, u.From, existing.To)
	}
	c.steps[key] = u
	return nil
}

func (c *UpcasterChain) MustRegister(ups ...Upcaster) {
	for _, u := range ups {
		if err := c.Register(u); err != nil {
			panic(err)
		}
	}
}

// Upcast walks typeName's payload from version from to version to. A version
// with no registered transform is taken as unchanged and skipped by one.
// The caller's payload is never modified.
func (c *UpcasterChain) Upcast(typeName string, from int, payload Payload, to int) (Payload, error) {
	if from == to {
		return payload, nil
	}
	if from > to {
		return nil, fmt.Errorf("upcast %s: stored version %d is newer than v%d", typeName, from, to)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	current := from
	out := payload.Clone()
	for current < to {
		step, ok := c.steps[upcastKey{typeName: typeName, version: current}]
		if !ok {
			current++
			continue
		}
		if step.To > to {
			return nil, fmt.Errorf("upcast %s: step v%d -> v%d overshoots v%d", typeName, step.From, step.To, to)
		}

		next, err := step.Fn(out)
		if err != nil {
			return nil, fmt.Errorf("upcast %s v%d -> v%d: %w", typeName, step.From, step.To, err)
		}
		if next == nil {
			next = Payload{}
		}
		out = next
		current = step.To
	}
	return out, nil
}
