package event

import (
	"fmt"

	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
)

// Codec turns events into storage-neutral payloads and back.
type Codec struct {
	registry  *Registry
	upcasters *UpcasterChain
}

func NewCodec(registry *Registry, upcasters *UpcasterChain) *Codec {
	if upcasters == nil {
		upcasters = NewUpcasterChain()
	}
	return &Codec{registry: registry, upcasters: upcasters}
}

func (c *Codec) Registry() *Registry { return c.registry }

// Encode returns the event's storage name, the schema version it is written
// at and its flattened payload.
func (c *Codec) Encode(e Event) (string, int, Payload, error) {
	reg, err := c.registry.Resolve(e.EventName())
	if err != nil {
		return "", 0, nil, err
	}
	payload := e.Payload()
	if payload == nil {
		payload = Payload{}
	}
	return reg.Name, reg.Version, payload, nil
}

// Decode rebuilds a typed event. Payloads stored at an older schema version
// go through the upcaster chain first.
func (c *Codec) Decode(base Base, name string, payload Payload, storedVersion int) (Event, error) {
	reg, err := c.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = Payload{}
	}
	if storedVersion < 1 {
		storedVersion = 1
	}

	if storedVersion < reg.Version {
		payload, err = c.upcasters.Upcast(reg.Type, storedVersion, payload, reg.Version)
		if err != nil {
			return nil, err
		}
	} else if storedVersion > reg.Version {
		return nil, fmt.Errorf("event %q: stored schema v%d is newer than v%d", name, storedVersion, reg.Version)
	}

	e, err := reg.Decode(base, payload)
	if err != nil {
		var missing *apperrors.MissingFieldError
		if apperrors.As(err, &missing) && missing.EventName == "" {
			missing.EventName = name
		}
		return nil, err
	}
	return e, nil
}
