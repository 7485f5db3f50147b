package user

import (
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
)

const (
	EventUserCreated  = "user.created"
	EventUserApproved = "user.approved"

	DefaultLocale = "en"
)

// UserCreated is written at schema version 2. Version 1 payloads carried
// "name" instead of "full_name" and had no locale.
type UserCreated struct {
	event.Base
	Email    string
	FullName string
	Locale   string
}

func (UserCreated) EventName() string { return EventUserCreated }

func (e UserCreated) Payload() event.Payload {
	return event.Payload{
		"email":     e.Email,
		"full_name": e.FullName,
		"locale":    e.Locale,
	}
}

type UserApproved struct {
	event.Base
	ApprovedBy string
}

func (UserApproved) EventName() string { return EventUserApproved }

func (e UserApproved) Payload() event.Payload {
	return event.Payload{"approved_by": e.ApprovedBy}
}

// RegisterEvents binds the user events and their upcasters.
func RegisterEvents(registry *event.Registry, upcasters *event.UpcasterChain) error {
	err := registry.Register(event.Registration{
		Name:    EventUserCreated,
		Type:    "UserCreated",
		Version: 2,
		Decode:  decodeUserCreated,
	})
	if err != nil {
		return err
	}
	err = registry.Register(event.Registration{
		Name:   EventUserApproved,
		Type:   "UserApproved",
		Decode: decodeUserApproved,
	})
	if err != nil {
		return err
	}

	return upcasters.Register(event.Upcaster{Type: "UserCreated", From: 1, To: 2, Fn: upcastUserCreatedV1})
}

func upcastUserCreatedV1(p event.Payload) (event.Payload, error) {
	if name, ok := p["name"]; ok {
		p["full_name"] = name
		delete(p, "name")
	}
	if _, ok := p["locale"]; !ok {
		p["locale"] = DefaultLocale
	}
	return p, nil
}

func decodeUserCreated(base event.Base, p event.Payload) (event.Event, error) {
	email, err := p.String("email")
	if err != nil {
		return nil, err
	}
	fullName, err := p.String("full_name")
	if err != nil {
		return nil, err
	}
	locale, err := p.StringOr("locale", DefaultLocale)
	if err != nil {
		return nil, err
	}
	return UserCreated{Base: base, Email: email, FullName: fullName, Locale: locale}, nil
}

func decodeUserApproved(base event.Base, p event.Payload) (event.Event, error) {
	by, err := p.String("approved_by")
	if err != nil {
		return nil, err
	}
	return UserApproved{Base: base, ApprovedBy: by}, nil
}
