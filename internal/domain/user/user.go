package user

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/eventstore"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

type User struct {
	*eventstore.AggregateRoot
	email      string
	fullName   string
	locale     string
	status     Status
	approvedBy string
}

// New returns an empty user for replay.
func New() *User {
	u := &User{}
	u.AggregateRoot = eventstore.NewAggregateRoot(u.apply)
	return u
}

// Register starts a new user stream with a generated id.
func Register(email, fullName, locale string) (*User, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewBadRequest("invalid email address", err)
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, apperrors.NewBadRequest("full name is required", nil)
	}
	if locale == "" {
		locale = DefaultLocale
	}

	u := New()
	err := u.Record(UserCreated{
		Base:     event.NewBase(uuid.NewString()),
		Email:    email,
		FullName: fullName,
		Locale:   locale,
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) Approve(approvedBy string) error {
	if approvedBy == "" {
		return apperrors.NewBadRequest("approver is required", nil)
	}
	if u.status == StatusApproved {
		return apperrors.NewConflict(fmt.Sprintf("user %s is already approved", u.AggregateID()), nil)
	}
	return u.Record(UserApproved{Base: event.NewBase(u.AggregateID()), ApprovedBy: approvedBy})
}

func (u *User) Email() string      { return u.email }
func (u *User) FullName() string   { return u.fullName }
func (u *User) Locale() string     { return u.locale }
func (u *User) Status() Status     { return u.status }
func (u *User) ApprovedBy() string { return u.approvedBy }

func (u *User) apply(e event.Event) error {
	switch e := e.(type) {
	case UserCreated:
		if u.status != "" {
			return fmt.Errorf("user %s already exists", e.AggregateID())
		}
		u.email = e.Email
		u.fullName = e.FullName
		u.locale = e.Locale
		u.status = StatusPending
	case UserApproved:
		if u.status != StatusPending {
			return fmt.Errorf("user %s cannot be approved from status %q", e.AggregateID(), u.status)
		}
		u.status = StatusApproved
		u.approvedBy = e.ApprovedBy
	default:
		return fmt.Errorf("unexpected event %s", e.EventName())
	}
	return nil
}
