package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/domain/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/email"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/model"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/validator"
)

// Service turns user events into outbox records. It must run inside the
// transaction that appended the events so both commit together.
type Service struct {
	outbox    repository.OutboxRepository
	renderer  *email.Renderer
	validator validator.Validator
	admins    []string
	logger    *logger.Logger
}

func NewService(outbox repository.OutboxRepository, renderer *email.Renderer, v validator.Validator, admins []string, log *logger.Logger) *Service {
	return &Service{
		outbox:    outbox,
		renderer:  renderer,
		validator: v,
		admins:    admins,
		logger:    log,
	}
}

// React enqueues the notifications caused by events, given the user state
// after they were applied.
func (s *Service) React(ctx context.Context, u *user.User, events []event.Event) error {
	for _, e := range events {
		var err error
		switch e := e.(type) {
		case user.UserCreated:
			err = s.onUserCreated(ctx, e)
		case user.UserApproved:
			err = s.onUserApproved(ctx, u, e)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) onUserCreated(ctx context.Context, e user.UserCreated) error {
	data := map[string]any{
		"FullName": e.FullName,
		"Email":    e.Email,
		"UserID":   e.AggregateID(),
	}
	if err := s.enqueue(ctx, e.EventID(), email.TypeWelcome, e.Email, data); err != nil {
		return err
	}
	for _, admin := range s.admins {
		if err := s.enqueue(ctx, e.EventID(), email.TypeAdminNotification, admin, data); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) onUserApproved(ctx context.Context, u *user.User, e user.UserApproved) error {
	return s.enqueue(ctx, e.EventID(), email.TypeApprovalConfirmation, u.Email(), map[string]any{
		"FullName":   u.FullName(),
		"ApprovedBy": e.ApprovedBy,
	})
}

func (s *Service) enqueue(ctx context.Context, cause uuid.UUID, notificationType, recipient string, data map[string]any) error {
	content, err := s.renderer.Render(notificationType, data)
	if err != nil {
		return fmt.Errorf("failed to render %s notification: %w", notificationType, err)
	}

	record := model.NewOutboxRecord(cause, notificationType, recipient, content.Subject, content.HTML, content.Text)
	if err := s.validator.Validate(record); err != nil {
		return fmt.Errorf("invalid %s notification: %w", notificationType, err)
	}

	inserted, err := s.outbox.Save(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s notification: %w", notificationType, err)
	}
	if !inserted {
		s.logger.Debug("Notification already enqueued", "event_id", cause.String(), "notification_type", notificationType, "recipient", recipient)
	}
	return nil
}
