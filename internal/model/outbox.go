package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

// MaxDeliveryAttempts is the ceiling after which a record is marked failed.
const MaxDeliveryAttempts = 5

// ParseOutboxStatus accepts any casing of pending, sent or failed.
func ParseOutboxStatus(s string) (OutboxStatus, error) {
	switch status := OutboxStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case OutboxStatusPending, OutboxStatusSent, OutboxStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown outbox status %q", s)
	}
}

// OutboxRecord is a fully rendered notification waiting for delivery.
type OutboxRecord struct {
	ID                uuid.UUID    `db:"id" json:"id"`
	TriggeringEventID uuid.UUID    `db:"triggering_event_id" json:"triggering_event_id" validate:"required"`
	NotificationType  string       `db:"notification_type" json:"notification_type" validate:"required,max=64"`
	Recipient         string       `db:"recipient" json:"recipient" validate:"required,email"`
	Subject           string       `db:"subject" json:"subject" validate:"required,max=255"`
	BodyHTML          string       `db:"body_html" json:"body_html"`
	BodyText          string       `db:"body_text" json:"body_text" validate:"required"`
	Status            OutboxStatus `db:"status" json:"status"`
	Attempts          int          `db:"attempts" json:"attempts"`
	LastError         string       `db:"last_error" json:"last_error,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	SentAt            *time.Time   `db:"sent_at" json:"sent_at,omitempty"`
	ClaimedBy         *string      `db:"claimed_by" json:"claimed_by,omitempty"`
	ClaimedAt         *time.Time   `db:"claimed_at" json:"claimed_at,omitempty"`
}

// NewOutboxRecord builds a pending record for the given cause and recipient.
func NewOutboxRecord(triggeringEventID uuid.UUID, notificationType, recipient, subject, html, text string) *OutboxRecord {
	return &OutboxRecord{
		ID:                uuid.New(),
		TriggeringEventID: triggeringEventID,
		NotificationType:  notificationType,
		Recipient:         recipient,
		Subject:           subject,
		BodyHTML:          html,
		BodyText:          text,
		Status:            OutboxStatusPending,
		CreatedAt:         time.Now().UTC(),
	}
}

// MarkSent records a successful delivery.
func (r *OutboxRecord) MarkSent(now time.Time) {
	r.Status = OutboxStatusSent
	r.SentAt = &now
	r.LastError = ""
	r.ClaimedBy = nil
	r.ClaimedAt = nil
}

// MarkAttemptFailed counts a failed delivery and reports whether the record
// reached the attempt ceiling and is now failed for good.
func (r *OutboxRecord) MarkAttemptFailed(cause error) bool {
	r.Attempts++
	if cause != nil {
		r.LastError = cause.Error()
	}
	r.ClaimedBy = nil
	r.ClaimedAt = nil
	if r.Attempts >= MaxDeliveryAttempts {
		r.Status = OutboxStatusFailed
		return true
	}
	return false
}

func (r *OutboxRecord) IsTerminal() bool {
	return r.Status == OutboxStatusSent || r.Status == OutboxStatusFailed
}
