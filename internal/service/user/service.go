package user

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/domain/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository"
	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/eventstore"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
)

const defaultMaxAttempts = 3

// Reactor enqueues the side effects of freshly recorded events. It runs in
// the same transaction as the append.
type Reactor interface {
	React(ctx context.Context, u *user.User, events []event.Event) error
}

// Publisher announces committed events. Failures are logged and dropped.
type Publisher interface {
	Publish(ctx context.Context, events []event.Event, firstVersion int, metadata event.Metadata) error
}

type Service struct {
	users     *eventstore.Repository[*user.User]
	tx        repository.Transactor
	reactor   Reactor
	publisher Publisher
	logger    *logger.Logger

	maxAttempts uint
	newBackOff  func() backoff.BackOff
}

type Option func(*Service)

// WithPublisher enables post-commit publication.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRetry sets how many times Approve runs before a conflict is surfaced.
func WithRetry(maxAttempts uint, newBackOff func() backoff.BackOff) Option {
	return func(s *Service) {
		s.maxAttempts = maxAttempts
		if newBackOff != nil {
			s.newBackOff = newBackOff
		}
	}
}

func NewService(store *eventstore.EventStore, tx repository.Transactor, reactor Reactor, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		users:       eventstore.NewRepository(store, user.New),
		tx:          tx,
		reactor:     reactor,
		logger:      log,
		maxAttempts: defaultMaxAttempts,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 50 * time.Millisecond
			bo.MaxInterval = time.Second
			return bo
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user stream at version 1 and enqueues the welcome and
// admin notifications in the same commit.
func (s *Service) Register(ctx context.Context, emailAddr, fullName, locale string) (*user.User, error) {
	u, err := user.Register(emailAddr, fullName, locale)
	if err != nil {
		return nil, err
	}

	changes := u.Uncommitted()
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Save(ctx, u); err != nil {
			return err
		}
		return s.reactor.React(ctx, u, changes)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.logger.Info("User registered", "user_id", u.AggregateID())
	s.publish(ctx, changes, 1)
	return u, nil
}

// Approve reloads and retries when another writer got there first. Any other
// failure is returned immediately.
func (s *Service) Approve(ctx context.Context, userID, approvedBy string) (*user.User, error) {
	attempt := 0
	operation := func() (*user.User, error) {
		attempt++
		var (
			u       *user.User
			changes []event.Event
			first   int
		)
		txErr := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			loaded, err := s.users.Load(ctx, userID)
			if err != nil {
				return err
			}
			if err := loaded.Approve(approvedBy); err != nil {
				return err
			}
			first = loaded.Version() + 1
			changes = loaded.Uncommitted()
			if err := s.users.Save(ctx, loaded); err != nil {
				return err
			}
			u = loaded
			return s.reactor.React(ctx, loaded, changes)
		})
		if txErr == nil {
			s.publish(ctx, changes, first)
			return u, nil
		}
		if apperrors.Is(txErr, apperrors.ErrConcurrencyConflict) {
			s.logger.Warn("Approve lost a concurrent write, retrying", "user_id", userID, "attempt", attempt)
			return nil, txErr
		}
		return nil, backoff.Permanent(txErr)
	}

	u, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(s.maxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to approve user %s: %w", userID, err)
	}

	s.logger.Info("User approved", "user_id", userID, "approved_by", approvedBy)
	return u, nil
}

// Get replays the user's stream.
func (s *Service) Get(ctx context.Context, userID string) (*user.User, error) {
	return s.users.Load(ctx, userID)
}

func (s *Service) publish(ctx context.Context, events []event.Event, firstVersion int) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events, firstVersion, event.MetadataFrom(ctx)); err != nil {
		s.logger.Error(err, "Failed to publish committed events", "aggregate_id", events[0].AggregateID())
	}
}
