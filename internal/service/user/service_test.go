package user

import (
	"context"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/suite"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/config"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/domain/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/email"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/model"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository/sqlstore"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/service/notification"
	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/eventstore"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/validator"
)

type publishCall struct {
	events       []event.Event
	firstVersion int
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

func (p *fakePublisher) Publish(_ context.Context, events []event.Event, firstVersion int, _ event.Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{events: events, firstVersion: firstVersion})
	return nil
}

// conflictInjector fails the next n appends of user.approved as if another
// writer had committed first.
type conflictInjector struct {
	remaining int
	seen      int
}

func (c *conflictInjector) middleware(next eventstore.AppendFunc) eventstore.AppendFunc {
	return func(ctx context.Context, aggregateID string, events []event.Event, expectedVersion int) error {
		if events[0].EventName() == user.EventUserApproved {
			c.seen++
			if c.remaining > 0 {
				c.remaining--
				return apperrors.NewConcurrencyConflict(aggregateID, expectedVersion, expectedVersion+1)
			}
		}
		return next(ctx, aggregateID, events, expectedVersion)
	}
}

type ServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	store     *eventstore.EventStore
	outbox    repository.OutboxRepository
	publisher *fakePublisher
	conflicts *conflictInjector
	service   *Service
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.publisher = &fakePublisher{}
	s.conflicts = &conflictInjector{}
	s.service = s.newService([]string{"admin1@example.com", "admin2@example.com"})
}

func (s *ServiceTestSuite) newService(admins []string) *Service {
	db, err := sqlstore.NewDB(s.ctx, config.DatabaseConfig{Driver: sqlstore.DriverSQLite, DSN: ":memory:"})
	s.Require().NoError(err)
	s.T().Cleanup(func() { db.Close() })
	s.Require().NoError(sqlstore.Migrate(s.ctx, db))

	registry := event.NewRegistry()
	upcasters := event.NewUpcasterChain()
	s.Require().NoError(user.RegisterEvents(registry, upcasters))

	base := sqlstore.NewBaseRepository(db)
	s.store = eventstore.New(sqlstore.NewEventRepository(base), base, event.NewCodec(registry, upcasters),
		eventstore.WithMiddleware(s.conflicts.middleware))
	s.outbox = sqlstore.NewOutboxRepository(base)

	reactor := notification.NewService(s.outbox, email.NewRenderer(), validator.New(), admins, logger.Nop())
	return NewService(s.store, base, reactor, logger.Nop(),
		WithPublisher(s.publisher),
		WithRetry(3, func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func (s *ServiceTestSuite) pending() []*model.OutboxRecord {
	records, err := s.outbox.ListByStatus(s.ctx, model.OutboxStatusPending, 100)
	s.Require().NoError(err)
	return records
}

func (s *ServiceTestSuite) TestRegisterAppendsAndEnqueuesInOneCommit() {
	u, err := s.service.Register(s.ctx, "ada@example.com", "Ada Lovelace", "")
	s.Require().NoError(err)
	s.Equal(1, u.Version())

	envelopes, err := s.store.ReadStream(s.ctx, u.AggregateID())
	s.Require().NoError(err)
	s.Require().Len(envelopes, 1)
	s.Equal(user.EventUserCreated, envelopes[0].EventName)
	s.Equal(2, envelopes[0].SchemaVersion)

	records := s.pending()
	s.Require().Len(records, 3)
	recipients := map[string]string{}
	for _, r := range records {
		recipients[r.Recipient] = r.NotificationType
		s.Equal(envelopes[0].EventID, r.TriggeringEventID.String())
	}
	s.Equal(map[string]string{
		"ada@example.com":    email.TypeWelcome,
		"admin1@example.com": email.TypeAdminNotification,
		"admin2@example.com": email.TypeAdminNotification,
	}, recipients)

	s.Require().Len(s.publisher.calls, 1)
	s.Equal(1, s.publisher.calls[0].firstVersion)
}

func (s *ServiceTestSuite) TestRegisterRollsBackWhenNotificationIsInvalid() {
	service := s.newService([]string{"not-an-email"})

	_, err := service.Register(s.ctx, "ada@example.com", "Ada", "en")

	s.Require().Error(err)
	s.Empty(s.pending())
	s.Empty(s.publisher.calls)
}

func (s *ServiceTestSuite) TestApproveEnqueuesConfirmation() {
	u, err := s.service.Register(s.ctx, "ada@example.com", "Ada", "en")
	s.Require().NoError(err)

	approved, err := s.service.Approve(s.ctx, u.AggregateID(), "root@example.com")
	s.Require().NoError(err)
	s.Equal(user.StatusApproved, approved.Status())
	s.Equal(2, approved.Version())

	var confirmations []*model.OutboxRecord
	for _, r := range s.pending() {
		if r.NotificationType == email.TypeApprovalConfirmation {
			confirmations = append(confirmations, r)
		}
	}
	s.Require().Len(confirmations, 1)
	s.Equal("ada@example.com", confirmations[0].Recipient)
	s.Contains(confirmations[0].BodyText, "root@example.com")

	s.Require().Len(s.publisher.calls, 2)
	s.Equal(2, s.publisher.calls[1].firstVersion)
}

func (s *ServiceTestSuite) TestApproveRetriesOnConflict() {
	u, err := s.service.Register(s.ctx, "ada@example.com", "Ada", "en")
	s.Require().NoError(err)
	s.conflicts.remaining = 2

	approved, err := s.service.Approve(s.ctx, u.AggregateID(), "root@example.com")

	s.Require().NoError(err)
	s.Equal(3, s.conflicts.seen)
	s.Equal(user.StatusApproved, approved.Status())
	s.Len(s.pending(), 4)
}

func (s *ServiceTestSuite) TestApproveSurfacesConflictAfterThreeAttempts() {
	u, err := s.service.Register(s.ctx, "ada@example.com", "Ada", "en")
	s.Require().NoError(err)
	s.conflicts.remaining = 5

	_, err = s.service.Approve(s.ctx, u.AggregateID(), "root@example.com")

	var conflict *apperrors.ConcurrencyConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal(1, conflict.Expected)
	s.Equal(3, s.conflicts.seen)
	s.Len(s.pending(), 3)
}

func (s *ServiceTestSuite) TestApproveDoesNotRetryBusinessErrors() {
	u, err := s.service.Register(s.ctx, "ada@example.com", "Ada", "en")
	s.Require().NoError(err)
	_, err = s.service.Approve(s.ctx, u.AggregateID(), "root@example.com")
	s.Require().NoError(err)

	_, err = s.service.Approve(s.ctx, u.AggregateID(), "root@example.com")

	var appErr *apperrors.AppError
	s.Require().True(apperrors.As(err, &appErr))
	s.Equal(apperrors.ErrConflict, appErr.Code)
	s.Equal(1, s.conflicts.seen)
}

func (s *ServiceTestSuite) TestApproveUnknownUser() {
	_, err := s.service.Approve(s.ctx, "ghost", "root@example.com")

	var appErr *apperrors.AppError
	s.Require().True(apperrors.As(err, &appErr))
	s.Equal(apperrors.ErrNotFound, appErr.Code)
}

func (s *ServiceTestSuite) TestGetReplaysStream() {
	u, err := s.service.Register(s.ctx, "ada@example.com", "Ada", "it")
	s.Require().NoError(err)

	loaded, err := s.service.Get(s.ctx, u.AggregateID())
	s.Require().NoError(err)
	s.Equal("it", loaded.Locale())
	s.Equal(user.StatusPending, loaded.Status())
}
