package customer

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"loyalty-tracker/internal/event"
	"loyalty-tracker/internal/infrastructure/monitoring"
	"loyalty-tracker/internal/pkg/apperrors"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const DefaultGoalDollars = 200

type CustomerService interface {
	CreateOrGet(ctx context.Context, name string) (*Customer, error)
	List(ctx context.Context) ([]*Customer, error)
	Search(ctx context.Context, query string) ([]*Customer, error)
	IncrementSpend(ctx context.Context, customerID string, amountDollars float64) (*Customer, error)
	GoalDollars() float64
}

var _ CustomerService = (*customerService)(nil)

type Option func(*customerService)

func WithClock(now func() time.Time) Option {
	return func(s *customerService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithGoalDollars(goal float64) Option {
	return func(s *customerService) {
		if goal > 0 {
			s.goalDollars = goal
		}
	}
}

// customerService is the single writer for a Storage within this process.
// Mutations hold mu across load, mutate and replace so two requests cannot
// overwrite each other's update. Writers in other processes sharing the same
// backend are not coordinated.
type customerService struct {
	storage     Storage
	pub         event.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
	goalDollars float64

	mu sync.Mutex
}

func NewCustomerService(storage Storage, publisher event.EventPublisher, logger *slog.Logger, opts ...Option) CustomerService {
	if storage == nil {
		panic("customer storage cannot be nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}

	if publisher == nil {
		publisher = event.NoopEventPublisher{}
	}

	s := &customerService{
		storage:     storage,
		pub:         publisher,
		logger:      logger.With(slog.String("component", "customerService")),
		now:         time.Now,
		goalDollars: DefaultGoalDollars,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *customerService) GoalDollars() float64 {
	return s.goalDollars
}

func (s *customerService) CreateOrGet(ctx context.Context, name string) (*Customer, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		s.logger.WarnContext(ctx, "Validation failed: name is empty")
		return nil, fmt.Errorf("%w: %w", ErrEmptyName, apperrors.NewValidationError("name", "Name is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.storage.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Storage failed to load customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}

	if existing := db.FindByNormalizedName(normalized); existing != nil {
		s.logger.DebugContext(ctx, "Customer already registered", slog.String("customerID", existing.ID))
		return existing, nil
	}

	cust := NewCustomer(name, s.now())
	db.Customers = append(db.Customers, cust)

	if err := s.storage.Replace(ctx, db); err != nil {
		s.logger.ErrorContext(ctx, "Storage failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}
	monitoring.Business.CustomersRegisteredTotal.Inc()

	logger := s.logger.With(slog.String("customerID", cust.ID))
	logger.InfoContext(ctx, "Registered new customer")

	registered := event.CustomerRegisteredEvent{
		Timestamp: s.now(),
		Payload:   NewCustomerEventPayload(cust),
	}
	if pubErr := s.pub.PublishCustomerRegistered(ctx, registered); pubErr != nil {
		logger.ErrorContext(ctx, "Customer registered, but FAILED to publish registration event", slog.Any("error", pubErr))
	}

	return cust, nil
}

func (s *customerService) List(ctx context.Context) ([]*Customer, error) {
	db, err := s.storage.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Storage failed to load customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	SortByName(db.Customers)
	return db.Customers, nil
}

// Search matches the normalized query as a substring of each normalized
// name. A blank query returns every customer in stored order, unsorted.
func (s *customerService) Search(ctx context.Context, query string) ([]*Customer, error) {
	db, err := s.storage.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Storage failed to load customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}

	normalized := NormalizeName(query)
	if normalized == "" {
		return db.Customers, nil
	}

	matches := make([]*Customer, 0, len(db.Customers))
	for _, c := range db.Customers {
		if strings.Contains(c.NormalizedName, normalized) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

func (s *customerService) IncrementSpend(ctx context.Context, customerID string, amountDollars float64) (*Customer, error) {
	cents, err := DollarsToCents(amountDollars)
	if err != nil {
		s.logger.WarnContext(ctx, "Validation failed: invalid spend amount", slog.Float64("amount", amountDollars))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.storage.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Storage failed to load customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}

	logger := s.logger.With(slog.String("customerID", customerID))

	cust := db.FindByID(customerID)
	if cust == nil {
		logger.WarnContext(ctx, "Customer not found for spend")
		return nil, fmt.Errorf("%w: %w", ErrNotFound, apperrors.NewNotFoundError("Customer", customerID))
	}

	previous := cust.TotalSpentCents
	if cents > 0 && previous > maxTotalCents-cents {
		logger.WarnContext(ctx, "Spend would overflow running total", slog.Int64("cents", cents))
		return nil, apperrors.NewValidationError("amount", "Amount is too large")
	}
	cust.AddSpend(cents, s.now())

	if err := s.storage.Replace(ctx, db); err != nil {
		logger.ErrorContext(ctx, "Storage failed to save spend", slog.Any("error", err))
		return nil, fmt.Errorf("failed to record spend: %w", err)
	}
	monitoring.Business.SpendRecordedCentsTotal.Add(float64(cents))

	logger.InfoContext(ctx, "Recorded spend", slog.Int64("cents", cents), slog.Int64("totalSpentCents", cust.TotalSpentCents))
	s.publishSpend(ctx, logger, cust, previous, cents)

	return cust, nil
}

func (s *customerService) publishSpend(ctx context.Context, logger *slog.Logger, cust *Customer, previous, cents int64) {
	now := s.now()
	recorded := event.SpendRecordedEvent{
		Timestamp:     now,
		AmountCents:   cents,
		PreviousCents: previous,
		Payload:       NewCustomerEventPayload(cust),
	}
	if err := s.pub.PublishSpendRecorded(ctx, recorded); err != nil {
		logger.ErrorContext(ctx, "Spend recorded, but FAILED to publish spend event", slog.Any("error", err))
	}

	if GoalReached(previous, s.goalDollars) || !GoalReached(cust.TotalSpentCents, s.goalDollars) {
		return
	}
	reached := event.GoalReachedEvent{
		Timestamp: now,
		GoalCents: goalCents(s.goalDollars).IntPart(),
		Payload:   NewCustomerEventPayload(cust),
	}
	if err := s.pub.PublishGoalReached(ctx, reached); err != nil {
		logger.ErrorContext(ctx, "Goal reached, but FAILED to publish goal event", slog.Any("error", err))
		return
	}
	logger.InfoContext(ctx, "Customer reached reward goal")
}

func NewCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	return event.CustomerEventPayload{
		CustomerID:      cust.ID,
		Name:            cust.Name,
		NormalizedName:  cust.NormalizedName,
		TotalSpentCents: cust.TotalSpentCents,
		LastVisitISO:    cust.LastVisitISO,
	}
}

// SortByName orders customers by display name under English collation.
// Names the collator considers equal fall back to byte order, then id, so the
// result is a total order.
func SortByName(customers []*Customer) {
	coll := collate.New(language.English)
	slices.SortStableFunc(customers, func(a, b *Customer) int {
		if c := coll.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
