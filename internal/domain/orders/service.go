package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telerx/rxadmin/pkg/pagination"
)

// TransitionRecorder receives one call per attempted review transition.
type TransitionRecorder interface {
	ReviewTransition(transition string, err error)
}

type Service struct {
	repo    Repository
	lease   time.Duration
	metrics TransitionRecorder
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService builds the order service. A lease of zero keeps review locks
// until they are released or completed.
func NewService(repo Repository, lease time.Duration, metrics TransitionRecorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		lease:   lease,
		metrics: metrics,
		logger:  logger.With().Str("component", "orders").Logger(),
		now:     time.Now,
	}
}

// -- Intake --

func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (*Order, error) {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.MedicationName = strings.TrimSpace(req.MedicationName)
	if req.PatientName == "" {
		return nil, fmt.Errorf("%w: patient_name is required", ErrInvalidOrder)
	}
	if req.MedicationName == "" {
		return nil, fmt.Errorf("%w: medication_name is required", ErrInvalidOrder)
	}
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidOrder)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}

	now := s.now()
	o := &Order{
		ID:             uuid.New(),
		OrderNumber:    strings.TrimSpace(req.OrderNumber),
		PatientID:      req.PatientID,
		PatientName:    req.PatientName,
		MedicationName: req.MedicationName,
		Quantity:       req.Quantity,
		Status:         StatusSubmitted,
		SubmittedAt:    now,
		ReviewStatus:   ReviewPending,
	}
	if o.OrderNumber == "" {
		o.OrderNumber = NewOrderNumber(o.ID)
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_id", o.ID.String()).Str("order_number", o.OrderNumber).Msg("order submitted")
	return o, nil
}

// NewOrderNumber derives a human readable number from an order id.
func NewOrderNumber(id uuid.UUID) string {
	return "RX-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

// ListOrders fetches every order and filters in memory.
func (s *Service) ListOrders(ctx context.Context, q Query) (pagination.Page[*Order], error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return pagination.Page[*Order]{}, err
	}
	return FilterOrders(all, q, s.now()), nil
}

// ListSubmitted returns orders still awaiting fulfilment, oldest first.
func (s *Service) ListSubmitted(ctx context.Context) ([]*Order, error) {
	return s.repo.ListByStatus(ctx, StatusSubmitted)
}

// -- Review --

func (s *Service) StartReview(ctx context.Context, id uuid.UUID, caller string) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.record(TransitionStart, err)
		return nil, err
	}
	steps, err := PlanStart(o, caller, s.now(), s.lease)
	if err != nil {
		s.record(TransitionStart, err)
		return nil, err
	}

	for _, u := range steps {
		o, err = s.repo.ApplyReview(ctx, u)
		s.record(u.Transition, err)
		if err != nil {
			return nil, err
		}
		evt := s.logger.Info().Str("order_id", id.String()).Str("transition", u.Transition).Str("reviewer", caller)
		if u.Transition == TransitionReclaim {
			evt = evt.Str("previous_reviewer", u.FromReviewer)
		}
		evt.Msg("review transition")
	}
	return o, nil
}

func (s *Service) ReleaseReview(ctx context.Context, id uuid.UUID, caller string) (*Order, error) {
	return s.transition(ctx, id, caller, TransitionRelease, func(o *Order) (ReviewUpdate, error) {
		return PlanRelease(o, caller)
	})
}

func (s *Service) CompleteReview(ctx context.Context, id uuid.UUID, caller string, req CompleteRequest) (*Order, error) {
	return s.transition(ctx, id, caller, TransitionComplete, func(o *Order) (ReviewUpdate, error) {
		return PlanComplete(o, caller, s.now(), req)
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, caller, name string, plan func(*Order) (ReviewUpdate, error)) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err == nil {
		var u ReviewUpdate
		if u, err = plan(o); err == nil {
			o, err = s.repo.ApplyReview(ctx, u)
		}
	}
	s.record(name, err)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("order_id", id.String()).Str("transition", name).Str("caller", caller).Msg("review transition refused")
		}
		return nil, err
	}
	s.logger.Info().Str("order_id", id.String()).Str("transition", name).Str("reviewer", caller).Msg("review transition")
	return o, nil
}

func (s *Service) record(transition string, err error) {
	if s.metrics != nil {
		s.metrics.ReviewTransition(transition, err)
	}
}
