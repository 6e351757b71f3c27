package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telerx/rxadmin/internal/domain/orders"
	"github.com/telerx/rxadmin/internal/platform/payments"
)

// PaymentsAPI is the subset of the payments client the service uses.
type PaymentsAPI interface {
	CreateCustomer(ctx context.Context, email, name string) (*payments.Customer, error)
	CreateCheckoutSession(ctx context.Context, p payments.CheckoutParams) (*payments.Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*payments.Session, error)
}

type OrderLookup interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*orders.Order, error)
}

type Service struct {
	payments  PaymentsAPI
	orders    OrderLookup
	customers CustomerRepository
	logger    zerolog.Logger
}

func NewService(p PaymentsAPI, o OrderLookup, customers CustomerRepository, logger zerolog.Logger) *Service {
	return &Service{
		payments:  p,
		orders:    o,
		customers: customers,
		logger:    logger.With().Str("component", "billing").Logger(),
	}
}

var payableStatuses = map[orders.OrderStatus]bool{
	orders.StatusSubmitted: true,
	orders.StatusApproved:  true,
}

// Checkout opens a hosted checkout session for an order. The patient's
// processor customer is created on first use.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*SessionResponse, error) {
	req.PriceID = strings.TrimSpace(req.PriceID)
	switch {
	case req.OrderID == uuid.Nil:
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidRequest)
	case req.PriceID == "":
		return nil, fmt.Errorf("%w: price_id is required", ErrInvalidRequest)
	case req.SuccessURL == "" || req.CancelURL == "":
		return nil, fmt.Errorf("%w: success_url and cancel_url are required", ErrInvalidRequest)
	}

	o, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !payableStatuses[o.Status] {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotPayable, o.Status)
	}

	cust, err := s.ensureCustomer(ctx, o, req.Email)
	if err != nil {
		return nil, err
	}

	sess, err := s.payments.CreateCheckoutSession(ctx, payments.CheckoutParams{
		CustomerID: cust.CustomerID,
		LineItems:  []payments.LineItem{{PriceID: req.PriceID, Quantity: o.Quantity}},
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Metadata: map[string]string{
			"order_id":     o.ID.String(),
			"order_number": o.OrderNumber,
			"patient_id":   o.PatientID.String(),
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_id", o.ID.String()).Str("session_id", sess.ID).Msg("checkout session created")
	return &SessionResponse{SessionID: sess.ID, URL: sess.URL, CustomerID: cust.CustomerID}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, o *orders.Order, email string) (*Customer, error) {
	cust, err := s.customers.GetByPatient(ctx, o.PatientID)
	if err == nil {
		return cust, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required for a new billing customer", ErrInvalidRequest)
	}

	pc, err := s.payments.CreateCustomer(ctx, email, o.PatientName)
	if err != nil {
		return nil, err
	}
	cust = &Customer{PatientID: o.PatientID, CustomerID: pc.ID, Email: email}
	if err := s.customers.Create(ctx, cust); err != nil {
		return nil, fmt.Errorf("save billing customer: %w", err)
	}
	return cust, nil
}

// Portal opens the self-service billing portal for a patient.
func (s *Service) Portal(ctx context.Context, req PortalRequest) (*SessionResponse, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidRequest)
	}
	cust, err := s.customers.GetByPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	sess, err := s.payments.CreatePortalSession(ctx, cust.CustomerID, req.ReturnURL)
	if err != nil {
		return nil, err
	}
	return &SessionResponse{SessionID: sess.ID, URL: sess.URL, CustomerID: cust.CustomerID}, nil
}
