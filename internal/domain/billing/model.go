package billing

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRequest   = errors.New("invalid billing request")
	ErrOrderNotPayable  = errors.New("order cannot be paid in its current status")
	ErrCustomerNotFound = errors.New("no billing customer for patient")
)

// Customer links a patient to their record at the payment processor.
type Customer struct {
	PatientID  uuid.UUID `json:"patient_id"`
	CustomerID string    `json:"customer_id"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

type CheckoutRequest struct {
	OrderID    uuid.UUID `json:"order_id"`
	PriceID    string    `json:"price_id"`
	Email      string    `json:"email"`
	SuccessURL string    `json:"success_url"`
	CancelURL  string    `json:"cancel_url"`
}

type PortalRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	ReturnURL string    `json:"return_url"`
}

// SessionResponse is what the client needs to redirect to a hosted page.
type SessionResponse struct {
	SessionID  string `json:"session_id"`
	URL        string `json:"url"`
	CustomerID string `json:"customer_id"`
}
