package orders

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusSubmitted OrderStatus = "submitted"
	StatusApproved  OrderStatus = "approved"
	StatusRejected  OrderStatus = "rejected"
	StatusShipped   OrderStatus = "shipped"
	StatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = map[OrderStatus]bool{
	StatusSubmitted: true, StatusApproved: true, StatusRejected: true,
	StatusShipped: true, StatusCancelled: true,
}

type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewInReview  ReviewStatus = "in_review"
	ReviewCompleted ReviewStatus = "completed"
)

var validReviewStatuses = map[ReviewStatus]bool{
	ReviewPending: true, ReviewInReview: true, ReviewCompleted: true,
}

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidTransition = errors.New("invalid review transition")
	ErrReviewLocked      = errors.New("order is under review by another provider")
	ErrNotReviewOwner    = errors.New("caller does not own this review")
	ErrConcurrentUpdate  = errors.New("order review changed concurrently")
	ErrInvalidDecision   = errors.New("invalid review decision")
)

// Order is a prescription order together with its review lock.
type Order struct {
	ID             uuid.UUID   `json:"id"`
	OrderNumber    string      `json:"order_number"`
	PatientID      uuid.UUID   `json:"patient_id"`
	PatientName    string      `json:"patient_name"`
	MedicationName string      `json:"medication_name"`
	Quantity       int         `json:"quantity"`
	Status         OrderStatus `json:"status"`
	SubmittedAt    time.Time   `json:"submitted_at"`

	ReviewStatus    ReviewStatus `json:"review_status"`
	ReviewedBy      *string      `json:"reviewed_by"`
	ReviewStartedAt *time.Time   `json:"review_started_at"`
	ReviewedAt      *time.Time   `json:"reviewed_at"`
	ReviewNote      *string      `json:"review_note"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reviewer returns the lock owner, or "" when unlocked.
func (o *Order) Reviewer() string {
	if o.ReviewedBy == nil {
		return ""
	}
	return *o.ReviewedBy
}

type CreateRequest struct {
	OrderNumber    string    `json:"order_number"`
	PatientID      uuid.UUID `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	MedicationName string    `json:"medication_name"`
	Quantity       int       `json:"quantity"`
}

type Decision string

const (
	DecisionNone    Decision = ""
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type CompleteRequest struct {
	Decision Decision `json:"decision"`
	Note     string   `json:"note"`
}
