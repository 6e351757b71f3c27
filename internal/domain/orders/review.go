package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TransitionStart    = "start"
	TransitionRefresh  = "refresh"
	TransitionReclaim  = "reclaim"
	TransitionRelease  = "release"
	TransitionComplete = "complete"
)

// ReviewUpdate is one compare-and-set step of the review lock. It applies
// only while the stored review status and reviewer still equal From*; the
// To* fields replace the whole review state.
type ReviewUpdate struct {
	OrderID    uuid.UUID
	Transition string

	FromStatus   ReviewStatus
	FromReviewer string

	ToStatus   ReviewStatus
	Reviewer   string
	StartedAt  *time.Time
	ReviewedAt *time.Time
	Note       *string
	// OrderStatus is left unchanged when empty.
	OrderStatus OrderStatus
}

// Matches reports whether o is still in the state the update was planned from.
func (u ReviewUpdate) Matches(o *Order) bool {
	return o.ReviewStatus == u.FromStatus && o.Reviewer() == u.FromReviewer
}

// ApplyTo writes the update's target state onto o.
func (u ReviewUpdate) ApplyTo(o *Order, now time.Time) {
	o.ReviewStatus = u.ToStatus
	o.ReviewedBy = nil
	if u.Reviewer != "" {
		r := u.Reviewer
		o.ReviewedBy = &r
	}
	o.ReviewStartedAt = u.StartedAt
	o.ReviewedAt = u.ReviewedAt
	o.ReviewNote = u.Note
	if u.OrderStatus != "" {
		o.Status = u.OrderStatus
	}
	o.UpdatedAt = now
}

// LockExpired reports whether an in-review lock is older than lease. A
// non-positive lease never expires.
func LockExpired(o *Order, now time.Time, lease time.Duration) bool {
	if lease <= 0 || o.ReviewStatus != ReviewInReview || o.ReviewStartedAt == nil {
		return false
	}
	return now.Sub(*o.ReviewStartedAt) > lease
}

// PlanStart computes the steps that give caller the review lock.
//
// A pending order is locked directly. The current owner restarting refreshes
// the lease. Another provider is refused unless the lock expired, in which
// case the stale lock is released to pending first so ownership never passes
// directly between two providers.
func PlanStart(o *Order, caller string, now time.Time, lease time.Duration) ([]ReviewUpdate, error) {
	if caller == "" {
		return nil, fmt.Errorf("%w: reviewer id is required", ErrNotReviewOwner)
	}
	start := ReviewUpdate{
		OrderID:    o.ID,
		Transition: TransitionStart,
		FromStatus: ReviewPending,
		ToStatus:   ReviewInReview,
		Reviewer:   caller,
		StartedAt:  &now,
	}

	switch o.ReviewStatus {
	case ReviewPending:
		return []ReviewUpdate{start}, nil
	case ReviewInReview:
		owner := o.Reviewer()
		if owner == caller {
			start.Transition = TransitionRefresh
			start.FromStatus = ReviewInReview
			start.FromReviewer = caller
			return []ReviewUpdate{start}, nil
		}
		if !LockExpired(o, now, lease) {
			return nil, ErrReviewLocked
		}
		reclaim := ReviewUpdate{
			OrderID:      o.ID,
			Transition:   TransitionReclaim,
			FromStatus:   ReviewInReview,
			FromReviewer: owner,
			ToStatus:     ReviewPending,
		}
		return []ReviewUpdate{reclaim, start}, nil
	case ReviewCompleted:
		return nil, fmt.Errorf("%w: review already completed", ErrInvalidTransition)
	default:
		return nil, fmt.Errorf("%w: unknown review status %q", ErrInvalidTransition, o.ReviewStatus)
	}
}

// PlanRelease returns an owned in-review order to pending.
func PlanRelease(o *Order, caller string) (ReviewUpdate, error) {
	if err := checkOwner(o, caller); err != nil {
		return ReviewUpdate{}, err
	}
	return ReviewUpdate{
		OrderID:      o.ID,
		Transition:   TransitionRelease,
		FromStatus:   ReviewInReview,
		FromReviewer: caller,
		ToStatus:     ReviewPending,
	}, nil
}

// PlanComplete finishes an owned review. An approve or reject decision also
// moves a submitted order to approved or rejected.
func PlanComplete(o *Order, caller string, now time.Time, req CompleteRequest) (ReviewUpdate, error) {
	if err := checkOwner(o, caller); err != nil {
		return ReviewUpdate{}, err
	}

	u := ReviewUpdate{
		OrderID:      o.ID,
		Transition:   TransitionComplete,
		FromStatus:   ReviewInReview,
		FromReviewer: caller,
		ToStatus:     ReviewCompleted,
		Reviewer:     caller,
		StartedAt:    o.ReviewStartedAt,
		ReviewedAt:   &now,
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		u.Note = &note
	}

	switch req.Decision {
	case DecisionNone:
	case DecisionApprove, DecisionReject:
		if o.Status != StatusSubmitted {
			return ReviewUpdate{}, fmt.Errorf("%w: cannot %s an order in status %s", ErrInvalidTransition, req.Decision, o.Status)
		}
		u.OrderStatus = StatusApproved
		if req.Decision == DecisionReject {
			u.OrderStatus = StatusRejected
		}
	default:
		return ReviewUpdate{}, fmt.Errorf("%w: %q", ErrInvalidDecision, req.Decision)
	}
	return u, nil
}

func checkOwner(o *Order, caller string) error {
	if o.ReviewStatus != ReviewInReview {
		return fmt.Errorf("%w: review is %s", ErrInvalidTransition, o.ReviewStatus)
	}
	if caller == "" || o.Reviewer() != caller {
		return ErrNotReviewOwner
	}
	return nil
}
