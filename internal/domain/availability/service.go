package availability

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// TxFunc runs fn inside one database transaction; db.InTx bound to a pool
// satisfies it.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo   Repository
	inTx   TxFunc
	logger zerolog.Logger
}

func NewService(repo Repository, inTx TxFunc, logger zerolog.Logger) *Service {
	return &Service{repo: repo, inTx: inTx, logger: logger.With().Str("component", "availability").Logger()}
}

func (s *Service) ListRows(ctx context.Context, providerID string) ([]*Row, error) {
	return s.repo.ListByProvider(ctx, providerID)
}

func (s *Service) GetBlocks(ctx context.Context, providerID string) ([]Block, error) {
	rows, err := s.repo.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return GroupBlocks(rows), nil
}

// GetSchedule returns both the display blocks and the rows behind them.
func (s *Service) GetSchedule(ctx context.Context, providerID string) (*Schedule, error) {
	rows, err := s.repo.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*Row{}
	}
	return &Schedule{ProviderID: providerID, Blocks: GroupBlocks(rows), Rows: rows}, nil
}

// ReplaceSchedule clears every day listed in the form and writes the expanded
// rows in one transaction; a failure leaves the previous schedule intact.
func (s *Service) ReplaceSchedule(ctx context.Context, providerID string, form Form) (*Schedule, error) {
	rows, err := ExpandForm(providerID, form)
	if err != nil {
		return nil, err
	}
	days := AffectedDays(form)

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteDays(ctx, providerID, days); err != nil {
			return err
		}
		return s.repo.InsertRows(ctx, rows)
	})
	if err != nil {
		return nil, fmt.Errorf("replace schedule for %s: %w", providerID, err)
	}

	s.logger.Info().
		Str("provider_id", providerID).
		Ints("days", days).
		Int("rows", len(rows)).
		Msg("availability replaced")

	return s.GetSchedule(ctx, providerID)
}
