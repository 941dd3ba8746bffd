package storage

import (
	"context"

	"github.com/mae-kelly/stay-fly/internal/storage/models"
)

// Store persists signal audits, trades and milestones. Persistence is
// optional; the engine runs against Nop when no database is configured.
type Store interface {
	SaveSignalAudit(ctx context.Context, audit *models.SignalAudit) error
	SaveTrade(ctx context.Context, trade *models.Trade) error
	ListTrades(ctx context.Context, tokenAddress string, limit, offset int) ([]*models.Trade, error)
	SaveMilestone(ctx context.Context, ms *models.CapitalMilestone) error

	RunMigrations() error
	Close() error
}

// Nop is the no-database Store.
type Nop struct{}

func (Nop) SaveSignalAudit(context.Context, *models.SignalAudit) error { return nil }
func (Nop) SaveTrade(context.Context, *models.Trade) error             { return nil }
func (Nop) ListTrades(context.Context, string, int, int) ([]*models.Trade, error) {
	return nil, nil
}
func (Nop) SaveMilestone(context.Context, *models.CapitalMilestone) error { return nil }
func (Nop) RunMigrations() error                                          { return nil }
func (Nop) Close() error                                                  { return nil }
