package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"github.com/angelmondragon/qrcatalog-backend/pkg/metrics"
	"go.uber.org/multierr"
)

type repairJournal interface {
	ListRepairable(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]JournalEntry, error)
	IncrementAttempts(ctx context.Context, orderID string) error
}

type resumer interface {
	Resume(ctx context.Context, entry *JournalEntry) error
}

// Repairer finishes fan-outs that stopped part way.
type Repairer struct {
	journal     repairJournal
	engine      resumer
	grace       time.Duration
	maxAttempts int
	batchSize   int
	metrics     *metrics.FanoutMetrics
	logg        *logger.Logger
	now         func() time.Time
}

func NewRepairer(journal repairJournal, engine resumer, cfg config.FanoutConfig, fanoutMetrics *metrics.FanoutMetrics, logg *logger.Logger) (*Repairer, error) {
	if journal == nil {
		return nil, fmt.Errorf("fan-out journal required")
	}
	if engine == nil {
		return nil, fmt.Errorf("fan-out engine required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Repairer{
		journal:     journal,
		engine:      engine,
		grace:       cfg.RepairGrace,
		maxAttempts: cfg.RepairMaxAttempts,
		batchSize:   cfg.RepairBatchSize,
		metrics:     fanoutMetrics,
		logg:        logg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run replays one batch of stale unfinished entries and reports how many completed.
// Entries younger than the grace period are left to the request that owns them.
func (r *Repairer) Run(ctx context.Context) (int, error) {
	entries, err := r.journal.ListRepairable(ctx, r.now().Add(-r.grace), r.maxAttempts, r.batchSize)
	if err != nil {
		return 0, err
	}

	var errs error
	repaired := 0
	for i := range entries {
		entry := &entries[i]
		entryCtx := r.logg.WithOrderID(ctx, entry.OrderID)
		if err := r.journal.IncrementAttempts(entryCtx, entry.OrderID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", entry.OrderID, err))
			continue
		}
		if err := r.engine.Resume(entryCtx, entry); err != nil {
			r.metrics.IncRepair("failed")
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", entry.OrderID, err))
			continue
		}
		r.metrics.IncRepair("repaired")
		repaired++
	}

	if len(entries) > 0 {
		ctx = r.logg.WithFields(ctx, map[string]any{"candidates": len(entries), "repaired": repaired})
		r.logg.Info(ctx, "orders.repair_pass_complete")
	}
	return repaired, errs
}
