package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"gorm.io/gorm"
)

const defaultJournalRetention = 30 * 24 * time.Hour

type journalPruner interface {
	DeleteSettledBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// JournalRetentionJobParams wires the journal retention job.
type JournalRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository journalPruner
	Retention  time.Duration
}

type journalRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      journalPruner
	retention time.Duration
	now       func() time.Time
}

// NewJournalRetentionJob prunes settled fan-out journal rows older than the retention window.
func NewJournalRetentionJob(params JournalRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("journal repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultJournalRetention
	}
	return &journalRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (j *journalRetentionJob) Name() string { return "journal-retention" }

func (j *journalRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.repo.DeleteSettledBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return fmt.Errorf("prune fan-out journal: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff.Format(time.RFC3339),
		"deleted": deleted,
	}), "fan-out journal pruned")
	return nil
}
