package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const emptySteps = "[]"

// JournalEntry is the durable fan-out intent, written before any document write.
type JournalEntry struct {
	OrderID        string            `gorm:"column:order_id;primaryKey"`
	UserID         string            `gorm:"column:user_id;not null"`
	IdempotencyKey *string           `gorm:"column:idempotency_key"`
	State          enums.FanoutState `gorm:"column:state;not null"`
	Plan           string            `gorm:"column:plan;not null"`
	CompletedSteps string            `gorm:"column:completed_steps;not null"`
	FailedStep     *string           `gorm:"column:failed_step"`
	LastError      *string           `gorm:"column:last_error"`
	Attempts       int               `gorm:"column:attempts;not null;default:0"`
	CreatedAt      time.Time         `gorm:"column:created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at"`
}

func (JournalEntry) TableName() string {
	return "fanout_journal"
}

// Completed decodes the recorded step keys. An unknown key means the entry cannot be
// replayed safely.
func (e *JournalEntry) Completed() ([]string, error) {
	if e.CompletedSteps == "" {
		return nil, nil
	}
	var steps []string
	if err := json.Unmarshal([]byte(e.CompletedSteps), &steps); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode journal steps")
	}
	for _, key := range steps {
		if _, err := ParseStepKey(key); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "journal holds an unknown step").
				WithDetails(map[string]any{"order_id": e.OrderID, "step": key})
		}
	}
	return steps, nil
}

// DecodePlan returns the write plan stored with the entry.
func (e *JournalEntry) DecodePlan() (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal([]byte(e.Plan), &plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode journal plan")
	}
	return &plan, nil
}

// JournalRepository stores fan-out journal entries.
type JournalRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a pending entry. An entry that already exists yields CodeConflict.
func (r *JournalRepository) Create(ctx context.Context, entry *JournalEntry) error {
	now := r.now()
	entry.State = enums.FanoutStatePending
	if entry.CompletedSteps == "" {
		entry.CompletedSteps = emptySteps
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "create fan-out journal")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "fan-out already recorded").
			WithDetails(map[string]any{"order_id": entry.OrderID})
	}
	return nil
}

func (r *JournalRepository) Find(ctx context.Context, orderID string) (*JournalEntry, error) {
	var entry JournalEntry
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fan-out journal not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fan-out journal")
	}
	return &entry, nil
}

// RecordStep stores progress after a successful write.
func (r *JournalRepository) RecordStep(ctx context.Context, orderID string, completed []string) error {
	return r.update(ctx, orderID, map[string]any{
		"state":           enums.FanoutStatePartiallyApplied,
		"completed_steps": encodeSteps(completed),
	})
}

// MarkFailed records the step that stopped the fan-out.
func (r *JournalRepository) MarkFailed(ctx context.Context, orderID, step string, completed []string, cause error) error {
	msg := cause.Error()
	return r.update(ctx, orderID, map[string]any{
		"state":           enums.FanoutStateFailed,
		"completed_steps": encodeSteps(completed),
		"failed_step":     step,
		"last_error":      msg,
	})
}

func (r *JournalRepository) MarkCommitted(ctx context.Context, orderID string, completed []string) error {
	return r.update(ctx, orderID, map[string]any{
		"state":           enums.FanoutStateCommitted,
		"completed_steps": encodeSteps(completed),
		"failed_step":     nil,
		"last_error":      nil,
	})
}

// IncrementAttempts counts one repair attempt.
func (r *JournalRepository) IncrementAttempts(ctx context.Context, orderID string) error {
	return r.update(ctx, orderID, map[string]any{
		"attempts": gorm.Expr("attempts + 1"),
	})
}

// ListRepairable returns unfinished entries untouched since before cutoff, oldest first.
// A failed entry with no completed step was reported to the buyer as not written and is
// only resumed by a retry carrying the same idempotency key.
func (r *JournalRepository) ListRepairable(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]JournalEntry, error) {
	var rows []JournalEntry
	q := r.db.WithContext(ctx).
		Where("state <> ?", enums.FanoutStateCommitted).
		Where("NOT (state = ? AND completed_steps = ?)", enums.FanoutStateFailed, emptySteps).
		Where("updated_at < ?", cutoff)
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("updated_at ASC").Order("order_id ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list repairable journals")
	}
	return rows, nil
}

func (r *JournalRepository) update(ctx context.Context, orderID string, updates map[string]any) error {
	updates["updated_at"] = r.now()
	res := r.db.WithContext(ctx).Model(&JournalEntry{}).Where("order_id = ?", orderID).Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update fan-out journal")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "fan-out journal not found")
	}
	return nil
}

func encodeSteps(steps []string) string {
	if len(steps) == 0 {
		return emptySteps
	}
	raw, _ := json.Marshal(steps)
	return string(raw)
}

// DeleteSettledBefore removes entries last touched before cutoff that repair will never
// pick up: committed ones and failed ones that wrote nothing.
func (r *JournalRepository) DeleteSettledBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).
		Where("state = ? OR (state = ? AND completed_steps = ?)",
			enums.FanoutStateCommitted, enums.FanoutStateFailed, emptySteps).
		Where("updated_at < ?", cutoff).
		Delete(&JournalEntry{})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete settled journals")
	}
	return res.RowsAffected, nil
}
