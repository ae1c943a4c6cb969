package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/internal/cart"
	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	"github.com/angelmondragon/qrcatalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"github.com/angelmondragon/qrcatalog-backend/pkg/metrics"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
	"github.com/google/uuid"
)

// EventOrderConfirmed is published once every write of an order has landed.
const EventOrderConfirmed = "order.confirmed"

var orderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("qrcatalog/orders"))

type journalStore interface {
	Create(ctx context.Context, entry *JournalEntry) error
	Find(ctx context.Context, orderID string) (*JournalEntry, error)
	RecordStep(ctx context.Context, orderID string, completed []string) error
	MarkFailed(ctx context.Context, orderID, step string, completed []string, cause error) error
	MarkCommitted(ctx context.Context, orderID string, completed []string) error
}

type cartWriter interface {
	Clear(ctx context.Context, userID string) error
	RemoveItems(ctx context.Context, userID string, productIDs []string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, eventType, key string, data any) (string, error)
}

// ConfirmedEvent is the payload of EventOrderConfirmed.
type ConfirmedEvent struct {
	OrderID  string      `json:"order_id"`
	UserID   string      `json:"user_id"`
	Total    types.Money `json:"total"`
	StoreIDs []string    `json:"store_ids"`
}

// Engine writes an order's denormalized views. There is no cross-document transaction:
// writes run in order, progress is journaled, and a failure leaves earlier writes in place.
type Engine struct {
	docs    docstore.Store
	journal journalStore
	carts   cartWriter
	events  eventPublisher
	metrics *metrics.FanoutMetrics
	logg    *logger.Logger
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewEngine wires the fan-out engine. events and fanoutMetrics may be nil.
func NewEngine(docs docstore.Store, journal journalStore, carts cartWriter, events eventPublisher, fanoutMetrics *metrics.FanoutMetrics, logg *logger.Logger) (*Engine, error) {
	if docs == nil {
		return nil, fmt.Errorf("docstore required")
	}
	if journal == nil {
		return nil, fmt.Errorf("fan-out journal required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart writer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{
		docs:    docs,
		journal: journal,
		carts:   carts,
		events:  events,
		metrics: fanoutMetrics,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.New,
	}, nil
}

// OrderIDFor returns the order id for a checkout. With an idempotency key the id is
// derived from (user, key) so a retried request lands on the same order.
func (e *Engine) OrderIDFor(userID, idempotencyKey string) string {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return e.newID().String()
	}
	return uuid.NewSHA1(orderNamespace, []byte(userID+":"+key)).String()
}

// CreateOrder records the intent, then writes the order, the buyer index entry, one
// store entry per distinct store and finally clears the cart.
func (e *Engine) CreateOrder(ctx context.Context, input CreateInput) (string, error) {
	if err := validateInput(input); err != nil {
		return "", err
	}

	orderID := e.OrderIDFor(input.UserID, input.IdempotencyKey)
	ctx = e.logg.WithOrderID(e.logg.WithUserID(ctx, input.UserID), orderID)

	if input.IdempotencyKey != "" {
		existing, err := e.journal.Find(ctx, orderID)
		switch {
		case err == nil:
			return e.resumeExisting(ctx, existing)
		case !pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			return "", err
		}
	}

	plan := e.buildPlan(orderID, input)
	entry, err := newJournalEntry(plan, input.IdempotencyKey)
	if err != nil {
		return "", err
	}
	if err := e.journal.Create(ctx, entry); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return "", pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "order is already being processed")
		}
		return "", err
	}

	e.checkTotals(ctx, plan)

	if err := e.apply(ctx, plan, nil, true); err != nil {
		return "", err
	}
	return orderID, nil
}

func (e *Engine) resumeExisting(ctx context.Context, entry *JournalEntry) (string, error) {
	if entry.State == enums.FanoutStateCommitted {
		e.metrics.IncOutcome(metrics.OutcomeReplayed)
		e.logg.Info(ctx, "orders.fanout_replayed")
		return entry.OrderID, nil
	}
	if err := e.Resume(ctx, entry); err != nil {
		return "", err
	}
	return entry.OrderID, nil
}

// Resume replays the steps an entry has not completed. The cart step removes only the
// ordered products so anything added since checkout stays in the cart.
func (e *Engine) Resume(ctx context.Context, entry *JournalEntry) error {
	plan, err := entry.DecodePlan()
	if err != nil {
		return err
	}
	completed, err := entry.Completed()
	if err != nil {
		return err
	}
	return e.apply(ctx, plan, completed, false)
}

func (e *Engine) buildPlan(orderID string, input CreateInput) *Plan {
	return &Plan{
		Order: Order{
			OrderID:        orderID,
			UserID:         input.UserID,
			Items:          input.Items,
			Total:          input.Total,
			DeliveryMethod: input.DeliveryMethod,
			Address:        input.Address,
			Status:         enums.OrderStatusConfirmed,
			CreatedAt:      e.now(),
		},
		CustomerEmail: input.Email,
		Groups:        GroupByStore(input.Items),
	}
}

func (e *Engine) apply(ctx context.Context, plan *Plan, completed []string, clearWholeCart bool) error {
	done := make(map[string]bool, len(completed))
	for _, key := range completed {
		done[key] = true
	}

	for _, step := range plan.Steps() {
		key := step.Key()
		if done[key] {
			continue
		}
		if err := e.execute(ctx, plan, step, clearWholeCart); err != nil {
			return e.fail(ctx, plan, key, completed, clearWholeCart, err)
		}
		completed = append(completed, key)
		done[key] = true
		if err := e.journal.RecordStep(ctx, plan.Order.OrderID, completed); err != nil {
			e.logg.Error(e.logg.WithField(ctx, "step", key), "orders.journal_record_failed", err)
		}
	}

	if err := e.journal.MarkCommitted(ctx, plan.Order.OrderID, completed); err != nil {
		e.logg.Error(ctx, "orders.journal_commit_failed", err)
	}
	if clearWholeCart {
		e.metrics.IncOutcome(metrics.OutcomeCommitted)
		e.metrics.ObserveStores(len(plan.Groups))
	}
	e.publishConfirmed(ctx, plan)
	e.logg.Info(e.logg.WithField(ctx, "stores", len(plan.Groups)), "orders.fanout_committed")
	return nil
}

func (e *Engine) execute(ctx context.Context, plan *Plan, step Step, clearWholeCart bool) error {
	order := plan.Order
	switch step.Kind {
	case enums.FanoutStepOrder:
		_, err := e.docs.Put(ctx, OrderPath(order.OrderID), order)
		return err
	case enums.FanoutStepUserRef:
		_, err := e.docs.Put(ctx, UserOrderRefPath(order.UserID, order.OrderID), plan.userRef())
		return err
	case enums.FanoutStepStoreRef:
		ref, ok := plan.storeRef(step.StoreID)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInternal, "store missing from plan").
				WithDetails(map[string]any{"store_id": step.StoreID})
		}
		_, err := e.docs.Put(ctx, StoreOrderRefPath(step.StoreID, order.OrderID), ref)
		return err
	case enums.FanoutStepCartClear:
		if clearWholeCart {
			return e.carts.Clear(ctx, order.UserID)
		}
		return e.carts.RemoveItems(ctx, order.UserID, plan.productIDs())
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown fan-out step").
			WithDetails(map[string]any{"step": step.Key()})
	}
}

func (e *Engine) fail(ctx context.Context, plan *Plan, step string, completed []string, firstAttempt bool, cause error) error {
	orderID := plan.Order.OrderID
	if err := e.journal.MarkFailed(ctx, orderID, step, completed, cause); err != nil {
		e.logg.Error(ctx, "orders.journal_mark_failed", err)
	}

	ctx = e.logg.WithFields(ctx, map[string]any{
		"step":            step,
		"completed_steps": completed,
		"retryable":       pkgerrors.IsRetryable(cause),
	})
	e.logg.Error(ctx, "orders.fanout_failed", cause)

	if len(completed) == 0 {
		if firstAttempt {
			e.metrics.IncOutcome(metrics.OutcomeFailed)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "order could not be written").
			WithDetails(map[string]any{"order_id": orderID, "failed_step": step})
	}
	if firstAttempt {
		e.metrics.IncOutcome(metrics.OutcomePartial)
	}
	return pkgerrors.Wrap(pkgerrors.CodePartialWrite, cause, "order was only partially written").
		WithDetails(map[string]any{
			"order_id":        orderID,
			"failed_step":     step,
			"completed_steps": append([]string(nil), completed...),
		})
}

func (e *Engine) checkTotals(ctx context.Context, plan *Plan) {
	sum := SumSubtotals(plan.Groups)
	if sum.Equal(plan.Order.Total) {
		return
	}
	ctx = e.logg.WithFields(ctx, map[string]any{
		"submitted_total": plan.Order.Total.String(),
		"computed_total":  sum.String(),
	})
	e.logg.Warn(ctx, "orders.total_mismatch")
}

func (e *Engine) publishConfirmed(ctx context.Context, plan *Plan) {
	if e.events == nil {
		return
	}
	storeIDs := make([]string, 0, len(plan.Groups))
	for _, g := range plan.Groups {
		storeIDs = append(storeIDs, g.StoreID)
	}
	event := ConfirmedEvent{
		OrderID:  plan.Order.OrderID,
		UserID:   plan.Order.UserID,
		Total:    plan.Order.Total,
		StoreIDs: storeIDs,
	}
	if _, err := e.events.Publish(ctx, EventOrderConfirmed, plan.Order.OrderID, event); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "orders.publish_confirmed_failed")
	}
}

func newJournalEntry(plan *Plan, idempotencyKey string) (*JournalEntry, error) {
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode fan-out plan")
	}
	entry := &JournalEntry{
		OrderID: plan.Order.OrderID,
		UserID:  plan.Order.UserID,
		Plan:    string(raw),
	}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		entry.IdempotencyKey = &key
	}
	return entry, nil
}

func validateInput(input CreateInput) error {
	if input.UserID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity required")
	}
	if err := docstore.ValidateKey(input.UserID); err != nil {
		return err
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	if !input.DeliveryMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	if input.Total.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "total must be non-negative")
	}
	for i, item := range input.Items {
		if item.Price.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "item price must be non-negative").
				WithDetails(map[string]any{"index": i})
		}
		if err := docstore.ValidateKey(item.StoreID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "item store_id is invalid").
				WithDetails(map[string]any{"index": i})
		}
		if err := docstore.ValidateKey(item.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "item product_id is invalid").
				WithDetails(map[string]any{"index": i})
		}
	}
	return nil
}

var _ cartWriter = (*cart.Repository)(nil)
