package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/internal/cart"
	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore/docstoretest"
	"github.com/angelmondragon/qrcatalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"github.com/angelmondragon/qrcatalog-backend/pkg/metrics"
	"github.com/angelmondragon/qrcatalog-backend/pkg/migrate"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupJournalDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.RunEmbedded(context.Background(), sqlDB, migrate.Dialect("sqlite"), "up"))
	return db
}

type recordingPublisher struct {
	events []string
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType, key string, data any) (string, error) {
	p.events = append(p.events, eventType+":"+key)
	return "msg-1", p.err
}

type engineFixture struct {
	engine    *Engine
	docs      *docstoretest.Store
	journal   *JournalRepository
	carts     *cart.Repository
	publisher *recordingPublisher
	registry  *prometheus.Registry
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	docs := docstoretest.New()
	journal := NewJournalRepository(setupJournalDB(t))
	journal.now = func() time.Time { return testClock }
	carts := cart.NewRepository(docs)
	publisher := &recordingPublisher{}
	registry := prometheus.NewRegistry()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	engine, err := NewEngine(docs, journal, carts, publisher, metrics.NewFanoutMetrics(registry), logg)
	require.NoError(t, err)
	engine.now = func() time.Time { return testClock }
	return &engineFixture{engine: engine, docs: docs, journal: journal, carts: carts, publisher: publisher, registry: registry}
}

func (f *engineFixture) fillCart(t *testing.T, userID string, items ...cart.Item) {
	t.Helper()
	for _, it := range items {
		_, err := f.carts.Add(context.Background(), userID, it)
		require.NoError(t, err)
	}
}

func exampleInput(userID string) CreateInput {
	return CreateInput{
		UserID:         userID,
		Email:          "buyer@example.com",
		Items:          []cart.Item{item("p1", "S1", 10, 2), item("p2", "S2", 5, 3)},
		DeliveryMethod: enums.DeliveryMethodHome,
		Address:        "12 Market Road",
		Total:          types.MoneyFromInt(35),
	}
}

func readOrder(t *testing.T, docs *docstoretest.Store, orderID string) map[string]any {
	t.Helper()
	doc, ok := docs.Value(OrderPath(orderID)).(map[string]any)
	require.True(t, ok, "order document missing")
	return doc
}

func TestCreateOrderFansOutToAllViews(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fillCart(t, "u1", item("p1", "S1", 10, 2), item("p2", "S2", 5, 3))

	orderID, err := f.engine.CreateOrder(ctx, exampleInput("u1"))
	require.NoError(t, err)
	require.NotEmpty(t, orderID)

	order := readOrder(t, f.docs, orderID)
	assert.Equal(t, float64(35), order["total"])
	assert.Equal(t, "confirmed", order["status"])
	assert.Len(t, order["items"], 2)

	userRef, ok := f.docs.Value(UserOrderRefPath("u1", orderID)).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(35), userRef["total"])
	assert.NotContains(t, userRef, "items")

	s1, ok := f.docs.Value(StoreOrderRefPath("S1", orderID)).(map[string]any)
	require.True(t, ok)
	s2, ok := f.docs.Value(StoreOrderRefPath("S2", orderID)).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(20), s1["total"])
	assert.Equal(t, float64(15), s2["total"])
	assert.Equal(t, "buyer@example.com", s1["customer_email"])
	assert.Equal(t, "u1", s2["user_id"])

	s1Items := s1["items"].([]any)
	s2Items := s2["items"].([]any)
	require.Len(t, s1Items, 1)
	require.Len(t, s2Items, 1)
	assert.Equal(t, "p1", s1Items[0].(map[string]any)["product_id"])
	assert.Equal(t, "p2", s2Items[0].(map[string]any)["product_id"])

	assert.Nil(t, f.docs.Value(cart.Path("u1")), "cart should be empty after checkout")

	entry, err := f.journal.Find(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, enums.FanoutStateCommitted, entry.State)
	completed, err := entry.Completed()
	require.NoError(t, err)
	assert.Equal(t, []string{"order", "user_ref", "store_ref:S1", "store_ref:S2", "cart_clear"}, completed)

	assert.Equal(t, []string{EventOrderConfirmed + ":" + orderID}, f.publisher.events)
	assert.Equal(t, float64(1), f.outcome(t, metrics.OutcomeCommitted))
}

func (f *engineFixture) outcome(t *testing.T, label string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "qrcatalog_order_fanout_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCreateOrderWritesOrderBeforeIndexes(t *testing.T) {
	f := newEngineFixture(t)
	orderID, err := f.engine.CreateOrder(context.Background(), exampleInput("u1"))
	require.NoError(t, err)

	var puts []string
	for _, call := range f.docs.Calls() {
		if call.Method == "PUT" {
			puts = append(puts, call.Path)
		}
	}
	require.GreaterOrEqual(t, len(puts), 4)
	assert.Equal(t, OrderPath(orderID), puts[0])
	assert.Equal(t, UserOrderRefPath("u1", orderID), puts[1])
	assert.Equal(t, StoreOrderRefPath("S1", orderID), puts[2])
	assert.Equal(t, StoreOrderRefPath("S2", orderID), puts[3])
}

func TestCreateOrderTotalMismatchIsNotRejected(t *testing.T) {
	f := newEngineFixture(t)
	input := exampleInput("u1")
	input.Total = types.MoneyFromInt(40)

	orderID, err := f.engine.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	order := readOrder(t, f.docs, orderID)
	assert.Equal(t, float64(40), order["total"])
	s1 := f.docs.Value(StoreOrderRefPath("S1", orderID)).(map[string]any)
	assert.Equal(t, float64(20), s1["total"])
}

func TestCreateOrderPartialWriteFailure(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.fillCart(t, "u1", item("p1", "S1", 10, 2), item("p2", "S2", 5, 3))

	boom := pkgerrors.New(pkgerrors.CodeDependency, "docstore unavailable")
	f.docs.FailOn = func(method, path string) error {
		if method == "PUT" && strings.HasPrefix(path, "stores/S2/orders/") {
			return boom
		}
		return nil
	}

	_, err := f.engine.CreateOrder(ctx, exampleInput("u1"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePartialWrite, typed.Code())
	assert.True(t, errors.Is(err, boom))

	details := typed.Details().(map[string]any)
	orderID := details["order_id"].(string)
	assert.Equal(t, "store_ref:S2", details["failed_step"])

	assert.NotNil(t, f.docs.Value(OrderPath(orderID)), "earlier writes are not rolled back")
	assert.NotNil(t, f.docs.Value(StoreOrderRefPath("S1", orderID)))
	assert.Nil(t, f.docs.Value(StoreOrderRefPath("S2", orderID)))
	assert.NotNil(t, f.docs.Value(cart.Path("u1")), "cart is kept when the fan-out aborts")

	entry, err := f.journal.Find(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, enums.FanoutStateFailed, entry.State)
	require.NotNil(t, entry.FailedStep)
	assert.Equal(t, "store_ref:S2", *entry.FailedStep)
	assert.Empty(t, f.publisher.events)
	assert.Equal(t, float64(1), f.outcome(t, metrics.OutcomePartial))
}

func TestCreateOrderFirstWriteFailureIsDependency(t *testing.T) {
	f := newEngineFixture(t)
	f.docs.FailOn = func(method, path string) error {
		if method == "PUT" && strings.HasPrefix(path, "orders/") {
			return pkgerrors.New(pkgerrors.CodeDependency, "down")
		}
		return nil
	}
	_, err := f.engine.CreateOrder(context.Background(), exampleInput("u1"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
}

func TestCreateOrderIdempotencyKeyReplays(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	input := exampleInput("u1")
	input.IdempotencyKey = "checkout-123"

	first, err := f.engine.CreateOrder(ctx, input)
	require.NoError(t, err)
	puts := countPuts(f.docs)

	second, err := f.engine.CreateOrder(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, puts, countPuts(f.docs), "a committed replay must not write again")

	other, err := f.engine.CreateOrder(ctx, exampleInput("u1"))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestCreateOrderIdempotencyKeyResumesFailedFanout(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	input := exampleInput("u1")
	input.IdempotencyKey = "retry-me"

	failing := true
	f.docs.FailOn = func(method, path string) error {
		if failing && method == "PUT" && strings.HasPrefix(path, "stores/S2/orders/") {
			return pkgerrors.New(pkgerrors.CodeDependency, "flaky")
		}
		return nil
	}
	_, err := f.engine.CreateOrder(ctx, input)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePartialWrite))

	failing = false
	f.fillCart(t, "u1", item("p9", "S3", 1, 1))
	orderID, err := f.engine.CreateOrder(ctx, input)
	require.NoError(t, err)
	assert.NotNil(t, f.docs.Value(StoreOrderRefPath("S2", orderID)))
	assert.NotNil(t, f.docs.Value(cart.ItemPath("u1", "p9")), "resume only removes ordered products")

	entry, err := f.journal.Find(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, enums.FanoutStateCommitted, entry.State)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	noItems := exampleInput("u1")
	noItems.Items = nil
	missingStore := exampleInput("u1")
	missingStore.Items = []cart.Item{{ProductID: "p1", Price: types.MoneyFromInt(1), Quantity: 1}}
	badDelivery := exampleInput("u1")
	badDelivery.DeliveryMethod = "drone"
	negativePrice := exampleInput("u1")
	negativePrice.Items = []cart.Item{item("p1", "S1", -10, 2)}
	negativeTotal := exampleInput("u1")
	negativeTotal.Total = types.MoneyFromInt(-1)

	for name, input := range map[string]CreateInput{
		"no items":       noItems,
		"missing store":  missingStore,
		"bad delivery":   badDelivery,
		"negative price": negativePrice,
		"negative total": negativeTotal,
	} {
		_, err := f.engine.CreateOrder(ctx, input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%s: got %v", name, err)
	}
	assert.Empty(t, f.docs.Calls(), "validation failures must not touch the document store")
}

func TestOrderIDForIsDeterministicPerUserAndKey(t *testing.T) {
	f := newEngineFixture(t)
	a := f.engine.OrderIDFor("u1", "k")
	assert.Equal(t, a, f.engine.OrderIDFor("u1", "k"))
	assert.NotEqual(t, a, f.engine.OrderIDFor("u2", "k"))
	assert.NotEqual(t, f.engine.OrderIDFor("u1", ""), f.engine.OrderIDFor("u1", ""))
}

func TestPublishFailureDoesNotFailOrder(t *testing.T) {
	f := newEngineFixture(t)
	f.publisher.err = errors.New("pubsub down")
	_, err := f.engine.CreateOrder(context.Background(), exampleInput("u1"))
	require.NoError(t, err)
}

func countPuts(docs *docstoretest.Store) int {
	n := 0
	for _, call := range docs.Calls() {
		if call.Method == "PUT" {
			n++
		}
	}
	return n
}
