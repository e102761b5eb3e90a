package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucademy/orderflow/internal/domain/coupon"
	"github.com/ucademy/orderflow/internal/domain/course"
	"github.com/ucademy/orderflow/internal/domain/notification"
	"github.com/ucademy/orderflow/internal/domain/pricing"
)

var (
	_ course.Catalog    = (*mockCatalog)(nil)
	_ CouponLedger      = (*mockLedger)(nil)
	_ Repository        = (*memOrders)(nil)
	_ EnrollmentSync    = (*mockEnrollments)(nil)
	_ notification.Sink = (*mockSink)(nil)
)

type mockCatalog struct {
	courses map[string]*course.Course
	getErr  error
}

func (m *mockCatalog) GetByID(_ context.Context, id string) (*course.Course, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.courses[id]
	if !ok {
		return nil, course.ErrNotFound
	}
	return c, nil
}

type mockLedger struct {
	res        *coupon.Reservation
	reserveErr error

	reserved []string
	released []string
}

func (m *mockLedger) ValidateAndReserve(_ context.Context, code, _ string) (*coupon.Reservation, error) {
	if m.reserveErr != nil {
		return nil, m.reserveErr
	}
	m.reserved = append(m.reserved, code)
	return m.res, nil
}

func (m *mockLedger) Release(_ context.Context, res *coupon.Reservation) error {
	m.released = append(m.released, res.CouponID)
	return nil
}

// memOrders is an in-memory Repository with error/race injection points.
type memOrders struct {
	mu     sync.Mutex
	orders map[string]*Order

	createErr error
	loseRace  bool // UpdateStatus reports not applied
}

func newMemOrders(orders ...*Order) *memOrders {
	byID := make(map[string]*Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	return &memOrders{orders: byID}
}

func (m *memOrders) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetByHumanCode(_ context.Context, code string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.HumanCode == code {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOrders) FindLive(_ context.Context, buyerID, courseID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.BuyerID == buyerID && o.CourseID == courseID && o.Status != StatusCanceled {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, from, to Status) (bool, error) {
	if m.loseRace {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type mockEnrollments struct {
	granted []string
	revoked []string
}

func (m *mockEnrollments) Grant(_ context.Context, buyerID, courseID string) error {
	m.granted = append(m.granted, buyerID+"/"+courseID)
	return nil
}

func (m *mockEnrollments) Revoke(_ context.Context, buyerID, courseID string) error {
	m.revoked = append(m.revoked, buyerID+"/"+courseID)
	return nil
}

type mockSink struct {
	events []notification.Event
}

func (m *mockSink) Emit(_ context.Context, ev notification.Event) error {
	m.events = append(m.events, ev)
	return nil
}

type serviceFixture struct {
	svc         *Service
	catalog     *mockCatalog
	ledger      *mockLedger
	orders      *memOrders
	enrollments *mockEnrollments
	sink        *mockSink
}

func newFixture(orders ...*Order) *serviceFixture {
	f := &serviceFixture{
		catalog: &mockCatalog{courses: map[string]*course.Course{
			"course-1": {ID: "course-1", Title: "Practical Go", Price: decimal.NewFromInt(100000)},
		}},
		ledger:      &mockLedger{},
		orders:      newMemOrders(orders...),
		enrollments: &mockEnrollments{},
		sink:        &mockSink{},
	}
	f.svc = NewService(f.catalog, f.ledger, f.orders, f.enrollments, f.sink)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	f.svc.newID = func() string { return "order-1" }
	f.svc.humanCode = func(time.Time) string { return "DH-000001" }
	return f
}

func TestCreateOrder_NoCoupon(t *testing.T) {
	f := newFixture()

	o, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:  "buyer-1",
		CourseID: "course-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, "DH-000001", o.HumanCode)
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, decimal.NewFromInt(100000).Equal(o.Amount))
	assert.True(t, o.Discount.IsZero())
	assert.True(t, decimal.NewFromInt(100000).Equal(o.Total))
	assert.Empty(t, o.CouponID)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, notification.KindOrderPending, f.sink.events[0].Kind)
	assert.Equal(t, "buyer-1", f.sink.events[0].RecipientID)
	assert.Empty(t, f.enrollments.granted)
}

func TestCreateOrder_PercentCouponApplied(t *testing.T) {
	f := newFixture()
	f.ledger.res = &coupon.Reservation{
		CouponID: "c1",
		Code:     "SALE20",
		Kind:     coupon.KindPercent,
		Value:    decimal.NewFromInt(20),
	}

	o, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:    "buyer-1",
		CourseID:   "course-1",
		CouponCode: "SALE20",
	})

	require.NoError(t, err)
	assert.Equal(t, "c1", o.CouponID)
	assert.True(t, decimal.NewFromInt(100000).Equal(o.Amount))
	assert.True(t, decimal.NewFromInt(20000).Equal(o.Discount))
	assert.True(t, decimal.NewFromInt(80000).Equal(o.Total))
	assert.Equal(t, []string{"SALE20"}, f.ledger.reserved)
	assert.Empty(t, f.ledger.released)
}

func TestCreateOrder_BasePriceOverridesCatalog(t *testing.T) {
	f := newFixture()
	override := decimal.NewFromInt(50000)

	o, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:   "buyer-1",
		CourseID:  "course-1",
		BasePrice: &override,
	})

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50000).Equal(o.Total))
}

func TestCreateOrder_SettleImmediately(t *testing.T) {
	f := newFixture()

	o, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:           "buyer-1",
		CourseID:          "course-1",
		SettleImmediately: true,
	})

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, []string{"buyer-1/course-1"}, f.enrollments.granted)
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, notification.KindEnrollmentCompleted, f.sink.events[0].Kind)
}

func TestCreateOrder_DuplicatePending(t *testing.T) {
	f := newFixture(&Order{
		ID: "existing", HumanCode: "DH-777777",
		BuyerID: "buyer-1", CourseID: "course-1", Status: StatusPending,
	})

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:  "buyer-1",
		CourseID: "course-1",
	})

	var dup *DuplicatePendingError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "DH-777777", dup.HumanCode)
	assert.Empty(t, f.ledger.reserved, "guard rejects before touching the coupon")
}

func TestCreateOrder_AlreadyOwned(t *testing.T) {
	f := newFixture(&Order{
		ID: "existing", BuyerID: "buyer-1", CourseID: "course-1", Status: StatusCompleted,
	})

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:  "buyer-1",
		CourseID: "course-1",
	})

	require.ErrorIs(t, err, ErrAlreadyOwned)
}

func TestCreateOrder_CanceledOrderDoesNotBlock(t *testing.T) {
	f := newFixture(&Order{
		ID: "old", BuyerID: "buyer-1", CourseID: "course-1", Status: StatusCanceled,
	})

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:  "buyer-1",
		CourseID: "course-1",
	})

	require.NoError(t, err)
}

func TestCreateOrder_CourseNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:  "buyer-1",
		CourseID: "course-missing",
	})

	require.ErrorIs(t, err, course.ErrNotFound)
}

func TestCreateOrder_CouponErrorCreatesNoOrder(t *testing.T) {
	f := newFixture()
	f.ledger.reserveErr = coupon.ErrLimitReached

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:    "buyer-1",
		CourseID:   "course-1",
		CouponCode: "SALE20",
	})

	require.ErrorIs(t, err, coupon.ErrLimitReached)
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.sink.events)
}

func TestCreateOrder_PricingFailureReleasesCoupon(t *testing.T) {
	f := newFixture()
	f.ledger.res = &coupon.Reservation{CouponID: "c1", Code: "SALE20", Kind: coupon.KindPercent, Value: decimal.NewFromInt(20)}
	negative := decimal.NewFromInt(-1)

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:    "buyer-1",
		CourseID:   "course-1",
		BasePrice:  &negative,
		CouponCode: "SALE20",
	})

	require.ErrorIs(t, err, pricing.ErrNegativePrice)
	assert.Equal(t, []string{"c1"}, f.ledger.released)
	assert.Empty(t, f.orders.orders)
}

func TestCreateOrder_StoreFailureReleasesCoupon(t *testing.T) {
	f := newFixture()
	f.ledger.res = &coupon.Reservation{CouponID: "c1", Code: "SALE20", Kind: coupon.KindPercent, Value: decimal.NewFromInt(20)}
	f.orders.createErr = errors.New("connection reset")

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:    "buyer-1",
		CourseID:   "course-1",
		CouponCode: "SALE20",
	})

	require.Error(t, err)
	assert.Equal(t, []string{"c1"}, f.ledger.released)
}

func TestCreateOrder_DuplicateRaceSurfacesHumanCode(t *testing.T) {
	// A concurrent insert slipped past FindLive; the store's unique-index
	// rejection must surface as DuplicatePendingError.
	f := newFixture()
	f.orders.createErr = &DuplicatePendingError{HumanCode: "DH-555555"}

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		BuyerID:  "buyer-1",
		CourseID: "course-1",
	})

	var dup *DuplicatePendingError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "DH-555555", dup.HumanCode)
}

func pendingOrder() *Order {
	return &Order{
		ID: "order-1", HumanCode: "DH-000001",
		BuyerID: "buyer-1", CourseID: "course-1",
		Amount: decimal.NewFromInt(100000), Total: decimal.NewFromInt(100000),
		Status: StatusPending,
	}
}

func TestTransitionOrder_PendingToCompleted(t *testing.T) {
	f := newFixture(pendingOrder())

	o, err := f.svc.TransitionOrder(context.Background(), "order-1", StatusCompleted)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, []string{"buyer-1/course-1"}, f.enrollments.granted)
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, notification.KindEnrollmentCompleted, f.sink.events[0].Kind)
}

func TestTransitionOrder_RepeatIsNoOp(t *testing.T) {
	f := newFixture(pendingOrder())

	_, err := f.svc.TransitionOrder(context.Background(), "order-1", StatusCompleted)
	require.NoError(t, err)

	o, err := f.svc.TransitionOrder(context.Background(), "order-1", StatusCompleted)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, o.Status)
	assert.Len(t, f.enrollments.granted, 1, "side effects run exactly once")
	assert.Len(t, f.sink.events, 1)
}

func TestTransitionOrder_PendingToCanceled(t *testing.T) {
	f := newFixture(pendingOrder())

	o, err := f.svc.TransitionOrder(context.Background(), "order-1", StatusCanceled)

	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, o.Status)
	assert.Empty(t, f.enrollments.revoked, "nothing was granted, nothing to revoke")
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, notification.KindOrderCanceled, f.sink.events[0].Kind)
}

func TestTransitionOrder_CompletedToCanceledRevokes(t *testing.T) {
	o := pendingOrder()
	o.Status = StatusCompleted
	f := newFixture(o)

	got, err := f.svc.TransitionOrder(context.Background(), "order-1", StatusCanceled)

	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got.Status)
	assert.Equal(t, []string{"buyer-1/course-1"}, f.enrollments.revoked)
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, notification.KindOrderCanceled, f.sink.events[0].Kind)
}

func TestTransitionOrder_CanceledIsTerminal(t *testing.T) {
	o := pendingOrder()
	o.Status = StatusCanceled
	f := newFixture(o)

	got, err := f.svc.TransitionOrder(context.Background(), "order-1", StatusCompleted)

	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got.Status)
	assert.Empty(t, f.enrollments.granted)
	assert.Empty(t, f.sink.events)
}

func TestTransitionOrder_TransientCatalogFailureIsRetryable(t *testing.T) {
	f := newFixture(pendingOrder())
	f.catalog.getErr = errors.New("catalog unavailable")

	_, err := f.svc.TransitionOrder(context.Background(), "order-1", StatusCompleted)
	require.Error(t, err)

	// The failure must precede the status write: the order stays pending and
	// nothing is granted, so a retry still owns the side effects.
	o, err := f.orders.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Empty(t, f.enrollments.granted)
	assert.Empty(t, f.sink.events)

	f.catalog.getErr = nil
	got, err := f.svc.TransitionOrder(context.Background(), "order-1", StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, []string{"buyer-1/course-1"}, f.enrollments.granted)
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, notification.KindEnrollmentCompleted, f.sink.events[0].Kind)
}

func TestTransitionOrder_LostRaceSkipsSideEffects(t *testing.T) {
	f := newFixture(pendingOrder())
	f.orders.loseRace = true

	o, err := f.svc.TransitionOrder(context.Background(), "order-1", StatusCompleted)

	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status, "re-read reflects the store")
	assert.Empty(t, f.enrollments.granted)
	assert.Empty(t, f.sink.events)
}

func TestTransitionOrder_UnknownStatus(t *testing.T) {
	f := newFixture(pendingOrder())

	_, err := f.svc.TransitionOrder(context.Background(), "order-1", Status("refunded"))
	require.Error(t, err)
}

func TestTransitionOrder_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.TransitionOrder(context.Background(), "missing", StatusCompleted)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrderByHumanCode(t *testing.T) {
	f := newFixture(pendingOrder())

	o, err := f.svc.GetOrderByHumanCode(context.Background(), "DH-000001")
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)

	_, err = f.svc.GetOrderByHumanCode(context.Background(), "DH-999999")
	require.ErrorIs(t, err, ErrNotFound)
}
