package order

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

var fixedNow = time.Date(2023, time.July, 3, 15, 4, 5, 0, time.UTC)

type mapCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string][]byte)}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

type published struct {
	key     string
	headers map[string]string
	event   OrderEvent
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (r *recordingPublisher) Publish(_ context.Context, key []byte, value []byte, headers map[string]string) error {
	var event OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, published{key: string(key), headers: headers, event: event})
	return nil
}

func (r *recordingPublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (r *recordingPublisher) Topic() string { return "orders.events" }

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.event.Type)
	}
	return out
}

type failingGateway struct{ err error }

func (f failingGateway) Save(context.Context, *entity.Order) error { return f.err }
func (f failingGateway) FindByID(context.Context, int64) (*entity.Order, error) {
	return nil, f.err
}
func (f failingGateway) Delete(context.Context, *entity.Order) error { return f.err }
func (f failingGateway) FindAll(context.Context) ([]entity.Order, error) {
	return nil, f.err
}

type fixture struct {
	svc       *Service
	gateway   repo.Gateway
	cache     *mapCache
	publisher *recordingPublisher
}

func newFixture(t *testing.T, gateway repo.Gateway) fixture {
	t.Helper()
	if gateway == nil {
		gateway = repo.NewMemoryRepository()
	}
	f := fixture{
		gateway:   gateway,
		cache:     newMapCache(),
		publisher: &recordingPublisher{},
	}
	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	cfg.Messaging.Enabled = true
	cfg.Messaging.Kafka.Topic = "orders.events"

	f.svc = NewService(Params{
		Gateway:   gateway,
		Cache:     cache.NewOrders(f.cache, cfg),
		Config:    cfg,
		Logger:    zap.NewNop(),
		Publisher: f.publisher,
	})
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func validInput() Input {
	return Input{CustomerName: "John Doe", ShippingAddress: "123 Main St", Total: 100.0}
}

func requireKind(t *testing.T, err error, kind errorbank.Kind) *errorbank.AppError {
	t.Helper()
	var appErr *errorbank.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, kind, appErr.Kind())
	return appErr
}

func TestCreatePersistsAndPublishes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, Input{CustomerName: "  John Doe ", ShippingAddress: "123 Main St", Total: 100})
	require.NoError(t, err)

	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, "John Doe", order.CustomerName)
	assert.Equal(t, time.Date(2023, time.July, 3, 0, 0, 0, 0, time.UTC), order.OrderDate)

	stored, err := f.gateway.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.CustomerName, stored.CustomerName)

	assert.Contains(t, f.cache.items, "orders:1")
	require.Len(t, f.publisher.messages, 1)
	msg := f.publisher.messages[0]
	assert.Equal(t, "order-1", msg.key)
	assert.Equal(t, EventOrderCreated, msg.headers[messaging.HeaderEventType])
	assert.Equal(t, EventOrderCreated, msg.event.Type)
	assert.Equal(t, "2023-07-03", msg.event.OrderDate)
	assert.True(t, fixedNow.Equal(msg.event.OccurredAt))
}

func TestCreateHonoursOrderDate(t *testing.T) {
	f := newFixture(t, nil)

	in := validInput()
	in.OrderDate = "2021-12-24"
	order, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, time.December, 24, 0, 0, 0, 0, time.UTC), order.OrderDate)
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		want []string
	}{
		{
			name: "all fields invalid",
			in:   Input{CustomerName: "", ShippingAddress: "", Total: -100},
			want: []string{MsgCustomerNameRequired, MsgShippingAddressRequired, MsgTotalPositive},
		},
		{
			name: "blank customer",
			in:   Input{CustomerName: "   ", ShippingAddress: "123 Main St", Total: 1},
			want: []string{MsgCustomerNameRequired},
		},
		{
			name: "missing address",
			in:   Input{CustomerName: "John Doe", Total: 1},
			want: []string{MsgShippingAddressRequired},
		},
		{
			name: "zero total",
			in:   Input{CustomerName: "John Doe", ShippingAddress: "123 Main St"},
			want: []string{MsgTotalPositive},
		},
		{
			name: "nan total",
			in:   Input{CustomerName: "John Doe", ShippingAddress: "123 Main St", Total: math.NaN()},
			want: []string{MsgTotalPositive},
		},
		{
			name: "malformed date",
			in:   Input{CustomerName: "John Doe", ShippingAddress: "123 Main St", Total: 1, OrderDate: "03/07/2023"},
			want: []string{MsgOrderDateFormat},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)

			_, err := f.svc.Create(context.Background(), tc.in)
			appErr := requireKind(t, err, errorbank.KindBadRequest)
			assert.Equal(t, tc.want, appErr.Messages())

			all, err := f.gateway.FindAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all)
			assert.Empty(t, f.publisher.messages)
		})
	}
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Get(context.Background(), 100)
	requireKind(t, err, errorbank.KindNotFound)
}

func TestGetReturnsStoredFields(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)
	delete(f.cache.items, "orders:1")

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.CustomerName, got.CustomerName)
	assert.Equal(t, created.ShippingAddress, got.ShippingAddress)
	assert.Equal(t, created.Total, got.Total)
	assert.True(t, created.OrderDate.Equal(got.OrderDate))
	assert.Contains(t, f.cache.items, "orders:1", "read should repopulate the cache")
}

func TestGetPrefersCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	// remove behind the service's back; the cached copy still answers
	require.NoError(t, f.gateway.Delete(ctx, created))

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", got.CustomerName)
}

func TestUpdateOverwritesFieldsOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	in := validInput()
	in.OrderDate = "2023-07-03"
	created, err := f.svc.Create(ctx, in)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, created.ID, Input{
		CustomerName:    "Jane Doe",
		ShippingAddress: "456 Oak St",
		Total:           200.0,
		OrderDate:       "1999-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Jane Doe", updated.CustomerName)
	assert.Equal(t, "456 Oak St", updated.ShippingAddress)
	assert.Equal(t, 200.0, updated.Total)

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.CustomerName)
	assert.Equal(t, "2023-07-03", got.OrderDate.Format("2006-01-02"))

	assert.Equal(t, []string{EventOrderCreated, EventOrderUpdated}, f.publisher.types())
}

func TestUpdateMissing(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Update(context.Background(), 100, Input{CustomerName: "Jane Doe", ShippingAddress: "456 Oak St", Total: 200})
	requireKind(t, err, errorbank.KindNotFound)
	assert.Empty(t, f.publisher.messages)
}

func TestUpdateRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, created.ID, Input{Total: 0})
	appErr := requireKind(t, err, errorbank.KindBadRequest)
	assert.Equal(t, []string{MsgCustomerNameRequired, MsgShippingAddressRequired, MsgTotalPositive}, appErr.Messages())

	stored, err := f.gateway.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", stored.CustomerName)
}

func TestDeleteRemovesAndEvicts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	assert.NotContains(t, f.cache.items, "orders:1")

	_, err = f.svc.Get(ctx, created.ID)
	requireKind(t, err, errorbank.KindNotFound)

	err = f.svc.Delete(ctx, created.ID)
	requireKind(t, err, errorbank.KindNotFound)

	assert.Equal(t, []string{EventOrderCreated, EventOrderDeleted}, f.publisher.types())
}

func TestListReturnsAll(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	empty, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, validInput())
		require.NoError(t, err)
	}

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(3), all[2].ID)
}

func TestGatewayFailuresAreInternal(t *testing.T) {
	f := newFixture(t, failingGateway{err: errors.New("connection refused")})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, validInput())
	requireKind(t, err, errorbank.KindInternal)

	_, err = f.svc.Get(ctx, 1)
	requireKind(t, err, errorbank.KindInternal)

	_, err = f.svc.Update(ctx, 1, validInput())
	requireKind(t, err, errorbank.KindInternal)

	err = f.svc.Delete(ctx, 1)
	requireKind(t, err, errorbank.KindInternal)

	_, err = f.svc.List(ctx)
	requireKind(t, err, errorbank.KindInternal)

	assert.Empty(t, f.publisher.messages)
}

func TestDisabledMessagingSkipsPublish(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.messaging.enabled = false

	_, err := f.svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Empty(t, f.publisher.messages)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "not_found", outcome(errorbank.NotFound("x")))
	assert.Equal(t, "invalid", outcome(errorbank.Invalid([]string{"x"})))
	assert.Equal(t, "error", outcome(errors.New("x")))
}
