package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	"github.com/Additional-Code/orderdesk/internal/observability"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/orderdesk/service/order")

// Service encapsulates business logic around orders.
type Service struct {
	repo       repo.Gateway
	cache      *cache.Orders
	logger     *zap.Logger
	publisher  messaging.Client
	messaging  messagingConfig
	operations metric.Int64Counter
	now        func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Gateway   repo.Gateway
	Cache     *cache.Orders
	Metrics   observability.OrderMetrics `optional:"true"`
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// Input carries the client-supplied fields of an order.
type Input struct {
	CustomerName    string
	ShippingAddress string
	Total           float64
	// OrderDate is optional and only honoured on create.
	OrderDate       string
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       p.Gateway,
		cache:      p.Cache,
		logger:     logger,
		publisher:  p.Publisher,
		operations: p.Metrics.Operations,
		now:        time.Now,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Create validates the input and persists a new order.
func (s *Service) Create(ctx context.Context, in Input) (order *entity.Order, err error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create")
	defer span.End()
	defer func() { s.record(ctx, "create", err) }()

	orderDate, msgs := validate(in, true)
	if len(msgs) > 0 {
		return nil, errorbank.Invalid(msgs)
	}

	now := s.now().UTC()
	if orderDate.IsZero() {
		orderDate = truncateToDate(now)
	}
	order = &entity.Order{
		CustomerName:    strings.TrimSpace(in.CustomerName),
		OrderDate:       orderDate,
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		Total:           in.Total,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Save(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	s.storeInCache(ctx, order)
	s.publish(ctx, EventOrderCreated, order)
	return order, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (order *entity.Order, err error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()
	defer func() { s.record(ctx, "get", err) }()

	if cached, cacheErr := s.cache.Get(ctx, id); cacheErr == nil {
		return cached, nil
	} else if !errors.Is(cacheErr, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(cacheErr))
	}

	order, err = s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}

	s.storeInCache(ctx, order)
	return order, nil
}

// Update overwrites customer name, shipping address and total of an existing order.
// The identifier and order date are left untouched.
func (s *Service) Update(ctx context.Context, id int64, in Input) (order *entity.Order, err error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()
	defer func() { s.record(ctx, "update", err) }()

	order, err = s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}

	if _, msgs := validate(in, false); len(msgs) > 0 {
		return nil, errorbank.Invalid(msgs)
	}

	order.CustomerName = strings.TrimSpace(in.CustomerName)
	order.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	order.Total = in.Total
	order.UpdatedAt = s.now().UTC()

	if err := s.repo.Save(ctx, order); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.evict(ctx, id)
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	s.storeInCache(ctx, order)
	s.publish(ctx, EventOrderUpdated, order)
	return order, nil
}

// Delete removes an existing order.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()
	defer func() { s.record(ctx, "delete", err) }()

	order, err := s.load(ctx, span, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, order); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.evict(ctx, id)
			return errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete order", errorbank.WithCause(err))
	}

	s.evict(ctx, id)
	s.publish(ctx, EventOrderDeleted, order)
	return nil
}

// List returns every order.
func (s *Service) List(ctx context.Context) (orders []entity.Order, err error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()
	defer func() { s.record(ctx, "list", err) }()

	orders, err = s.repo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

func (s *Service) load(ctx context.Context, span trace.Span, id int64) (*entity.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) record(ctx context.Context, operation string, err error) {
	if s.operations == nil {
		return
	}
	s.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome(err)),
	))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errorbank.IsKind(err, errorbank.KindNotFound):
		return "not_found"
	case errorbank.IsKind(err, errorbank.KindBadRequest):
		return "invalid"
	default:
		return "error"
	}
}

func (s *Service) publish(ctx context.Context, eventType string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := NewEvent(eventType, order, s.now().UTC())
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload, map[string]string{
		messaging.HeaderEventType: eventType,
	}); err != nil {
		s.logger.Error("publish order event", zap.String("type", eventType), zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if err := s.cache.Put(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) evict(ctx context.Context, id int64) {
	if err := s.cache.Evict(ctx, id); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("id", id), zap.Error(err))
	}
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseDate accepts the dto.DateLayout wire format.
func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dto.DateLayout, strings.TrimSpace(value), time.UTC)
}
