package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/entity"
)

// Orders is the read-through cache of orders keyed by id. A nil *Orders
// misses every read and ignores every write.
type Orders struct {
	store Store
	ttl   time.Duration
}

// NewOrders caches orders in store for CACHE_DEFAULT_TTL.
func NewOrders(store Store, cfg config.Config) *Orders {
	return &Orders{store: store, ttl: cfg.Cache.DefaultTTL}
}

// OrderKey is the store key of an order.
func OrderKey(id int64) string {
	return "orders:" + strconv.FormatInt(id, 10)
}

// Get returns ErrCacheMiss when the order is not cached.
func (c *Orders) Get(ctx context.Context, id int64) (*entity.Order, error) {
	if c == nil || c.store == nil {
		return nil, ErrCacheMiss
	}
	raw, err := c.store.Get(ctx, OrderKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Orders) Put(ctx context.Context, order *entity.Order) error {
	if c == nil || c.store == nil || order == nil {
		return nil
	}
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, OrderKey(order.ID), raw, c.ttl)
}

func (c *Orders) Evict(ctx context.Context, id int64) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, OrderKey(id))
}
