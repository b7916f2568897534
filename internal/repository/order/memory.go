package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Additional-Code/orderdesk/internal/entity"
)

// MemoryRepository keeps orders in process. It backs the memory database driver and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]entity.Order
}

// NewMemoryRepository returns an empty in-memory gateway.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[int64]entity.Order)}
}

// Save stores a copy of order, assigning the next ID on first save.
func (r *MemoryRepository) Save(_ context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == 0 {
		r.nextID++
		order.ID = r.nextID
		if order.CreatedAt.IsZero() {
			order.CreatedAt = time.Now().UTC()
		}
		r.items[order.ID] = *order
		return nil
	}

	if _, ok := r.items[order.ID]; !ok {
		return ErrNotFound
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}
	r.items[order.ID] = *order
	return nil
}

// FindByID returns a copy of the stored order or ErrNotFound.
func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*entity.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &order, nil
}

// Delete removes the order or returns ErrNotFound.
func (r *MemoryRepository) Delete(_ context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[order.ID]; !ok {
		return ErrNotFound
	}
	delete(r.items, order.ID)
	return nil
}

// FindAll returns every stored order sorted by ID.
func (r *MemoryRepository) FindAll(_ context.Context) ([]entity.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]entity.Order, 0, len(r.items))
	for _, order := range r.items {
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}
