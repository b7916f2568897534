package seeder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/entity"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	gateway repo.Gateway
	logger  *zap.Logger
}

// New constructs a Seeder writing through the order gateway. Seeding needs a
// relational store; an in-memory one would be discarded when the command exits.
func New(conns *database.Connections, gateway repo.Gateway, logger *zap.Logger) (*Seeder, error) {
	if !conns.Relational() {
		return nil, fmt.Errorf("seed: %w", database.ErrNoRelationalStore)
	}
	return &Seeder{gateway: gateway, logger: logger}, nil
}

// Orders seeds example orders when the store is empty. It returns the number inserted.
func (s *Seeder) Orders(ctx context.Context) (int, error) {
	existing, err := s.gateway.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		if s.logger != nil {
			s.logger.Info("orders already present; skipping seed", zap.Int("existing", len(existing)))
		}
		return 0, nil
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	samples := []entity.Order{
		{CustomerName: "John Doe", ShippingAddress: "123 Main St", Total: 100.0, OrderDate: today, CreatedAt: now, UpdatedAt: now},
		{CustomerName: "Jane Smith", ShippingAddress: "456 Oak St", Total: 150.0, OrderDate: today, CreatedAt: now, UpdatedAt: now},
	}

	for i := range samples {
		if err := s.gateway.Save(ctx, &samples[i]); err != nil {
			return i, err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return len(samples), nil
}
