package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/messaging"
)

const maxBackoff = 30 * time.Second

// HandlerRegistration binds a topic to the handler of its messages.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine runs the configured number of consumers over the messaging client
// and routes each message to the handler of its topic.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	enabled  bool
	workers  config.Worker
	handlers map[string]messaging.Handler

	cancel context.CancelFunc
	done   chan error
}

// NewEngine indexes the registrations by topic. Registrations without a topic
// or handler are ignored; two handlers for one topic are an error.
func NewEngine(p Params) (*Engine, error) {
	handlers := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		if _, dup := handlers[r.Topic]; dup {
			return nil, fmt.Errorf("worker: topic %s registered twice", r.Topic)
		}
		handlers[r.Topic] = r.Handler
	}

	return &Engine{
		client:   p.Client,
		logger:   p.Logger,
		enabled:  p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled,
		workers:  p.Config.Messaging.Workers,
		handlers: handlers,
	}, nil
}

// Module wires the engine into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, e *Engine) {
		lc.Append(fx.Hook{OnStart: e.Start, OnStop: e.Stop})
	}),
)

// Start launches the consumers in the background and returns.
func (e *Engine) Start(context.Context) error {
	switch {
	case !e.enabled:
		e.logger.Info("worker engine disabled")
		return nil
	case len(e.handlers) == 0:
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	for id := range max(e.workers.Concurrency, 1) {
		g.Go(func() error {
			e.consume(ctx, id)
			return nil
		})
	}

	e.cancel = cancel
	e.done = make(chan error, 1)
	go func() { e.done <- g.Wait() }()

	e.logger.Info("worker engine started", zap.Int("workers", max(e.workers.Concurrency, 1)))
	return nil
}

// Stop cancels the consumers and waits for them until ctx expires.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-e.done:
		e.logger.Info("worker engine stopped")
		return err
	}
}

// consume keeps a consume loop open until ctx ends, backing off from the poll
// interval up to maxBackoff while the client keeps failing.
func (e *Engine) consume(ctx context.Context, id int) {
	backoff := e.workers.PollInterval
	if backoff <= 0 {
		backoff = time.Second
	}

	for {
		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.dispatch(msgCtx, id, msg)
		})
		if ctx.Err() != nil || err == nil {
			return
		}

		e.logger.Error("consume loop failed", zap.Int("worker", id), zap.Duration("retry_in", backoff), zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// dispatch routes msg to the handler of its topic within the producer's trace.
// Messages on unknown topics are acknowledged and dropped.
func (e *Engine) dispatch(ctx context.Context, id int, msg messaging.Message) error {
	handler, ok := e.handlers[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		return nil
	}

	e.logger.Debug("dispatching order event",
		zap.String("topic", msg.Topic),
		zap.String("event_type", msg.Headers[messaging.HeaderEventType]),
		zap.Int64("offset", msg.Offset),
		zap.Int("worker", id),
	)
	return handler(msg.Context(ctx), msg)
}
