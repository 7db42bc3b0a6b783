package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/sourcegraph/conc/panics"
)

type Name string

const (
	MatchUpdated         Name = "match:updated"
	MatchUpdateRetry     Name = "match:update:retry"
	IncidentAdded        Name = "incident:added"
	IncidentGoal         Name = "incident:goal"
	IncidentCard         Name = "incident:card"
	IncidentSubstitution Name = "incident:substitution"
)

// Event is the payload handed to subscribers. Payload values must be JSON friendly.
type Event struct {
	ID         string         `json:"id"`
	Name       Name           `json:"name"`
	MatchID    string         `json:"match_id"`
	Source     string         `json:"source,omitempty"`
	Fields     []string       `json:"fields,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Handler func(ctx context.Context, evt Event) error

// Publisher is the producer side of the bus.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

var ErrClosed = errors.New("event bus closed")

const defaultWorkers = 16

// Bus delivers events to subscribers asynchronously on a worker pool.
// Handler errors and panics are logged and never reach the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Name]map[uint64]Handler
	all    map[uint64]Handler
	nextID uint64

	pool     *ants.Pool
	inflight sync.WaitGroup
	closed   atomic.Bool
	logger   *logging.Logger
	now      func() time.Time
}

func NewBus(workers int, logger *logging.Logger) (*Bus, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create event worker pool: %w", err)
	}

	return &Bus{
		subs:   make(map[Name]map[uint64]Handler),
		all:    make(map[uint64]Handler),
		pool:   pool,
		logger: logger.Named("events"),
		now:    time.Now,
	}, nil
}

// Subscribe registers h for name and returns a function that removes it.
func (b *Bus) Subscribe(name Name, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[name] == nil {
		b.subs[name] = make(map[uint64]Handler)
	}
	b.subs[name][id] = h

	return func() {
		b.mu.Lock()
		delete(b.subs[name], id)
		b.mu.Unlock()
	}
}

// SubscribeAll registers h for every event name.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all[id] = h

	return func() {
		b.mu.Lock()
		delete(b.all, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Publish(ctx context.Context, evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = b.now().UTC()
	}

	// The closed check and the inflight Add happen under the read lock so
	// Close cannot start waiting between them.
	b.mu.RLock()
	if b.closed.Load() {
		b.mu.RUnlock()
		b.logger.WarnContext(ctx, "dropping event on closed bus", "event", evt.Name, "match_id", evt.MatchID)
		return
	}
	handlers := b.handlersForLocked(evt.Name)
	b.inflight.Add(len(handlers))
	b.mu.RUnlock()

	// Deliveries outlive the publishing request.
	deliverCtx := context.WithoutCancel(ctx)
	for _, h := range handlers {
		h := h
		if err := b.pool.Submit(func() {
			defer b.inflight.Done()
			b.deliver(deliverCtx, h, evt)
		}); err != nil {
			b.inflight.Done()
			b.logger.WarnContext(ctx, "event delivery not scheduled", "event", evt.Name, "match_id", evt.MatchID, "error", err)
		}
	}
}

// Close stops accepting events and waits for in-flight deliveries or ctx.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed.Load() {
		b.mu.Unlock()
		return ErrClosed
	}
	b.closed.Store(true)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("drain event bus: %w", ctx.Err())
	}
	b.pool.Release()
	return err
}

func (b *Bus) handlersForLocked(name Name) []Handler {
	out := make([]Handler, 0, len(b.subs[name])+len(b.all))
	for _, h := range b.subs[name] {
		out = append(out, h)
	}
	for _, h := range b.all {
		out = append(out, h)
	}
	return out
}

func (b *Bus) deliver(ctx context.Context, h Handler, evt Event) {
	var pc panics.Catcher
	var err error
	pc.Try(func() {
		err = h(ctx, evt)
	})

	if r := pc.Recovered(); r != nil {
		b.logger.ErrorContext(ctx, "event subscriber panicked",
			"event", evt.Name,
			"match_id", evt.MatchID,
			"panic", fmt.Sprint(r.Value),
			"stack", string(r.Stack),
		)
		return
	}
	if err != nil {
		b.logger.WarnContext(ctx, "event subscriber failed", "event", evt.Name, "match_id", evt.MatchID, "error", err)
	}
}
