package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := NewBus(4, nil)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	return bus
}

func TestBus_DeliversToNamedAndWildcardSubscribers(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)

	var mu sync.Mutex
	got := map[string][]Name{}
	record := func(who string) Handler {
		return func(_ context.Context, evt Event) error {
			mu.Lock()
			got[who] = append(got[who], evt.Name)
			mu.Unlock()
			return nil
		}
	}

	bus.Subscribe(MatchUpdated, record("updates"))
	bus.Subscribe(IncidentGoal, record("goals"))
	bus.SubscribeAll(record("all"))

	ctx := context.Background()
	bus.Publish(ctx, Event{Name: MatchUpdated, MatchID: "m1"})
	bus.Publish(ctx, Event{Name: IncidentGoal, MatchID: "m1"})
	bus.Publish(ctx, Event{Name: MatchUpdateRetry, MatchID: "m1"})

	if err := bus.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(got["updates"]) != 1 || got["updates"][0] != MatchUpdated {
		t.Fatalf("unexpected match subscriber deliveries %v", got["updates"])
	}
	if len(got["goals"]) != 1 || got["goals"][0] != IncidentGoal {
		t.Fatalf("unexpected goal subscriber deliveries %v", got["goals"])
	}
	if len(got["all"]) != 3 {
		t.Fatalf("expected wildcard subscriber to see 3 events, got %v", got["all"])
	}
}

func TestBus_SubscriberFailuresDoNotPropagate(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)

	delivered := make(chan string, 1)
	bus.Subscribe(MatchUpdated, func(context.Context, Event) error {
		panic("subscriber bug")
	})
	bus.Subscribe(MatchUpdated, func(context.Context, Event) error {
		return errors.New("downstream unavailable")
	})
	bus.Subscribe(MatchUpdated, func(_ context.Context, evt Event) error {
		delivered <- evt.MatchID
		return nil
	})

	bus.Publish(context.Background(), Event{Name: MatchUpdated, MatchID: "m9"})

	select {
	case id := <-delivered:
		if id != "m9" {
			t.Fatalf("unexpected match id %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("healthy subscriber never received the event")
	}

	if err := bus.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBus_DeliveryOutlivesPublisherContext(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	seen := make(chan error, 1)
	bus.Subscribe(IncidentAdded, func(ctx context.Context, evt Event) error {
		seen <- ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, Event{Name: IncidentAdded, MatchID: "m1"})
	cancel()

	if err := <-seen; err != nil {
		t.Fatalf("delivery context was cancelled with the publisher: %v", err)
	}
	_ = bus.Close(context.Background())
}

func TestBus_UnsubscribeAndClose(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	called := make(chan struct{}, 1)
	unsubscribe := bus.Subscribe(MatchUpdated, func(context.Context, Event) error {
		called <- struct{}{}
		return nil
	})
	unsubscribe()

	bus.Publish(context.Background(), Event{Name: MatchUpdated, MatchID: "m1"})
	if err := bus.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-called:
		t.Fatalf("unsubscribed handler was called")
	default:
	}

	if err := bus.Close(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on second close, got %v", err)
	}
	bus.Publish(context.Background(), Event{Name: MatchUpdated, MatchID: "m1"})
}

func TestBus_StampsIDAndTime(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	fixed := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	bus.now = func() time.Time { return fixed }

	got := make(chan Event, 1)
	bus.Subscribe(IncidentCard, func(_ context.Context, evt Event) error {
		got <- evt
		return nil
	})
	bus.Publish(context.Background(), Event{Name: IncidentCard, MatchID: "m1"})

	evt := <-got
	if evt.ID == "" {
		t.Fatalf("expected generated event id")
	}
	if !evt.OccurredAt.Equal(fixed) {
		t.Fatalf("expected occurred_at %s, got %s", fixed, evt.OccurredAt)
	}
	_ = bus.Close(context.Background())
}

func TestBus_CloseDrainsConcurrentPublishes(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		bus := newTestBus(t)
		var started, finished atomic.Int32
		bus.SubscribeAll(func(context.Context, Event) error {
			started.Add(1)
			time.Sleep(100 * time.Microsecond)
			finished.Add(1)
			return nil
		})

		var publishers sync.WaitGroup
		publishers.Add(1)
		go func() {
			defer publishers.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(context.Background(), Event{Name: MatchUpdated, MatchID: "m1"})
			}
		}()

		if err := bus.Close(context.Background()); err != nil {
			t.Fatalf("close: %v", err)
		}
		if started.Load() != finished.Load() {
			t.Fatalf("close returned with deliveries still running: started=%d finished=%d", started.Load(), finished.Load())
		}
		publishers.Wait()
		if after := started.Load(); after != finished.Load() {
			t.Fatalf("delivery escaped the drain: started=%d finished=%d", after, finished.Load())
		}
	}
}
