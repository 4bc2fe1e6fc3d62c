package telegram

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/soaringjerry/checkbot/internal/observability"
	"github.com/soaringjerry/checkbot/internal/services"
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Handler processes one event. *services.InterviewService satisfies it.
type Handler interface {
	HandleEvent(ctx context.Context, ev services.Event) error
}

type job struct {
	updateID int
	ev       services.Event
}

// Dispatcher fans events out to a fixed set of workers. All events of one
// user land on the same worker, so they are handled in arrival order.
type Dispatcher struct {
	handler Handler
	queues  []chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines, each with a queue of depth buffered
// events.
func NewDispatcher(handler Handler, workers, depth int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if depth <= 0 {
		depth = 64
	}
	d := &Dispatcher{handler: handler, queues: make([]chan job, workers)}
	for i := range d.queues {
		q := make(chan job, depth)
		d.queues[i] = q
		d.wg.Add(1)
		go d.run(q)
	}
	return d
}

func (d *Dispatcher) run(q <-chan job) {
	defer d.wg.Done()
	for j := range q {
		reqID := "upd-" + strconv.Itoa(j.updateID)
		ctx := observability.WithRequestID(context.Background(), reqID)
		if err := d.handler.HandleEvent(ctx, j.ev); err != nil {
			observability.LoggerFromContext(ctx).Warn("event handled with errors",
				"user_id", j.ev.UserID, "event", j.ev.Kind.String(), "error", err)
		}
	}
}

// Submit queues ev on its user's worker. It blocks while that queue is full
// and gives up when ctx is done.
func (d *Dispatcher) Submit(ctx context.Context, updateID int, ev services.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	idx := ev.UserID % int64(len(d.queues))
	if idx < 0 {
		idx = -idx
	}
	select {
	case d.queues[idx] <- job{updateID: updateID, ev: ev}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
