package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/model"
)

// DefaultObserverBuffer is the queue length used by SubscribeAsync when the
// caller passes a non-positive size.
const DefaultObserverBuffer = 256

// queuedObserver delivers events to a slow observer from its own goroutine,
// in commit order. When the queue is full the event is dropped.
type queuedObserver struct {
	target Observer
	events chan model.ReservationEvent
	done   chan struct{}
	log    *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func newQueuedObserver(target Observer, buffer int, log *zap.Logger) *queuedObserver {
	if buffer <= 0 {
		buffer = DefaultObserverBuffer
	}
	q := &queuedObserver{
		target: target,
		events: make(chan model.ReservationEvent, buffer),
		done:   make(chan struct{}),
		log:    log,
	}
	go q.run()
	return q
}

func (q *queuedObserver) run() {
	defer close(q.done)
	for ev := range q.events {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		q.target.ReservationChanged(ctx, ev)
		cancel()
	}
}

// ReservationChanged enqueues ev without waiting. Events raised after
// close are discarded.
func (q *queuedObserver) ReservationChanged(_ context.Context, ev model.ReservationEvent) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.events <- ev:
	default:
		q.log.Warn("observer queue full, event dropped",
			zap.String("event", string(ev.Kind)),
			zap.String("reservation_id", ev.Reservation.ID))
	}
}

func (q *queuedObserver) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()
}

// SubscribeAsync registers an observer that may block (network I/O,
// websocket writes). Its events are queued and delivered off the commit
// path, so a slow or stuck observer never delays a booking. Like Subscribe,
// wire it at startup.
func (l *Ledger) SubscribeAsync(o Observer, buffer int) {
	q := newQueuedObserver(o, buffer, l.log)
	l.queues = append(l.queues, q)
	l.observers = append(l.observers, q)
}

// Close stops the async observer queues and waits for already queued
// events to be delivered. Events of later writes are not delivered to
// async observers.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() {
		for _, q := range l.queues {
			q.close()
		}
		for _, q := range l.queues {
			<-q.done
		}
	})
}
