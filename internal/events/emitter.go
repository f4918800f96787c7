// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

// Package events delivers security events to a pluggable sink behind a
// circuit breaker.
//
// The contract required of this package by every rejection and acceptance
// path is "accepts the call, never throws back into the caller path":
// Submit never panics and never returns an error. While the breaker is
// closed the sink is called synchronously, so Submit is only as fast as a
// healthy sink; once the sink fails, the breaker opens and events go to a
// bounded queue instead of blocking on retries. A background drain
// redelivers them at a throttled rate when the sink recovers. The queue
// drops its oldest entry when full.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/gatekeeper/internal/config"
	"github.com/tomtom215/gatekeeper/internal/logging"
)

// Emitter submits events to a Sink with circuit-breaker protection.
type Emitter struct {
	cfg     config.EventsPolicy
	sink    Sink
	breaker *gobreaker.CircuitBreaker[struct{}]
	buf     chan Event
	drain   *rate.Limiter
	log     zerolog.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewEmitter creates an emitter and starts its background drain.
// Call Close to stop the drain and release the goroutine.
func NewEmitter(cfg config.EventsPolicy, sink Sink) *Emitter {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Emitter{
		cfg:     cfg,
		sink:    sink,
		breaker: newBreaker(cfg),
		buf:     make(chan Event, cfg.QueueSize),
		drain:   rate.NewLimiter(rate.Limit(cfg.DrainPerSecond), 1),
		log:     logging.With().Str("component", "events").Logger(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go e.run(ctx)
	return e
}

// Submit hands an event to the emitter. Returns true when the event was
// delivered or buffered, false only when the bounded queue forced a drop.
// Delivery is synchronous while the breaker is closed; a failing sink trips
// the breaker, after which submissions buffer without blocking. Sink
// failures never propagate to the caller.
func (e *Emitter) Submit(ev Event) bool {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	if err := e.deliver(ev); err == nil {
		submittedTotal.WithLabelValues("delivered").Inc()
		return true
	}

	return e.buffer(ev)
}

// deliver attempts a single delivery through the breaker.
func (e *Emitter) deliver(ev Event) error {
	_, err := e.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, e.sink.Deliver(ev)
	})
	return err
}

// buffer enqueues an event, evicting the oldest buffered event if the queue
// is full. Returns false when the event could not be kept at all.
func (e *Emitter) buffer(ev Event) bool {
	select {
	case e.buf <- ev:
		submittedTotal.WithLabelValues("buffered").Inc()
		return true
	default:
	}

	// Queue full: evict the oldest and retry once.
	select {
	case old := <-e.buf:
		submittedTotal.WithLabelValues("dropped").Inc()
		e.log.Warn().Str("event_id", old.ID).Str("kind", old.Kind).Msg("event queue full, dropped oldest")
	default:
	}

	select {
	case e.buf <- ev:
		submittedTotal.WithLabelValues("buffered").Inc()
		return true
	default:
		submittedTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

// run redelivers buffered events until the context is canceled. Redelivery
// is throttled so a recovering sink is not flooded, and it backs off for the
// breaker's open timeout after a failed attempt.
func (e *Emitter) run(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.buf:
			if err := e.drain.Wait(ctx); err != nil {
				return
			}
			if err := e.deliver(ev); err == nil {
				submittedTotal.WithLabelValues("delivered").Inc()
				continue
			}

			// Put it back and wait out the open period.
			e.requeue(ev)
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.OpenTimeout):
			}
		}
	}
}

// requeue returns an undeliverable event to the queue without blocking.
func (e *Emitter) requeue(ev Event) {
	select {
	case e.buf <- ev:
	default:
		submittedTotal.WithLabelValues("dropped").Inc()
	}
}

// Buffered returns the number of events currently queued.
func (e *Emitter) Buffered() int {
	return len(e.buf)
}

// State returns the delivery breaker's state name.
func (e *Emitter) State() string {
	return e.breaker.State().String()
}

// Close stops the background drain. Buffered events are not flushed;
// delivery guarantees beyond process lifetime are the sink's concern.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		<-e.done
	})
}
