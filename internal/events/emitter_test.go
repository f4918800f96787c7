// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/gatekeeper/internal/config"
	"github.com/tomtom215/gatekeeper/internal/risk"
)

// captureSink records delivered events and can be toggled to fail.
type captureSink struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (s *captureSink) Deliver(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *captureSink) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *captureSink) first() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[0]
}

func testEventsPolicy() config.EventsPolicy {
	return config.EventsPolicy{
		QueueSize:           8,
		FailureThreshold:    2,
		OpenTimeout:         time.Hour,
		HalfOpenMaxRequests: 1,
		DrainPerSecond:      1,
	}
}

// newIdleEmitter builds an emitter without the background drain, so buffer
// contents can be asserted without racing the redelivery loop.
func newIdleEmitter(cfg config.EventsPolicy, sink Sink) *Emitter {
	return &Emitter{
		cfg:     cfg,
		sink:    sink,
		breaker: newBreaker(cfg),
		buf:     make(chan Event, cfg.QueueSize),
		drain:   rate.NewLimiter(rate.Limit(cfg.DrainPerSecond), 1),
		log:     zerolog.Nop(),
		cancel:  func() {},
		done:    make(chan struct{}),
	}
}

func TestSubmitDelivers(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(testEventsPolicy(), sink)
	defer e.Close()

	ok := e.Submit(Event{Kind: KindUploadRejected, CallerID: "u1", Severity: risk.High})
	if !ok {
		t.Fatal("Submit returned false for a healthy sink")
	}
	if sink.delivered() != 1 {
		t.Fatalf("delivered %d events, want 1", sink.delivered())
	}

	ev := sink.first()
	if ev.ID == "" {
		t.Error("event ID not assigned on submission")
	}
	if ev.At.IsZero() {
		t.Error("event timestamp not assigned on submission")
	}
	if e.Buffered() != 0 {
		t.Errorf("Buffered = %d, want 0", e.Buffered())
	}
}

func TestSubmitBuffersWhenSinkFails(t *testing.T) {
	sink := &captureSink{fail: true}
	e := newIdleEmitter(testEventsPolicy(), sink)

	for i := 0; i < 3; i++ {
		if !e.Submit(Event{Kind: KindRateLimited}) {
			t.Fatalf("Submit %d returned false with queue space available", i+1)
		}
	}

	if e.Buffered() != 3 {
		t.Errorf("Buffered = %d, want 3", e.Buffered())
	}
	// Two consecutive failures trip the breaker.
	if e.State() != "open" {
		t.Errorf("State = %q, want open", e.State())
	}
}

func TestBufferEvictsOldest(t *testing.T) {
	cfg := testEventsPolicy()
	cfg.QueueSize = 2
	sink := &captureSink{fail: true}
	e := newIdleEmitter(cfg, sink)

	e.Submit(Event{ID: "first", Kind: KindRateLimited})
	e.Submit(Event{ID: "second", Kind: KindRateLimited})
	if !e.Submit(Event{ID: "third", Kind: KindRateLimited}) {
		t.Fatal("Submit must succeed by evicting the oldest event")
	}

	if e.Buffered() != 2 {
		t.Fatalf("Buffered = %d, want 2", e.Buffered())
	}
	kept := []string{(<-e.buf).ID, (<-e.buf).ID}
	if kept[0] != "second" || kept[1] != "third" {
		t.Errorf("kept %v, want [second third]", kept)
	}
}

func TestDrainRedeliversAfterRecovery(t *testing.T) {
	cfg := testEventsPolicy()
	cfg.FailureThreshold = 1
	cfg.OpenTimeout = 50 * time.Millisecond
	cfg.DrainPerSecond = 100

	sink := &captureSink{fail: true}
	e := NewEmitter(cfg, sink)
	defer e.Close()

	e.Submit(Event{Kind: KindAccountLocked})
	sink.setFail(false)

	deadline := time.Now().Add(3 * time.Second)
	for sink.delivered() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("buffered event never redelivered; state=%s buffered=%d", e.State(), e.Buffered())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	e := NewEmitter(testEventsPolicy(), &captureSink{})
	e.Close()
	e.Close()
}

func TestLogSinkNeverErrors(t *testing.T) {
	sink := NewLogSink()
	err := sink.Deliver(Event{
		ID:       "abc",
		Kind:     KindUploadAccepted,
		Severity: risk.Low,
		Details:  map[string]any{"format": "png"},
	})
	if err != nil {
		t.Fatalf("LogSink.Deliver: %v", err)
	}
}
