// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package circuit tracks per-route model failures and temporarily
// disables (task, route kind, provider, model) pairs that keep failing.
//
// # State Diagram
//
//	CLOSED ──[class counter hits task threshold]──► OPEN
//	   ▲                                              │
//	   └───────[clock passes OpenUntil]───────────────┘
//
// Unlike a classic three-state breaker there is no half-open probe: the
// variant requester naturally probes by issuing the next variant once the
// open window elapses.
//
// # Thread Safety
//
// Breaker is safe for concurrent use. It is one of the two pieces of
// shared mutable state in the engine and must be injected, not global.
package circuit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// FailureClass buckets completion errors for counting and open duration.
type FailureClass int

const (
	// FailureAbort covers timeouts, cancellations, and connection drops.
	FailureAbort FailureClass = iota

	// FailureRateLimit covers quota and 429-style rejections.
	FailureRateLimit

	// FailureParse covers malformed or truncated JSON output.
	FailureParse

	// FailureOther covers everything else.
	FailureOther
)

// String returns the wire name used in diagnostics and reasons.
func (c FailureClass) String() string {
	switch c {
	case FailureAbort:
		return "abort"
	case FailureRateLimit:
		return "rate_limit"
	case FailureParse:
		return "json_parse"
	default:
		return "other"
	}
}

// Classify buckets an error message into a failure class. Message text is
// the only signal available: the transport is a black box.
func Classify(msg string) FailureClass {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "deadline exceeded"),
		strings.Contains(lower, "canceled"),
		strings.Contains(lower, "cancelled"),
		strings.Contains(lower, "abort"),
		strings.Contains(lower, "connection reset"):
		return FailureAbort
	case strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "429"),
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "too many requests"):
		return FailureRateLimit
	case strings.Contains(lower, "json"),
		strings.Contains(lower, "unmarshal"),
		strings.Contains(lower, "unexpected token"),
		strings.Contains(lower, "parse"):
		return FailureParse
	default:
		return FailureOther
	}
}

// Key identifies one breaker circuit.
type Key struct {
	Task     task.Task
	Kind     task.RouteKind
	Provider string
	Model    string
}

// String renders the key for logs and diagnostics.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Task, k.Kind, k.Provider, k.Model)
}

// State is the per-key failure record.
type State struct {
	AbortFailures     int
	RateLimitFailures int
	JSONParseFailures int
	OtherFailures     int
	OpenUntil         time.Time
	Reason            string
}

// Thresholds is the per-task failure budget before a circuit opens.
type Thresholds struct {
	Abort     int
	RateLimit int
	Parse     int
	Other     int
}

// Open durations per failure class. Rate limits back off longest; parse
// failures are usually model-shape flakiness and recover fast.
const (
	openAbort     = 90 * time.Second
	openRateLimit = 120 * time.Second
	openParse     = 45 * time.Second
	openOther     = 60 * time.Second
)

// defaultThresholds applies to tasks without an override.
var defaultThresholds = Thresholds{Abort: 3, RateLimit: 2, Parse: 3, Other: 4}

// taskThresholds carries per-task overrides. Clips fan out into many
// windows, so their budget is tighter; analysis runs first and gets more
// patience before the run degrades.
var taskThresholds = map[task.Task]Thresholds{
	task.Analysis: {Abort: 4, RateLimit: 2, Parse: 4, Other: 4},
	task.Clips:    {Abort: 2, RateLimit: 2, Parse: 2, Other: 3},
}

// ThresholdsFor returns the failure budget for a task.
func ThresholdsFor(t task.Task) Thresholds {
	if th, ok := taskThresholds[t]; ok {
		return th
	}
	return defaultThresholds
}

// Breaker is the keyed circuit map.
type Breaker struct {
	mu     sync.Mutex
	states map[Key]*State
	now    func() time.Time
}

// NewBreaker creates a breaker using the wall clock.
func NewBreaker() *Breaker {
	return NewBreakerWithClock(time.Now)
}

// NewBreakerWithClock creates a breaker with an injected clock for tests.
func NewBreakerWithClock(now func() time.Time) *Breaker {
	return &Breaker{
		states: make(map[Key]*State),
		now:    now,
	}
}

// IsOpen reports whether the circuit for key is currently open, with a
// human-readable reason. A circuit whose open window has elapsed
// auto-closes and resets its counters.
func (b *Breaker) IsOpen(key Key) (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[key]
	if !ok {
		return false, ""
	}
	if st.OpenUntil.IsZero() {
		return false, ""
	}
	if b.now().After(st.OpenUntil) {
		// Auto-close: fresh start for the key.
		delete(b.states, key)
		return false, ""
	}
	return true, st.Reason
}

// RecordFailure counts one classified failure and opens the circuit when
// the class counter reaches the task threshold.
func (b *Breaker) RecordFailure(key Key, class FailureClass, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[key]
	if !ok {
		st = &State{}
		b.states[key] = st
	}

	th := ThresholdsFor(key.Task)
	var count, limit int
	var openFor time.Duration

	switch class {
	case FailureAbort:
		st.AbortFailures++
		count, limit, openFor = st.AbortFailures, th.Abort, openAbort
	case FailureRateLimit:
		st.RateLimitFailures++
		count, limit, openFor = st.RateLimitFailures, th.RateLimit, openRateLimit
	case FailureParse:
		st.JSONParseFailures++
		count, limit, openFor = st.JSONParseFailures, th.Parse, openParse
	default:
		st.OtherFailures++
		count, limit, openFor = st.OtherFailures, th.Other, openOther
	}

	if count >= limit {
		st.OpenUntil = b.now().Add(openFor)
		st.Reason = fmt.Sprintf("circuit open for %s: %d %s failures (last: %s)",
			key.String(), count, class, truncate(msg, 160))
	}
}

// RecordSuccess resets every counter for the key.
func (b *Breaker) RecordSuccess(key Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, key)
}

// Snapshot returns a copy of the current state map for diagnostics.
func (b *Breaker) Snapshot() map[string]State {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]State, len(b.states))
	for k, st := range b.states {
		out[k.String()] = *st
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
