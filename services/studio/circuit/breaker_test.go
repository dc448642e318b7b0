// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// fakeClock is a manually advanced clock for breaker tests.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func key(t task.Task) Key {
	return Key{Task: t, Kind: task.RouteGenerate, Provider: "openai", Model: "gpt-4o-mini"}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want FailureClass
	}{
		{"context deadline exceeded", FailureAbort},
		{"request timeout after 90s", FailureAbort},
		{"operation was canceled", FailureAbort},
		{"429 Too Many Requests", FailureRateLimit},
		{"you exceeded your quota", FailureRateLimit},
		{"invalid character '}' looking for beginning of value: json", FailureParse},
		{"cannot unmarshal string into field", FailureParse},
		{"internal server error", FailureOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.msg), tt.msg)
	}
}

func TestBreakerOpensAtTaskThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := NewBreakerWithClock(clock.now)
	k := key(task.Clips) // clips abort threshold is 2

	b.RecordFailure(k, FailureAbort, "timeout one")
	open, _ := b.IsOpen(k)
	assert.False(t, open, "one failure must not open a threshold-2 circuit")

	b.RecordFailure(k, FailureAbort, "timeout two")
	open, reason := b.IsOpen(k)
	require.True(t, open)
	assert.Contains(t, reason, "abort")
}

func TestBreakerAutoClosesAfterDuration(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := NewBreakerWithClock(clock.now)
	k := key(task.Clips)

	b.RecordFailure(k, FailureAbort, "t1")
	b.RecordFailure(k, FailureAbort, "t2")
	open, _ := b.IsOpen(k)
	require.True(t, open)

	// Strictly before the window elapses: still open.
	clock.advance(90 * time.Second)
	open, _ = b.IsOpen(k)
	assert.True(t, open, "must stay open until the duration fully elapses")

	clock.advance(time.Second)
	open, _ = b.IsOpen(k)
	assert.False(t, open)

	// Counters were reset by auto-close.
	b.RecordFailure(k, FailureAbort, "t3")
	open, _ = b.IsOpen(k)
	assert.False(t, open)
}

func TestBreakerSuccessResetsAllCounters(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := NewBreakerWithClock(clock.now)
	k := key(task.Post) // default thresholds: abort 3, parse 3

	b.RecordFailure(k, FailureAbort, "t1")
	b.RecordFailure(k, FailureAbort, "t2")
	b.RecordFailure(k, FailureParse, "bad json")
	b.RecordSuccess(k)

	b.RecordFailure(k, FailureAbort, "t3")
	b.RecordFailure(k, FailureAbort, "t4")
	open, _ := b.IsOpen(k)
	assert.False(t, open, "success must reset the abort counter")
}

func TestBreakerClassesCountIndependently(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := NewBreakerWithClock(clock.now)
	k := key(task.Newsletter) // defaults: abort 3, parse 3, rate limit 2

	b.RecordFailure(k, FailureAbort, "a1")
	b.RecordFailure(k, FailureParse, "p1")
	b.RecordFailure(k, FailureAbort, "a2")
	b.RecordFailure(k, FailureParse, "p2")
	open, _ := b.IsOpen(k)
	assert.False(t, open, "neither class reached its threshold")

	b.RecordFailure(k, FailureRateLimit, "r1")
	b.RecordFailure(k, FailureRateLimit, "r2")
	open, reason := b.IsOpen(k)
	require.True(t, open)
	assert.Contains(t, reason, "rate_limit")
}

func TestBreakerKeysAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := NewBreakerWithClock(clock.now)

	k1 := key(task.Clips)
	k2 := Key{Task: task.Clips, Kind: task.RouteJudge, Provider: "openai", Model: "gpt-4o-mini"}

	b.RecordFailure(k1, FailureAbort, "t1")
	b.RecordFailure(k1, FailureAbort, "t2")

	open, _ := b.IsOpen(k1)
	assert.True(t, open)
	open, _ = b.IsOpen(k2)
	assert.False(t, open)
}

func TestSnapshot(t *testing.T) {
	b := NewBreaker()
	k := key(task.Post)
	b.RecordFailure(k, FailureParse, "oops")

	snap := b.Snapshot()
	require.Len(t, snap, 1)
	st, ok := snap["post/generate/openai/gpt-4o-mini"]
	require.True(t, ok)
	assert.Equal(t, 1, st.JSONParseFailures)
}
