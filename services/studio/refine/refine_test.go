// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/studio/circuit"
	"github.com/AleutianAI/AleutianStudio/services/studio/guardrail"
	"github.com/AleutianAI/AleutianStudio/services/studio/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
	"github.com/AleutianAI/AleutianStudio/services/studio/request"
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

const rewriteJSON = `{"hook": "A sharper hook", "body": "A rewritten body with more concrete advice."}`

func newLoop(t *testing.T, mock *llm.MockClient) *Loop {
	t.Helper()
	routes := llm.NewRoutingTable()
	routes.RegisterClient(mock)
	routes.SetDefault(llm.Route{Provider: mock.Name(), Model: "test-model"})
	return NewLoop(request.NewRequester(routes, circuit.NewBreaker(), nil, nil), nil, nil)
}

func candidate(composite float64) Candidate {
	return Candidate{
		Payload:   &payload.Post{Hook: "original hook", Body: "original body"},
		Composite: composite,
		Guardrail: guardrail.Result{OK: true},
	}
}

// fixedScorer returns the queued composites in order.
func fixedScorer(composites ...float64) Scorer {
	i := 0
	return func(_ context.Context, p payload.Payload) Candidate {
		c := Candidate{Payload: p, Composite: composites[i], Guardrail: guardrail.Result{OK: true}}
		if i < len(composites)-1 {
			i++
		}
		return c
	}
}

func TestRunSkipsWhenAboveThresholds(t *testing.T) {
	mock := llm.NewMockClient("mock")
	loop := newLoop(t, mock)

	out := loop.Run(context.Background(), task.Post, []Candidate{candidate(9.0)}, fixedScorer(9.0), Options{
		Passes: 3, Quality: 7.0, Publishable: 8.0,
	})
	assert.Equal(t, 9.0, out.Best.Composite)
	assert.Empty(t, out.Passes)
	assert.Empty(t, mock.Calls(), "no rewrite call expected")
}

func TestRunRanksHighestComposite(t *testing.T) {
	loop := newLoop(t, llm.NewMockClient("mock"))
	a, b, c := candidate(6.0), candidate(8.8), candidate(7.5)

	out := loop.Run(context.Background(), task.Post, []Candidate{a, b, c}, fixedScorer(8.8), Options{
		Passes: 1, Quality: 7.0, Publishable: 8.0,
	})
	assert.Equal(t, 8.8, out.Best.Composite)
}

func TestRunAdoptsImprovedRewrite(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueOutput(rewriteJSON)
	loop := newLoop(t, mock)

	out := loop.Run(context.Background(), task.Post, []Candidate{candidate(6.0)}, fixedScorer(8.5), Options{
		Passes: 1, Quality: 7.0, Publishable: 8.0,
	})
	assert.Equal(t, 8.5, out.Best.Composite)
	require.Len(t, out.Passes, 1)
	assert.True(t, out.Passes[0].Accepted)
	assert.Equal(t, 6.0, out.Passes[0].Before)
	assert.Equal(t, 8.5, out.Passes[0].After)
}

func TestRunRejectsRegression(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueOutput(rewriteJSON)
	loop := newLoop(t, mock)

	out := loop.Run(context.Background(), task.Post, []Candidate{candidate(6.0)}, fixedScorer(5.0), Options{
		Passes: 1, Quality: 7.0, Publishable: 8.0,
	})
	assert.Equal(t, 6.0, out.Best.Composite, "regressed rewrite must not be adopted")
	require.Len(t, out.Passes, 1)
	assert.False(t, out.Passes[0].Accepted)
}

func TestRunAcceptsWithinTolerance(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueOutput(rewriteJSON)
	loop := newLoop(t, mock)

	out := loop.Run(context.Background(), task.Post, []Candidate{candidate(6.0)}, fixedScorer(5.96), Options{
		Passes: 1, Quality: 7.0, Publishable: 8.0,
	})
	assert.Equal(t, 5.96, out.Best.Composite, "a 0.04 dip is within tolerance")
	assert.True(t, out.Passes[0].Accepted)
}

func TestRunFailedCallIsNoOp(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueError(errors.New("connection refused"))
	loop := newLoop(t, mock)

	out := loop.Run(context.Background(), task.Post, []Candidate{candidate(6.0)}, fixedScorer(9.9), Options{
		Passes: 1, Quality: 7.0, Publishable: 8.0,
	})
	assert.Equal(t, 6.0, out.Best.Composite)
	require.Len(t, out.Passes, 1)
	assert.False(t, out.Passes[0].Accepted)
	assert.Contains(t, out.Passes[0].Reason, "connection refused")
}

func TestRunInvalidRewriteIsNoOp(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueOutput("not JSON at all")
	loop := newLoop(t, mock)

	out := loop.Run(context.Background(), task.Post, []Candidate{candidate(6.0)}, fixedScorer(9.9), Options{
		Passes: 1, Quality: 7.0, Publishable: 8.0,
	})
	assert.Equal(t, 6.0, out.Best.Composite)
	assert.False(t, out.Passes[0].Accepted)
}

func TestRunBoundedPasses(t *testing.T) {
	// Every rewrite succeeds but the score never clears the threshold;
	// the loop must still terminate at the pass budget.
	mock := llm.NewMockClient("mock").WithDefaultOutput(rewriteJSON)
	loop := newLoop(t, mock)

	out := loop.Run(context.Background(), task.Post, []Candidate{candidate(1.0)}, fixedScorer(1.5, 2.0, 2.5), Options{
		Passes: 3, Quality: 9.0, Publishable: 9.5,
	})
	assert.Len(t, out.Passes, 3)
	assert.Equal(t, 2.5, out.Best.Composite)

	// Budgets outside 1-3 clamp.
	mock2 := llm.NewMockClient("mock").WithDefaultOutput(rewriteJSON)
	loop2 := newLoop(t, mock2)
	out2 := loop2.Run(context.Background(), task.Post, []Candidate{candidate(1.0)}, fixedScorer(1.5), Options{
		Passes: 9, Quality: 9.0, Publishable: 9.5,
	})
	assert.Len(t, out2.Passes, 3)
}

func TestRunForcedRefinesAboveThresholds(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueOutput(rewriteJSON)
	loop := newLoop(t, mock)

	out := loop.Run(context.Background(), task.Post, []Candidate{candidate(9.5)}, fixedScorer(9.6), Options{
		Passes: 1, Quality: 7.0, Publishable: 8.0, Forced: true,
	})
	require.Len(t, out.Passes, 1)
	assert.Equal(t, 9.6, out.Best.Composite)
}
