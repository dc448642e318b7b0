// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package judge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/studio/circuit"
	"github.com/AleutianAI/AleutianStudio/services/studio/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
	"github.com/AleutianAI/AleutianStudio/services/studio/profile"
	"github.com/AleutianAI/AleutianStudio/services/studio/request"
	"github.com/AleutianAI/AleutianStudio/services/studio/scoring"
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

const judgeResponse = `{
	"overall": 8.4,
	"subscores": {"clarity": 8.5, "depth": 8.0, "originality": 8.2, "applicability": 8.6, "retention_potential": 8.7},
	"summary": "solid",
	"weaknesses": ["hook could be sharper"]
}`

const adversarialResponse = `{
	"overall": 7.0,
	"subscores": {"clarity": 7.0, "depth": 7.0, "originality": 7.0, "applicability": 7.0, "retention_potential": 7.0},
	"summary": "overrated",
	"weaknesses": ["hook could be sharper", "body repeats the summary"]
}`

func newJudge(t *testing.T, mock *llm.MockClient) *Judge {
	t.Helper()
	routes := llm.NewRoutingTable()
	routes.RegisterClient(mock)
	routes.SetDefault(llm.Route{Provider: mock.Name(), Model: "test-model"})
	rq := request.NewRequester(routes, circuit.NewBreaker(), nil, nil)
	return New(rq, nil, nil)
}

func samplePost() payload.Payload {
	return &payload.Post{Hook: "Why churn lies", Body: strings.Repeat("measure repeat usage weekly ", 15)}
}

func sampleHeuristic() scoring.Evaluation {
	return scoring.Evaluation{
		Overall: 8.0,
		Subscores: scoring.Subscores{
			Clarity: 8, Depth: 8, Originality: 8, Applicability: 8, RetentionPotential: 8,
		},
		Source: scoring.SourceHeuristic,
	}
}

func TestEvaluateStandardSinglePass(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueOutput(judgeResponse)
	j := newJudge(t, mock)

	eval := j.Evaluate(context.Background(), task.Post, samplePost(), Context{}, profile.QualityStandard, sampleHeuristic())
	assert.Equal(t, scoring.SourceJudge, eval.Source)
	assert.Equal(t, 8.4, eval.Overall)
	assert.Equal(t, 8.7, eval.Subscores.RetentionPotential)
	assert.Equal(t, []string{"hook could be sharper"}, eval.Weaknesses)
	assert.Len(t, mock.Calls(), 1)
}

func TestEvaluateMaxMergesPasses(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueOutput(judgeResponse).QueueOutput(adversarialResponse)
	j := newJudge(t, mock)

	eval := j.Evaluate(context.Background(), task.Post, samplePost(), Context{}, profile.QualityMax, sampleHeuristic())
	require.Equal(t, scoring.SourceJudgeMerged, eval.Source)
	assert.InDelta(t, 8.4*0.55+7.0*0.45, eval.Overall, 0.01)
	assert.InDelta(t, 8.5*0.55+7.0*0.45, eval.Subscores.Clarity, 0.01)
	assert.Equal(t, []string{"hook could be sharper", "body repeats the summary"}, eval.Weaknesses)

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.NotContains(t, calls[0].Request.SystemPrompt, "adversarial")
	assert.Contains(t, calls[1].Request.SystemPrompt, "adversarial")
}

func TestEvaluateMaxWeaknessCap(t *testing.T) {
	many := `{"overall": 7, "subscores": {"clarity": 7, "depth": 7, "originality": 7, "applicability": 7, "retention_potential": 7}, "weaknesses": ["w1","w2","w3","w4","w5","w6"]}`
	others := `{"overall": 6, "subscores": {"clarity": 6, "depth": 6, "originality": 6, "applicability": 6, "retention_potential": 6}, "weaknesses": ["w7","w8","w9","w10"]}`
	mock := llm.NewMockClient("mock").QueueOutput(many).QueueOutput(others)
	j := newJudge(t, mock)

	eval := j.Evaluate(context.Background(), task.Post, samplePost(), Context{}, profile.QualityMax, sampleHeuristic())
	assert.Len(t, eval.Weaknesses, 8)
}

func TestEvaluateFallsBackOnTransportError(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueError(errors.New("connection refused"))
	j := newJudge(t, mock)

	eval := j.Evaluate(context.Background(), task.Post, samplePost(), Context{}, profile.QualityStandard, sampleHeuristic())
	assert.Equal(t, scoring.SourceHeuristicFallback, eval.Source)
	assert.Contains(t, eval.Summary, "connection refused")
}

func TestEvaluateFallsBackOnUnparsableShape(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueOutput("I would rate this a solid eight out of ten.")
	j := newJudge(t, mock)

	eval := j.Evaluate(context.Background(), task.Post, samplePost(), Context{}, profile.QualityStandard, sampleHeuristic())
	assert.Equal(t, scoring.SourceHeuristicFallback, eval.Source)
}

func TestEvaluateFallsBackWhenRouteIsHeuristic(t *testing.T) {
	routes := llm.NewRoutingTable()
	routes.SetDefault(llm.Route{Provider: llm.ProviderHeuristic})
	rq := request.NewRequester(routes, circuit.NewBreaker(), nil, nil)
	j := New(rq, nil, nil)

	eval := j.Evaluate(context.Background(), task.Post, samplePost(), Context{}, profile.QualityStandard, sampleHeuristic())
	assert.Equal(t, scoring.SourceHeuristicFallback, eval.Source)
	assert.Contains(t, eval.Summary, "judge call skipped")
}

func TestEvaluateMaxAdversarialFailureKeepsStrict(t *testing.T) {
	mock := llm.NewMockClient("mock").QueueOutput(judgeResponse).QueueError(errors.New("timeout"))
	j := newJudge(t, mock)

	eval := j.Evaluate(context.Background(), task.Post, samplePost(), Context{}, profile.QualityMax, sampleHeuristic())
	assert.Equal(t, scoring.SourceJudge, eval.Source)
	assert.Equal(t, 8.4, eval.Overall)
}

func TestParseEvaluationVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"code fence", "```json\n" + judgeResponse + "\n```", true},
		{"camelCase retention", `{"overall": 7, "subscores": {"clarity": 7, "depth": 7, "originality": 7, "applicability": 7, "retentionPotential": 7}}`, true},
		{"flat axes", `{"overall": 7, "clarity": 7, "depth": 7, "originality": 7, "applicability": 7, "retention": 7}`, true},
		{"missing axes", `{"overall": 7, "subscores": {"clarity": 7}}`, false},
		{"no object", "just prose", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := parseEvaluation(tt.raw)
			if tt.ok {
				require.NoError(t, err)
				assert.Greater(t, eval.Overall, 0.0)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseEvaluationDerivesOverall(t *testing.T) {
	raw := `{"subscores": {"clarity": 8, "depth": 6, "originality": 7, "applicability": 7, "retention_potential": 7}}`
	eval, err := parseEvaluation(raw)
	require.NoError(t, err)
	assert.Equal(t, 7.0, eval.Overall)
}

func TestFallbackPenalties(t *testing.T) {
	heur := sampleHeuristic()

	// Clean, substantial post: no penalties.
	clean := Fallback(heur, samplePost(), "no credentials")
	assert.Equal(t, 8.0, clean.Overall)
	assert.Contains(t, clean.Summary, "no credentials")

	// Truncated and structurally thin: both penalties apply.
	bad := Fallback(heur, &payload.Post{Hook: "h", Body: "short body cut off..."}, "x")
	assert.InDelta(t, 8.0-1.2-0.6, bad.Overall, 0.001)

	// Penalties floor at zero.
	low := scoring.Evaluation{Overall: 1.0, Subscores: scoring.Subscores{Clarity: 1}}
	floored := Fallback(low, &payload.Post{Hook: "h", Body: "tiny..."}, "x")
	assert.GreaterOrEqual(t, floored.Overall, 0.0)
	assert.GreaterOrEqual(t, floored.Subscores.Depth, 0.0)
}
