// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
	"github.com/AleutianAI/AleutianStudio/services/studio/profile"
)

func richAnalysis() *payload.Analysis {
	return &payload.Analysis{
		Hook:    "Why retention beats acquisition for every early-stage product",
		Summary: strings.Repeat("The conversation keeps returning to one theme about measuring what users actually repeat. ", 10),
		KeyPoints: []string{
			"Track weekly repeat usage before spending on acquisition",
			"Cut features nobody returns to within 30 days",
			"Ask churned users one question and write down the verbatim answer",
			"Measure activation separately from signup volume",
		},
		Themes: []payload.Theme{
			{Title: "Retention first", Insight: "Teams that measure repeat usage compound"},
			{Title: "Churn interviews", Insight: "One verbatim answer beats ten dashboards"},
		},
		Quotes: []string{"Retention is the whole game"},
	}
}

func TestHeuristicDeterministic(t *testing.T) {
	p := richAnalysis()
	first := Heuristic(p)
	second := Heuristic(p)
	assert.Equal(t, first, second)
	assert.Equal(t, SourceHeuristic, first.Source)
}

func TestHeuristicBounds(t *testing.T) {
	payloads := []payload.Payload{
		richAnalysis(),
		&payload.Analysis{},
		&payload.ClipSet{},
		&payload.ClipSet{Clips: []payload.Clip{{Title: "Why churn lies", Caption: "numbers inside", Hashtags: []string{"#growth"}}}},
		&payload.Newsletter{},
		&payload.Post{Hook: "How we cut churn", Body: "Try measuring repeat usage weekly. We track 3 cohorts."},
		&payload.MicroblogSet{Posts: []payload.MicroPost{{Order: 1, Text: "Why churn lies to you"}}},
	}
	for _, p := range payloads {
		ev := Heuristic(p)
		for _, axis := range []float64{
			ev.Overall,
			ev.Subscores.Clarity, ev.Subscores.Depth, ev.Subscores.Originality,
			ev.Subscores.Applicability, ev.Subscores.RetentionPotential,
		} {
			assert.GreaterOrEqual(t, axis, 0.0, "%T", p)
			assert.LessOrEqual(t, axis, 10.0, "%T", p)
		}
		assert.InDelta(t, ev.Subscores.Mean(), ev.Overall, 0.01)
	}
}

func TestHeuristicRewardsSubstance(t *testing.T) {
	rich := Heuristic(richAnalysis())
	empty := Heuristic(&payload.Analysis{Hook: "x", Summary: "y"})
	assert.Greater(t, rich.Overall, empty.Overall)
}

func TestCompositeBlend(t *testing.T) {
	judge := Evaluation{Overall: 8.0, Subscores: Subscores{Clarity: 8, Depth: 8, Originality: 8, Applicability: 8, RetentionPotential: 8}}
	heur := Evaluation{Overall: 6.0, Subscores: Subscores{Clarity: 6, Depth: 6, Originality: 6, Applicability: 6, RetentionPotential: 6}}

	got := Composite(judge, heur, profile.DefaultScoreWeights())
	assert.InDelta(t, 8.0*0.72+6.0*0.28, got, 0.001)

	// Unnormalized weights behave identically to their normalized form.
	scaled := Composite(judge, heur, profile.ScoreWeights{Judge: 7.2, Heuristic: 2.8})
	assert.Equal(t, got, scaled)

	// Zero weights fall back to defaults.
	fallback := Composite(judge, heur, profile.ScoreWeights{})
	assert.Equal(t, got, fallback)
}

func TestCompositeWeakestAxisPenalty(t *testing.T) {
	judge := Evaluation{Overall: 7.0, Subscores: Subscores{Clarity: 7, Depth: 2, Originality: 7, Applicability: 7, RetentionPotential: 7}}
	heur := Evaluation{Overall: 7.0, Subscores: Subscores{Clarity: 7, Depth: 7, Originality: 7, Applicability: 7, RetentionPotential: 7}}

	got := Composite(judge, heur, profile.DefaultScoreWeights())
	assert.InDelta(t, 7.0-(3-2)*0.06, got, 0.001)
}

func TestCompositeStaysInRange(t *testing.T) {
	weights := []profile.ScoreWeights{
		{}, {Judge: 1}, {Heuristic: 1}, {Judge: 0.5, Heuristic: 0.5}, {Judge: 100, Heuristic: 1},
	}
	judge := Evaluation{Overall: 10, Subscores: Subscores{Clarity: 10, Depth: 10, Originality: 10, Applicability: 10, RetentionPotential: 10}}
	low := Evaluation{Overall: 0, Subscores: Subscores{}}
	for _, w := range weights {
		for _, pair := range [][2]Evaluation{{judge, judge}, {judge, low}, {low, judge}, {low, low}} {
			got := Composite(pair[0], pair[1], w)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 10.0)
		}
	}
}

func uniform(v float64) Subscores {
	return Subscores{Clarity: v, Depth: v, Originality: v, Applicability: v, RetentionPotential: v}
}

func TestDisplayCapsUncorroboratedScores(t *testing.T) {
	judge := Evaluation{Overall: 8.0, Subscores: uniform(8.0)}
	heur := Evaluation{Overall: 9.8, Subscores: uniform(9.8)}

	composite := Composite(judge, heur, profile.ScoreWeights{Judge: 0.2, Heuristic: 0.8})
	require.Greater(t, composite, judge.Overall+displayCapMargin)

	display := Display(composite, judge, heur)
	assert.InDelta(t, judge.Overall+displayCapMargin, display, 0.001)
}

func TestDisplayScenarioHighAgreement(t *testing.T) {
	// Judge 9.8 with applicability 9.5; heuristic 9.9 with 9.6.
	judge := Evaluation{Overall: 9.8, Subscores: Subscores{Clarity: 9.9, Depth: 9.8, Originality: 9.9, Applicability: 9.5, RetentionPotential: 9.9}}
	heur := Evaluation{Overall: 9.9, Subscores: Subscores{Clarity: 9.9, Depth: 9.9, Originality: 9.9, Applicability: 9.6, RetentionPotential: 9.9}}

	composite := Composite(judge, heur, profile.DefaultScoreWeights())
	display := Display(composite, judge, heur)
	assert.LessOrEqual(t, display, judge.Overall+displayCapMargin)
	assert.LessOrEqual(t, display, displayHardCap)
}

func TestDisplayHardCap(t *testing.T) {
	heur := Evaluation{Overall: 10, Subscores: uniform(10)}

	// Weakest judge axis below excellence keeps the cap.
	judge := Evaluation{Overall: 10, Subscores: Subscores{Clarity: 10, Depth: 9.0, Originality: 10, Applicability: 10, RetentionPotential: 10}}
	assert.Equal(t, displayHardCap, Display(10, judge, heur))

	// A judge-confirmed excellent score may exceed the cap.
	excellent := Evaluation{Overall: 10, Subscores: uniform(9.8)}
	assert.Equal(t, 10.0, Display(10, excellent, heur))
}

func TestDisplayNeverAltersComposite(t *testing.T) {
	judge := Evaluation{Overall: 7.0, Subscores: uniform(7)}
	heur := Evaluation{Overall: 9.9, Subscores: uniform(9.9)}
	composite := Composite(judge, heur, profile.DefaultScoreWeights())
	_ = Display(composite, judge, heur)
	again := Composite(judge, heur, profile.DefaultScoreWeights())
	assert.Equal(t, composite, again)
}
