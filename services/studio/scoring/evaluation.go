// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring holds the quality evaluation types, the deterministic
// heuristic scorer, and the composite blend with its inflation guard.
package scoring

import (
	"math"
)

// Evaluation sources.
const (
	SourceHeuristic         = "heuristic"
	SourceJudge             = "judge"
	SourceJudgeMerged       = "judge_merged"
	SourceHeuristicFallback = "heuristic_fallback"
)

// Subscores are the five quality axes, each in [0,10].
type Subscores struct {
	Clarity            float64 `json:"clarity"`
	Depth              float64 `json:"depth"`
	Originality        float64 `json:"originality"`
	Applicability      float64 `json:"applicability"`
	RetentionPotential float64 `json:"retention_potential"`
}

// Min returns the weakest axis.
func (s Subscores) Min() float64 {
	min := s.Clarity
	for _, v := range []float64{s.Depth, s.Originality, s.Applicability, s.RetentionPotential} {
		if v < min {
			min = v
		}
	}
	return min
}

// Mean returns the arithmetic mean of the five axes.
func (s Subscores) Mean() float64 {
	return (s.Clarity + s.Depth + s.Originality + s.Applicability + s.RetentionPotential) / 5
}

// rounded returns a copy with every axis clamped to [0,10] and rounded
// to 2 decimals.
func (s Subscores) rounded() Subscores {
	return Subscores{
		Clarity:            Round2(Clamp10(s.Clarity)),
		Depth:              Round2(Clamp10(s.Depth)),
		Originality:        Round2(Clamp10(s.Originality)),
		Applicability:      Round2(Clamp10(s.Applicability)),
		RetentionPotential: Round2(Clamp10(s.RetentionPotential)),
	}
}

// Evaluation is one scored view of a candidate, from either evaluator.
type Evaluation struct {
	Overall    float64   `json:"overall"`
	Subscores  Subscores `json:"subscores"`
	Summary    string    `json:"summary,omitempty"`
	Weaknesses []string  `json:"weaknesses,omitempty"`

	// Source records which evaluator produced this, including the
	// fallback path when the judge was unavailable.
	Source string `json:"source"`
}

// Clamp10 clamps to the score scale.
func Clamp10(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// Round2 rounds to 2 decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// finalize clamps and rounds an axis set and derives the overall mean.
func finalize(s Subscores, source string) Evaluation {
	s = s.rounded()
	return Evaluation{
		Overall:   Round2(s.Mean()),
		Subscores: s,
		Source:    source,
	}
}
