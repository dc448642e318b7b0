// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refine runs the bounded rewrite loop over scored candidates.
//
// The loop is an explicit state machine: Rank picks the best composite,
// Evaluate decides whether a rewrite is warranted, Refine asks the model
// to rewrite the current best citing the judge's weaknesses, Rescore
// re-evaluates the rewrite, and AcceptIfBetter adopts it unless it
// regresses past the tolerance. The pass budget is 1-3 so Finalize is
// always reached; a failed model call or invalid rewrite is a no-op for
// that pass, never a pipeline failure.
package refine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/AleutianAI/AleutianStudio/services/studio/guardrail"
	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
	"github.com/AleutianAI/AleutianStudio/services/studio/prompts"
	"github.com/AleutianAI/AleutianStudio/services/studio/request"
	"github.com/AleutianAI/AleutianStudio/services/studio/scoring"
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// regressionTolerance is how far below the current composite a refined
// candidate may land and still be adopted. Small regressions are
// accepted because the judge is noisy between calls.
const regressionTolerance = 0.05

// state is one phase of the loop.
type state int

const (
	stateRank state = iota
	stateEvaluate
	stateRefine
	stateRescore
	stateAccept
	stateFinalize
)

// String returns the state name for diagnostics.
func (s state) String() string {
	switch s {
	case stateRank:
		return "rank"
	case stateEvaluate:
		return "evaluate"
	case stateRefine:
		return "refine"
	case stateRescore:
		return "rescore"
	case stateAccept:
		return "accept"
	case stateFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// Candidate is one scored payload moving through the loop.
type Candidate struct {
	Payload   payload.Payload
	Heuristic scoring.Evaluation
	Judge     scoring.Evaluation
	Composite float64
	Guardrail guardrail.Result
}

// Scorer re-evaluates a payload end to end (guardrail, heuristic, judge,
// composite). The loop owns no scoring logic of its own.
type Scorer func(ctx context.Context, p payload.Payload) Candidate

// Options tunes one Run.
type Options struct {
	// Passes bounds the loop, clamped to 1-3.
	Passes int

	// Quality and Publishable are the thresholds that trigger a rewrite
	// when the current best sits below either.
	Quality     float64
	Publishable float64

	// Forced refines even above both thresholds (max quality mode).
	Forced bool

	// Context carries the grounding blocks for the rewrite prompt.
	Context prompts.Vars
}

// PassRecord documents one pass for diagnostics.
type PassRecord struct {
	Pass     int     `json:"pass"`
	Before   float64 `json:"before"`
	After    float64 `json:"after,omitempty"`
	Accepted bool    `json:"accepted"`
	Reason   string  `json:"reason,omitempty"`
}

// Outcome is the loop's final result.
type Outcome struct {
	Best   Candidate
	Passes []PassRecord
}

// Loop issues the rewrite calls.
type Loop struct {
	requester *request.Requester
	source    *prompts.Source
	logger    *slog.Logger
}

// NewLoop builds a Loop. A nil source uses the default templates.
func NewLoop(rq *request.Requester, source *prompts.Source, logger *slog.Logger) *Loop {
	if source == nil {
		source = prompts.NewSource(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{requester: rq, source: source, logger: logger}
}

// Run drives the state machine over the accepted candidates. At least
// one candidate is required; the caller filters guardrail-blocked
// variants before ranking.
func (l *Loop) Run(ctx context.Context, t task.Task, candidates []Candidate, score Scorer, opts Options) Outcome {
	passes := opts.Passes
	if passes < 1 {
		passes = 1
	}
	if passes > 3 {
		passes = 3
	}

	var (
		outcome Outcome
		current Candidate
		refined Candidate
		pass    int
		reason  string
	)

	for st := stateRank; st != stateFinalize; {
		switch st {
		case stateRank:
			current = rank(candidates)
			st = stateEvaluate

		case stateEvaluate:
			if pass >= passes {
				st = stateFinalize
				break
			}
			needed := opts.Forced ||
				current.Composite < opts.Quality ||
				current.Composite < opts.Publishable
			if !needed {
				st = stateFinalize
				break
			}
			pass++
			st = stateRefine

		case stateRefine:
			var ok bool
			refined, ok, reason = l.refineOnce(ctx, t, current, score, opts)
			if !ok {
				outcome.Passes = append(outcome.Passes, PassRecord{
					Pass: pass, Before: current.Composite, Reason: reason,
				})
				st = stateEvaluate
				break
			}
			st = stateRescore

		case stateRescore:
			// refineOnce already rescored via the Scorer; the state
			// exists so the transition log matches what actually ran.
			st = stateAccept

		case stateAccept:
			record := PassRecord{Pass: pass, Before: current.Composite, After: refined.Composite}
			if refined.Composite >= current.Composite-regressionTolerance {
				record.Accepted = true
				current = refined
			} else {
				record.Reason = "refined candidate regressed past tolerance"
			}
			outcome.Passes = append(outcome.Passes, record)
			st = stateEvaluate
		}
	}

	outcome.Best = current
	return outcome
}

// rank returns the candidate with the highest composite, first wins ties.
func rank(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Composite > best.Composite {
			best = c
		}
	}
	return best
}

// refineOnce asks the model to rewrite the current best and rescores the
// result. Any failure reports ok=false with the reason; the caller
// treats that as a skipped pass.
func (l *Loop) refineOnce(ctx context.Context, t task.Task, current Candidate, score Scorer, opts Options) (Candidate, bool, string) {
	candidateJSON, err := json.Marshal(current.Payload)
	if err != nil {
		return Candidate{}, false, "marshaling candidate: " + err.Error()
	}

	vars := opts.Context
	vars.CandidateJSON = string(candidateJSON)
	vars.Weaknesses = current.Judge.Weaknesses
	prompt, err := prompts.Render(l.source.GetActive(t, task.RouteRefine), vars)
	if err != nil {
		return Candidate{}, false, "rendering refine prompt: " + err.Error()
	}

	result := l.requester.Request(ctx, t, task.RouteRefine, prompts.SystemPrompt, prompt, request.Options{})
	if result.Skipped {
		return Candidate{}, false, result.SkipReason
	}
	if result.Err != nil {
		return Candidate{}, false, result.Err.Error()
	}

	rewritten, _, err := payload.Parse(t, result.Output)
	if err != nil {
		l.requester.ReportParseFailure(t, task.RouteRefine, err.Error())
		return Candidate{}, false, "parsing rewrite: " + err.Error()
	}

	refined := score(ctx, rewritten)
	if !refined.Guardrail.OK {
		return Candidate{}, false, "rewrite failed guardrails"
	}
	return refined, true, ""
}
