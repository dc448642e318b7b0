// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package judge asks the model to critique a candidate on the five
// quality axes. The judge is allowed to fail; a penalized heuristic
// fallback keeps the pipeline moving and the reason is recorded
// verbatim so no candidate is ever silently trusted.
package judge

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
	"github.com/AleutianAI/AleutianStudio/services/studio/profile"
	"github.com/AleutianAI/AleutianStudio/services/studio/prompts"
	"github.com/AleutianAI/AleutianStudio/services/studio/request"
	"github.com/AleutianAI/AleutianStudio/services/studio/scoring"
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// Merge weights for the max-quality double pass.
const (
	strictWeight      = 0.55
	adversarialWeight = 0.45
)

// maxWeaknesses caps the merged weakness list.
const maxWeaknesses = 8

// adversarialDirective turns the second pass hostile.
const adversarialDirective = "\n\nSecond pass: be adversarial. Assume the candidate is overrated and hunt for the weakest claim, the flattest phrasing, and anything a skeptical editor would cut. Score accordingly."

// Context is the truncated grounding context sent with every judge call.
type Context struct {
	AnalysisJSON      string
	EvidenceExcerpt   string
	TranscriptExcerpt string
}

// Judge evaluates candidates through the completion requester.
type Judge struct {
	requester *request.Requester
	source    *prompts.Source
	logger    *slog.Logger
}

// New builds a Judge. A nil source uses the default templates.
func New(rq *request.Requester, source *prompts.Source, logger *slog.Logger) *Judge {
	if source == nil {
		source = prompts.NewSource(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{requester: rq, source: source, logger: logger}
}

// Evaluate scores one candidate.
//
// # Description
//
// Standard mode runs a single judge pass. Max mode runs a strict and an
// adversarial pass and merges them 0.55/0.45 per axis, unioning
// weaknesses up to 8. Any failure (skip, transport error, unparsable
// shape) falls back to a penalized heuristic evaluation; the failure
// reason is carried verbatim in the returned summary.
func (j *Judge) Evaluate(ctx context.Context, t task.Task, candidate payload.Payload, jctx Context, mode profile.QualityMode, heuristic scoring.Evaluation) scoring.Evaluation {
	strict, err := j.pass(ctx, t, candidate, jctx, "")
	if err != nil {
		j.logger.Warn("judge unavailable, using penalized heuristic",
			"task", t, "reason", err)
		return Fallback(heuristic, candidate, err.Error())
	}
	if mode != profile.QualityMax {
		return strict
	}

	adversarial, err := j.pass(ctx, t, candidate, jctx, adversarialDirective)
	if err != nil {
		// The strict pass already succeeded; a failed adversarial pass
		// degrades to single-pass behavior rather than the fallback.
		j.logger.Warn("adversarial judge pass failed", "task", t, "reason", err)
		return strict
	}
	return merge(strict, adversarial)
}

func (j *Judge) pass(ctx context.Context, t task.Task, candidate payload.Payload, jctx Context, directive string) (scoring.Evaluation, error) {
	candidateJSON, err := json.Marshal(candidate)
	if err != nil {
		return scoring.Evaluation{}, err
	}
	prompt, err := prompts.Render(j.source.GetActive(t, task.RouteJudge), prompts.Vars{
		CandidateJSON:     string(candidateJSON),
		AnalysisJSON:      jctx.AnalysisJSON,
		EvidenceExcerpt:   jctx.EvidenceExcerpt,
		TranscriptExcerpt: jctx.TranscriptExcerpt,
	})
	if err != nil {
		return scoring.Evaluation{}, err
	}

	result := j.requester.Request(ctx, t, task.RouteJudge, prompts.JudgeSystemPrompt+directive, prompt, request.Options{})
	if result.Skipped {
		return scoring.Evaluation{}, errSkipped(result.SkipReason)
	}
	if result.Err != nil {
		return scoring.Evaluation{}, result.Err
	}

	eval, err := parseEvaluation(result.Output)
	if err != nil {
		j.requester.ReportParseFailure(t, task.RouteJudge, err.Error())
		return scoring.Evaluation{}, err
	}
	return eval, nil
}

type errSkipped string

func (e errSkipped) Error() string { return "judge call skipped: " + string(e) }

// merge blends the strict and adversarial passes per axis and unions
// their weaknesses, strict first.
func merge(strict, adversarial scoring.Evaluation) scoring.Evaluation {
	blend := func(a, b float64) float64 {
		return scoring.Round2(a*strictWeight + b*adversarialWeight)
	}
	merged := scoring.Evaluation{
		Overall: blend(strict.Overall, adversarial.Overall),
		Subscores: scoring.Subscores{
			Clarity:            blend(strict.Subscores.Clarity, adversarial.Subscores.Clarity),
			Depth:              blend(strict.Subscores.Depth, adversarial.Subscores.Depth),
			Originality:        blend(strict.Subscores.Originality, adversarial.Subscores.Originality),
			Applicability:      blend(strict.Subscores.Applicability, adversarial.Subscores.Applicability),
			RetentionPotential: blend(strict.Subscores.RetentionPotential, adversarial.Subscores.RetentionPotential),
		},
		Summary: strict.Summary,
		Source:  scoring.SourceJudgeMerged,
	}

	seen := make(map[string]struct{})
	for _, w := range append(append([]string{}, strict.Weaknesses...), adversarial.Weaknesses...) {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		merged.Weaknesses = append(merged.Weaknesses, w)
		if len(merged.Weaknesses) == maxWeaknesses {
			break
		}
	}
	return merged
}
