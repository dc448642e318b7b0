// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompts owns the instruction templates for generation, judge,
// and refinement calls. An external prompt store may override any
// template; absent an override the built-in defaults apply.
package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// Vars is the value set templates may reference. Unused fields are fine;
// referencing a field no caller sets renders as the zero value.
type Vars struct {
	Audience string
	Tone     string
	Strategy string
	Focus    string

	// TranscriptExcerpt and EvidenceExcerpt are the truncated context
	// blocks sent with every generation and judge call.
	TranscriptExcerpt string
	EvidenceExcerpt   string

	// AnalysisJSON carries the upstream analysis payload for dependent
	// tasks.
	AnalysisJSON string

	// CandidateJSON and Weaknesses drive judge and refinement calls.
	CandidateJSON string
	Weaknesses    []string

	// WindowsBlock lists pre-selected clip windows.
	WindowsBlock string

	// ChannelNotes carries per-channel performance memory.
	ChannelNotes string
}

// Source resolves the active template for a (task, kind) pair.
//
// Thread Safety: immutable after construction.
type Source struct {
	overrides map[string]string
}

// NewSource builds a Source. Override keys are "task/kind", e.g.
// "post/generate" or "analysis/judge".
func NewSource(overrides map[string]string) *Source {
	copied := make(map[string]string, len(overrides))
	for k, v := range overrides {
		copied[k] = v
	}
	return &Source{overrides: copied}
}

// GetActive returns the template text for (t, kind).
func (s *Source) GetActive(t task.Task, kind task.RouteKind) string {
	if s != nil {
		if tmpl, ok := s.overrides[string(t)+"/"+string(kind)]; ok {
			return tmpl
		}
	}
	switch kind {
	case task.RouteJudge:
		return judgeTemplate
	case task.RouteRefine:
		return refineTemplate
	default:
		return generateTemplates[t]
	}
}

// Render executes a template against vars.
func Render(tmplText string, vars Vars) (string, error) {
	tmpl, err := template.New("prompt").Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("rendering prompt template: %w", err)
	}
	return b.String(), nil
}

// SystemPrompt is the shared system preamble for generation calls.
const SystemPrompt = `You are an expert content strategist. You turn podcast transcripts into marketing artifacts. Respond with a single JSON object and nothing else. Every factual or numeric claim must come from the provided transcript.`

// JudgeSystemPrompt frames the judge calls.
const JudgeSystemPrompt = `You are a demanding editorial reviewer. Score content honestly against the rubric. Respond with a single JSON object and nothing else.`
