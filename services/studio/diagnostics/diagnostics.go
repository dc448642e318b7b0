// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diagnostics records what the generation engine did and why:
// every variant requested, every score assigned, every fallback taken.
// Records are append-only; a run is reconstructable from its task
// records alone.
package diagnostics

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianStudio/services/studio/guardrail"
	"github.com/AleutianAI/AleutianStudio/services/studio/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/scoring"
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// VariantRecord documents one requested variant.
type VariantRecord struct {
	Index      int    `json:"index"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`

	// Accepted is true when the variant survived parsing and guardrails.
	Accepted bool `json:"accepted"`

	// Skipped, FailureClass, and Reason describe why a variant produced
	// nothing.
	Skipped      bool   `json:"skipped,omitempty"`
	FailureClass string `json:"failure_class,omitempty"`
	Reason       string `json:"reason,omitempty"`

	// Issues lists guardrail issue codes found on the parsed payload.
	Issues []string `json:"issues,omitempty"`

	Composite float64   `json:"composite,omitempty"`
	Usage     llm.Usage `json:"usage,omitempty"`
}

// RefinePassRecord documents one refinement pass.
type RefinePassRecord struct {
	Pass     int     `json:"pass"`
	Before   float64 `json:"before"`
	After    float64 `json:"after,omitempty"`
	Accepted bool    `json:"accepted"`
	Reason   string  `json:"reason,omitempty"`
}

// TaskRecord documents one task's full generation within a run.
type TaskRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Task      task.Task `json:"task"`
	StartedAt time.Time `json:"started_at"`
	Duration  int64     `json:"duration_ms"`

	Variants []VariantRecord    `json:"variants,omitempty"`
	Refines  []RefinePassRecord `json:"refine_passes,omitempty"`

	// FallbackUsed is true when no model variant survived and the
	// offline default payload was selected.
	FallbackUsed   bool   `json:"fallback_used,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`

	Heuristic scoring.Evaluation `json:"heuristic,omitempty"`
	Judge     scoring.Evaluation `json:"judge,omitempty"`
	Composite float64            `json:"composite"`
	Display   float64            `json:"display"`

	Guardrail guardrail.Result `json:"guardrail,omitempty"`
	Usage     llm.Usage        `json:"usage,omitempty"`
}

// NewTaskRecord starts a record with a fresh ID.
func NewTaskRecord(runID string, t task.Task) *TaskRecord {
	return &TaskRecord{
		ID:        uuid.NewString(),
		RunID:     runID,
		Task:      t,
		StartedAt: time.Now().UTC(),
	}
}

// NewRunID mints a run identifier shared by all task records of one
// end-to-end generation.
func NewRunID() string {
	return uuid.NewString()
}

// Sink persists task records. Implementations must be safe for
// concurrent use; callers never check whether diagnostics are enabled,
// they just emit.
type Sink interface {
	// Record persists one task record. Errors are the sink's problem;
	// diagnostics must never fail the pipeline.
	Record(record *TaskRecord)
}

// NopSink discards everything.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(*TaskRecord) {}
