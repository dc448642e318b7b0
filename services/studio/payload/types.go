// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package payload defines the candidate content structures the engine
// judges and refines, plus the normalization pipeline that turns raw
// model output into them.
//
// Payloads are mutated only through normalization and sanitization
// functions that return new values; every sanitizer is idempotent.
package payload

import (
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// Payload is one candidate artifact.
type Payload interface {
	// Task names the artifact type this payload belongs to.
	Task() task.Task

	// Sanitize returns a cleaned copy: trimmed and capped text, ellipsis
	// and em-dash artifacts stripped, near-duplicate lines removed.
	// Sanitize(Sanitize(p)) == Sanitize(p).
	Sanitize() Payload
}

// Theme is one narrative thread inside an Analysis.
type Theme struct {
	Title    string   `json:"title"`
	Insight  string   `json:"insight"`
	Evidence []string `json:"evidence,omitempty"`
}

// Analysis is the narrative analysis payload. All downstream tasks
// consume it.
type Analysis struct {
	Hook      string   `json:"hook"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Themes    []Theme  `json:"themes,omitempty"`
	Quotes    []string `json:"quotes,omitempty"`
}

// Task implements Payload.
func (a *Analysis) Task() task.Task { return task.Analysis }

// Clip is one short-video cut.
type Clip struct {
	Title    string   `json:"title"`
	Caption  string   `json:"caption"`
	Hook     string   `json:"hook,omitempty"`
	StartMs  int64    `json:"start_ms"`
	EndMs    int64    `json:"end_ms"`
	SegStart int      `json:"segment_start"`
	SegEnd   int      `json:"segment_end"`
	Hashtags []string `json:"hashtags,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// ClipSet is the short-video clip payload.
type ClipSet struct {
	Clips []Clip `json:"clips"`
}

// Task implements Payload.
func (c *ClipSet) Task() task.Task { return task.Clips }

// Section is one newsletter block.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Newsletter is the email draft payload.
type Newsletter struct {
	SubjectLines []string  `json:"subject_lines"`
	Preheader    string    `json:"preheader,omitempty"`
	Sections     []Section `json:"sections"`
	CTA          string    `json:"cta,omitempty"`
}

// Task implements Payload.
func (n *Newsletter) Task() task.Task { return task.Newsletter }

// Post is the long-form professional post payload.
type Post struct {
	Hook     string   `json:"hook"`
	Body     string   `json:"body"`
	Bullets  []string `json:"bullets,omitempty"`
	CTA      string   `json:"cta,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// Task implements Payload.
func (p *Post) Task() task.Task { return task.Post }

// MicroPost is one thread entry.
type MicroPost struct {
	Order int    `json:"order"`
	Text  string `json:"text"`
}

// MicroblogSet is the short-post thread payload.
type MicroblogSet struct {
	Posts    []MicroPost `json:"posts"`
	Hashtags []string    `json:"hashtags,omitempty"`
}

// Task implements Payload.
func (m *MicroblogSet) Task() task.Task { return task.Microblog }
