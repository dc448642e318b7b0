// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package task defines the artifact task identifiers and model route kinds
// shared by every stage of the generation engine.
package task

// Task identifies one artifact type produced from a transcript.
type Task string

const (
	// Analysis is the narrative analysis of the full transcript. It runs
	// first; every other task consumes its payload.
	Analysis Task = "analysis"

	// Clips is the short-video clip set.
	Clips Task = "clips"

	// Newsletter is the email newsletter draft.
	Newsletter Task = "newsletter"

	// Post is the long-form professional post.
	Post Task = "post"

	// Microblog is the short-post thread.
	Microblog Task = "microblog"
)

// All lists every task in pipeline order. Later tasks consume earlier
// tasks' output, so the order is load-bearing.
func All() []Task {
	return []Task{Analysis, Clips, Newsletter, Post, Microblog}
}

// Valid reports whether t names a known task.
func (t Task) Valid() bool {
	switch t {
	case Analysis, Clips, Newsletter, Post, Microblog:
		return true
	}
	return false
}

// RouteKind distinguishes the model routes a single task may use.
type RouteKind string

const (
	// RouteGenerate is the primary content-generation route.
	RouteGenerate RouteKind = "generate"

	// RouteJudge is the evaluation route used by the judge.
	RouteJudge RouteKind = "judge"

	// RouteRefine is the rewrite route used by the refinement loop.
	RouteRefine RouteKind = "refine"
)
