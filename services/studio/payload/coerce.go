// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// Outcome reports how a raw response became a payload.
type Outcome struct {
	// Strict is true when the raw JSON matched the schema directly.
	Strict bool

	// Coerced is true when a reconstruction strategy produced the value.
	Coerced bool

	// Signal counts how many expected fields the reconstruction actually
	// found. Only meaningful when Coerced.
	Signal int
}

// ErrNoJSON indicates no JSON object could be located in the output.
var ErrNoJSON = errors.New("no JSON object found in model output")

// ErrLowSignal indicates reconstruction found too few expected fields.
var ErrLowSignal = errors.New("reconstruction below signal threshold")

// signalThresholds is the per-task minimum count of recovered fields for
// accepting a reconstruction.
var signalThresholds = map[task.Task]int{
	task.Analysis:   3,
	task.Clips:      2,
	task.Newsletter: 2,
	task.Post:       3,
	task.Microblog:  2,
}

// envelopeKeys are unwrapped before parsing, generic first, then
// task-specific aliases.
var envelopeKeys = []string{"output", "result", "data", "response", "content"}

var taskAliases = map[task.Task][]string{
	task.Analysis:   {"analysis"},
	task.Clips:      {"clips", "clip_set", "segments"},
	task.Newsletter: {"newsletter", "email"},
	task.Post:       {"post", "article"},
	task.Microblog:  {"thread", "posts", "tweets", "microblog"},
}

// Probe reports whether raw contains a locatable JSON object. The
// variant requester uses it to classify parse failures without paying
// for full normalization.
func Probe(raw string) error {
	if _, err := extractObject(raw); err != nil {
		return err
	}
	return nil
}

// Parse turns raw model output into a sanitized payload for t.
//
// Pipeline: locate the JSON object (code fences tolerated) → unwrap
// envelope keys → strict schema parse → on failure, task-specific
// best-effort reconstruction accepted only at or above the task's signal
// threshold. The returned payload is already sanitized.
func Parse(t task.Task, raw string) (Payload, Outcome, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return nil, Outcome{}, err
	}
	obj = unwrap(t, obj)

	if p, ok := strictParse(t, obj); ok {
		return p.Sanitize(), Outcome{Strict: true}, nil
	}

	p, signal := reconstruct(t, obj)
	threshold := signalThresholds[t]
	if threshold == 0 {
		threshold = 2
	}
	if p == nil || signal < threshold {
		return nil, Outcome{Coerced: true, Signal: signal},
			fmt.Errorf("%w: task %s recovered %d fields, need %d", ErrLowSignal, t, signal, threshold)
	}
	return p.Sanitize(), Outcome{Coerced: true, Signal: signal}, nil
}

// extractObject locates the outermost JSON object in raw text, tolerating
// markdown code fences and prose around it.
func extractObject(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrNoJSON
	}

	// Fast path: the whole output is the object.
	var direct map[string]any
	if err := json.Unmarshal([]byte(trimmed), &direct); err == nil {
		return direct, nil
	}

	// Code fence or prose wrapping: take the first '{' to the last '}'.
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("parsing extracted JSON: %w", err)
	}
	return obj, nil
}

// unwrap peels envelope keys (one level at a time) until the object no
// longer wraps a nested object under a known key.
func unwrap(t task.Task, obj map[string]any) map[string]any {
	keys := append(append([]string{}, envelopeKeys...), taskAliases[t]...)
	for depth := 0; depth < 3; depth++ {
		unwrapped := false
		for _, key := range keys {
			inner, ok := obj[key]
			if !ok {
				continue
			}
			switch v := inner.(type) {
			case map[string]any:
				// Only descend when the wrapper has nothing else useful.
				if len(obj) <= 2 {
					obj = v
					unwrapped = true
				}
			case []any:
				// A bare list under an alias key is itself the payload
				// body; rewrap under the canonical key.
				obj = map[string]any{canonicalListKey(t): v}
				unwrapped = true
			}
			if unwrapped {
				break
			}
		}
		if !unwrapped {
			return obj
		}
	}
	return obj
}

func canonicalListKey(t task.Task) string {
	switch t {
	case task.Clips:
		return "clips"
	case task.Microblog:
		return "posts"
	case task.Newsletter:
		return "sections"
	case task.Analysis:
		return "key_points"
	default:
		return "bullets"
	}
}

// strictParse round-trips the object through the task schema and checks
// the required fields survived.
func strictParse(t task.Task, obj map[string]any) (Payload, bool) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, false
	}
	switch t {
	case task.Analysis:
		var p Analysis
		if json.Unmarshal(data, &p) == nil && p.Hook != "" && p.Summary != "" && len(p.KeyPoints) > 0 {
			return &p, true
		}
	case task.Clips:
		var p ClipSet
		if json.Unmarshal(data, &p) == nil && len(p.Clips) > 0 && p.Clips[0].Title != "" {
			return &p, true
		}
	case task.Newsletter:
		var p Newsletter
		if json.Unmarshal(data, &p) == nil && len(p.SubjectLines) > 0 && len(p.Sections) > 0 {
			return &p, true
		}
	case task.Post:
		var p Post
		if json.Unmarshal(data, &p) == nil && p.Hook != "" && p.Body != "" {
			return &p, true
		}
	case task.Microblog:
		var p MicroblogSet
		if json.Unmarshal(data, &p) == nil && len(p.Posts) > 0 && p.Posts[0].Text != "" {
			return &p, true
		}
	}
	return nil, false
}
