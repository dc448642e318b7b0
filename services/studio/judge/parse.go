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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianStudio/services/studio/scoring"
)

var errNoScores = errors.New("judge response carries no recognizable scores")

// parseEvaluation extracts the 5-axis evaluation from raw judge output.
// Code fences and prose around the object are tolerated; axis keys
// accept snake_case and camelCase variants.
func parseEvaluation(raw string) (scoring.Evaluation, error) {
	trimmed := strings.TrimSpace(raw)
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return scoring.Evaluation{}, errNoScores
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &obj); err != nil {
		return scoring.Evaluation{}, fmt.Errorf("judge JSON: %w", err)
	}

	subsObj, _ := firstMap(obj, "subscores", "scores", "axes")
	if subsObj == nil {
		subsObj = obj
	}
	subs := scoring.Subscores{}
	found := 0
	read := func(dst *float64, keys ...string) {
		if v, ok := firstNumber(subsObj, keys...); ok {
			*dst = scoring.Clamp10(v)
			found++
		}
	}
	read(&subs.Clarity, "clarity")
	read(&subs.Depth, "depth")
	read(&subs.Originality, "originality")
	read(&subs.Applicability, "applicability")
	read(&subs.RetentionPotential, "retention_potential", "retentionPotential", "retention")
	if found < 3 {
		return scoring.Evaluation{}, errNoScores
	}

	eval := scoring.Evaluation{Subscores: subs, Source: scoring.SourceJudge}
	if v, ok := firstNumber(obj, "overall", "overall_score", "score"); ok {
		eval.Overall = scoring.Round2(scoring.Clamp10(v))
	} else {
		eval.Overall = scoring.Round2(subs.Mean())
	}
	if s, ok := firstString(obj, "summary", "assessment", "verdict"); ok {
		eval.Summary = s
	}
	eval.Weaknesses = firstStrings(obj, "weaknesses", "issues", "problems")
	return eval, nil
}

func firstNumber(obj map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func firstString(obj map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func firstStrings(obj map[string]any, keys ...string) []string {
	for _, key := range keys {
		items, ok := obj[key].([]any)
		if !ok {
			continue
		}
		var out []string
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func firstMap(obj map[string]any, keys ...string) (map[string]any, bool) {
	for _, key := range keys {
		if m, ok := obj[key].(map[string]any); ok {
			return m, true
		}
	}
	return nil, false
}
