// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

func TestEveryDefaultTemplateRenders(t *testing.T) {
	vars := Vars{
		Audience:          "early-stage founders",
		Tone:              "direct",
		Strategy:          "lead with the numbers",
		TranscriptExcerpt: "[00:00] transcript line",
		EvidenceExcerpt:   "[00:00] evidence line",
		AnalysisJSON:      `{"hook": "h"}`,
		CandidateJSON:     `{"hook": "h"}`,
		Weaknesses:        []string{"hook is flat", "no concrete numbers"},
		WindowsBlock:      "window 1: 00:10-00:42",
	}
	src := NewSource(nil)
	for _, tk := range task.All() {
		for _, kind := range []task.RouteKind{task.RouteGenerate, task.RouteJudge, task.RouteRefine} {
			tmpl := src.GetActive(tk, kind)
			require.NotEmpty(t, tmpl, "%s/%s", tk, kind)
			out, err := Render(tmpl, vars)
			require.NoError(t, err, "%s/%s", tk, kind)
			assert.NotEmpty(t, out)
		}
	}
}

func TestRefineTemplateListsWeaknesses(t *testing.T) {
	out, err := Render(NewSource(nil).GetActive(task.Post, task.RouteRefine), Vars{
		Weaknesses:    []string{"hook is flat"},
		CandidateJSON: "{}",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "- hook is flat")
}

func TestSourceOverrides(t *testing.T) {
	src := NewSource(map[string]string{"post/generate": "custom {{.Audience}}"})
	out, err := Render(src.GetActive(task.Post, task.RouteGenerate), Vars{Audience: "devs"})
	require.NoError(t, err)
	assert.Equal(t, "custom devs", out)

	// Other pairs keep defaults.
	assert.NotEqual(t, "custom {{.Audience}}", src.GetActive(task.Post, task.RouteJudge))
}

func TestRenderBadTemplate(t *testing.T) {
	_, err := Render("{{.Missing", Vars{})
	assert.Error(t, err)
}
