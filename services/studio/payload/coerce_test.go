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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

func TestProbe(t *testing.T) {
	assert.NoError(t, Probe(`{"hook": "h"}`))
	assert.NoError(t, Probe("prose before\n```json\n{\"hook\": \"h\"}\n```"))
	assert.ErrorIs(t, Probe("I could not produce the artifact, sorry."), ErrNoJSON)
	assert.ErrorIs(t, Probe(""), ErrNoJSON)
}

func TestParseStrict(t *testing.T) {
	raw := `{
		"hook": "A hook",
		"summary": "A summary",
		"key_points": ["first point here", "second point entirely different"]
	}`
	p, outcome, err := Parse(task.Analysis, raw)
	require.NoError(t, err)
	assert.True(t, outcome.Strict)
	assert.False(t, outcome.Coerced)
	a := p.(*Analysis)
	assert.Equal(t, "A hook", a.Hook)
	assert.Len(t, a.KeyPoints, 2)
}

func TestParseStripsCodeFence(t *testing.T) {
	raw := "Here is the post:\n```json\n{\"hook\": \"h\", \"body\": \"b\"}\n```\nHope that helps."
	p, outcome, err := Parse(task.Post, raw)
	require.NoError(t, err)
	assert.True(t, outcome.Strict)
	assert.Equal(t, "h", p.(*Post).Hook)
}

func TestParseUnwrapsEnvelope(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"generic output key", `{"output": {"hook": "h", "body": "b"}}`},
		{"result key", `{"result": {"hook": "h", "body": "b"}}`},
		{"task alias", `{"post": {"hook": "h", "body": "b"}}`},
		{"nested twice", `{"output": {"data": {"hook": "h", "body": "b"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, outcome, err := Parse(task.Post, tt.raw)
			require.NoError(t, err)
			assert.True(t, outcome.Strict)
			assert.Equal(t, "h", p.(*Post).Hook)
			assert.Equal(t, "b", p.(*Post).Body)
		})
	}
}

func TestParseBareListRewrapped(t *testing.T) {
	raw := `{"posts": ["first post text", "second post entirely different"]}`
	p, outcome, err := Parse(task.Microblog, raw)
	require.NoError(t, err)
	assert.True(t, outcome.Coerced)
	assert.GreaterOrEqual(t, outcome.Signal, 2)
	m := p.(*MicroblogSet)
	require.Len(t, m.Posts, 2)
	assert.Equal(t, 1, m.Posts[0].Order)
	assert.Equal(t, "first post text", m.Posts[0].Text)
}

func TestParseReconstructsAlternateKeys(t *testing.T) {
	raw := `{
		"headline": "Alt hook",
		"content": "Alt body",
		"takeaways": ["one takeaway here", "another unrelated takeaway"]
	}`
	p, outcome, err := Parse(task.Post, raw)
	require.NoError(t, err)
	assert.True(t, outcome.Coerced)
	assert.Equal(t, 3, outcome.Signal)
	post := p.(*Post)
	assert.Equal(t, "Alt hook", post.Hook)
	assert.Equal(t, "Alt body", post.Body)
	assert.Len(t, post.Bullets, 2)
}

func TestParseReconstructsClipObjects(t *testing.T) {
	raw := `{"segments": [
		{"name": "Opening riff", "description": "why retention beats acquisition"},
		{"name": "Closer", "description": "the one metric that matters most"}
	]}`
	p, outcome, err := Parse(task.Clips, raw)
	require.NoError(t, err)
	assert.True(t, outcome.Coerced)
	clips := p.(*ClipSet)
	require.Len(t, clips.Clips, 2)
	assert.Equal(t, "Opening riff", clips.Clips[0].Title)
	assert.Equal(t, "why retention beats acquisition", clips.Clips[0].Caption)
}

func TestParseLowSignal(t *testing.T) {
	_, outcome, err := Parse(task.Post, `{"headline": "only a hook"}`)
	require.ErrorIs(t, err, ErrLowSignal)
	assert.True(t, outcome.Coerced)
	assert.Equal(t, 1, outcome.Signal)
}

func TestParseNoJSON(t *testing.T) {
	_, _, err := Parse(task.Analysis, "no structured content at all")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestParseOutputIsSanitized(t *testing.T) {
	raw := `{"hook": "  hook with trailing ellipsis...  ", "body": "body text"}`
	p, _, err := Parse(task.Post, raw)
	require.NoError(t, err)
	assert.Equal(t, "hook with trailing ellipsis", p.(*Post).Hook)
}
