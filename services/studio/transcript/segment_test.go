// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidatesOrdering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segments.json")

	good := `[
		{"index":0,"start_ms":0,"end_ms":4000,"text":"welcome to the show"},
		{"index":1,"start_ms":4000,"end_ms":9000,"text":"we grew revenue 40% last year"},
		{"index":2,"start_ms":9000,"end_ms":15000,"text":"here is how we did it"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(good), 0o600))

	segments, err := Load(path)
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Equal(t, int64(15000), TotalDurationMs(segments))
}

func TestLoadRejectsInvertedBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segments.json")
	bad := `[{"index":0,"start_ms":5000,"end_ms":1000,"text":"x"}]`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must precede")
}

func TestValidateEmpty(t *testing.T) {
	err := Validate(nil)
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestSegmentTokens(t *testing.T) {
	seg := Segment{Text: "one two three"}
	assert.Equal(t, 3, seg.Tokens())

	seg.EstimatedTokens = 7
	assert.Equal(t, 7, seg.Tokens())
}

func TestExcerptBoundsOutput(t *testing.T) {
	segments := []Segment{
		{Index: 0, StartMs: 0, EndMs: 1000, Text: "alpha beta gamma delta"},
		{Index: 1, StartMs: 1000, EndMs: 2000, Text: "epsilon zeta eta theta"},
	}

	full := Excerpt(segments, 1000)
	assert.Contains(t, full, "alpha")
	assert.Contains(t, full, "theta")

	assert.Empty(t, Excerpt(nil, 100))
}

func TestExcerptRangeClamps(t *testing.T) {
	segments := []Segment{
		{Index: 0, StartMs: 0, EndMs: 1000, Text: "first"},
		{Index: 1, StartMs: 1000, EndMs: 2000, Text: "second"},
		{Index: 2, StartMs: 2000, EndMs: 3000, Text: "third"},
	}

	out := ExcerptRange(segments, 1, 99, 500)
	assert.Contains(t, out, "second")
	assert.Contains(t, out, "third")
	assert.NotContains(t, out, "first")

	assert.Empty(t, ExcerptRange(segments, 2, 1, 500))
}

func TestJoinTextSkipsBlank(t *testing.T) {
	segments := []Segment{
		{Text: "  hello "},
		{Text: "   "},
		{Text: "world"},
	}
	assert.Equal(t, "hello world", JoinText(segments))
}
