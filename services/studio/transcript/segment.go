// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transcript holds the segment model the generation engine reads.
//
// Segments are produced by the transcript-processing pipeline and are
// read-only to this engine. The loader here accepts the pipeline's JSON
// interchange format; parsing of raw subtitle formats (SRT/VTT) lives in
// the external transcript parser.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Segment is one ordered transcript unit. Immutable once loaded.
type Segment struct {
	// Index is the zero-based position within the transcript.
	Index int `json:"index"`

	// StartMs and EndMs bound the segment in milliseconds. StartMs < EndMs.
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`

	// Text is the spoken content.
	Text string `json:"text"`

	// EstimatedTokens is a rough token count supplied by the parser.
	// Zero means unknown; Tokens() falls back to a word estimate.
	EstimatedTokens int `json:"estimated_tokens,omitempty"`
}

// DurationMs returns the segment length in milliseconds.
func (s Segment) DurationMs() int64 {
	return s.EndMs - s.StartMs
}

// Tokens returns the parser's token estimate, or a whitespace-word
// approximation when the parser did not supply one.
func (s Segment) Tokens() int {
	if s.EstimatedTokens > 0 {
		return s.EstimatedTokens
	}
	return len(strings.Fields(s.Text))
}

// ErrEmptyTranscript indicates a transcript with no usable segments.
var ErrEmptyTranscript = errors.New("transcript has no segments")

// Load reads segments from the pipeline's JSON interchange file.
//
// Inputs:
//
//	path - Path to a JSON array of segments.
//
// Outputs:
//
//	[]Segment - Ordered, validated segments.
//	error - Non-nil on read, parse, or ordering violations.
func Load(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	var segments []Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("parsing transcript JSON: %w", err)
	}
	if err := Validate(segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// Validate checks ordering and time-bound invariants.
func Validate(segments []Segment) error {
	if len(segments) == 0 {
		return ErrEmptyTranscript
	}
	for i, seg := range segments {
		if seg.StartMs >= seg.EndMs {
			return fmt.Errorf("segment %d: start %dms must precede end %dms", i, seg.StartMs, seg.EndMs)
		}
		if seg.Index != i {
			return fmt.Errorf("segment %d: index %d out of order", i, seg.Index)
		}
		if i > 0 && seg.StartMs < segments[i-1].StartMs {
			return fmt.Errorf("segment %d: starts before segment %d", i, i-1)
		}
	}
	return nil
}

// TotalDurationMs returns the span from the first start to the last end.
func TotalDurationMs(segments []Segment) int64 {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].EndMs - segments[0].StartMs
}

// JoinText concatenates segment text with single spaces.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
