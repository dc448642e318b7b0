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
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultExcerptTokens bounds transcript excerpts embedded in prompts.
const DefaultExcerptTokens = 1800

// Excerpt returns a token-bounded excerpt of the joined transcript text,
// suitable for embedding in generation and judge prompts.
//
// The split is token-aware so the excerpt lands near the budget instead of
// cutting mid-sentence at a byte offset. When splitting fails (degenerate
// input), a character-bounded fallback is used so callers always get text.
func Excerpt(segments []Segment, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = DefaultExcerptTokens
	}
	text := JoinText(segments)
	if text == "" {
		return ""
	}

	splitter := textsplitter.NewTokenSplitter(
		textsplitter.WithChunkSize(maxTokens),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil || len(chunks) == 0 {
		// Rough 4 chars/token fallback.
		limit := maxTokens * 4
		if len(text) <= limit {
			return text
		}
		return strings.TrimSpace(text[:limit])
	}
	return strings.TrimSpace(chunks[0])
}

// ExcerptRange is like Excerpt but restricted to a segment index range,
// used when prompting about a specific clip window.
func ExcerptRange(segments []Segment, start, end, maxTokens int) string {
	if start < 0 {
		start = 0
	}
	if end >= len(segments) {
		end = len(segments) - 1
	}
	if start > end {
		return ""
	}
	return Excerpt(segments[start:end+1], maxTokens)
}
