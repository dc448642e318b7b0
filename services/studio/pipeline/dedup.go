// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"strings"

	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
)

// Cross-channel dedup: candidates that rehash an already-published
// artifact lose ranking ground. Overlap below the floor is expected
// (every artifact derives from the same analysis) and costs nothing.
const (
	dedupOverlapFloor = 0.6
	dedupPenaltyRate  = 0.8
)

// corpus accumulates the prose of every artifact accepted earlier in the
// run. Single run, single goroutine, no locking.
type corpus struct {
	entries []string
}

func (c *corpus) add(p payload.Payload) {
	for _, text := range corpusProse(p) {
		if len(strings.Fields(text)) >= 6 {
			c.entries = append(c.entries, text)
		}
	}
}

// penalty returns the ranking deduction for a candidate: the worst
// overlap with any prior-channel entry above the floor, scaled.
func (c *corpus) penalty(p payload.Payload) float64 {
	var worst float64
	for _, text := range corpusProse(p) {
		if len(strings.Fields(text)) < 6 {
			continue
		}
		for _, entry := range c.entries {
			if overlap := payload.LexicalOverlap(text, entry); overlap > worst {
				worst = overlap
			}
		}
	}
	if worst < dedupOverlapFloor {
		return 0
	}
	return (worst - dedupOverlapFloor) * dedupPenaltyRate
}

func corpusProse(p payload.Payload) []string {
	switch v := p.(type) {
	case *payload.Analysis:
		return append([]string{v.Hook, v.Summary}, v.KeyPoints...)
	case *payload.ClipSet:
		var out []string
		for _, clip := range v.Clips {
			out = append(out, clip.Caption)
		}
		return out
	case *payload.Newsletter:
		var out []string
		for _, sec := range v.Sections {
			out = append(out, sec.Body)
		}
		return out
	case *payload.Post:
		return []string{v.Hook, v.Body}
	case *payload.MicroblogSet:
		var out []string
		for _, post := range v.Posts {
			out = append(out, post.Text)
		}
		return out
	default:
		return nil
	}
}
