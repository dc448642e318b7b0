// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package windows

import (
	"regexp"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianStudio/services/studio/transcript"
)

// Window is a contiguous candidate clip. SegStart/SegEnd are inclusive
// segment indexes; Source records which acceptance tier produced it.
type Window struct {
	StartMs  int64
	EndMs    int64
	SegStart int
	SegEnd   int
	Score    float64
	Source   string
}

// DurationMs returns the window length.
func (w Window) DurationMs() int64 {
	return w.EndMs - w.StartMs
}

// Acceptance tiers recorded in Window.Source, strongest first.
const (
	SourceHeuristic  = "heuristic"
	SourceRelaxed    = "relaxed_hook"
	SourceSingle     = "single_segment"
	SourceFirstAvail = "first_available"
	SourceProposed   = "model_proposed"
	SourceRegrown    = "model_regrown"
)

// OverlapBufferMs is the minimum gap between accepted windows: windows A
// and B overlap when startA <= endB+buffer AND startB <= endA+buffer.
const OverlapBufferMs int64 = 1500

// edgeDecayWindowMs penalizes seeds inside the first/last 45 seconds of
// long transcripts, where intros and outros live.
const edgeDecayWindowMs int64 = 45_000

// longTranscriptMs is the threshold above which edge decay applies.
const longTranscriptMs int64 = 10 * 60 * 1000

var (
	hookPattern = regexp.MustCompile(`(?i)\b(secret|mistake|nobody|truth|imagine|here'?s (how|why|what)|the (one|biggest|real)|what if|stop doing|you need to|most people)\b`)
	boilerplate = regexp.MustCompile(`(?i)\b(welcome (back )?to|thanks for (watching|listening)|subscribe|hit the bell|like and|intro|outro|see you (next|in the)|today'?s episode|my name is)\b`)
)

// Select picks up to count non-overlapping windows under the policy.
//
// For each of the top-K seed segments a contiguous window is grown left
// and right toward the target duration without exceeding the max; the
// candidates are globally ranked and greedily accepted while
// non-overlapping. When too few survive, progressively weaker tiers
// back-fill: relaxed hook threshold, single-segment windows, and finally
// the first available window.
func Select(segments []transcript.Segment, count int, policy Policy) []Window {
	if len(segments) == 0 || count <= 0 {
		return nil
	}

	total := transcript.TotalDurationMs(segments)
	seeds := rankSeeds(segments, total)

	seedBudget := count * 4
	if seedBudget > len(seeds) {
		seedBudget = len(seeds)
	}

	var candidates []Window
	for _, seed := range seeds[:seedBudget] {
		w := grow(segments, seed.index, policy)
		w.Score = seed.score
		w.Source = SourceHeuristic
		if policy.Fits(w.DurationMs()) {
			candidates = append(candidates, w)
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	accepted := acceptNonOverlapping(candidates, count, nil)

	// Tier 2: relaxed hook threshold. Admit grown windows from seeds that
	// missed the first cut, as long as they fit the policy.
	if len(accepted) < count {
		var relaxed []Window
		for _, seed := range seeds[seedBudget:] {
			w := grow(segments, seed.index, policy)
			if policy.Fits(w.DurationMs()) {
				w.Score = seed.score
				w.Source = SourceRelaxed
				relaxed = append(relaxed, w)
			}
		}
		sort.Slice(relaxed, func(i, j int) bool { return relaxed[i].Score > relaxed[j].Score })
		accepted = acceptNonOverlapping(relaxed, count, accepted)
	}

	// Tier 3: single-segment windows, duration bounds still honored.
	if len(accepted) < count {
		var singles []Window
		for _, seg := range segments {
			if policy.Fits(seg.DurationMs()) {
				singles = append(singles, Window{
					StartMs:  seg.StartMs,
					EndMs:    seg.EndMs,
					SegStart: seg.Index,
					SegEnd:   seg.Index,
					Source:   SourceSingle,
				})
			}
		}
		accepted = acceptNonOverlapping(singles, count, accepted)
	}

	// Tier 4: last resort, the first window we can cut at all. May sit
	// outside the duration bounds; callers see Source and can flag it.
	if len(accepted) == 0 {
		w := grow(segments, 0, policy)
		w.Source = SourceFirstAvail
		accepted = []Window{w}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].StartMs < accepted[j].StartMs })
	return accepted
}

// Proposal is a model-suggested window, index based.
type Proposal struct {
	SegStart int
	SegEnd   int
}

// Resolve reconciles a model proposal with the duration policy: used
// as-is when its duration fits, otherwise regrown from its midpoint with
// the same growth procedure Select uses.
func Resolve(segments []transcript.Segment, p Proposal, policy Policy) (Window, bool) {
	if len(segments) == 0 {
		return Window{}, false
	}
	lo, hi := p.SegStart, p.SegEnd
	if lo < 0 {
		lo = 0
	}
	if hi >= len(segments) {
		hi = len(segments) - 1
	}
	if lo > hi {
		return Window{}, false
	}

	w := Window{
		StartMs:  segments[lo].StartMs,
		EndMs:    segments[hi].EndMs,
		SegStart: lo,
		SegEnd:   hi,
		Source:   SourceProposed,
	}
	if policy.Fits(w.DurationMs()) {
		return w, true
	}

	mid := (lo + hi) / 2
	regrown := grow(segments, mid, policy)
	regrown.Source = SourceRegrown
	return regrown, policy.Fits(regrown.DurationMs())
}

// Overlaps implements the shared overlap contract.
func Overlaps(a, b Window) bool {
	return a.StartMs <= b.EndMs+OverlapBufferMs && b.StartMs <= a.EndMs+OverlapBufferMs
}

type seed struct {
	index int
	score float64
}

func rankSeeds(segments []transcript.Segment, totalMs int64) []seed {
	seeds := make([]seed, 0, len(segments))
	for _, seg := range segments {
		seeds = append(seeds, seed{index: seg.Index, score: scoreSegment(seg, totalMs)})
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].score > seeds[j].score })
	return seeds
}

// scoreSegment is the editorial-quality heuristic for seed ranking.
func scoreSegment(seg transcript.Segment, totalMs int64) float64 {
	text := seg.Text
	words := strings.Fields(text)

	var score float64

	// Lexical/length signal: substance without rambling.
	switch {
	case len(words) >= 12 && len(words) <= 60:
		score += 3
	case len(words) >= 6:
		score += 1
	}

	// Punctuation signal: questions and emphasis retain viewers.
	score += float64(strings.Count(text, "?")) * 1.5
	score += float64(strings.Count(text, "!"))

	if hookPattern.MatchString(text) {
		score += 5
	}
	if boilerplate.MatchString(text) {
		score -= 6
	}

	// Time decay near the edges of long transcripts.
	if totalMs >= longTranscriptMs {
		if seg.StartMs < edgeDecayWindowMs || seg.EndMs > totalMs-edgeDecayWindowMs {
			score -= 4
		}
	}
	return score
}

// grow expands a contiguous window around a seed segment toward the
// target duration, never exceeding the max. Expansion prefers whichever
// neighbor keeps the window closer to the target.
func grow(segments []transcript.Segment, seedIdx int, policy Policy) Window {
	lo, hi := seedIdx, seedIdx
	duration := segments[seedIdx].DurationMs()

	for duration < policy.TargetMs {
		var leftGain, rightGain int64 = -1, -1
		if lo > 0 {
			leftGain = segments[lo-1].DurationMs()
		}
		if hi < len(segments)-1 {
			rightGain = segments[hi+1].DurationMs()
		}
		if leftGain < 0 && rightGain < 0 {
			break
		}

		// Take the side that exists; when both do, the smaller gain gives
		// finer control near the target.
		takeLeft := leftGain >= 0 && (rightGain < 0 || leftGain <= rightGain)
		gain := rightGain
		if takeLeft {
			gain = leftGain
		}
		if duration+gain > policy.MaxMs {
			// Try the other side before giving up.
			if takeLeft && rightGain >= 0 && duration+rightGain <= policy.MaxMs {
				hi++
				duration += rightGain
				continue
			}
			if !takeLeft && leftGain >= 0 && duration+leftGain <= policy.MaxMs {
				lo--
				duration += leftGain
				continue
			}
			break
		}
		if takeLeft {
			lo--
		} else {
			hi++
		}
		duration += gain
	}

	return Window{
		StartMs:  segments[lo].StartMs,
		EndMs:    segments[hi].EndMs,
		SegStart: lo,
		SegEnd:   hi,
	}
}

func acceptNonOverlapping(candidates []Window, count int, accepted []Window) []Window {
	for _, c := range candidates {
		if len(accepted) >= count {
			break
		}
		clash := false
		for _, a := range accepted {
			if Overlaps(c, a) {
				clash = true
				break
			}
		}
		if !clash {
			accepted = append(accepted, c)
		}
	}
	return accepted
}
