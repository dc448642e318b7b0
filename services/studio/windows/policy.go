// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package windows selects non-overlapping transcript time windows for
// short-clip generation.
//
// Selection maximizes an editorial heuristic (hook presence, lexical and
// punctuation signal, distance from intro/outro boilerplate) under a
// duration policy derived from the caller's length preference. A window
// proposed by the model is honored when it already fits the policy and is
// regrown from its midpoint when it does not, so model suggestions and the
// local heuristic interoperate through one contract.
package windows

// LengthPreference is the caller's desired clip length tier.
type LengthPreference string

const (
	// LengthShort targets punchy clips around 20 seconds.
	LengthShort LengthPreference = "short"

	// LengthStandard targets the 30-40 second sweet spot.
	LengthStandard LengthPreference = "standard"

	// LengthLong targets minute-scale clips.
	LengthLong LengthPreference = "long"
)

// Policy bounds clip duration in milliseconds.
type Policy struct {
	MinMs    int64
	TargetMs int64
	MaxMs    int64
}

// DerivePolicy maps a length preference to duration bounds, shrinking
// the target for very short source material so a single clip never
// swallows the whole transcript.
func DerivePolicy(totalDurationMs int64, pref LengthPreference) Policy {
	var p Policy
	switch pref {
	case LengthShort:
		p = Policy{MinMs: 12_000, TargetMs: 22_000, MaxMs: 32_000}
	case LengthLong:
		p = Policy{MinMs: 35_000, TargetMs: 60_000, MaxMs: 90_000}
	default:
		p = Policy{MinMs: 18_000, TargetMs: 35_000, MaxMs: 55_000}
	}
	// A clip should not exceed half the source.
	if totalDurationMs > 0 && p.MaxMs > totalDurationMs/2 {
		p.MaxMs = totalDurationMs / 2
		if p.TargetMs > p.MaxMs {
			p.TargetMs = p.MaxMs
		}
		if p.MinMs > p.TargetMs {
			p.MinMs = p.TargetMs / 2
		}
	}
	return p
}

// Fits reports whether a duration satisfies the policy bounds.
func (p Policy) Fits(durationMs int64) bool {
	return durationMs >= p.MinMs && durationMs <= p.MaxMs
}
