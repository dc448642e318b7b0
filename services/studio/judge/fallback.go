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
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
	"github.com/AleutianAI/AleutianStudio/services/studio/scoring"
)

// Fixed fallback penalties. The fallback must sit below an equivalent
// real judge score, so an unaudited candidate never outranks an audited
// one by losing its judge.
const (
	truncationPenalty = 1.2
	repetitionPenalty = 0.8
	structuralPenalty = 0.6
)

var trailingEllipsis = regexp.MustCompile(`(\.\.\.|…)\s*$`)

// Fallback derives a conservative evaluation from the heuristic one when
// the judge is unavailable. Detected truncation, repetition, and
// structural deficiencies subtract fixed penalties from every axis; the
// reason the judge failed is recorded verbatim.
func Fallback(heuristic scoring.Evaluation, candidate payload.Payload, reason string) scoring.Evaluation {
	var penalty float64
	if hasTruncation(candidate) {
		penalty += truncationPenalty
	}
	if hasRepetition(candidate) {
		penalty += repetitionPenalty
	}
	if structurallyDeficient(candidate) {
		penalty += structuralPenalty
	}

	adjust := func(v float64) float64 {
		return scoring.Round2(scoring.Clamp10(v - penalty))
	}
	return scoring.Evaluation{
		Overall: adjust(heuristic.Overall),
		Subscores: scoring.Subscores{
			Clarity:            adjust(heuristic.Subscores.Clarity),
			Depth:              adjust(heuristic.Subscores.Depth),
			Originality:        adjust(heuristic.Subscores.Originality),
			Applicability:      adjust(heuristic.Subscores.Applicability),
			RetentionPotential: adjust(heuristic.Subscores.RetentionPotential),
		},
		Summary: "judge unavailable: " + reason,
		Source:  scoring.SourceHeuristicFallback,
	}
}

func hasTruncation(p payload.Payload) bool {
	for _, text := range proseFields(p) {
		if trailingEllipsis.MatchString(text) {
			return true
		}
	}
	return false
}

func hasRepetition(p payload.Payload) bool {
	fields := proseFields(p)
	for i := 0; i < len(fields); i++ {
		if len(strings.Fields(fields[i])) < 4 {
			continue
		}
		for j := i + 1; j < len(fields); j++ {
			if payload.LexicalOverlap(fields[i], fields[j]) >= 0.8 {
				return true
			}
		}
	}
	return false
}

// structurallyDeficient flags candidates missing the substance a judge
// would have punished.
func structurallyDeficient(p payload.Payload) bool {
	switch v := p.(type) {
	case *payload.Analysis:
		return len(v.KeyPoints) < 3 || v.Summary == ""
	case *payload.ClipSet:
		return len(v.Clips) < 2
	case *payload.Newsletter:
		return len(v.Sections) < 2 || len(v.SubjectLines) == 0
	case *payload.Post:
		return len(strings.Fields(v.Body)) < 40
	case *payload.MicroblogSet:
		return len(v.Posts) < 3
	default:
		return true
	}
}

func proseFields(p payload.Payload) []string {
	switch v := p.(type) {
	case *payload.Analysis:
		out := []string{v.Hook, v.Summary}
		return append(out, v.KeyPoints...)
	case *payload.ClipSet:
		var out []string
		for _, clip := range v.Clips {
			out = append(out, clip.Title, clip.Caption)
		}
		return out
	case *payload.Newsletter:
		out := append([]string{}, v.SubjectLines...)
		for _, sec := range v.Sections {
			out = append(out, sec.Body)
		}
		return out
	case *payload.Post:
		return append([]string{v.Hook, v.Body}, v.Bullets...)
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
