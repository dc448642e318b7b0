// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evidence builds the read-only Evidence Map the guardrail
// validator uses to decide whether a generated claim is grounded in the
// source transcript.
//
// The map is rebuilt once per generation run and never mutated after
// construction. It is the sole source of truth for grounding decisions.
package evidence

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/AleutianAI/AleutianStudio/services/studio/transcript"
)

// Line is a representative transcript line kept in the map.
type Line struct {
	// Index is the source segment index.
	Index int `json:"index"`

	// StartMs and EndMs carry the segment bounds for citation.
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`

	// Text is the segment text verbatim.
	Text string `json:"text"`

	// Numeric and Lexical are the tokens extracted from this line.
	Numeric []string `json:"numeric_tokens,omitempty"`
	Lexical []string `json:"lexical_tokens,omitempty"`
}

// Map is the grounding snapshot for one transcript.
//
// Numbers and Lexical cover the FULL transcript, not only the sampled
// lines, so the numeric set is always a superset of every sampled line's
// numeric tokens.
type Map struct {
	Numbers map[string]struct{}
	Lexical map[string]struct{}
	Lines   []Line
}

// DefaultLineBudget is the sampled-line budget when callers pass zero.
const DefaultLineBudget = 24

var numericPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?%?`)

// Build constructs the Evidence Map via coverage sampling: the segment
// list is divided into lineBudget buckets and the highest-scoring segment
// of each bucket is kept, so sampled lines stay time-distributed.
func Build(segments []transcript.Segment, lineBudget int) *Map {
	if lineBudget <= 0 {
		lineBudget = DefaultLineBudget
	}
	m := &Map{
		Numbers: make(map[string]struct{}),
		Lexical: make(map[string]struct{}),
	}
	if len(segments) == 0 {
		return m
	}

	// Full-transcript token extraction.
	for _, seg := range segments {
		for _, tok := range NumericTokens(seg.Text) {
			m.Numbers[tok] = struct{}{}
		}
		for _, tok := range LexicalTokens(seg.Text) {
			m.Lexical[tok] = struct{}{}
		}
	}

	// Coverage sampling.
	buckets := lineBudget
	if buckets > len(segments) {
		buckets = len(segments)
	}
	for b := 0; b < buckets; b++ {
		lo := b * len(segments) / buckets
		hi := (b + 1) * len(segments) / buckets
		if hi <= lo {
			hi = lo + 1
		}
		best := lo
		bestScore := -1.0
		for i := lo; i < hi && i < len(segments); i++ {
			if s := lineScore(segments[i]); s > bestScore {
				bestScore = s
				best = i
			}
		}
		seg := segments[best]
		m.Lines = append(m.Lines, Line{
			Index:   seg.Index,
			StartMs: seg.StartMs,
			EndMs:   seg.EndMs,
			Text:    seg.Text,
			Numeric: NumericTokens(seg.Text),
			Lexical: LexicalTokens(seg.Text),
		})
	}
	sort.Slice(m.Lines, func(i, j int) bool { return m.Lines[i].Index < m.Lines[j].Index })
	return m
}

// lineScore favors segments carrying numbers and substantive text: those
// are the lines worth citing back to.
func lineScore(seg transcript.Segment) float64 {
	score := float64(len(strings.Fields(seg.Text)))
	score += 8 * float64(len(NumericTokens(seg.Text)))
	if strings.ContainsAny(seg.Text, "?!") {
		score += 3
	}
	return score
}

// NumericTokens extracts normalized numeric tokens (comma decimal
// separators become dots, trailing %% is preserved).
func NumericTokens(text string) []string {
	raw := numericPattern.FindAllString(text, -1)
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, tok := range raw {
		tok = strings.ReplaceAll(tok, ",", ".")
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// LexicalTokens extracts lowercased, diacritic-stripped tokens of at
// least four characters, with stop words removed.
func LexicalTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = stripDiacritics(f)
		if len(f) < 4 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// HasNumber reports whether a normalized numeric token is grounded.
// Accepts either the raw or comma form.
func (m *Map) HasNumber(token string) bool {
	token = strings.ReplaceAll(token, ",", ".")
	if _, ok := m.Numbers[token]; ok {
		return true
	}
	// "40%" claims grounded by a bare "40" and vice versa.
	if strings.HasSuffix(token, "%") {
		_, ok := m.Numbers[strings.TrimSuffix(token, "%")]
		return ok
	}
	_, ok := m.Numbers[token+"%"]
	return ok
}

// HasLexical reports whether a lexical token appears in the transcript.
func (m *Map) HasLexical(token string) bool {
	_, ok := m.Lexical[stripDiacritics(strings.ToLower(token))]
	return ok
}

// UngroundedNumbers returns every numeric token in text that the
// transcript does not corroborate.
func (m *Map) UngroundedNumbers(text string) []string {
	var out []string
	for _, tok := range NumericTokens(text) {
		if !m.HasNumber(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// Excerpt renders the sampled lines as a prompt-ready block, capped at
// maxLines (0 means all).
func (m *Map) Excerpt(maxLines int) string {
	lines := m.Lines
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("[")
		b.WriteString(formatTimestamp(line.StartMs))
		b.WriteString("] ")
		b.WriteString(strings.TrimSpace(line.Text))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTimestamp(ms int64) string {
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func stripDiacritics(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return out
}

// stopWords is intentionally small: high-frequency English filler that
// would otherwise dominate the lexical set.
var stopWords = map[string]struct{}{
	"that": {}, "this": {}, "with": {}, "from": {}, "have": {}, "what": {},
	"when": {}, "where": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"there": {}, "their": {}, "about": {}, "because": {}, "which": {},
	"going": {}, "really": {}, "think": {}, "thing": {}, "things": {},
	"just": {}, "like": {}, "know": {}, "yeah": {}, "right": {}, "okay": {},
	"been": {}, "were": {}, "they": {}, "them": {}, "then": {}, "than": {},
	"some": {}, "something": {}, "actually": {}, "very": {}, "into": {},
	"your": {}, "youre": {}, "over": {}, "here": {}, "want": {}, "more": {},
	"also": {}, "gonna": {}, "kind": {}, "people": {}, "time": {},
}
