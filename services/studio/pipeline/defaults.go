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
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianStudio/services/studio/evidence"
	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
	"github.com/AleutianAI/AleutianStudio/services/studio/transcript"
	"github.com/AleutianAI/AleutianStudio/services/studio/windows"
)

// Offline default payloads. These are the worst-case output of the
// engine: constructible from the transcript alone, no network, and clean
// enough to pass their own guardrails. Every builder returns a
// sanitized payload.

func defaultAnalysis(segments []transcript.Segment, ev *evidence.Map) *payload.Analysis {
	lines := ev.Lines
	hook := ""
	if len(lines) > 0 {
		hook = firstSentence(lines[0].Text)
	}

	var keyPoints, quotes []string
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		if len(keyPoints) < 5 {
			keyPoints = append(keyPoints, firstSentence(text))
		}
		if len(line.Numeric) > 0 && len(quotes) < 3 {
			quotes = append(quotes, text)
		}
	}
	if len(keyPoints) == 0 {
		keyPoints = []string{firstSentence(transcript.JoinText(segments))}
	}

	summary := strings.ReplaceAll(transcript.Excerpt(segments, 220), "\n", " ")

	p := &payload.Analysis{
		Hook:      hook,
		Summary:   summary,
		KeyPoints: keyPoints,
		Quotes:    quotes,
	}
	for i, kp := range keyPoints {
		if i == 2 {
			break
		}
		p.Themes = append(p.Themes, payload.Theme{Title: firstWords(kp, 6), Insight: kp})
	}
	return p.Sanitize().(*payload.Analysis)
}

func defaultClips(segments []transcript.Segment, wins []windows.Window, ev *evidence.Map) *payload.ClipSet {
	p := &payload.ClipSet{}
	tags := defaultHashtags(ev, 3)
	for _, w := range wins {
		text := windowText(segments, w)
		clip := payload.Clip{
			Title:    firstSentence(text),
			Caption:  firstWords(text, 40),
			StartMs:  w.StartMs,
			EndMs:    w.EndMs,
			SegStart: w.SegStart,
			SegEnd:   w.SegEnd,
			Hashtags: tags,
			Reason:   "selected by transcript quality heuristic",
		}
		p.Clips = append(p.Clips, clip)
	}
	return p.Sanitize().(*payload.ClipSet)
}

func defaultNewsletter(analysis *payload.Analysis) *payload.Newsletter {
	p := &payload.Newsletter{
		SubjectLines: []string{analysis.Hook, firstWords(analysis.Summary, 9)},
		Preheader:    firstWords(analysis.Summary, 16),
		CTA:          "Check out the full conversation for the rest.",
	}
	for i, kp := range analysis.KeyPoints {
		if i == 4 {
			break
		}
		p.Sections = append(p.Sections, payload.Section{
			Heading: firstWords(kp, 7),
			Body:    sectionBody(analysis, i, kp),
		})
	}
	return p.Sanitize().(*payload.Newsletter)
}

func defaultPost(analysis *payload.Analysis, ev *evidence.Map) *payload.Post {
	return (&payload.Post{
		Hook:     analysis.Hook,
		Body:     analysis.Summary,
		Bullets:  analysis.KeyPoints,
		CTA:      "Learn more in the full episode.",
		Hashtags: defaultHashtags(ev, 4),
	}).Sanitize().(*payload.Post)
}

func defaultMicroblog(analysis *payload.Analysis, ev *evidence.Map) *payload.MicroblogSet {
	p := &payload.MicroblogSet{Hashtags: defaultHashtags(ev, 2)}
	p.Posts = append(p.Posts, payload.MicroPost{Text: analysis.Hook})
	for _, kp := range analysis.KeyPoints {
		if len(p.Posts) == 6 {
			break
		}
		p.Posts = append(p.Posts, payload.MicroPost{Text: kp})
	}
	return p.Sanitize().(*payload.MicroblogSet)
}

// ----- helpers -----

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for _, sep := range []string{". ", "! ", "? "} {
		if idx := strings.Index(text, sep); idx > 0 {
			return text[:idx+1]
		}
	}
	return firstWords(text, 18)
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}

func windowText(segments []transcript.Segment, w windows.Window) string {
	var parts []string
	for i := w.SegStart; i <= w.SegEnd && i < len(segments); i++ {
		parts = append(parts, strings.TrimSpace(segments[i].Text))
	}
	return strings.Join(parts, " ")
}

func sectionBody(analysis *payload.Analysis, i int, keyPoint string) string {
	if i < len(analysis.Themes) && analysis.Themes[i].Insight != "" {
		return analysis.Themes[i].Insight
	}
	return keyPoint
}

// defaultHashtags derives hashtags from the transcript's most frequent
// lexical tokens, so the offline payload still carries usable tags.
func defaultHashtags(ev *evidence.Map, n int) []string {
	counts := make(map[string]int)
	for _, line := range ev.Lines {
		for _, tok := range line.Lexical {
			counts[tok]++
		}
	}
	type freq struct {
		token string
		count int
	}
	ranked := make([]freq, 0, len(counts))
	for tok, c := range counts {
		ranked = append(ranked, freq{tok, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].token < ranked[j].token
	})

	tags := make([]string, 0, n)
	for _, f := range ranked {
		if len(tags) == n {
			break
		}
		tags = append(tags, fmt.Sprintf("#%s", f.token))
	}
	if len(tags) == 0 {
		tags = []string{"#podcast"}
	}
	return tags
}
