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
	"strings"
)

// Field length caps, in runes. Kept conservative: every cap cut lands on
// a word boundary so no truncation artifact is introduced.
const (
	capTitle     = 120
	capHook      = 200
	capCaption   = 400
	capSummary   = 1200
	capKeyPoint  = 240
	capQuote     = 280
	capSubject   = 90
	capPreheader = 140
	capHeading   = 110
	capSection   = 1500
	capPostBody  = 2800
	capBullet    = 200
	capCTA       = 160
	capMicroPost = 280
	capHashtag   = 40
)

// Near-duplicate thresholds per list kind (lexical overlap coefficient).
const (
	dedupeSubjects   = 0.92
	dedupeCaptions   = 0.90
	dedupeKeyPoints  = 0.88
	dedupeBullets    = 0.88
	dedupeMicroPosts = 0.86
)

// CleanText trims whitespace, strips ellipsis and em-dash artifacts, and
// caps length at a word boundary. Idempotent.
func CleanText(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "…", "") // …
	s = strings.ReplaceAll(s, "—", "-")
	s = strings.ReplaceAll(s, "–", "-")
	for strings.HasSuffix(s, "...") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "..."))
	}
	s = strings.TrimSpace(s)

	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	cut := string(runes[:maxRunes])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(strings.TrimSpace(cut), ",;:-")
}

// LexicalOverlap returns the overlap coefficient of the two texts' word
// sets: |A ∩ B| / min(|A|, |B|). Case-insensitive.
func LexicalOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	smaller, larger := setA, setB
	if len(setB) < len(setA) {
		smaller, larger = setB, setA
	}
	shared := 0
	for w := range smaller {
		if _, ok := larger[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if len(w) >= 3 {
			out[w] = struct{}{}
		}
	}
	return out
}

// dedupeNear keeps the first of any near-duplicate pair, dropping later
// entries whose overlap with a kept entry meets the threshold. Empty
// entries are dropped. Idempotent: kept entries never change.
func dedupeNear(list []string, threshold float64) []string {
	var kept []string
	for _, candidate := range list {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		dup := false
		for _, existing := range kept {
			if LexicalOverlap(candidate, existing) >= threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func cleanList(list []string, maxRunes int, threshold float64) []string {
	cleaned := make([]string, 0, len(list))
	for _, s := range list {
		if c := CleanText(s, maxRunes); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return dedupeNear(cleaned, threshold)
}

// cleanHashtags normalizes hashtags: "#" prefix enforced, inner spaces
// removed, deduped case-insensitively.
func cleanHashtags(tags []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tag := range tags {
		tag = CleanText(tag, capHashtag)
		tag = strings.ReplaceAll(tag, " ", "")
		tag = strings.TrimLeft(tag, "#")
		if tag == "" {
			continue
		}
		tag = "#" + tag
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Sanitize implements Payload.
func (a *Analysis) Sanitize() Payload {
	out := &Analysis{
		Hook:      CleanText(a.Hook, capHook),
		Summary:   CleanText(a.Summary, capSummary),
		KeyPoints: cleanList(a.KeyPoints, capKeyPoint, dedupeKeyPoints),
		Quotes:    cleanList(a.Quotes, capQuote, dedupeKeyPoints),
	}
	for _, th := range a.Themes {
		clean := Theme{
			Title:    CleanText(th.Title, capTitle),
			Insight:  CleanText(th.Insight, capSection),
			Evidence: cleanList(th.Evidence, capQuote, dedupeKeyPoints),
		}
		if clean.Title != "" || clean.Insight != "" {
			out.Themes = append(out.Themes, clean)
		}
	}
	return out
}

// Sanitize implements Payload.
func (c *ClipSet) Sanitize() Payload {
	out := &ClipSet{}
	var captions []string
	for _, clip := range c.Clips {
		clean := Clip{
			Title:    CleanText(clip.Title, capTitle),
			Caption:  CleanText(clip.Caption, capCaption),
			Hook:     CleanText(clip.Hook, capHook),
			StartMs:  clip.StartMs,
			EndMs:    clip.EndMs,
			SegStart: clip.SegStart,
			SegEnd:   clip.SegEnd,
			Hashtags: cleanHashtags(clip.Hashtags),
			Reason:   CleanText(clip.Reason, capCaption),
		}
		if clean.Title == "" && clean.Caption == "" {
			continue
		}
		// Near-duplicate captions across clips collapse to the first.
		dup := false
		for _, seen := range captions {
			if LexicalOverlap(clean.Caption, seen) >= dedupeCaptions {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		if clean.Caption != "" {
			captions = append(captions, clean.Caption)
		}
		out.Clips = append(out.Clips, clean)
	}
	return out
}

// Sanitize implements Payload.
func (n *Newsletter) Sanitize() Payload {
	out := &Newsletter{
		SubjectLines: cleanList(n.SubjectLines, capSubject, dedupeSubjects),
		Preheader:    CleanText(n.Preheader, capPreheader),
		CTA:          CleanText(n.CTA, capCTA),
	}
	var bodies []string
	for _, sec := range n.Sections {
		clean := Section{
			Heading: CleanText(sec.Heading, capHeading),
			Body:    CleanText(sec.Body, capSection),
		}
		if clean.Body == "" {
			continue
		}
		dup := false
		for _, seen := range bodies {
			if LexicalOverlap(clean.Body, seen) >= dedupeCaptions {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		bodies = append(bodies, clean.Body)
		out.Sections = append(out.Sections, clean)
	}
	return out
}

// Sanitize implements Payload.
func (p *Post) Sanitize() Payload {
	return &Post{
		Hook:     CleanText(p.Hook, capHook),
		Body:     CleanText(p.Body, capPostBody),
		Bullets:  cleanList(p.Bullets, capBullet, dedupeBullets),
		CTA:      CleanText(p.CTA, capCTA),
		Hashtags: cleanHashtags(p.Hashtags),
	}
}

// Sanitize implements Payload.
func (m *MicroblogSet) Sanitize() Payload {
	out := &MicroblogSet{Hashtags: cleanHashtags(m.Hashtags)}
	var texts []string
	for _, post := range m.Posts {
		text := CleanText(post.Text, capMicroPost)
		if text == "" {
			continue
		}
		dup := false
		for _, seen := range texts {
			if LexicalOverlap(text, seen) >= dedupeMicroPosts {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		texts = append(texts, text)
		out.Posts = append(out.Posts, MicroPost{Order: len(out.Posts) + 1, Text: text})
	}
	return out
}
