// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
)

// Heuristic computes the deterministic 5-axis evaluation from payload
// shape and text statistics alone. No model call, same input always
// yields the same score.
func Heuristic(p payload.Payload) Evaluation {
	switch v := p.(type) {
	case *payload.Analysis:
		return finalize(scoreAnalysis(v), SourceHeuristic)
	case *payload.ClipSet:
		return finalize(scoreClips(v), SourceHeuristic)
	case *payload.Newsletter:
		return finalize(scoreNewsletter(v), SourceHeuristic)
	case *payload.Post:
		return finalize(scorePost(v), SourceHeuristic)
	case *payload.MicroblogSet:
		return finalize(scoreMicroblog(v), SourceHeuristic)
	default:
		return finalize(Subscores{}, SourceHeuristic)
	}
}

var (
	curiosityPattern = regexp.MustCompile(`(?i)\b(why|how|what|secret|mistake|lesson|truth|nobody|surprising)\b|\?`)
	concretePattern  = regexp.MustCompile(`\d|%|\$`)
	actionPattern    = regexp.MustCompile(`(?i)\b(try|start|stop|build|measure|ask|write|ship|cut|test|track)\b`)
	clichePattern    = regexp.MustCompile(`(?i)\b(game.chang|revolutionar|unlock your|next level|crushing it|10x your)\b`)
)

// bandScore awards full credit inside [lo, hi] and decays linearly to
// zero at distance band outside it.
func bandScore(n, lo, hi, band int) float64 {
	if n >= lo && n <= hi {
		return 1
	}
	var dist int
	if n < lo {
		dist = lo - n
	} else {
		dist = n - hi
	}
	if dist >= band {
		return 0
	}
	return 1 - float64(dist)/float64(band)
}

func presence(texts ...string) float64 {
	found := 0
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			found++
		}
	}
	if len(texts) == 0 {
		return 0
	}
	return float64(found) / float64(len(texts))
}

func patternScore(re *regexp.Regexp, texts ...string) float64 {
	found := 0
	for _, t := range texts {
		if re.MatchString(t) {
			found++
		}
	}
	if len(texts) == 0 {
		return 0
	}
	return float64(found) / float64(len(texts))
}

// repetitionPenalty grows with near-duplicate pairs in a list.
func repetitionPenalty(list []string) float64 {
	var penalty float64
	for i := 0; i < len(list); i++ {
		for j := i + 1; j < len(list); j++ {
			if payload.LexicalOverlap(list[i], list[j]) >= 0.7 {
				penalty += 0.6
			}
		}
	}
	if penalty > 2.5 {
		penalty = 2.5
	}
	return penalty
}

func clichePenalty(texts ...string) float64 {
	var penalty float64
	for _, t := range texts {
		if clichePattern.MatchString(t) {
			penalty += 0.8
		}
	}
	if penalty > 2 {
		penalty = 2
	}
	return penalty
}

func scoreAnalysis(p *payload.Analysis) Subscores {
	summaryWords := len(strings.Fields(p.Summary))
	allText := []string{p.Hook, p.Summary}
	allText = append(allText, p.KeyPoints...)

	return Subscores{
		Clarity: 4.5 +
			2.5*presence(p.Hook, p.Summary) +
			1.5*bandScore(len([]rune(p.Hook)), 25, 140, 80) +
			1.5*bandScore(summaryWords, 60, 220, 120),
		Depth: 3.5 +
			2.0*bandScore(len(p.KeyPoints), 4, 8, 4) +
			2.0*bandScore(len(p.Themes), 2, 5, 3) +
			1.0*bandScore(len(p.Quotes), 1, 6, 3) +
			1.5*bandScore(summaryWords, 120, 300, 150),
		Originality: 5.0 +
			2.0*patternScore(curiosityPattern, p.Hook) +
			1.5*(1-patternScore(clichePattern, allText...)) +
			1.5*bandScore(len(p.Themes), 2, 5, 3) -
			repetitionPenalty(p.KeyPoints),
		Applicability: 4.0 +
			3.0*patternScore(actionPattern, p.KeyPoints...) +
			2.0*patternScore(concretePattern, allText...) +
			1.0*bandScore(len(p.KeyPoints), 3, 8, 4),
		RetentionPotential: 4.0 +
			2.5*patternScore(curiosityPattern, p.Hook, p.Summary) +
			2.0*bandScore(len([]rune(p.Hook)), 25, 140, 80) +
			1.5*patternScore(concretePattern, p.Hook, p.Summary),
	}
}

func scoreClips(p *payload.ClipSet) Subscores {
	var titles, captions []string
	tagged := 0
	for _, clip := range p.Clips {
		titles = append(titles, clip.Title)
		captions = append(captions, clip.Caption)
		if len(clip.Hashtags) > 0 {
			tagged++
		}
	}
	tagRatio := 0.0
	if len(p.Clips) > 0 {
		tagRatio = float64(tagged) / float64(len(p.Clips))
	}

	return Subscores{
		Clarity: 4.0 +
			3.0*presence(titles...) +
			3.0*presence(captions...),
		Depth: 4.0 +
			2.5*bandScore(len(p.Clips), 2, 5, 3) +
			2.0*presence(captions...) +
			1.5*tagRatio,
		Originality: 5.0 +
			2.5*patternScore(curiosityPattern, titles...) +
			1.5*(1-patternScore(clichePattern, captions...)) -
			repetitionPenalty(captions),
		Applicability: 4.5 +
			2.5*tagRatio +
			2.0*presence(captions...) +
			1.0*patternScore(concretePattern, captions...),
		RetentionPotential: 4.0 +
			3.0*patternScore(curiosityPattern, titles...) +
			2.0*bandScore(len(p.Clips), 2, 5, 3) +
			1.0*patternScore(concretePattern, titles...),
	}
}

func scoreNewsletter(p *payload.Newsletter) Subscores {
	var bodies, headings []string
	totalWords := 0
	for _, sec := range p.Sections {
		bodies = append(bodies, sec.Body)
		headings = append(headings, sec.Heading)
		totalWords += len(strings.Fields(sec.Body))
	}

	return Subscores{
		Clarity: 4.0 +
			2.0*presence(p.SubjectLines...) +
			2.0*presence(headings...) +
			2.0*bandScore(totalWords, 150, 600, 300),
		Depth: 3.5 +
			2.5*bandScore(len(p.Sections), 3, 6, 3) +
			2.5*bandScore(totalWords, 250, 800, 400) +
			1.5*presence(p.Preheader),
		Originality: 5.0 +
			2.0*patternScore(curiosityPattern, p.SubjectLines...) +
			1.5*(1-patternScore(clichePattern, bodies...)) -
			repetitionPenalty(bodies),
		Applicability: 4.0 +
			2.5*patternScore(actionPattern, bodies...) +
			2.0*presence(p.CTA) +
			1.5*patternScore(concretePattern, bodies...),
		RetentionPotential: 4.0 +
			2.5*patternScore(curiosityPattern, p.SubjectLines...) +
			2.0*bandScore(len(p.SubjectLines), 2, 5, 3) +
			1.5*presence(p.Preheader),
	}
}

func scorePost(p *payload.Post) Subscores {
	bodyWords := len(strings.Fields(p.Body))

	return Subscores{
		Clarity: 4.5 +
			2.5*presence(p.Hook, p.Body) +
			1.5*bandScore(len([]rune(p.Hook)), 25, 160, 90) +
			1.5*bandScore(bodyWords, 80, 400, 200),
		Depth: 3.5 +
			2.5*bandScore(bodyWords, 150, 450, 250) +
			2.0*bandScore(len(p.Bullets), 3, 7, 3) +
			2.0*patternScore(concretePattern, p.Body),
		Originality: 5.0 +
			2.0*patternScore(curiosityPattern, p.Hook) +
			1.5*(1-patternScore(clichePattern, p.Hook, p.Body)) -
			repetitionPenalty(append([]string{p.Hook}, p.Bullets...)) -
			clichePenalty(p.Hook),
		Applicability: 4.0 +
			2.5*patternScore(actionPattern, p.Bullets...) +
			2.0*patternScore(concretePattern, p.Body) +
			1.5*presence(p.CTA),
		RetentionPotential: 4.0 +
			3.0*patternScore(curiosityPattern, p.Hook) +
			1.5*bandScore(len([]rune(p.Hook)), 25, 160, 90) +
			1.5*bandScore(len(p.Bullets), 2, 7, 4),
	}
}

func scoreMicroblog(p *payload.MicroblogSet) Subscores {
	var texts []string
	for _, post := range p.Posts {
		texts = append(texts, post.Text)
	}
	opener := ""
	if len(texts) > 0 {
		opener = texts[0]
	}

	return Subscores{
		Clarity: 4.5 +
			3.0*presence(texts...) +
			2.5*bandScore(len(p.Posts), 3, 10, 5),
		Depth: 3.5 +
			3.0*bandScore(len(p.Posts), 4, 12, 6) +
			2.0*patternScore(concretePattern, texts...) +
			1.5*presence(p.Hashtags...),
		Originality: 5.0 +
			2.5*patternScore(curiosityPattern, opener) +
			1.5*(1-patternScore(clichePattern, texts...)) -
			repetitionPenalty(texts),
		Applicability: 4.5 +
			2.5*patternScore(actionPattern, texts...) +
			2.0*patternScore(concretePattern, texts...),
		RetentionPotential: 4.0 +
			3.0*patternScore(curiosityPattern, opener) +
			2.0*bandScore(len(p.Posts), 3, 10, 5) +
			1.0*presence(p.Hashtags...),
	}
}
