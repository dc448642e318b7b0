// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guardrail

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianStudio/services/studio/evidence"
	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
	"github.com/AleutianAI/AleutianStudio/services/studio/profile"
	"github.com/AleutianAI/AleutianStudio/services/studio/windows"
)

// Ungrounded numeric token limits per field. Illustrative contexts
// ("for example", "imagine") get wider limits because invented numbers
// there are rhetorical, not factual claims.
const (
	numericSoftLimit = 1
	numericHardLimit = 2

	illustrativeSoftLimit = 2
	illustrativeHardLimit = 4
)

// crossFieldDuplicateThreshold is the lexical overlap above which two
// distinct fields count as duplicated content.
const crossFieldDuplicateThreshold = 0.85

var (
	illustrativePattern = regexp.MustCompile(`(?i)\b(for example|for instance|imagine|say you|suppose|e\.g\.)`)

	directCTAPattern = regexp.MustCompile(`(?i)\b(subscribe|sign up|join|download|book a|register|get the|grab the|start your)\b`)
	softCTAPattern   = regexp.MustCompile(`(?i)\b(learn more|check out|explore|read more|find out|take a look|dig deeper)\b`)

	truncationPattern = regexp.MustCompile(`(\.\.\.|…)\s*$`)
)

// minimum structural counts by length tier.
var (
	minSections  = map[profile.LengthTier]int{profile.LengthShort: 2, profile.LengthStandard: 3, profile.LengthDeep: 4}
	minPosts     = map[profile.LengthTier]int{profile.LengthShort: 3, profile.LengthStandard: 4, profile.LengthDeep: 6}
	minKeyPoints = map[profile.LengthTier]int{profile.LengthShort: 3, profile.LengthStandard: 4, profile.LengthDeep: 6}
)

// Input carries everything the validator needs for one candidate.
type Input struct {
	Payload  payload.Payload
	Evidence *evidence.Map
	Settings profile.TaskSettings
	Voice    profile.VoiceRules

	// Policy and SegmentCount apply only to clip candidates.
	Policy       windows.Policy
	SegmentCount int
}

// field is one text field flattened out of a payload for the generic
// checks.
type field struct {
	path string
	text string

	// prose fields participate in duplicate and CTA detection; labels
	// like hashtags do not.
	prose bool
}

// Validate runs the full per-task rule set against a sanitized candidate.
//
// # Description
//
// Generic checks (truncation artifacts, ungrounded numeric claims,
// forbidden phrases, cross-field duplication) run over every prose
// field. Structural checks (required fields, tier minimums, clip window
// validity, CTA intent) dispatch on the payload type. The result
// partitions issues blocking vs soft by the fixed table in issues.go.
func Validate(in Input) Result {
	result := Result{Attribution: make(map[string][]string)}
	fields := flatten(in.Payload)

	for _, f := range fields {
		checkTruncation(&result, f)
		checkNumbers(&result, in.Evidence, f)
		checkForbidden(&result, in.Voice, f)
	}
	checkDuplicates(&result, fields)

	switch p := in.Payload.(type) {
	case *payload.Analysis:
		validateAnalysis(&result, in, p)
	case *payload.ClipSet:
		validateClips(&result, in, p)
	case *payload.Newsletter:
		validateNewsletter(&result, in, p)
	case *payload.Post:
		validatePost(&result, in, p)
	case *payload.MicroblogSet:
		validateMicroblog(&result, in, p)
	}

	result.OK = len(result.Blocking) == 0
	if len(result.Attribution) == 0 {
		result.Attribution = nil
	}
	return result
}

// ----- generic checks -----

func checkTruncation(r *Result, f field) {
	if f.text == "" {
		return
	}
	if truncationPattern.MatchString(f.text) {
		r.add(Issue{Code: IssueTruncationArtifact, Field: f.path, Detail: "field ends mid-thought"})
	}
}

func checkNumbers(r *Result, ev *evidence.Map, f field) {
	if ev == nil || f.text == "" {
		return
	}
	ungrounded := ev.UngroundedNumbers(f.text)
	soft, hard := numericSoftLimit, numericHardLimit
	if illustrativePattern.MatchString(f.text) {
		soft, hard = illustrativeSoftLimit, illustrativeHardLimit
	}
	switch {
	case len(ungrounded) >= hard:
		r.add(Issue{
			Code:   IssueUngroundedNumericClaim,
			Field:  f.path,
			Detail: fmt.Sprintf("%d numeric tokens not in evidence: %s", len(ungrounded), strings.Join(ungrounded, ", ")),
		})
	case len(ungrounded) >= soft:
		r.add(Issue{
			Code:   IssueUnverifiedNumericClaim,
			Field:  f.path,
			Detail: fmt.Sprintf("unverified numeric tokens: %s", strings.Join(ungrounded, ", ")),
		})
	}
	attributeNumbers(r, ev, f)
}

// attributeNumbers records which evidence lines corroborate the field's
// grounded numeric tokens.
func attributeNumbers(r *Result, ev *evidence.Map, f field) {
	var refs []string
	seen := make(map[string]struct{})
	for _, tok := range evidence.NumericTokens(f.text) {
		if !ev.HasNumber(tok) {
			continue
		}
		for _, line := range ev.Lines {
			if !strings.Contains(line.Text, tok) {
				continue
			}
			ref := fmt.Sprintf("%02d:%02d", line.StartMs/60000, line.StartMs/1000%60)
			if _, dup := seen[ref]; !dup {
				seen[ref] = struct{}{}
				refs = append(refs, ref)
			}
			break
		}
	}
	if len(refs) > 0 {
		r.Attribution[f.path] = refs
	}
}

func checkForbidden(r *Result, voice profile.VoiceRules, f field) {
	if f.text == "" {
		return
	}
	lower := strings.ToLower(f.text)
	for _, phrase := range voice.Forbidden {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			r.add(Issue{Code: IssueForbiddenPhrase, Field: f.path, Detail: fmt.Sprintf("contains %q", phrase)})
		}
	}
}

func checkDuplicates(r *Result, fields []field) {
	for i := 0; i < len(fields); i++ {
		if !fields[i].prose || wordCount(fields[i].text) < 6 {
			continue
		}
		for j := i + 1; j < len(fields); j++ {
			if !fields[j].prose || wordCount(fields[j].text) < 6 {
				continue
			}
			if payload.LexicalOverlap(fields[i].text, fields[j].text) >= crossFieldDuplicateThreshold {
				r.add(Issue{
					Code:   IssueDuplicateContent,
					Field:  fields[j].path,
					Detail: fmt.Sprintf("near-duplicate of %s", fields[i].path),
				})
			}
		}
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// ----- per-task structural checks -----

func validateAnalysis(r *Result, in Input, p *payload.Analysis) {
	requireNonEmpty(r, "hook", p.Hook)
	requireNonEmpty(r, "summary", p.Summary)
	if len(p.KeyPoints) == 0 {
		r.add(Issue{Code: IssueEmptyRequiredField, Field: "key_points", Detail: "no key points"})
		return
	}
	if min := minKeyPoints[tier(in)]; len(p.KeyPoints) < min {
		r.add(Issue{
			Code:   IssueInsufficientKeyPoints,
			Field:  "key_points",
			Detail: fmt.Sprintf("%d key points, tier needs %d", len(p.KeyPoints), min),
		})
	}
}

func validateClips(r *Result, in Input, p *payload.ClipSet) {
	if len(p.Clips) == 0 {
		r.add(Issue{Code: IssueEmptyRequiredField, Field: "clips", Detail: "no clips"})
		return
	}
	for i, clip := range p.Clips {
		path := fmt.Sprintf("clips[%d]", i)
		if clip.Title == "" {
			r.add(Issue{Code: IssueEmptyRequiredField, Field: path + ".title", Detail: "missing title"})
		}
		if clip.StartMs < 0 || clip.EndMs <= clip.StartMs {
			r.add(Issue{
				Code:   IssueInvalidClipWindow,
				Field:  path,
				Detail: fmt.Sprintf("window %d-%dms is not ordered", clip.StartMs, clip.EndMs),
			})
			continue
		}
		if clip.SegStart > clip.SegEnd || clip.SegStart < 0 ||
			(in.SegmentCount > 0 && clip.SegEnd >= in.SegmentCount) {
			r.add(Issue{
				Code:   IssueInvalidClipWindow,
				Field:  path,
				Detail: fmt.Sprintf("segment range %d-%d out of bounds", clip.SegStart, clip.SegEnd),
			})
			continue
		}
		if dur := clip.EndMs - clip.StartMs; !in.Policy.Fits(dur) {
			r.add(Issue{
				Code:   IssueClipDurationOutOfBounds,
				Field:  path,
				Detail: fmt.Sprintf("duration %dms outside %d-%dms", dur, in.Policy.MinMs, in.Policy.MaxMs),
			})
		}
	}
	checkCTA(r, in, "clips", clipProse(p))
}

func validateNewsletter(r *Result, in Input, p *payload.Newsletter) {
	if len(p.SubjectLines) == 0 {
		r.add(Issue{Code: IssueEmptyRequiredField, Field: "subject_lines", Detail: "no subject lines"})
	}
	if len(p.Sections) == 0 {
		r.add(Issue{Code: IssueEmptyRequiredField, Field: "sections", Detail: "no sections"})
		return
	}
	if min := minSections[tier(in)]; len(p.Sections) < min {
		r.add(Issue{
			Code:   IssueInsufficientSections,
			Field:  "sections",
			Detail: fmt.Sprintf("%d sections, tier needs %d", len(p.Sections), min),
		})
	}
	var prose []string
	prose = append(prose, p.CTA)
	for _, sec := range p.Sections {
		prose = append(prose, sec.Body)
	}
	checkCTA(r, in, "cta", prose)
}

func validatePost(r *Result, in Input, p *payload.Post) {
	requireNonEmpty(r, "hook", p.Hook)
	requireNonEmpty(r, "body", p.Body)
	checkCTA(r, in, "cta", []string{p.CTA, p.Body})
}

func validateMicroblog(r *Result, in Input, p *payload.MicroblogSet) {
	if len(p.Posts) == 0 {
		r.add(Issue{Code: IssueEmptyRequiredField, Field: "posts", Detail: "no posts"})
		return
	}
	if min := minPosts[tier(in)]; len(p.Posts) < min {
		r.add(Issue{
			Code:   IssueInsufficientPosts,
			Field:  "posts",
			Detail: fmt.Sprintf("%d posts, tier needs %d", len(p.Posts), min),
		})
	}
	var prose []string
	for _, post := range p.Posts {
		prose = append(prose, post.Text)
	}
	checkCTA(r, in, "posts", prose)
}

func requireNonEmpty(r *Result, path, text string) {
	if strings.TrimSpace(text) == "" {
		r.add(Issue{Code: IssueEmptyRequiredField, Field: path, Detail: "empty"})
	}
}

func tier(in Input) profile.LengthTier {
	if in.Settings.Length == "" {
		return profile.LengthStandard
	}
	return in.Settings.Length
}

// checkCTA matches call-to-action intent against the requested mode. A
// direct mode is satisfied only by the direct patterns; soft mode
// accepts either. The resulting issue is always soft.
func checkCTA(r *Result, in Input, path string, texts []string) {
	mode := in.Settings.CTA
	if mode == "" || mode == profile.CTANone {
		return
	}
	joined := strings.Join(texts, "\n")
	switch mode {
	case profile.CTADirect:
		if directCTAPattern.MatchString(joined) {
			return
		}
	case profile.CTASoft:
		if directCTAPattern.MatchString(joined) || softCTAPattern.MatchString(joined) {
			return
		}
	}
	r.add(Issue{Code: IssueMissingCTAIntent, Field: path, Detail: fmt.Sprintf("no %s call-to-action found", mode)})
}

// ----- payload flattening -----

func flatten(p payload.Payload) []field {
	switch v := p.(type) {
	case *payload.Analysis:
		out := []field{
			{path: "hook", text: v.Hook, prose: true},
			{path: "summary", text: v.Summary, prose: true},
		}
		for i, kp := range v.KeyPoints {
			out = append(out, field{path: fmt.Sprintf("key_points[%d]", i), text: kp, prose: true})
		}
		for i, th := range v.Themes {
			out = append(out, field{path: fmt.Sprintf("themes[%d].insight", i), text: th.Insight, prose: true})
		}
		for i, q := range v.Quotes {
			out = append(out, field{path: fmt.Sprintf("quotes[%d]", i), text: q})
		}
		return out
	case *payload.ClipSet:
		var out []field
		for i, clip := range v.Clips {
			prefix := fmt.Sprintf("clips[%d]", i)
			out = append(out,
				field{path: prefix + ".title", text: clip.Title, prose: true},
				field{path: prefix + ".caption", text: clip.Caption, prose: true},
				field{path: prefix + ".hook", text: clip.Hook, prose: true},
			)
		}
		return out
	case *payload.Newsletter:
		var out []field
		for i, s := range v.SubjectLines {
			out = append(out, field{path: fmt.Sprintf("subject_lines[%d]", i), text: s, prose: true})
		}
		out = append(out, field{path: "preheader", text: v.Preheader, prose: true})
		for i, sec := range v.Sections {
			out = append(out, field{path: fmt.Sprintf("sections[%d].body", i), text: sec.Body, prose: true})
		}
		out = append(out, field{path: "cta", text: v.CTA})
		return out
	case *payload.Post:
		out := []field{
			{path: "hook", text: v.Hook, prose: true},
			{path: "body", text: v.Body, prose: true},
			{path: "cta", text: v.CTA},
		}
		for i, b := range v.Bullets {
			out = append(out, field{path: fmt.Sprintf("bullets[%d]", i), text: b, prose: true})
		}
		return out
	case *payload.MicroblogSet:
		var out []field
		for i, post := range v.Posts {
			out = append(out, field{path: fmt.Sprintf("posts[%d]", i), text: post.Text, prose: true})
		}
		return out
	default:
		return nil
	}
}

func clipProse(p *payload.ClipSet) []string {
	var out []string
	for _, clip := range p.Clips {
		out = append(out, clip.Caption)
	}
	return out
}
