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

	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// reconstruct is the best-effort recovery path for responses that missed
// the strict schema. Each task scans alternate key names and nested
// shapes; the returned signal counts how many expected fields were
// actually found. Strategies are pure functions over the decoded object.
func reconstruct(t task.Task, obj map[string]any) (Payload, int) {
	switch t {
	case task.Analysis:
		return reconstructAnalysis(obj)
	case task.Clips:
		return reconstructClips(obj)
	case task.Newsletter:
		return reconstructNewsletter(obj)
	case task.Post:
		return reconstructPost(obj)
	case task.Microblog:
		return reconstructMicroblog(obj)
	default:
		return nil, 0
	}
}

// pickString returns the first non-empty string under any of the keys,
// case-insensitive.
func pickString(obj map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := lookup(obj, key); ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s, true
			}
		}
	}
	return "", false
}

// pickStrings returns the first non-empty string list under any key.
// Lists of objects contribute their "text"/"title"-like members.
func pickStrings(obj map[string]any, keys ...string) ([]string, bool) {
	for _, key := range keys {
		v, ok := lookup(obj, key)
		if !ok {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			continue
		}
		var out []string
		for _, item := range items {
			switch x := item.(type) {
			case string:
				if strings.TrimSpace(x) != "" {
					out = append(out, x)
				}
			case map[string]any:
				if s, ok := pickString(x, "text", "title", "point", "content", "value"); ok {
					out = append(out, s)
				}
			}
		}
		if len(out) > 0 {
			return out, true
		}
	}
	return nil, false
}

func pickObjects(obj map[string]any, keys ...string) ([]map[string]any, bool) {
	for _, key := range keys {
		v, ok := lookup(obj, key)
		if !ok {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			continue
		}
		var out []map[string]any
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		if len(out) > 0 {
			return out, true
		}
	}
	return nil, false
}

func pickNumber(obj map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := lookup(obj, key); ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func lookup(obj map[string]any, key string) (any, bool) {
	if v, ok := obj[key]; ok {
		return v, true
	}
	lower := strings.ToLower(key)
	for k, v := range obj {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

func reconstructAnalysis(obj map[string]any) (Payload, int) {
	var p Analysis
	signal := 0
	if s, ok := pickString(obj, "hook", "opening", "headline", "title"); ok {
		p.Hook = s
		signal++
	}
	if s, ok := pickString(obj, "summary", "narrative", "overview", "synopsis", "body"); ok {
		p.Summary = s
		signal++
	}
	if list, ok := pickStrings(obj, "key_points", "keyPoints", "points", "takeaways", "insights"); ok {
		p.KeyPoints = list
		signal++
	}
	if list, ok := pickStrings(obj, "quotes", "pull_quotes", "highlights"); ok {
		p.Quotes = list
		signal++
	}
	if objs, ok := pickObjects(obj, "themes", "threads", "topics"); ok {
		for _, th := range objs {
			theme := Theme{}
			if s, ok := pickString(th, "title", "name", "theme"); ok {
				theme.Title = s
			}
			if s, ok := pickString(th, "insight", "summary", "description"); ok {
				theme.Insight = s
			}
			if list, ok := pickStrings(th, "evidence", "support", "quotes"); ok {
				theme.Evidence = list
			}
			if theme.Title != "" || theme.Insight != "" {
				p.Themes = append(p.Themes, theme)
			}
		}
		if len(p.Themes) > 0 {
			signal++
		}
	}
	if signal == 0 {
		return nil, 0
	}
	return &p, signal
}

func reconstructClips(obj map[string]any) (Payload, int) {
	objs, ok := pickObjects(obj, "clips", "segments", "cuts", "shorts", "videos")
	if !ok {
		return nil, 0
	}
	p := &ClipSet{}
	signal := 1 // the clip list itself
	sawCaption, sawWindow, sawTags := false, false, false
	for _, c := range objs {
		clip := Clip{}
		if s, ok := pickString(c, "title", "name", "headline"); ok {
			clip.Title = s
		}
		if s, ok := pickString(c, "caption", "description", "text"); ok {
			clip.Caption = s
			sawCaption = true
		}
		if s, ok := pickString(c, "hook", "opening"); ok {
			clip.Hook = s
		}
		if f, ok := pickNumber(c, "start_ms", "startMs", "start"); ok {
			clip.StartMs = int64(f)
			sawWindow = true
		}
		if f, ok := pickNumber(c, "end_ms", "endMs", "end"); ok {
			clip.EndMs = int64(f)
		}
		if f, ok := pickNumber(c, "segment_start", "segmentStart", "start_index", "startIndex"); ok {
			clip.SegStart = int(f)
			sawWindow = true
		}
		if f, ok := pickNumber(c, "segment_end", "segmentEnd", "end_index", "endIndex"); ok {
			clip.SegEnd = int(f)
		}
		if list, ok := pickStrings(c, "hashtags", "tags"); ok {
			clip.Hashtags = list
			sawTags = true
		}
		if s, ok := pickString(c, "reason", "why", "rationale"); ok {
			clip.Reason = s
		}
		if clip.Title != "" || clip.Caption != "" {
			p.Clips = append(p.Clips, clip)
		}
	}
	if len(p.Clips) == 0 {
		return nil, 0
	}
	if sawCaption {
		signal++
	}
	if sawWindow {
		signal++
	}
	if sawTags {
		signal++
	}
	return p, signal
}

func reconstructNewsletter(obj map[string]any) (Payload, int) {
	var p Newsletter
	signal := 0
	if list, ok := pickStrings(obj, "subject_lines", "subjectLines", "subjects", "subject"); ok {
		p.SubjectLines = list
		signal++
	} else if s, ok := pickString(obj, "subject", "subject_line"); ok {
		p.SubjectLines = []string{s}
		signal++
	}
	if s, ok := pickString(obj, "preheader", "preview", "preview_text"); ok {
		p.Preheader = s
		signal++
	}
	if objs, ok := pickObjects(obj, "sections", "blocks", "segments", "parts"); ok {
		for _, sec := range objs {
			section := Section{}
			if s, ok := pickString(sec, "heading", "title", "header"); ok {
				section.Heading = s
			}
			if s, ok := pickString(sec, "body", "content", "text"); ok {
				section.Body = s
			}
			if section.Body != "" {
				p.Sections = append(p.Sections, section)
			}
		}
		if len(p.Sections) > 0 {
			signal++
		}
	} else if s, ok := pickString(obj, "body", "content"); ok {
		p.Sections = []Section{{Body: s}}
		signal++
	}
	if s, ok := pickString(obj, "cta", "call_to_action", "callToAction"); ok {
		p.CTA = s
		signal++
	}
	if signal == 0 {
		return nil, 0
	}
	return &p, signal
}

func reconstructPost(obj map[string]any) (Payload, int) {
	var p Post
	signal := 0
	if s, ok := pickString(obj, "hook", "opening", "headline", "title"); ok {
		p.Hook = s
		signal++
	}
	if s, ok := pickString(obj, "body", "content", "text", "post"); ok {
		p.Body = s
		signal++
	}
	if list, ok := pickStrings(obj, "bullets", "points", "takeaways", "list"); ok {
		p.Bullets = list
		signal++
	}
	if s, ok := pickString(obj, "cta", "call_to_action", "callToAction"); ok {
		p.CTA = s
		signal++
	}
	if list, ok := pickStrings(obj, "hashtags", "tags"); ok {
		p.Hashtags = list
		signal++
	}
	if signal == 0 {
		return nil, 0
	}
	return &p, signal
}

func reconstructMicroblog(obj map[string]any) (Payload, int) {
	var p MicroblogSet
	signal := 0
	if objs, ok := pickObjects(obj, "posts", "tweets", "thread", "entries"); ok {
		for i, post := range objs {
			if s, ok := pickString(post, "text", "content", "body"); ok {
				p.Posts = append(p.Posts, MicroPost{Order: i + 1, Text: s})
			}
		}
	} else if list, ok := pickStrings(obj, "posts", "tweets", "thread", "entries"); ok {
		for i, s := range list {
			p.Posts = append(p.Posts, MicroPost{Order: i + 1, Text: s})
		}
	}
	if len(p.Posts) > 0 {
		signal += 2 // list plus texts: the payload's substance
	}
	if list, ok := pickStrings(obj, "hashtags", "tags"); ok {
		p.Hashtags = list
		signal++
	}
	if len(p.Posts) == 0 {
		return nil, 0
	}
	return &p, signal
}
