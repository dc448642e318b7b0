// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompts

import (
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

var generateTemplates = map[task.Task]string{
	task.Analysis: `Audience: {{.Audience}}
Tone: {{.Tone}}
{{if .Strategy}}Strategy: {{.Strategy}}
{{end}}{{if .Focus}}Focus: {{.Focus}}
{{end}}{{if .ChannelNotes}}Channel notes: {{.ChannelNotes}}
{{end}}
Analyze the transcript below and return JSON with this shape:
{"hook": string, "summary": string, "key_points": [string], "themes": [{"title": string, "insight": string, "evidence": [string]}], "quotes": [string]}

Grounding lines:
{{.EvidenceExcerpt}}

Transcript:
{{.TranscriptExcerpt}}`,

	task.Clips: `Audience: {{.Audience}}
Tone: {{.Tone}}
{{if .Strategy}}Strategy: {{.Strategy}}
{{end}}{{if .Focus}}Focus: {{.Focus}}
{{end}}
Propose short-video clips for the pre-selected windows below. Return JSON:
{"clips": [{"title": string, "caption": string, "hook": string, "start_ms": number, "end_ms": number, "segment_start": number, "segment_end": number, "hashtags": [string], "reason": string}]}
Keep start_ms/end_ms inside the given windows.

Windows:
{{.WindowsBlock}}

Narrative analysis:
{{.AnalysisJSON}}

Transcript:
{{.TranscriptExcerpt}}`,

	task.Newsletter: `Audience: {{.Audience}}
Tone: {{.Tone}}
{{if .Strategy}}Strategy: {{.Strategy}}
{{end}}{{if .Focus}}Focus: {{.Focus}}
{{end}}{{if .ChannelNotes}}Channel notes: {{.ChannelNotes}}
{{end}}
Write a newsletter draft from this analysis. Return JSON:
{"subject_lines": [string], "preheader": string, "sections": [{"heading": string, "body": string}], "cta": string}

Narrative analysis:
{{.AnalysisJSON}}

Grounding lines:
{{.EvidenceExcerpt}}`,

	task.Post: `Audience: {{.Audience}}
Tone: {{.Tone}}
{{if .Strategy}}Strategy: {{.Strategy}}
{{end}}{{if .Focus}}Focus: {{.Focus}}
{{end}}{{if .ChannelNotes}}Channel notes: {{.ChannelNotes}}
{{end}}
Write a professional network post from this analysis. Return JSON:
{"hook": string, "body": string, "bullets": [string], "cta": string, "hashtags": [string]}

Narrative analysis:
{{.AnalysisJSON}}

Grounding lines:
{{.EvidenceExcerpt}}`,

	task.Microblog: `Audience: {{.Audience}}
Tone: {{.Tone}}
{{if .Strategy}}Strategy: {{.Strategy}}
{{end}}{{if .Focus}}Focus: {{.Focus}}
{{end}}
Write a thread of short posts from this analysis. Return JSON:
{"posts": [{"order": number, "text": string}], "hashtags": [string]}
Each post must stand alone and stay under 280 characters.

Narrative analysis:
{{.AnalysisJSON}}

Grounding lines:
{{.EvidenceExcerpt}}`,
}

const judgeTemplate = `Score this candidate on five axes from 0 to 10: clarity, depth, originality, applicability, retention_potential.

Anchors: 3 = unusable, 5 = needs a rewrite, 7 = publishable with edits, 9 = publish as-is, 10 = exceptional.

Return JSON:
{"overall": number, "subscores": {"clarity": number, "depth": number, "originality": number, "applicability": number, "retention_potential": number}, "summary": string, "weaknesses": [string]}
List at most 6 weaknesses, most damaging first.

Candidate:
{{.CandidateJSON}}

Narrative analysis it was derived from:
{{.AnalysisJSON}}

Grounding lines:
{{.EvidenceExcerpt}}

Transcript:
{{.TranscriptExcerpt}}`

const refineTemplate = `Rewrite this candidate to fix the weaknesses below. Keep the exact same JSON schema and keep every factual claim grounded in the transcript. Return the full rewritten JSON object and nothing else.

Weaknesses to fix:
{{range .Weaknesses}}- {{.}}
{{end}}
Candidate:
{{.CandidateJSON}}

Grounding lines:
{{.EvidenceExcerpt}}

Transcript:
{{.TranscriptExcerpt}}`
