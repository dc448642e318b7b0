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
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/studio/diagnostics"
	"github.com/AleutianAI/AleutianStudio/services/studio/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
	"github.com/AleutianAI/AleutianStudio/services/studio/transcript"
)

// ----- fixtures -----

func testSegments() []transcript.Segment {
	texts := []string{
		"Welcome back to the show, today we are digging into how small teams ship faster without burning out.",
		"The first thing we changed was onboarding, we rebuilt the whole flow around a single guided checklist.",
		"After that rebuild our activation rate improved by 40% and support tickets about setup basically disappeared.",
		"The counterintuitive part is that we shipped less, we cut the roadmap in half and finished what remained.",
		"Most founders confuse motion with progress, a packed sprint board feels productive but hides the real bottleneck.",
		"We started measuring cycle time per feature instead of story points and the conversation changed overnight.",
		"If you only take one thing from this episode, make the invisible queue visible and the team will fix it themselves.",
		"Next week we talk about pricing experiments and why the first price you pick is almost always too low.",
	}
	segments := make([]transcript.Segment, len(texts))
	var cursor int64
	for i, text := range texts {
		segments[i] = transcript.Segment{
			Index:   i,
			StartMs: cursor,
			EndMs:   cursor + 18_000,
			Text:    text,
		}
		cursor += 18_000
	}
	return segments
}

// captureSink records task records for assertions.
type captureSink struct {
	mu      sync.Mutex
	records []*diagnostics.TaskRecord
}

func (s *captureSink) Record(record *diagnostics.TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

// offlineRoutes returns a table where every route resolves to the
// heuristic provider except the pinned (task, kind) pair.
func offlineRoutes(mock *llm.MockClient, t task.Task, kind task.RouteKind) *llm.RoutingTable {
	routes := llm.NewRoutingTable()
	routes.RegisterClient(mock)
	routes.SetDefault(llm.Route{Provider: llm.ProviderHeuristic})
	routes.SetRoute(t, kind, llm.Route{Provider: mock.Name(), Model: "test-model"})
	return routes
}

// ----- offline run -----

func TestRunOfflineProducesEveryArtifact(t *testing.T) {
	sink := &captureSink{}
	engine := New(Config{Sink: sink})

	arts, err := engine.Run(context.Background(), testSegments())
	require.NoError(t, err)
	require.NotNil(t, arts)

	assert.NotEmpty(t, arts.RunID)
	require.NotNil(t, arts.Analysis)
	require.NotNil(t, arts.Clips)
	require.NotNil(t, arts.Newsletter)
	require.NotNil(t, arts.Post)
	require.NotNil(t, arts.Microblog)
	assert.Len(t, arts.Scores, 5)

	assert.NotEmpty(t, arts.Analysis.Hook)
	assert.NotEmpty(t, arts.Analysis.Summary)
	assert.NotEmpty(t, arts.Analysis.KeyPoints)

	require.NotEmpty(t, arts.Clips.Clips)
	for _, clip := range arts.Clips.Clips {
		assert.NotEmpty(t, clip.Title)
		assert.NotEmpty(t, clip.Caption)
		assert.NotEmpty(t, clip.Hashtags)
		assert.Less(t, clip.StartMs, clip.EndMs)
		assert.NotContains(t, clip.Caption, "…")
		assert.False(t, strings.HasSuffix(clip.Caption, "..."))
	}

	for tk, score := range arts.Scores {
		assert.True(t, score.Fallback, "task %s should have used the offline default", tk)
		assert.GreaterOrEqual(t, score.Composite, 0.0)
		assert.LessOrEqual(t, score.Composite, 10.0)
		assert.GreaterOrEqual(t, score.Display, 0.0)
		assert.LessOrEqual(t, score.Display, 10.0)
	}
}

func TestRunOfflineThreeSegmentTranscript(t *testing.T) {
	texts := []string{
		"The best advice I ever got was to stop optimizing the parts nobody waits on.",
		"We mapped where work actually queued up and the answer surprised the whole team.",
		"Once the queue was visible people fixed it themselves without any mandate from me.",
	}
	segments := make([]transcript.Segment, len(texts))
	var cursor int64
	for i, text := range texts {
		segments[i] = transcript.Segment{Index: i, StartMs: cursor, EndMs: cursor + 18_000, Text: text}
		cursor += 18_000
	}

	engine := New(Config{})
	arts, err := engine.Run(context.Background(), segments)
	require.NoError(t, err)

	require.NotNil(t, arts.Clips)
	require.NotEmpty(t, arts.Clips.Clips)
	for _, clip := range arts.Clips.Clips {
		assert.NotEmpty(t, clip.Hashtags)
		assert.NotContains(t, clip.Caption, "...")
		assert.NotContains(t, clip.Title, "...")
	}
}

func TestRunEmitsDiagnosticsPerTask(t *testing.T) {
	sink := &captureSink{}
	engine := New(Config{Sink: sink})

	arts, err := engine.Run(context.Background(), testSegments())
	require.NoError(t, err)

	require.Len(t, sink.records, 5)
	seen := make(map[task.Task]bool)
	for _, record := range sink.records {
		assert.Equal(t, arts.RunID, record.RunID)
		assert.NotEmpty(t, record.ID)
		assert.True(t, record.FallbackUsed)
		assert.NotEmpty(t, record.FallbackReason)
		seen[record.Task] = true
	}
	assert.Len(t, seen, 5)
}

func TestRunRejectsInvalidTranscript(t *testing.T) {
	engine := New(Config{})

	_, err := engine.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, transcript.ErrEmptyTranscript)
}

// ----- model-backed generation -----

const strongAnalysisJSON = `{
	"hook": "The fastest teams got there by deleting half the plan.",
	"summary": "A small product team rebuilt onboarding around one guided checklist, halved their roadmap, and switched from story points to cycle time. The throughline is subtraction: finishing fewer things beat starting many, and making the hidden queue visible let the team fix its own bottleneck.",
	"key_points": [
		"Rebuilding onboarding as a single guided checklist removed the setup confusion that drove support load",
		"Cutting the roadmap in half and finishing the remainder shipped more value than a packed board",
		"A crowded sprint board creates the feeling of progress while hiding the actual bottleneck",
		"Measuring cycle time per feature changed planning conversations more than any process rule",
		"Making the invisible work queue visible prompted the team to fix it without management pressure",
		"Founders systematically underprice at launch, so the first price should be treated as a floor"
	]
}`

func TestRunAcceptsModelAnalysis(t *testing.T) {
	mock := llm.NewMockClient("mock")
	mock.QueueOutput(strongAnalysisJSON)
	routes := offlineRoutes(mock, task.Analysis, task.RouteGenerate)

	engine := New(Config{Routes: routes})
	arts, err := engine.Run(context.Background(), testSegments())
	require.NoError(t, err)

	require.NotNil(t, arts.Analysis)
	assert.Equal(t, "The fastest teams got there by deleting half the plan.", arts.Analysis.Hook)
	assert.Len(t, arts.Analysis.KeyPoints, 6)
	assert.False(t, arts.Scores[task.Analysis].Fallback)

	// Downstream tasks stay offline but consume the accepted analysis.
	assert.True(t, arts.Scores[task.Newsletter].Fallback)
	require.NotNil(t, arts.Newsletter)
	assert.NotEmpty(t, arts.Newsletter.Sections)

	// Two variants requested for analysis, both served by the mock.
	assert.Len(t, mock.Calls(), 2)
}

func TestRunVariantFailFastOnAborts(t *testing.T) {
	mock := llm.NewMockClient("mock").WithResponseFunc(func(*llm.Request) (*llm.Response, error) {
		return nil, errors.New("request aborted by provider")
	})
	routes := offlineRoutes(mock, task.Clips, task.RouteGenerate)

	sink := &captureSink{}
	engine := New(Config{Routes: routes, Sink: sink})
	arts, err := engine.Run(context.Background(), testSegments())
	require.NoError(t, err)

	// Clip generation aborts fail fast, so the remaining variants of the
	// batch are never requested and the offline default fills in.
	assert.Len(t, mock.Calls(), 1)
	require.NotNil(t, arts.Clips)
	assert.NotEmpty(t, arts.Clips.Clips)
	assert.True(t, arts.Scores[task.Clips].Fallback)

	var clipRecord *diagnostics.TaskRecord
	for _, record := range sink.records {
		if record.Task == task.Clips {
			clipRecord = record
		}
	}
	require.NotNil(t, clipRecord)
	assert.True(t, clipRecord.FallbackUsed)
	assert.Contains(t, clipRecord.FallbackReason, "aborted")
}

const weakPostJSON = `{
	"hook": "Some thoughts on shipping.",
	"body": "Teams should probably ship faster and also avoid burnout somehow..."
}`

const strongPostJSON = `{
	"hook": "Finishing is a strategy, not a milestone.",
	"body": "The team in this episode did something most leaders will not: they cut the roadmap in half and finished the remainder. The payoff was not just morale. Rebuilt onboarding, centered on one guided checklist, removed the confusion that generated most setup questions. Then they swapped story points for cycle time per feature, and planning arguments turned into queue discussions. The lesson is uncomfortable because it is subtractive. You do not need a better process for starting work. You need a visible queue and the discipline to stop feeding it.",
	"bullets": [
		"Cut the plan until the team can finish it",
		"Replace effort estimates with cycle time per feature",
		"Make the waiting queue visible before changing anything else"
	],
	"cta": "Explore the full conversation in this week's episode."
}`

func TestRunCleanVariantBeatsTruncatedVariant(t *testing.T) {
	mock := llm.NewMockClient("mock")
	mock.QueueOutput(weakPostJSON)
	mock.QueueOutput(strongPostJSON)
	routes := offlineRoutes(mock, task.Post, task.RouteGenerate)

	engine := New(Config{Routes: routes})
	arts, err := engine.Run(context.Background(), testSegments())
	require.NoError(t, err)

	require.NotNil(t, arts.Post)
	assert.Equal(t, "Finishing is a strategy, not a milestone.", arts.Post.Hook)
	assert.False(t, strings.HasSuffix(arts.Post.Body, "..."))
	assert.NotContains(t, arts.Post.Body, "…")
	assert.False(t, arts.Scores[task.Post].Fallback)
}

// ----- cross-channel dedup -----

func TestCorpusPenalty(t *testing.T) {
	c := &corpus{}
	c.add(&payload.Post{
		Hook: "Finishing the roadmap beats starting another one.",
		Body: "The team cut the roadmap in half and finished the remainder before taking anything new.",
	})

	rehash := &payload.MicroblogSet{Posts: []payload.MicroPost{
		{Order: 1, Text: "The team cut the roadmap in half and finished the remainder before taking anything new."},
	}}
	assert.Greater(t, c.penalty(rehash), 0.0)

	fresh := &payload.MicroblogSet{Posts: []payload.MicroPost{
		{Order: 1, Text: "Pricing experiments work best when the initial number is treated as a floor."},
	}}
	assert.Zero(t, c.penalty(fresh))
}

func TestCorpusIgnoresShortFragments(t *testing.T) {
	c := &corpus{}
	c.add(&payload.Post{Hook: "Short hook.", Body: "Also short."})
	assert.Empty(t, c.entries)
}

// ----- clip resolution -----

const proposedClipsJSON = `{
	"clips": [
		{"title": "Cut the roadmap in half", "caption": "Shipping less was the unlock for this team.", "segment_start": 3, "segment_end": 4, "hashtags": ["#startups"]},
		{"title": "Bad window", "caption": "This one proposes an impossible range.", "segment_start": 40, "segment_end": 45, "hashtags": ["#nope"]}
	]
}`

func TestRunResolvesProposedClipWindows(t *testing.T) {
	mock := llm.NewMockClient("mock").WithDefaultOutput(proposedClipsJSON)
	routes := offlineRoutes(mock, task.Clips, task.RouteGenerate)

	engine := New(Config{Routes: routes})
	arts, err := engine.Run(context.Background(), testSegments())
	require.NoError(t, err)

	require.NotNil(t, arts.Clips)
	require.NotEmpty(t, arts.Clips.Clips)
	for _, clip := range arts.Clips.Clips {
		assert.GreaterOrEqual(t, clip.SegStart, 0)
		assert.Less(t, clip.SegEnd, len(testSegments()))
		assert.Less(t, clip.StartMs, clip.EndMs)
	}
	// The out-of-range proposal is dropped during resolution.
	for _, clip := range arts.Clips.Clips {
		assert.NotEqual(t, "Bad window", clip.Title)
	}
}
