// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline chains the five generation tasks over one transcript.
//
// # Description
//
// The Engine runs analysis first, then clips, newsletter, post, and
// microblog, each consuming the accepted analysis. Every task follows
// the same shape: render the generation prompt, request variants, parse
// and sanitize each one, validate against guardrails, score survivors,
// refine the best, and record diagnostics. When no variant survives the
// task falls back to a deterministic payload built from the evidence
// map, so a run always produces every artifact.
//
// # Thread Safety
//
// An Engine is safe for concurrent Run calls; all per-run state lives in
// the runContext.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianStudio/services/studio/circuit"
	"github.com/AleutianAI/AleutianStudio/services/studio/diagnostics"
	"github.com/AleutianAI/AleutianStudio/services/studio/evidence"
	"github.com/AleutianAI/AleutianStudio/services/studio/guardrail"
	"github.com/AleutianAI/AleutianStudio/services/studio/judge"
	"github.com/AleutianAI/AleutianStudio/services/studio/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/payload"
	"github.com/AleutianAI/AleutianStudio/services/studio/profile"
	"github.com/AleutianAI/AleutianStudio/services/studio/prompts"
	"github.com/AleutianAI/AleutianStudio/services/studio/refine"
	"github.com/AleutianAI/AleutianStudio/services/studio/request"
	"github.com/AleutianAI/AleutianStudio/services/studio/scoring"
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
	"github.com/AleutianAI/AleutianStudio/services/studio/transcript"
	"github.com/AleutianAI/AleutianStudio/services/studio/windows"
)

// judgeExcerptTokens bounds the transcript context on judge calls, which
// need less than generation.
const judgeExcerptTokens = 900

// borderlineMargin is how far above the publishable threshold a best
// candidate may sit and still be force-refined in max quality mode.
const borderlineMargin = 0.5

// Config wires an Engine. Zero-value fields get working defaults: an
// unrouted table (heuristic provider), a fresh breaker, a nop sink.
type Config struct {
	Profile profile.Profile
	Routes  *llm.RoutingTable
	Breaker *circuit.Breaker
	Limiter *rate.Limiter
	Prompts *prompts.Source
	Sink    diagnostics.Sink
	Logger  *slog.Logger
}

// Engine runs the full generation pipeline.
type Engine struct {
	prof      profile.Profile
	requester *request.Requester
	judge     *judge.Judge
	loop      *refine.Loop
	source    *prompts.Source
	sink      diagnostics.Sink
	logger    *slog.Logger
}

// New builds an Engine from the config, filling defaults.
func New(cfg Config) *Engine {
	if cfg.Routes == nil {
		cfg.Routes = llm.NewRoutingTable()
	}
	if cfg.Breaker == nil {
		cfg.Breaker = circuit.NewBreaker()
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompts.NewSource(nil)
	}
	if cfg.Sink == nil {
		cfg.Sink = diagnostics.NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Profile = withProfileDefaults(cfg.Profile)
	rq := request.NewRequester(cfg.Routes, cfg.Breaker, cfg.Limiter, cfg.Logger)
	return &Engine{
		prof:      cfg.Profile,
		requester: rq,
		judge:     judge.New(rq, cfg.Prompts, cfg.Logger),
		loop:      refine.NewLoop(rq, cfg.Prompts, cfg.Logger),
		source:    cfg.Prompts,
		sink:      cfg.Sink,
		logger:    cfg.Logger,
	}
}

// withProfileDefaults fills the fields a partial profile leaves zero.
// Per-task settings are defaulted lazily by TaskSettingsFor.
func withProfileDefaults(p profile.Profile) profile.Profile {
	def := profile.Default()
	if p.ClipCount == 0 {
		p.ClipCount = def.ClipCount
	}
	if p.Quality == "" {
		p.Quality = def.Quality
	}
	if p.Thresholds.Quality == 0 && p.Thresholds.Publishable == 0 {
		p.Thresholds = def.Thresholds
	}
	if p.Audience == "" {
		p.Audience = def.Audience
	}
	if p.Tone == "" {
		p.Tone = def.Tone
	}
	return p
}

// TaskScore is the published score set for one artifact.
type TaskScore struct {
	Heuristic scoring.Evaluation `json:"heuristic"`
	Judge     scoring.Evaluation `json:"judge"`
	Composite float64            `json:"composite"`
	Display   float64            `json:"display"`
	Fallback  bool               `json:"fallback,omitempty"`
}

// Artifacts is one full run's output.
type Artifacts struct {
	RunID      string                  `json:"run_id"`
	Analysis   *payload.Analysis       `json:"analysis"`
	Clips      *payload.ClipSet        `json:"clips"`
	Newsletter *payload.Newsletter     `json:"newsletter"`
	Post       *payload.Post           `json:"post"`
	Microblog  *payload.MicroblogSet   `json:"microblog"`
	Scores     map[task.Task]TaskScore `json:"scores"`
}

// runContext is the shared per-run state threaded through every task.
type runContext struct {
	segments []transcript.Segment
	ev       *evidence.Map

	excerpt      string
	judgeExcerpt string
	evExcerpt    string

	runID  string
	corpus *corpus

	// analysis and analysisJSON are set after the first task accepts.
	analysis     *payload.Analysis
	analysisJSON string
}

func (rc *runContext) judgeContext() judge.Context {
	return judge.Context{
		AnalysisJSON:      rc.analysisJSON,
		EvidenceExcerpt:   rc.evExcerpt,
		TranscriptExcerpt: rc.judgeExcerpt,
	}
}

// taskRun bundles the per-task variation points of the shared loop.
type taskRun struct {
	t        task.Task
	settings profile.TaskSettings
	vars     prompts.Vars

	// guardIn builds the validator input for one candidate.
	guardIn func(p payload.Payload) guardrail.Input

	// adjust normalizes a parsed payload before validation; clips use it
	// to resolve proposed windows against policy. A false return
	// discards the candidate.
	adjust func(p payload.Payload) (payload.Payload, bool)

	// fallback builds the offline default payload.
	fallback func() payload.Payload
}

// Run generates every artifact for one transcript.
func (e *Engine) Run(ctx context.Context, segments []transcript.Segment) (*Artifacts, error) {
	if err := transcript.Validate(segments); err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}

	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	rc := &runContext{
		segments:     segments,
		ev:           evidence.Build(segments, 0),
		excerpt:      transcript.Excerpt(segments, 0),
		judgeExcerpt: transcript.Excerpt(segments, judgeExcerptTokens),
		runID:        diagnostics.NewRunID(),
		corpus:       &corpus{},
	}
	rc.evExcerpt = rc.ev.Excerpt(0)
	span.SetAttributes(attribute.String("run_id", rc.runID))

	e.logger.Info("pipeline run starting",
		"run_id", rc.runID,
		"segments", len(segments),
		"duration_ms", transcript.TotalDurationMs(segments),
		"quality", string(e.prof.Quality))

	arts := &Artifacts{RunID: rc.runID, Scores: make(map[task.Task]TaskScore, len(task.All()))}

	for _, t := range task.All() {
		best, score, err := e.runTask(ctx, rc, t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		arts.Scores[t] = score
		rc.corpus.add(best)

		switch v := best.(type) {
		case *payload.Analysis:
			arts.Analysis = v
			rc.analysis = v
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("marshal analysis: %w", err)
			}
			rc.analysisJSON = string(raw)
		case *payload.ClipSet:
			arts.Clips = v
		case *payload.Newsletter:
			arts.Newsletter = v
		case *payload.Post:
			arts.Post = v
		case *payload.MicroblogSet:
			arts.Microblog = v
		}
	}

	e.logger.Info("pipeline run complete", "run_id", rc.runID)
	return arts, nil
}

// runTask executes the shared generate/validate/score/refine loop for
// one task and records diagnostics.
func (e *Engine) runTask(ctx context.Context, rc *runContext, t task.Task) (payload.Payload, TaskScore, error) {
	ctx, span := tracer.Start(ctx, "pipeline.task",
		trace.WithAttributes(attribute.String("task", string(t))))
	defer span.End()

	tr, err := e.planTask(rc, t)
	if err != nil {
		return nil, TaskScore{}, err
	}

	record := diagnostics.NewTaskRecord(rc.runID, t)
	start := time.Now()

	userPrompt, err := prompts.Render(e.source.GetActive(t, task.RouteGenerate), tr.vars)
	if err != nil {
		return nil, TaskScore{}, fmt.Errorf("render generate prompt: %w", err)
	}

	results := e.requester.Variants(ctx, t, task.RouteGenerate, prompts.SystemPrompt, userPrompt,
		tr.settings.VariationCount, request.VariantOptions{Probe: func(raw string) error {
			return payload.Probe(raw)
		}})

	scorer := e.scorer(rc, tr)
	candidates, variants := e.collectCandidates(ctx, rc, tr, results, scorer)
	record.Variants = variants

	fallbackUsed := false
	fallbackReason := ""
	if len(candidates) == 0 {
		fallbackUsed = true
		fallbackReason = fallbackReasonFor(results)
		candidates = append(candidates, e.fallbackCandidate(rc, tr, fallbackReason))
		e.logger.Warn("no model variant survived, using offline default",
			"task", t, "reason", fallbackReason)
	}

	outcome := e.refineBest(ctx, rc, tr, candidates, scorer, fallbackUsed)
	best := outcome.Best
	for _, pass := range outcome.Passes {
		record.Refines = append(record.Refines, diagnostics.RefinePassRecord{
			Pass:     pass.Pass,
			Before:   pass.Before,
			After:    pass.After,
			Accepted: pass.Accepted,
			Reason:   pass.Reason,
		})
		recordRefineMetrics(ctx, string(t), pass.Accepted)
	}

	display := scoring.Display(best.Composite, best.Judge, best.Heuristic)
	score := TaskScore{
		Heuristic: best.Heuristic,
		Judge:     best.Judge,
		Composite: best.Composite,
		Display:   display,
		Fallback:  fallbackUsed,
	}

	record.Duration = time.Since(start).Milliseconds()
	record.FallbackUsed = fallbackUsed
	record.FallbackReason = fallbackReason
	record.Heuristic = best.Heuristic
	record.Judge = best.Judge
	record.Composite = best.Composite
	record.Display = display
	record.Guardrail = best.Guardrail
	for _, v := range variants {
		record.Usage = record.Usage.Add(v.Usage)
	}
	e.sink.Record(record)

	accepted := 0
	for _, v := range variants {
		if v.Accepted {
			accepted++
		}
	}
	recordTaskMetrics(ctx, string(t), start, accepted, tr.settings.VariationCount, fallbackUsed)
	recordComposite(ctx, string(t), best.Composite)

	e.logger.Info("task complete",
		"task", t,
		"composite", best.Composite,
		"display", display,
		"fallback", fallbackUsed,
		"refine_passes", len(outcome.Passes))

	return best.Payload, score, nil
}

// planTask builds the taskRun for one task, including the prompt vars
// and the guardrail input factory.
func (e *Engine) planTask(rc *runContext, t task.Task) (taskRun, error) {
	settings := e.prof.TaskSettingsFor(t)
	vars := prompts.Vars{
		Audience:          e.prof.Audience,
		Tone:              e.prof.Tone,
		Strategy:          settings.Strategy,
		Focus:             settings.Focus,
		TranscriptExcerpt: rc.excerpt,
		EvidenceExcerpt:   rc.evExcerpt,
		AnalysisJSON:      rc.analysisJSON,
		ChannelNotes:      e.channelNotes(t),
	}

	tr := taskRun{t: t, settings: settings}

	guardBase := guardrail.Input{
		Evidence: rc.ev,
		Settings: settings,
		Voice:    e.prof.Voice,
	}
	tr.guardIn = func(p payload.Payload) guardrail.Input {
		in := guardBase
		in.Payload = p
		return in
	}
	tr.adjust = func(p payload.Payload) (payload.Payload, bool) { return p, true }

	switch t {
	case task.Analysis:
		tr.fallback = func() payload.Payload { return defaultAnalysis(rc.segments, rc.ev) }

	case task.Clips:
		policy := windows.DerivePolicy(transcript.TotalDurationMs(rc.segments), lengthPref(settings.Length))
		wins := windows.Select(rc.segments, e.prof.ClipCount, policy)
		vars.WindowsBlock = windowsBlock(rc.segments, wins)

		clipGuard := guardBase
		clipGuard.Policy = policy
		clipGuard.SegmentCount = len(rc.segments)
		tr.guardIn = func(p payload.Payload) guardrail.Input {
			in := clipGuard
			in.Payload = p
			return in
		}
		tr.adjust = func(p payload.Payload) (payload.Payload, bool) {
			set, ok := p.(*payload.ClipSet)
			if !ok {
				return p, false
			}
			return resolveClips(rc.segments, set, policy)
		}
		tr.fallback = func() payload.Payload { return defaultClips(rc.segments, wins, rc.ev) }

	case task.Newsletter:
		tr.fallback = func() payload.Payload { return defaultNewsletter(rc.analysis) }

	case task.Post:
		tr.fallback = func() payload.Payload { return defaultPost(rc.analysis, rc.ev) }

	case task.Microblog:
		tr.fallback = func() payload.Payload { return defaultMicroblog(rc.analysis, rc.ev) }

	default:
		return taskRun{}, fmt.Errorf("unknown task %q", t)
	}

	tr.vars = vars
	return tr, nil
}

// collectCandidates parses, validates, and scores each variant result.
// Blocking guardrail issues discard a candidate; soft issues ride along.
func (e *Engine) collectCandidates(ctx context.Context, rc *runContext, tr taskRun, results []*request.Result, score refine.Scorer) ([]refine.Candidate, []diagnostics.VariantRecord) {
	var candidates []refine.Candidate
	variants := make([]diagnostics.VariantRecord, 0, len(results))

	for i, res := range results {
		vr := diagnostics.VariantRecord{
			Index:      i,
			Provider:   res.Trace.Provider,
			Model:      res.Trace.Model,
			DurationMs: res.Trace.Duration.Milliseconds(),
			Usage:      res.Usage,
		}
		if res.Skipped {
			vr.Skipped = true
			vr.Reason = res.SkipReason
			variants = append(variants, vr)
			continue
		}
		if res.Err != nil {
			vr.FailureClass = res.Class.String()
			vr.Reason = res.Err.Error()
			variants = append(variants, vr)
			continue
		}

		p, outcome, err := payload.Parse(tr.t, res.Output)
		if err != nil {
			vr.Reason = "parse: " + err.Error()
			e.requester.ReportParseFailure(tr.t, task.RouteGenerate, err.Error())
			variants = append(variants, vr)
			continue
		}
		if outcome.Coerced {
			e.logger.Debug("variant coerced", "task", tr.t, "index", i, "signal", outcome.Signal)
		}

		p, ok := tr.adjust(p)
		if !ok {
			vr.Reason = "no clip window satisfied the duration policy"
			variants = append(variants, vr)
			continue
		}

		cand := score(ctx, p)
		for _, issue := range cand.Guardrail.Issues {
			vr.Issues = append(vr.Issues, string(issue.Code))
			recordGuardrailMetrics(ctx, string(tr.t), string(issue.Code), issue.Code.Blocking())
		}
		if !cand.Guardrail.OK {
			vr.Reason = "blocking guardrail issues"
			variants = append(variants, vr)
			continue
		}

		vr.Accepted = true
		vr.Composite = cand.Composite
		variants = append(variants, vr)
		candidates = append(candidates, cand)
	}

	return candidates, variants
}

// scorer builds the end-to-end re-scoring closure shared by candidate
// collection and the refinement loop.
func (e *Engine) scorer(rc *runContext, tr taskRun) refine.Scorer {
	return func(ctx context.Context, p payload.Payload) refine.Candidate {
		g := guardrail.Validate(tr.guardIn(p))
		heur := scoring.Heuristic(p)
		jd := e.judge.Evaluate(ctx, tr.t, p, rc.judgeContext(), e.prof.Quality, heur)
		comp := scoring.Composite(jd, heur, tr.settings.Weights)
		if penalty := rc.corpus.penalty(p); penalty > 0 {
			comp = scoring.Round2(math.Max(0, comp-penalty))
		}
		return refine.Candidate{
			Payload:   p,
			Heuristic: heur,
			Judge:     jd,
			Composite: comp,
			Guardrail: g,
		}
	}
}

// fallbackCandidate scores the offline default payload with the
// penalized heuristic standing in for the judge.
func (e *Engine) fallbackCandidate(rc *runContext, tr taskRun, reason string) refine.Candidate {
	p := tr.fallback()
	g := guardrail.Validate(tr.guardIn(p))
	heur := scoring.Heuristic(p)
	jd := judge.Fallback(heur, p, reason)
	return refine.Candidate{
		Payload:   p,
		Heuristic: heur,
		Judge:     jd,
		Composite: scoring.Composite(jd, heur, tr.settings.Weights),
		Guardrail: g,
	}
}

// refineBest runs the refinement loop unless the run is already offline;
// a fallback candidate has no refine route worth calling.
func (e *Engine) refineBest(ctx context.Context, rc *runContext, tr taskRun, candidates []refine.Candidate, score refine.Scorer, fallbackUsed bool) refine.Outcome {
	if fallbackUsed {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.Composite > best.Composite {
				best = c
			}
		}
		return refine.Outcome{Best: best}
	}

	opts := refine.Options{
		Passes:      tr.settings.RefinePasses,
		Quality:     e.prof.Thresholds.Quality,
		Publishable: e.prof.Thresholds.Publishable,
		Context:     tr.vars,
	}
	if e.prof.Quality == profile.QualityMax {
		best := candidates[0].Composite
		for _, c := range candidates[1:] {
			if c.Composite > best {
				best = c.Composite
			}
		}
		opts.Forced = best < e.prof.Thresholds.Publishable+borderlineMargin
	}
	return e.loop.Run(ctx, tr.t, candidates, score, opts)
}

// resolveClips snaps each proposed clip to segment boundaries and the
// duration policy. Clips that cannot be resolved are dropped; an empty
// result discards the candidate.
func resolveClips(segments []transcript.Segment, set *payload.ClipSet, policy windows.Policy) (payload.Payload, bool) {
	resolved := make([]payload.Clip, 0, len(set.Clips))
	for _, clip := range set.Clips {
		prop := windows.Proposal{SegStart: clip.SegStart, SegEnd: clip.SegEnd}
		w, ok := windows.Resolve(segments, prop, policy)
		if !ok {
			continue
		}
		clip.StartMs = w.StartMs
		clip.EndMs = w.EndMs
		clip.SegStart = w.SegStart
		clip.SegEnd = w.SegEnd
		resolved = append(resolved, clip)
	}
	if len(resolved) == 0 {
		return set, false
	}
	out := &payload.ClipSet{Clips: resolved}
	return out.Sanitize(), true
}

// windowsBlock formats the pre-selected windows for the clips prompt.
func windowsBlock(segments []transcript.Segment, wins []windows.Window) string {
	var b []byte
	for i, w := range wins {
		line := fmt.Sprintf("Window %d: segments %d-%d, %s, duration %ds\n  %s\n",
			i+1, w.SegStart, w.SegEnd, w.Source, w.DurationMs()/1000,
			transcript.ExcerptRange(segments, w.SegStart, w.SegEnd, 120))
		b = append(b, line...)
	}
	return string(b)
}

// channelNotes renders the profile's per-channel memory for the prompt.
func (e *Engine) channelNotes(t task.Task) string {
	mem, ok := e.prof.Memory[string(t)]
	if !ok {
		return ""
	}
	notes := fmt.Sprintf("Past %s performance: avg score %.1f over %d samples.", t, mem.AvgScore, mem.Samples)
	if mem.Notes != "" {
		notes += " " + mem.Notes
	}
	return notes
}

// lengthPref maps the profile depth tier to a clip length preference.
func lengthPref(tier profile.LengthTier) windows.LengthPreference {
	switch tier {
	case profile.LengthShort:
		return windows.LengthShort
	case profile.LengthDeep:
		return windows.LengthLong
	default:
		return windows.LengthStandard
	}
}

// fallbackReasonFor summarizes why a variant batch produced nothing.
func fallbackReasonFor(results []*request.Result) string {
	if len(results) == 0 {
		return "no variants requested"
	}
	for _, res := range results {
		if res.Skipped {
			return res.SkipReason
		}
	}
	for _, res := range results {
		if res.Err != nil {
			return res.Err.Error()
		}
	}
	return "all variants failed validation"
}
