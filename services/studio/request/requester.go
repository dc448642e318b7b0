// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package request is the single choke point for model calls.
//
// Every completion the engine issues flows through Requester: route
// resolution, the heuristic-provider short circuit, credential checks,
// circuit-breaker gating, rate limiting, timeout enforcement, and failure
// classification all live here. Other components depend on this contract,
// never on the transport.
package request

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianStudio/services/studio/circuit"
	"github.com/AleutianAI/AleutianStudio/services/studio/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// Options tunes one request.
type Options struct {
	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// Timeout overrides the task default when positive.
	Timeout time.Duration
}

// Trace records where a request went and how long it took.
type Trace struct {
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	Duration   time.Duration `json:"duration"`
	RequestLen int           `json:"request_len"`
}

// Result is the outcome of one completion request. Exactly one of
// Output, Err, or Skipped describes what happened: Skipped means no
// network call was attempted at all.
type Result struct {
	Output     string
	Err        error
	Class      circuit.FailureClass
	Skipped    bool
	SkipReason string
	Usage      llm.Usage
	Trace      Trace
}

// OK reports whether the result carries usable output.
func (r *Result) OK() bool {
	return r != nil && !r.Skipped && r.Err == nil
}

// taskTimeouts are the engine-enforced defaults, 90s-300s.
var taskTimeouts = map[task.Task]time.Duration{
	task.Analysis:   300 * time.Second,
	task.Clips:      180 * time.Second,
	task.Newsletter: 150 * time.Second,
	task.Post:       120 * time.Second,
	task.Microblog:  90 * time.Second,
}

// kindTimeouts override by route kind: judge and refine calls are
// smaller than generation.
var kindTimeouts = map[task.RouteKind]time.Duration{
	task.RouteJudge:  120 * time.Second,
	task.RouteRefine: 180 * time.Second,
}

// TimeoutFor resolves the default timeout for a (task, kind) pair.
func TimeoutFor(t task.Task, kind task.RouteKind) time.Duration {
	if d, ok := kindTimeouts[kind]; ok {
		return d
	}
	if d, ok := taskTimeouts[t]; ok {
		return d
	}
	return 120 * time.Second
}

// Requester issues completion requests.
//
// Thread Safety: safe for concurrent use; shared state lives in the
// injected routing table and breaker, both lock-protected.
type Requester struct {
	routes  *llm.RoutingTable
	breaker *circuit.Breaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRequester wires the choke point. A nil limiter disables rate
// limiting; a nil logger uses the default.
func NewRequester(routes *llm.RoutingTable, breaker *circuit.Breaker, limiter *rate.Limiter, logger *slog.Logger) *Requester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Requester{
		routes:  routes,
		breaker: breaker,
		limiter: limiter,
		logger:  logger,
	}
}

// Request issues one completion for (t, kind).
//
// The call is skipped without touching the network when the route points
// at the heuristic provider, the provider has no configured client, or
// the route's circuit is open. Failures are classified and fed to the
// breaker; a success resets the key's counters.
func (rq *Requester) Request(ctx context.Context, t task.Task, kind task.RouteKind, systemPrompt, userPrompt string, opts Options) *Result {
	route := rq.routes.Route(t, kind)

	if route.Provider == llm.ProviderHeuristic {
		return &Result{Skipped: true, SkipReason: "route is heuristic provider"}
	}
	if !rq.routes.IsConfigured(route.Provider) {
		return &Result{Skipped: true, SkipReason: fmt.Sprintf("provider %s not configured", route.Provider)}
	}

	key := circuit.Key{Task: t, Kind: kind, Provider: route.Provider, Model: route.Model}
	if open, reason := rq.breaker.IsOpen(key); open {
		return &Result{Skipped: true, SkipReason: reason}
	}

	client, ok := rq.routes.Client(route.Provider)
	if !ok {
		return &Result{Skipped: true, SkipReason: fmt.Sprintf("no client for provider %s", route.Provider)}
	}

	if rq.limiter != nil {
		if err := rq.limiter.Wait(ctx); err != nil {
			class := circuit.Classify(err.Error())
			rq.breaker.RecordFailure(key, class, err.Error())
			return &Result{Err: fmt.Errorf("rate limiter: %w", err), Class: class}
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = TimeoutFor(t, kind)
	}

	start := time.Now()
	resp, err := client.Complete(ctx, &llm.Request{
		Provider:     route.Provider,
		Model:        route.Model,
		Temperature:  route.Temperature,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    opts.MaxTokens,
		Timeout:      timeout,
	})
	trace := Trace{
		Provider:   route.Provider,
		Model:      route.Model,
		Duration:   time.Since(start),
		RequestLen: len(systemPrompt) + len(userPrompt),
	}

	if err != nil {
		class := circuit.Classify(err.Error())
		rq.breaker.RecordFailure(key, class, err.Error())
		rq.logger.Warn("completion failed",
			"task", t, "kind", kind, "provider", route.Provider,
			"class", class.String(), "err", err)
		return &Result{Err: err, Class: class, Trace: trace}
	}

	rq.breaker.RecordSuccess(key)
	return &Result{Output: resp.Output, Usage: resp.Usage, Trace: trace}
}

// ReportParseFailure feeds a downstream JSON-parse failure back into the
// circuit for the route that produced the output. Structure problems are
// only detectable after normalization, so the requester exposes this
// hook instead of classifying them itself.
func (rq *Requester) ReportParseFailure(t task.Task, kind task.RouteKind, msg string) {
	route := rq.routes.Route(t, kind)
	key := circuit.Key{Task: t, Kind: kind, Provider: route.Provider, Model: route.Model}
	rq.breaker.RecordFailure(key, circuit.FailureParse, msg)
}
