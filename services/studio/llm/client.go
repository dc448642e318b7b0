// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm defines the model completion contract the engine depends on.
//
// The engine never sees the wire protocol. Providers implement Client;
// the RoutingTable decides which provider and model serve a given
// (task, route kind) pair. The reserved "heuristic" provider means
// "skip the network call entirely" and is how the engine runs offline.
package llm

import (
	"context"
	"time"
)

// ProviderHeuristic is the no-op provider: routes pointing at it never
// reach the network and the pipeline falls back to heuristic payloads.
const ProviderHeuristic = "heuristic"

// Usage reports token consumption and cost for one completion.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd,omitempty"`
	ActualCostUSD    float64 `json:"actual_cost_usd,omitempty"`
}

// Add accumulates usage across calls.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		EstimatedCostUSD: u.EstimatedCostUSD + other.EstimatedCostUSD,
		ActualCostUSD:    u.ActualCostUSD + other.ActualCostUSD,
	}
}

// Request is one completion request.
type Request struct {
	Provider     string
	Model        string
	Temperature  float32
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Timeout      time.Duration
}

// Response is the provider's raw completion output.
type Response struct {
	// Output is the raw text. Structure extraction happens downstream.
	Output string

	Usage Usage
}

// Client is the transport contract. Implementations must be safe for
// concurrent use and must return errors whose messages the circuit
// breaker can classify (timeouts, rate limits, parse failures).
type Client interface {
	// Complete sends one completion request. The context carries the
	// engine-enforced timeout.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider name ("openai", "heuristic", ...).
	Name() string
}
