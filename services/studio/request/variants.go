// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package request

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianStudio/services/studio/circuit"
	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// MaxVariants caps the per-task fan-out.
const MaxVariants = 8

// VariantOptions tunes a variant batch.
type VariantOptions struct {
	Options

	// Probe is run on each successful raw output. A non-nil error marks
	// the variant as a parse failure for fail-fast accounting and the
	// circuit breaker. Structure problems surface here, after transport
	// success.
	Probe func(raw string) error
}

// failFastLimits bound consecutive failures before the batch stops early.
type failFastLimits struct {
	abort int
	parse int
}

var taskFailFast = map[task.Task]failFastLimits{
	task.Analysis:   {abort: 2, parse: 3},
	task.Clips:      {abort: 1, parse: 2},
	task.Newsletter: {abort: 2, parse: 2},
	task.Post:       {abort: 2, parse: 2},
	task.Microblog:  {abort: 1, parse: 2},
}

func failFastFor(t task.Task) failFastLimits {
	if l, ok := taskFailFast[t]; ok {
		return l
	}
	return failFastLimits{abort: 2, parse: 2}
}

// variantDirectives are appended after the first variant so each request
// explores a different angle. Index 0 is unused by construction.
var variantDirectives = []string{
	"",
	"Take a noticeably different angle from an earlier draft: change the framing, the lead, and the examples.",
	"Write this variant with a contrarian structure: lead with the least obvious insight.",
	"Write this variant tighter and more concrete: cut abstractions, keep specifics.",
	"Write this variant for a skeptical reader: anticipate and answer the obvious objection.",
	"Write this variant with a story-first structure: open on the most vivid moment.",
	"Write this variant data-first: open on the strongest number and build out.",
	"Write this variant question-first: open on the question the audience is actually asking.",
}

// Variants issues up to count sequential completion requests for (t,
// kind), each after the first carrying an index-aware "be different"
// directive.
//
// Early-stop policy:
//   - the route's circuit is reported open (no point continuing),
//   - consecutive abort-class failures reach the task's fail-fast limit,
//   - consecutive parse failures (transport-reported or probe-detected)
//     reach the separate parse fail-fast limit.
//
// A success resets both consecutive counters. The returned slice keeps
// every result, failures included, for downstream bookkeeping.
func (rq *Requester) Variants(ctx context.Context, t task.Task, kind task.RouteKind, systemPrompt, userPrompt string, count int, opts VariantOptions) []*Result {
	if count < 1 {
		count = 1
	}
	if count > MaxVariants {
		count = MaxVariants
	}
	limits := failFastFor(t)

	results := make([]*Result, 0, count)
	consecutiveAborts := 0
	consecutiveParse := 0

	for i := 0; i < count; i++ {
		prompt := userPrompt
		if i > 0 {
			directive := variantDirectives[i%len(variantDirectives)]
			prompt = fmt.Sprintf("%s\n\nVariant %d of %d. %s", userPrompt, i+1, count, directive)
		}

		res := rq.Request(ctx, t, kind, systemPrompt, prompt, opts.Options)

		if res.Skipped {
			results = append(results, res)
			// Heuristic routes and missing credentials skip the whole
			// batch; an open circuit means later variants are pointless.
			break
		}

		if res.Err == nil && opts.Probe != nil {
			if perr := opts.Probe(res.Output); perr != nil {
				rq.ReportParseFailure(t, kind, perr.Error())
				res.Err = fmt.Errorf("variant %d failed structure probe: %w", i+1, perr)
				res.Class = circuit.FailureParse
			}
		}
		results = append(results, res)

		if res.Err != nil {
			switch res.Class {
			case circuit.FailureAbort:
				consecutiveAborts++
				consecutiveParse = 0
			case circuit.FailureParse:
				consecutiveParse++
				consecutiveAborts = 0
			default:
				consecutiveAborts = 0
				consecutiveParse = 0
			}
			if consecutiveAborts >= limits.abort {
				rq.logger.Warn("variant batch fail-fast on aborts", "task", t, "after", i+1)
				break
			}
			if consecutiveParse >= limits.parse {
				rq.logger.Warn("variant batch fail-fast on parse failures", "task", t, "after", i+1)
				break
			}
			continue
		}

		consecutiveAborts = 0
		consecutiveParse = 0
	}
	return results
}
