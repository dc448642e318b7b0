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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for pipeline operations.
var (
	tracer = otel.Tracer("aleutianstudio.pipeline")
	meter  = otel.Meter("aleutianstudio.pipeline")
)

// Metrics for pipeline operations.
var (
	tasksTotal        metric.Int64Counter
	taskDuration      metric.Float64Histogram
	variantsRequested metric.Int64Counter
	variantsAccepted  metric.Int64Counter
	guardrailIssues   metric.Int64Counter
	fallbacksTotal    metric.Int64Counter
	refinePassesTotal metric.Int64Counter
	compositeScores   metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		tasksTotal, err = meter.Int64Counter(
			"studio_tasks_total",
			metric.WithDescription("Total task generations by task and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		taskDuration, err = meter.Float64Histogram(
			"studio_task_duration_seconds",
			metric.WithDescription("Task generation duration by task"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		variantsRequested, err = meter.Int64Counter(
			"studio_variants_requested_total",
			metric.WithDescription("Total variant requests issued by task"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		variantsAccepted, err = meter.Int64Counter(
			"studio_variants_accepted_total",
			metric.WithDescription("Total variants surviving parse and guardrails by task"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		guardrailIssues, err = meter.Int64Counter(
			"studio_guardrail_issues_total",
			metric.WithDescription("Total guardrail issues by task, code, and severity"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fallbacksTotal, err = meter.Int64Counter(
			"studio_fallbacks_total",
			metric.WithDescription("Total offline default payload selections by task"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		refinePassesTotal, err = meter.Int64Counter(
			"studio_refine_passes_total",
			metric.WithDescription("Total refinement passes by task and acceptance"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		compositeScores, err = meter.Float64Histogram(
			"studio_composite_score",
			metric.WithDescription("Final composite score distribution by task"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordTaskMetrics(ctx context.Context, taskName string, start time.Time, accepted, requested int, fallback bool) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("task", taskName))
	tasksTotal.Add(ctx, 1, attrs)
	taskDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	variantsRequested.Add(ctx, int64(requested), attrs)
	variantsAccepted.Add(ctx, int64(accepted), attrs)
	if fallback {
		fallbacksTotal.Add(ctx, 1, attrs)
	}
}

func recordGuardrailMetrics(ctx context.Context, taskName, code string, blocking bool) {
	if initMetrics() != nil {
		return
	}
	severity := "soft"
	if blocking {
		severity = "blocking"
	}
	guardrailIssues.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", taskName),
		attribute.String("code", code),
		attribute.String("severity", severity),
	))
}

func recordRefineMetrics(ctx context.Context, taskName string, accepted bool) {
	if initMetrics() != nil {
		return
	}
	refinePassesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", taskName),
		attribute.Bool("accepted", accepted),
	))
}

func recordComposite(ctx context.Context, taskName string, composite float64) {
	if initMetrics() != nil {
		return
	}
	compositeScores.Record(ctx, composite, metric.WithAttributes(attribute.String("task", taskName)))
}
