// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package profile carries the generation configuration bag.
//
// A Profile is passed by value into every pipeline component and is never
// mutated in place: the With* helpers return modified copies.
package profile

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianStudio/services/studio/task"
)

// QualityMode selects how much model budget a run spends on evaluation.
type QualityMode string

const (
	// QualityStandard runs a single judge pass per candidate.
	QualityStandard QualityMode = "standard"

	// QualityMax adds the adversarial judge pass and enables forced
	// refinement on borderline candidates.
	QualityMax QualityMode = "max"
)

// CTAMode controls call-to-action expectations per task.
type CTAMode string

const (
	CTANone   CTAMode = "none"
	CTASoft   CTAMode = "soft"
	CTADirect CTAMode = "direct"
)

// LengthTier is the requested artifact depth.
type LengthTier string

const (
	LengthShort    LengthTier = "short"
	LengthStandard LengthTier = "standard"
	LengthDeep     LengthTier = "deep"
)

// ScoreWeights blends judge and heuristic scores. Weights are
// renormalized to sum to 1 before use, so any positive pair is valid.
type ScoreWeights struct {
	Judge     float64 `yaml:"judge" validate:"gte=0"`
	Heuristic float64 `yaml:"heuristic" validate:"gte=0"`
}

// DefaultScoreWeights returns the production blend.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Judge: 0.72, Heuristic: 0.28}
}

// Normalized returns weights scaled to sum to 1. A degenerate all-zero
// pair falls back to the defaults.
func (w ScoreWeights) Normalized() ScoreWeights {
	sum := w.Judge + w.Heuristic
	if sum <= 0 {
		return DefaultScoreWeights()
	}
	return ScoreWeights{Judge: w.Judge / sum, Heuristic: w.Heuristic / sum}
}

// TaskSettings is the per-task strategy block.
type TaskSettings struct {
	// Strategy and Focus feed the prompt templates verbatim.
	Strategy string `yaml:"strategy,omitempty"`
	Focus    string `yaml:"focus,omitempty"`

	// Length selects the depth tier guardrails enforce.
	Length LengthTier `yaml:"length,omitempty" validate:"omitempty,oneof=short standard deep"`

	// CTA selects the call-to-action expectation.
	CTA CTAMode `yaml:"cta,omitempty" validate:"omitempty,oneof=none soft direct"`

	// Weights blends judge/heuristic for this task.
	Weights ScoreWeights `yaml:"weights,omitempty"`

	// VariationCount is how many candidates to request (1-8).
	VariationCount int `yaml:"variation_count,omitempty" validate:"omitempty,min=1,max=8"`

	// RefinePasses bounds the refinement loop (1-3).
	RefinePasses int `yaml:"refine_passes,omitempty" validate:"omitempty,min=1,max=3"`
}

// VoiceRules constrain wording across all artifacts.
type VoiceRules struct {
	// Forbidden phrases cause a guardrail issue when they appear.
	Forbidden []string `yaml:"forbidden,omitempty"`

	// Preferred phrases nudge the heuristic originality axis.
	Preferred []string `yaml:"preferred,omitempty"`
}

// ChannelMemory is per-channel performance memory fed back into prompts.
type ChannelMemory struct {
	AvgScore float64 `yaml:"avg_score"`
	Samples  int     `yaml:"samples"`
	Notes    string  `yaml:"notes,omitempty"`
}

// Thresholds are the two score floors the refinement loop targets.
type Thresholds struct {
	// Quality is the general floor below which refinement triggers.
	Quality float64 `yaml:"quality" validate:"gte=0,lte=10"`

	// Publishable is the stricter floor gating external use.
	Publishable float64 `yaml:"publishable" validate:"gte=0,lte=10"`
}

// Profile is the full generation configuration.
type Profile struct {
	Audience string `yaml:"audience,omitempty"`
	Tone     string `yaml:"tone,omitempty"`

	Quality QualityMode `yaml:"quality,omitempty" validate:"omitempty,oneof=standard max"`

	Thresholds Thresholds `yaml:"thresholds,omitempty"`

	Voice VoiceRules `yaml:"voice,omitempty"`

	Tasks map[task.Task]TaskSettings `yaml:"tasks,omitempty" validate:"dive"`

	// Memory keys are channel names ("clips", "newsletter", ...).
	Memory map[string]ChannelMemory `yaml:"memory,omitempty"`

	// ClipCount is how many clip windows to target.
	ClipCount int `yaml:"clip_count,omitempty" validate:"omitempty,min=1,max=12"`
}

// Default returns the production defaults used when no profile file is
// supplied.
func Default() Profile {
	return Profile{
		Audience:   "operators and founders",
		Tone:       "direct, practical",
		Quality:    QualityStandard,
		Thresholds: Thresholds{Quality: 7.0, Publishable: 8.0},
		ClipCount:  3,
		Tasks: map[task.Task]TaskSettings{
			task.Analysis:   {Length: LengthDeep, CTA: CTANone, VariationCount: 2, RefinePasses: 1, Weights: DefaultScoreWeights()},
			task.Clips:      {Length: LengthShort, CTA: CTANone, VariationCount: 3, RefinePasses: 1, Weights: DefaultScoreWeights()},
			task.Newsletter: {Length: LengthStandard, CTA: CTASoft, VariationCount: 2, RefinePasses: 1, Weights: DefaultScoreWeights()},
			task.Post:       {Length: LengthStandard, CTA: CTASoft, VariationCount: 3, RefinePasses: 2, Weights: DefaultScoreWeights()},
			task.Microblog:  {Length: LengthStandard, CTA: CTADirect, VariationCount: 2, RefinePasses: 1, Weights: DefaultScoreWeights()},
		},
	}
}

// TaskSettingsFor returns the settings for a task, falling back to the
// defaults when the profile omits the task.
func (p Profile) TaskSettingsFor(t task.Task) TaskSettings {
	if s, ok := p.Tasks[t]; ok {
		return withSettingDefaults(s)
	}
	if s, ok := Default().Tasks[t]; ok {
		return s
	}
	return TaskSettings{VariationCount: 2, RefinePasses: 1, Weights: DefaultScoreWeights(), Length: LengthStandard, CTA: CTANone}
}

func withSettingDefaults(s TaskSettings) TaskSettings {
	if s.VariationCount == 0 {
		s.VariationCount = 2
	}
	if s.RefinePasses == 0 {
		s.RefinePasses = 1
	}
	if s.Weights.Judge == 0 && s.Weights.Heuristic == 0 {
		s.Weights = DefaultScoreWeights()
	}
	if s.Length == "" {
		s.Length = LengthStandard
	}
	if s.CTA == "" {
		s.CTA = CTANone
	}
	return s
}

// WithTaskSettings returns a copy of the profile with one task's
// settings replaced. The receiver is not modified.
func (p Profile) WithTaskSettings(t task.Task, s TaskSettings) Profile {
	tasks := make(map[task.Task]TaskSettings, len(p.Tasks)+1)
	for k, v := range p.Tasks {
		tasks[k] = v
	}
	tasks[t] = s
	p.Tasks = tasks
	return p
}

// WithMemory returns a copy with one channel's memory replaced.
func (p Profile) WithMemory(channel string, m ChannelMemory) Profile {
	memory := make(map[string]ChannelMemory, len(p.Memory)+1)
	for k, v := range p.Memory {
		memory[k] = v
	}
	memory[channel] = m
	p.Memory = memory
	return p
}

var validate = validator.New()

// Load reads and validates a profile YAML file, filling defaults for
// omitted fields.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile YAML: %w", err)
	}
	if err := Validate(p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks structural constraints on a profile.
func Validate(p Profile) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	for t := range p.Tasks {
		if !t.Valid() {
			return fmt.Errorf("invalid profile: unknown task %q", t)
		}
	}
	if p.Thresholds.Publishable < p.Thresholds.Quality {
		return fmt.Errorf("invalid profile: publishable threshold %.2f below quality threshold %.2f",
			p.Thresholds.Publishable, p.Thresholds.Quality)
	}
	return nil
}
