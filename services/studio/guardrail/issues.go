// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guardrail validates candidate payloads against structural,
// stylistic, and grounding rules before scoring. Every violation is a
// string-coded issue classified blocking or soft by a fixed table; only
// blocking issues disqualify a candidate.
package guardrail

// IssueCode categorizes one guardrail violation.
type IssueCode string

const (
	// IssueUngroundedNumericClaim indicates a field carries enough
	// numeric tokens absent from the evidence map to cross the hard
	// limit.
	IssueUngroundedNumericClaim IssueCode = "ungrounded_numeric_claim"

	// IssueUnverifiedNumericClaim is the soft form: ungrounded numbers
	// present but below the hard limit.
	IssueUnverifiedNumericClaim IssueCode = "unverified_numeric_claim"

	// IssueTruncationArtifact indicates a field ends in an ellipsis or
	// similar cut-off marker.
	IssueTruncationArtifact IssueCode = "truncation_artifact"

	// IssueInvalidClipWindow indicates a clip's timestamps or segment
	// indices are out of order or out of range.
	IssueInvalidClipWindow IssueCode = "invalid_clip_window"

	// IssueClipDurationOutOfBounds indicates a clip falls outside the
	// derived duration policy.
	IssueClipDurationOutOfBounds IssueCode = "clip_duration_out_of_bounds"

	// IssueInsufficientSections indicates too few newsletter sections
	// for the requested length tier.
	IssueInsufficientSections IssueCode = "insufficient_sections"

	// IssueInsufficientPosts indicates too few thread posts for the
	// requested length tier.
	IssueInsufficientPosts IssueCode = "insufficient_posts"

	// IssueInsufficientKeyPoints indicates too few analysis key points
	// for the requested length tier.
	IssueInsufficientKeyPoints IssueCode = "insufficient_key_points"

	// IssueMissingCTAIntent indicates no call-to-action pattern matched
	// despite the profile requesting one.
	IssueMissingCTAIntent IssueCode = "missing_cta_intent"

	// IssueDuplicateContent indicates near-duplicate text across
	// distinct fields of the same candidate.
	IssueDuplicateContent IssueCode = "duplicate_content"

	// IssueEmptyRequiredField indicates a schema-required field arrived
	// empty after sanitization.
	IssueEmptyRequiredField IssueCode = "empty_required_field"

	// IssueForbiddenPhrase indicates a phrase from the profile's
	// forbidden list appeared in the candidate.
	IssueForbiddenPhrase IssueCode = "forbidden_phrase"
)

// blockingCodes is the fixed classification table. Codes absent from the
// table are soft. The table is hand-maintained and intentionally kept
// as-is: missing_cta_intent stays soft even for tasks whose profile
// demands a direct CTA, matching long-standing pipeline behavior.
var blockingCodes = map[IssueCode]struct{}{
	IssueUngroundedNumericClaim:  {},
	IssueTruncationArtifact:      {},
	IssueInvalidClipWindow:       {},
	IssueClipDurationOutOfBounds: {},
	IssueInsufficientSections:    {},
	IssueInsufficientPosts:       {},
	IssueInsufficientKeyPoints:   {},
	IssueEmptyRequiredField:      {},
	IssueForbiddenPhrase:         {},
}

// Blocking reports whether a code disqualifies a candidate.
func (c IssueCode) Blocking() bool {
	_, ok := blockingCodes[c]
	return ok
}

// Issue is one guardrail violation.
type Issue struct {
	// Code is the fixed string identifier for the violation kind.
	Code IssueCode `json:"code"`

	// Field is the dotted payload path the violation was found at,
	// e.g. "clips[2].caption".
	Field string `json:"field,omitempty"`

	// Detail is a human-readable explanation.
	Detail string `json:"detail,omitempty"`
}

// Result is the full validation outcome for one candidate.
type Result struct {
	// OK is true when no blocking issue was found.
	OK bool `json:"ok"`

	// Issues holds every violation in discovery order.
	Issues []Issue `json:"issues,omitempty"`

	// Blocking and Soft partition Issues by the classification table.
	Blocking []Issue `json:"blocking,omitempty"`
	Soft     []Issue `json:"soft,omitempty"`

	// Attribution maps field paths to the evidence timestamps that
	// corroborate their numeric claims.
	Attribution map[string][]string `json:"attribution,omitempty"`
}

func (r *Result) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
	if issue.Code.Blocking() {
		r.Blocking = append(r.Blocking, issue)
	} else {
		r.Soft = append(r.Soft, issue)
	}
}

// HasCode reports whether any issue carries the given code.
func (r *Result) HasCode(code IssueCode) bool {
	for _, issue := range r.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}
