// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"github.com/AleutianAI/AleutianStudio/services/studio/profile"
)

// weakestAxisPenalty punishes candidates the judge rated very low on
// any single axis, per point below 3.
const weakestAxisPenaltyRate = 0.06

// Inflation guard thresholds. The heuristic is generous by construction,
// so a near-perfect heuristic score that the judge does not corroborate
// is treated as inflation.
const (
	inflatedHeuristicOverall = 9.7
	inflatedHeuristicMin     = 9.2
	uncorroboratedJudge      = 8.6
	displayHardCap           = 9.95
	displayCapMargin         = 0.45

	excellentJudgeOverall = 9.7
	excellentJudgeMin     = 9.1
)

// Composite blends the judge and heuristic overall scores. Weights are
// renormalized to sum to 1, then the weakest judge axis below 3 deducts
// 0.06 per point. This is the score the selection and refinement loops
// compare; the inflation guard never touches it.
func Composite(judge, heuristic Evaluation, w profile.ScoreWeights) float64 {
	w = w.Normalized()
	score := judge.Overall*w.Judge + heuristic.Overall*w.Heuristic

	if deficit := 3 - judge.Subscores.Min(); deficit > 0 {
		score -= deficit * weakestAxisPenaltyRate
	}
	return Round2(Clamp10(score))
}

// Display caps the user-facing score when the heuristic disagrees
// sharply with the judge, and hard-caps anything above 9.95 unless the
// judge itself confirms excellence. Selection always uses the raw
// composite; only the displayed number is capped.
func Display(composite float64, judge, heuristic Evaluation) float64 {
	display := composite

	inflated := (heuristic.Overall >= inflatedHeuristicOverall && judge.Overall <= uncorroboratedJudge) ||
		(heuristic.Subscores.Min() >= inflatedHeuristicMin && judge.Subscores.Min() < uncorroboratedJudge)
	if inflated && display > judge.Overall+displayCapMargin {
		display = judge.Overall + displayCapMargin
	}

	if display > displayHardCap {
		excellent := judge.Overall >= excellentJudgeOverall && judge.Subscores.Min() >= excellentJudgeMin
		if !excellent {
			display = displayHardCap
		}
	}
	return Round2(Clamp10(display))
}
