// Package fusion turns a FeatureSet and an optional judge opinion into the final
// real/fake probability pair.
package fusion

import (
	"fmt"
	"math"
	"strings"

	"github.com/joseph-ayodele/listing-verifier/constants"
	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

const (
	baseReal        = 0.25
	boostRegDoc     = 0.15
	boostDocHasVIN  = 0.15
	boostVINMatch   = 0.25
	boostCarSeen    = 0.20
	minCarConf      = 0.35
	maxHeuristicCap = 0.95
)

// Heuristic computes the additive real probability from features alone.
// The result is clamped to [0, 0.95]; there is no floor beyond the 0.25 base.
func Heuristic(f entity.FeatureSet) float64 {
	score := baseReal
	if f.HasRegistrationDoc {
		score += boostRegDoc
	}
	if f.DocHasAnyVin {
		score += boostDocHasVIN
	}
	if f.VinFoundInDoc {
		score += boostVINMatch
	}
	if f.CarDetections > 0 && f.BestCarConf >= minCarConf {
		score += boostCarSeen
	}
	return clamp(score, 0, maxHeuristicCap)
}

// Fuse produces the final result. A usable opinion (both probabilities present,
// non-negative, positive sum) fully replaces the heuristic after renormalization.
func Fuse(f entity.FeatureSet, op *entity.JudgeOpinion) entity.FusionResult {
	score := Heuristic(f)
	source := constants.SourceHeuristic

	if rp, fp, ok := usableProbabilities(op); ok {
		score = renormalize(rp, fp)
		source = constants.SourceJudge
	}

	score = Round4(clamp(score, 0, 1))
	fake := Round4(1 - score)

	reason := ""
	if op != nil {
		reason = strings.TrimSpace(op.Reason)
	}
	if reason == "" {
		reason = Rationale(f)
	}

	return entity.FusionResult{
		RealProbability: score,
		FakeProbability: fake,
		Reason:          reason,
		Source:          string(source),
	}
}

// Rationale is the deterministic explanation used when the judge gave none.
func Rationale(f entity.FeatureSet) string {
	return fmt.Sprintf("vin_found_in_doc=%t, car_detections=%d, best_car_conf=%.4f",
		f.VinFoundInDoc, f.CarDetections, f.BestCarConf)
}

// Round4 rounds to 4 decimal places.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func usableProbabilities(op *entity.JudgeOpinion) (float64, float64, bool) {
	if op == nil || op.RealProbability == nil || op.FakeProbability == nil {
		return 0, 0, false
	}
	rp, fp := *op.RealProbability, *op.FakeProbability
	if math.IsNaN(rp) || math.IsNaN(fp) || math.IsInf(rp, 0) || math.IsInf(fp, 0) {
		return 0, 0, false
	}
	if rp < 0 || fp < 0 || rp+fp <= 0 {
		return 0, 0, false
	}
	return rp, fp, true
}

// renormalize returns rp/(rp+fp), scaled first so huge finite inputs cannot overflow the sum.
func renormalize(rp, fp float64) float64 {
	m := math.Max(rp, fp)
	rp, fp = rp/m, fp/m
	return rp / (rp + fp)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
