package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/listing-verifier/constants"
	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

func ptr(v float64) *float64 { return &v }

func allFeatureCombos() []entity.FeatureSet {
	var out []entity.FeatureSet
	for mask := 0; mask < 32; mask++ {
		f := entity.FeatureSet{
			VinInput:           "1HGCM82633A004352",
			HasRegistrationDoc: mask&1 != 0,
			DocHasAnyVin:       mask&2 != 0,
			VinFoundInDoc:      mask&4 != 0,
		}
		if mask&8 != 0 {
			f.CarDetections = 2
		}
		if mask&16 != 0 {
			f.BestCarConf = 0.8
		} else {
			f.BestCarConf = 0.2
		}
		out = append(out, f)
	}
	return out
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name string
		f    entity.FeatureSet
		want float64
	}{
		{"all false floor", entity.FeatureSet{}, 0.25},
		{"registration only", entity.FeatureSet{HasRegistrationDoc: true}, 0.40},
		{"doc with vins, no match", entity.FeatureSet{HasRegistrationDoc: true, DocHasAnyVin: true}, 0.55},
		{"vin match", entity.FeatureSet{HasRegistrationDoc: true, DocHasAnyVin: true, VinFoundInDoc: true}, 0.80},
		{"car seen with enough confidence", entity.FeatureSet{CarDetections: 1, BestCarConf: 0.35}, 0.45},
		{"car seen below threshold", entity.FeatureSet{CarDetections: 3, BestCarConf: 0.34}, 0.25},
		{"confidence without detections", entity.FeatureSet{BestCarConf: 0.9}, 0.25},
		{"everything capped", entity.FeatureSet{HasRegistrationDoc: true, DocHasAnyVin: true, VinFoundInDoc: true, CarDetections: 1, BestCarConf: 0.6}, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Heuristic(tt.f), 1e-9)
		})
	}
}

func TestFuse_HeuristicBounds(t *testing.T) {
	for _, f := range allFeatureCombos() {
		r := Fuse(f, nil)
		assert.LessOrEqual(t, r.RealProbability, 0.95)
		assert.GreaterOrEqual(t, r.RealProbability, 0.25)
		assert.InDelta(t, 1.0, r.RealProbability+r.FakeProbability, 1e-9)
		assert.Equal(t, string(constants.SourceHeuristic), r.Source)
		assert.NotEmpty(t, r.Reason)
	}
}

func TestFuse_SumInvariantWithOpinions(t *testing.T) {
	opinions := []*entity.JudgeOpinion{
		nil,
		{},
		{RealProbability: ptr(3), FakeProbability: ptr(1)},
		{RealProbability: ptr(0.1234567), FakeProbability: ptr(0.7654321)},
		{RealProbability: ptr(1), FakeProbability: ptr(2)},
		{RealProbability: ptr(0), FakeProbability: ptr(0)},
		{RealProbability: ptr(-1), FakeProbability: ptr(5)},
		{RealProbability: ptr(0.7)},
		{FakeProbability: ptr(0.7), Reason: "only fake"},
		{RealProbability: ptr(0), FakeProbability: ptr(4)},
	}
	for _, f := range allFeatureCombos() {
		for _, op := range opinions {
			r := Fuse(f, op)
			assert.InDelta(t, 1.0, r.RealProbability+r.FakeProbability, 1e-9)
			assert.GreaterOrEqual(t, r.RealProbability, 0.0)
			assert.LessOrEqual(t, r.RealProbability, 1.0)
			assert.GreaterOrEqual(t, r.FakeProbability, 0.0)
			assert.LessOrEqual(t, r.FakeProbability, 1.0)
		}
	}
}

func TestFuse_OpinionRenormalizes(t *testing.T) {
	f := entity.FeatureSet{HasRegistrationDoc: true, DocHasAnyVin: true, VinFoundInDoc: true, CarDetections: 1, BestCarConf: 0.9}
	r := Fuse(f, &entity.JudgeOpinion{RealProbability: ptr(3), FakeProbability: ptr(1)})

	assert.Equal(t, 0.75, r.RealProbability)
	assert.Equal(t, 0.25, r.FakeProbability)
	assert.Equal(t, string(constants.SourceJudge), r.Source)
	assert.Equal(t, Rationale(f), r.Reason)
}

func TestFuse_OpinionIgnored(t *testing.T) {
	f := entity.FeatureSet{HasRegistrationDoc: true}
	want := Fuse(f, nil)

	tests := []struct {
		name string
		op   *entity.JudgeOpinion
	}{
		{"both zero", &entity.JudgeOpinion{RealProbability: ptr(0), FakeProbability: ptr(0)}},
		{"both negative", &entity.JudgeOpinion{RealProbability: ptr(-0.5), FakeProbability: ptr(-0.5)}},
		{"one negative", &entity.JudgeOpinion{RealProbability: ptr(-0.5), FakeProbability: ptr(1)}},
		{"missing fake", &entity.JudgeOpinion{RealProbability: ptr(0.9)}},
		{"missing real", &entity.JudgeOpinion{FakeProbability: ptr(0.9)}},
		{"empty", &entity.JudgeOpinion{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Fuse(f, tt.op)
			assert.Equal(t, want.RealProbability, r.RealProbability)
			assert.Equal(t, want.FakeProbability, r.FakeProbability)
			assert.Equal(t, string(constants.SourceHeuristic), r.Source)
		})
	}
}

func TestFuse_ReasonSelection(t *testing.T) {
	f := entity.FeatureSet{VinFoundInDoc: true, CarDetections: 2, BestCarConf: 0.61}

	r := Fuse(f, &entity.JudgeOpinion{Reason: "  documents consistent  "})
	assert.Equal(t, "documents consistent", r.Reason)

	r = Fuse(f, &entity.JudgeOpinion{Reason: "   "})
	assert.Equal(t, "vin_found_in_doc=true, car_detections=2, best_car_conf=0.6100", r.Reason)

	r = Fuse(f, nil)
	assert.Equal(t, Rationale(f), r.Reason)
}

func TestFuse_EndToEndExample(t *testing.T) {
	f := entity.FeatureSet{
		VinInput:           "1HGCM82633A004352",
		VinFoundInDoc:      true,
		DocHasAnyVin:       true,
		CarDetections:      1,
		BestCarConf:        0.6,
		ImagesCount:        1,
		HasRegistrationDoc: true,
	}
	r := Fuse(f, nil)
	assert.Equal(t, 0.95, r.RealProbability)
	assert.Equal(t, 0.05, r.FakeProbability)
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.1235, Round4(0.12345678))
	assert.Equal(t, 0.0, Round4(0.00001))
	assert.Equal(t, 1.0, Round4(0.99999))
}

func TestFuse_LargeJudgeValues(t *testing.T) {
	tests := []struct {
		name     string
		rp, fp   float64
		wantReal float64
	}{
		{"equal max floats", 1e308, 1e308, 0.5},
		{"three to one at scale", 3e308 / 2, 0.5e308, 0.75},
		{"one side zero", 1e308, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Fuse(entity.FeatureSet{}, &entity.JudgeOpinion{RealProbability: ptr(tt.rp), FakeProbability: ptr(tt.fp)})
			assert.InDelta(t, tt.wantReal, r.RealProbability, 1e-4)
			assert.InDelta(t, 1-tt.wantReal, r.FakeProbability, 1e-4)
			assert.Equal(t, string(constants.SourceJudge), r.Source)
		})
	}
}
