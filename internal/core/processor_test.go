package core

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/listing-verifier/internal/common"
	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

type fakeDocs struct {
	doc   entity.ExtractedDocument
	delay time.Duration
	refs  []string
}

func (f *fakeDocs) Read(_ context.Context, ref string) entity.ExtractedDocument {
	time.Sleep(f.delay)
	f.refs = append(f.refs, ref)
	if ref == "" {
		return entity.ExtractedDocument{VINs: []string{}}
	}
	return f.doc
}

type fakeVision struct {
	sum   entity.DetectionSummary
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeVision) Detect(_ context.Context, refs []string) entity.DetectionSummary {
	time.Sleep(f.delay)
	f.calls.Add(1)
	if len(refs) == 0 {
		return entity.DetectionSummary{}
	}
	return f.sum
}

type fakeJudge struct {
	op   *entity.JudgeOpinion
	seen []entity.FeatureSet
}

func (f *fakeJudge) Opinion(_ context.Context, fs entity.FeatureSet) *entity.JudgeOpinion {
	f.seen = append(f.seen, fs)
	return f.op
}

func fptr(v float64) *float64 { return &v }

func decodeRequest(t *testing.T, body string) entity.AnalysisRequest {
	t.Helper()
	var req entity.AnalysisRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func TestAnalyze_EndToEndHeuristic(t *testing.T) {
	docs := &fakeDocs{doc: entity.ExtractedDocument{Text: "VIN 1HGCM82633A004352", VINs: []string{"1HGCM82633A004352"}}}
	vis := &fakeVision{sum: entity.DetectionSummary{CarDetections: 2, BestConf: 0.88}}
	a := NewAnalyzer(docs, vis, nil, nil)

	req := decodeRequest(t, `{"car_id": 42, "car": {"vin": "1hgcm82633a004352"}, "images": ["a.jpg","b.jpg"], "registration_card_image": "reg.pdf"}`)
	out, err := a.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0.95, out.Result.RealProbability)
	assert.Equal(t, 0.05, out.Result.FakeProbability)
	assert.Equal(t, "heuristic", out.Result.Source)
	assert.Equal(t, "vin_found_in_doc=true, car_detections=2, best_car_conf=0.8800", out.Result.Reason)
	assert.Equal(t, entity.FeatureSet{
		VinInput:           "1HGCM82633A004352",
		VinFoundInDoc:      true,
		DocHasAnyVin:       true,
		CarDetections:      2,
		BestCarConf:        0.88,
		ImagesCount:        2,
		HasRegistrationDoc: true,
	}, out.Features)
	assert.Equal(t, []string{"reg.pdf"}, docs.refs)
}

func TestAnalyze_NoEvidence(t *testing.T) {
	a := NewAnalyzer(&fakeDocs{}, &fakeVision{}, nil, nil)
	out, err := a.Analyze(context.Background(), decodeRequest(t, `{"car_id":"abc","car":{"vin":"1HGCM82633A004352"}}`))
	require.NoError(t, err)
	assert.Equal(t, 0.25, out.Result.RealProbability)
	assert.Equal(t, 0.75, out.Result.FakeProbability)
	assert.NotNil(t, out.Document.VINs)
	assert.Empty(t, out.Document.VINs)
}

func TestAnalyze_JudgeOverride(t *testing.T) {
	judge := &fakeJudge{op: &entity.JudgeOpinion{RealProbability: fptr(3), FakeProbability: fptr(1), Reason: "documents consistent"}}
	a := NewAnalyzer(&fakeDocs{}, &fakeVision{}, judge, nil)

	out, err := a.Analyze(context.Background(), decodeRequest(t, `{"car_id":1,"car":{"vin":"1HGCM82633A004352"}}`))
	require.NoError(t, err)
	assert.Equal(t, 0.75, out.Result.RealProbability)
	assert.Equal(t, 0.25, out.Result.FakeProbability)
	assert.Equal(t, "documents consistent", out.Result.Reason)
	assert.Equal(t, "judge", out.Result.Source)
	require.Len(t, judge.seen, 1)
	assert.Equal(t, out.Features, judge.seen[0])
}

func TestAnalyze_ParallelMatchesSequential(t *testing.T) {
	mk := func(parallel bool) entity.Analysis {
		docs := &fakeDocs{doc: entity.ExtractedDocument{VINs: []string{"JH4KA7561PC008269"}}, delay: 20 * time.Millisecond}
		vis := &fakeVision{sum: entity.DetectionSummary{CarDetections: 1, BestConf: 0.3}, delay: 20 * time.Millisecond}
		a := NewAnalyzer(docs, vis, nil, nil, WithParallel(parallel))
		out, err := a.Analyze(context.Background(), decodeRequest(t,
			`{"car_id":7,"car":{"vin":"1HGCM82633A004352"},"images":["x.jpg"],"registration_card_image":"r.jpg"}`))
		require.NoError(t, err)
		return out
	}
	par, seq := mk(true), mk(false)
	assert.Equal(t, seq.Result, par.Result)
	assert.Equal(t, seq.Features, par.Features)
	// 0.25 + 0.15 (doc) + 0.15 (any vin); detection below 0.35 adds nothing
	assert.Equal(t, 0.55, par.Result.RealProbability)
}

func TestAnalyze_InvalidRequests(t *testing.T) {
	a := NewAnalyzer(&fakeDocs{}, &fakeVision{}, nil, nil)
	bodies := map[string]string{
		"missing car_id": `{"car":{"vin":"1HGCM82633A004352"}}`,
		"missing car":    `{"car_id":1}`,
		"missing vin":    `{"car_id":1,"car":{"make":"Honda"}}`,
		"blank vin":      `{"car_id":1,"car":{"vin":"   "}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := a.Analyze(context.Background(), decodeRequest(t, body))
			require.Error(t, err)
			assert.Equal(t, 400, common.HTTPStatus(err))
		})
	}
}

func TestAnalyze_BlankImageRefIsNotARequestError(t *testing.T) {
	vision := &fakeVision{}
	a := NewAnalyzer(&fakeDocs{}, vision, nil, nil)

	out, err := a.Analyze(context.Background(), decodeRequest(t,
		`{"car_id":1,"car":{"vin":"1HGCM82633A004352"},"images":["", "  "]}`))
	require.NoError(t, err)
	assert.Equal(t, int32(1), vision.calls.Load())
	assert.Equal(t, 2, out.Features.ImagesCount)
	assert.Equal(t, 0.25, out.Result.RealProbability)
}
