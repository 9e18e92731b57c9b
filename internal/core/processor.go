package core

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/listing-verifier/internal/common"
	"github.com/joseph-ayodele/listing-verifier/internal/core/features"
	"github.com/joseph-ayodele/listing-verifier/internal/core/fusion"
	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

// DocumentReader extracts text and VIN candidates from the registration document.
type DocumentReader interface {
	Read(ctx context.Context, ref string) entity.ExtractedDocument
}

// VisionDetector summarises vehicle detections over listing photos.
type VisionDetector interface {
	Detect(ctx context.Context, refs []string) entity.DetectionSummary
}

// OpinionProvider returns a judge verdict or nil.
type OpinionProvider interface {
	Opinion(ctx context.Context, f entity.FeatureSet) *entity.JudgeOpinion
}

// Analyzer runs one listing through extraction, feature building, the judge and fusion.
type Analyzer struct {
	docs     DocumentReader
	vision   VisionDetector
	judge    OpinionProvider
	parallel bool
	logger   *slog.Logger
}

type AnalyzerOption func(*Analyzer)

// WithParallel toggles concurrent document and vision extraction.
func WithParallel(on bool) AnalyzerOption { return func(a *Analyzer) { a.parallel = on } }

// NewAnalyzer wires the collaborators. judge may be nil.
func NewAnalyzer(docs DocumentReader, vision VisionDetector, judge OpinionProvider, logger *slog.Logger, opts ...AnalyzerOption) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{docs: docs, vision: vision, judge: judge, parallel: true, logger: logger}
	for _, o := range opts {
		o(a)
	}
	return a
}

// ValidateRequest checks the fields the analysis cannot run without.
func ValidateRequest(req entity.AnalysisRequest) error {
	if req.CarID.IsZero() {
		return common.InvalidInputError("car_id is required")
	}
	if err := common.ValidateStruct(req); err != nil {
		return err
	}
	if v, ok := req.VIN(); !ok || v == "" {
		return common.InvalidInputError("car.vin is required")
	}
	return nil
}

// Analyze returns the full analysis for a valid request. The only error is an
// invalid request; every downstream failure degrades to "no signal".
func (a *Analyzer) Analyze(ctx context.Context, req entity.AnalysisRequest) (entity.Analysis, error) {
	if err := ValidateRequest(req); err != nil {
		return entity.Analysis{}, err
	}
	start := time.Now()
	log := common.LoggerFromContext(ctx, a.logger).With("car_id", req.CarID.String())
	log.Info("analyze.start", "images", len(req.Images), "has_registration_doc", req.RegistrationRef() != "")

	doc, det := a.extract(ctx, req)

	f := features.Build(req, doc, det)
	var op *entity.JudgeOpinion
	if a.judge != nil {
		op = a.judge.Opinion(ctx, f)
	}
	res := fusion.Fuse(f, op)

	log.Info("analyze.done",
		"source", res.Source,
		"real_probability", res.RealProbability,
		"vin_found_in_doc", f.VinFoundInDoc,
		"car_detections", f.CarDetections,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.Analysis{
		Request:  req,
		Document: doc,
		Vision:   det,
		Features: f,
		Opinion:  op,
		Result:   res,
	}, nil
}

func (a *Analyzer) extract(ctx context.Context, req entity.AnalysisRequest) (entity.ExtractedDocument, entity.DetectionSummary) {
	var (
		doc = entity.ExtractedDocument{VINs: []string{}}
		det entity.DetectionSummary
	)
	readDoc := func(ctx context.Context) {
		if a.docs != nil {
			doc = a.docs.Read(ctx, req.RegistrationRef())
		}
		if doc.VINs == nil {
			doc.VINs = []string{}
		}
	}
	detect := func(ctx context.Context) {
		if a.vision != nil {
			det = a.vision.Detect(ctx, req.Images)
		}
	}

	if !a.parallel {
		readDoc(ctx)
		detect(ctx)
		return doc, det
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { readDoc(gctx); return nil })
	g.Go(func() error { detect(gctx); return nil })
	_ = g.Wait()
	return doc, det
}
