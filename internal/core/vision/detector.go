package vision

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/joseph-ayodele/listing-verifier/constants"
	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

// DefaultMaxImages is how many listing photos are inspected.
const DefaultMaxImages = 6

var errEmptyRef = errors.New("empty image reference")

// Fetcher resolves a reference to bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

type Detector struct {
	fetcher   Fetcher
	models    ModelSource
	maxImages int
	maxSide   int
	logger    *slog.Logger
}

type Option func(*Detector)

func WithMaxImages(n int) Option { return func(d *Detector) { d.maxImages = n } }
func WithMaxSide(n int) Option   { return func(d *Detector) { d.maxSide = n } }

func NewDetector(fetcher Fetcher, models ModelSource, logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{fetcher: fetcher, models: models, maxImages: DefaultMaxImages, maxSide: 1280, logger: logger}
	for _, o := range opts {
		o(d)
	}
	if d.maxImages <= 0 {
		d.maxImages = DefaultMaxImages
	}
	return d
}

// Detect counts vehicle detections over the first maxImages refs and tracks the
// best confidence. Images that cannot be fetched, decoded or scored are skipped.
func (d *Detector) Detect(ctx context.Context, refs []string) entity.DetectionSummary {
	var sum entity.DetectionSummary
	if len(refs) == 0 {
		return sum
	}
	if d.models == nil {
		d.logger.Warn("vision.model.unavailable", "reason", "no backend configured")
		return sum
	}
	model, err := d.models.Model(ctx)
	if err != nil || model == nil {
		d.logger.Warn("vision.model.unavailable", "error", err)
		return sum
	}

	if len(refs) > d.maxImages {
		refs = refs[:d.maxImages]
	}
	start := time.Now()
	var inspected int
	for i, ref := range refs {
		if ctx.Err() != nil {
			d.logger.Warn("vision.cancelled", "index", i, "error", ctx.Err())
			break
		}
		dets, err := d.detectOne(ctx, model, ref)
		if err != nil {
			d.logger.Warn("vision.image.skip", "index", i, "error", err)
			continue
		}
		inspected++
		for _, det := range dets {
			if _, ok := constants.CanonicalizeVehicle(det.Label); !ok {
				continue
			}
			sum.CarDetections++
			if det.Confidence > sum.BestConf {
				sum.BestConf = det.Confidence
			}
		}
	}
	sum.BestConf = round4(min(max(sum.BestConf, 0), 1))

	d.logger.Info("vision.detect.done",
		"images", len(refs),
		"inspected", inspected,
		"car_detections", sum.CarDetections,
		"best_conf", sum.BestConf,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return sum
}

func (d *Detector) detectOne(ctx context.Context, model Model, ref string) ([]Detection, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errEmptyRef
	}
	data, err := d.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data, d.maxSide)
	if err != nil {
		return nil, err
	}
	jpeg, err := EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	return model.Predict(ctx, jpeg)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
