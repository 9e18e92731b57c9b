package vision

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Detection is one labelled box reported by the detection model.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type predictResponse struct {
	Detections []Detection `json:"detections"`
}

// Model runs object detection over one JPEG image.
type Model interface {
	Predict(ctx context.Context, jpeg []byte) ([]Detection, error)
}

// ModelSource hands out the process-wide model.
type ModelSource interface {
	Model(ctx context.Context) (Model, error)
}

// DefaultRetryInterval is how long a failed model build is remembered before
// the next caller tries again.
const DefaultRetryInterval = 15 * time.Second

// LazyModel builds its model on first use and keeps it once built. A failed
// build is returned to callers until the retry interval has passed.
type LazyModel struct {
	mu            sync.Mutex
	factory       func(ctx context.Context) (Model, error)
	model         Model
	lastErr       error
	lastAttempt   time.Time
	retryInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

type LazyOption func(*LazyModel)

// WithRetryInterval sets the minimum gap between build attempts after a failure.
func WithRetryInterval(d time.Duration) LazyOption {
	return func(l *LazyModel) {
		if d >= 0 {
			l.retryInterval = d
		}
	}
}

func NewLazyModel(factory func(ctx context.Context) (Model, error), logger *slog.Logger, opts ...LazyOption) *LazyModel {
	if logger == nil {
		logger = slog.Default()
	}
	l := &LazyModel{factory: factory, retryInterval: DefaultRetryInterval, now: time.Now, logger: logger}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *LazyModel) Model(ctx context.Context) (Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.model != nil {
		return l.model, nil
	}
	if l.lastErr != nil && l.now().Sub(l.lastAttempt) < l.retryInterval {
		return nil, l.lastErr
	}

	l.lastAttempt = l.now()
	m, err := l.factory(ctx)
	if err != nil {
		if l.lastErr == nil {
			l.logger.Error("vision.model.init_failed", "error", err)
		} else {
			l.logger.Debug("vision.model.init_retry_failed", "error", err)
		}
		l.lastErr = err
		return nil, err
	}
	l.model, l.lastErr = m, nil
	l.logger.Info("vision.model.ready")
	return m, nil
}

// StaticModel wraps an already built model.
type StaticModel struct{ M Model }

func (s StaticModel) Model(context.Context) (Model, error) { return s.M, nil }
