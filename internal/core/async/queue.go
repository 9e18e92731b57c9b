package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

// Job is one listing submitted to the batch queue.
type Job struct {
	Seq         int // input order, e.g. the JSONL line number
	Request     entity.AnalysisRequest
	SubmittedAt time.Time
}

// Result is the outcome of one Job.
type Result struct {
	Seq      int
	Request  entity.AnalysisRequest
	Analysis entity.Analysis
	Err      error
	Elapsed  time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Results() <-chan Result
	Close()
	Shutdown(ctx context.Context)
}
