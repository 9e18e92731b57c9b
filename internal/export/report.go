package export

import (
	"time"

	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

// Row is one analyzed listing in a batch report.
type Row struct {
	Seq             int
	CarID           string
	VIN             string
	DocVINs         []string
	VinFoundInDoc   bool
	CarDetections   int
	BestConf        float64
	RealProbability float64
	FakeProbability float64
	Source          string
	Reason          string
	Error           string
	Elapsed         time.Duration
}

// Failed reports whether the listing was rejected before analysis.
func (r Row) Failed() bool { return r.Error != "" }

// Report is a batch run ready for export.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Rows        []Row
}

// NewRow flattens an analysis, or the error that prevented it, into a report row.
func NewRow(seq int, req entity.AnalysisRequest, an entity.Analysis, err error, elapsed time.Duration) Row {
	vin, _ := req.VIN()
	row := Row{Seq: seq, CarID: req.CarID.String(), VIN: vin, Elapsed: elapsed}
	if err != nil {
		row.Error = err.Error()
		return row
	}
	row.DocVINs = an.Document.VINs
	row.VinFoundInDoc = an.Features.VinFoundInDoc
	row.CarDetections = an.Vision.CarDetections
	row.BestConf = an.Vision.BestConf
	row.RealProbability = an.Result.RealProbability
	row.FakeProbability = an.Result.FakeProbability
	row.Source = an.Result.Source
	row.Reason = an.Result.Reason
	return row
}

// Summary counts listings by outcome.
type Summary struct {
	Total      int
	Failed     int
	LikelyReal int
	LikelyFake int
}

// Summarize buckets successful rows at a 0.5 real probability.
func (r Report) Summarize() Summary {
	s := Summary{Total: len(r.Rows)}
	for _, row := range r.Rows {
		switch {
		case row.Failed():
			s.Failed++
		case row.RealProbability >= 0.5:
			s.LikelyReal++
		default:
			s.LikelyFake++
		}
	}
	return s
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
