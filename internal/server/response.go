package server

import "github.com/joseph-ayodele/listing-verifier/internal/entity"

type errorResponse struct {
	Error string `json:"error"`
}

type ocrResponse struct {
	VINs []string `json:"vins"`
}

type analyzeResponse struct {
	CarID           entity.CarID            `json:"car_id"`
	RealProbability float64                 `json:"real_probability"`
	FakeProbability float64                 `json:"fake_probability"`
	Reason          string                  `json:"reason"`
	Features        entity.FeatureSet       `json:"features"`
	OCR             ocrResponse             `json:"ocr"`
	Vision          entity.DetectionSummary `json:"vision"`
}

func newAnalyzeResponse(an entity.Analysis) analyzeResponse {
	vins := an.Document.VINs
	if vins == nil {
		vins = []string{}
	}
	return analyzeResponse{
		CarID:           an.Request.CarID,
		RealProbability: an.Result.RealProbability,
		FakeProbability: an.Result.FakeProbability,
		Reason:          an.Result.Reason,
		Features:        an.Features,
		OCR:             ocrResponse{VINs: vins},
		Vision:          an.Vision,
	}
}
