package features

import (
	"github.com/joseph-ayodele/listing-verifier/internal/core/vin"
	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

// Build derives the fixed feature record from the request and the two extracted signals.
func Build(req entity.AnalysisRequest, doc entity.ExtractedDocument, det entity.DetectionSummary) entity.FeatureSet {
	vinInput, _ := req.VIN()
	return entity.FeatureSet{
		VinInput:           vinInput,
		VinFoundInDoc:      vin.Contains(doc.VINs, vinInput),
		DocHasAnyVin:       len(doc.VINs) > 0,
		CarDetections:      max(det.CarDetections, 0),
		BestCarConf:        min(max(det.BestConf, 0), 1),
		ImagesCount:        len(req.Images),
		HasRegistrationDoc: req.RegistrationRef() != "",
	}
}
