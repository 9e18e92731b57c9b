package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CarID is the caller's listing identifier. It accepts a JSON number or string
// and is echoed back exactly as received.
type CarID struct {
	raw json.RawMessage
}

func NewCarID(v any) CarID {
	b, _ := json.Marshal(v)
	return CarID{raw: b}
}

func (c *CarID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("car_id is required")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("car_id: %w", err)
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("car_id must not be empty")
		}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("car_id must be an integer or string")
		}
		if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
			return fmt.Errorf("car_id must be an integer or string")
		}
	}
	c.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (c CarID) MarshalJSON() ([]byte, error) {
	if len(c.raw) == 0 {
		return []byte("null"), nil
	}
	return c.raw, nil
}

// IsZero reports whether no identifier was supplied.
func (c CarID) IsZero() bool { return len(c.raw) == 0 }

// String returns the identifier without JSON quoting.
func (c CarID) String() string {
	var s string
	if err := json.Unmarshal(c.raw, &s); err == nil {
		return s
	}
	return string(c.raw)
}

// AnalysisRequest is one listing submitted for assessment.
type AnalysisRequest struct {
	CarID                 CarID          `json:"car_id"`
	Car                   map[string]any `json:"car" validate:"required"`
	Images                []string       `json:"images"`
	RegistrationCardImage *string        `json:"registration_card_image,omitempty"`
}

// VIN returns the listing's vin attribute, trimmed and uppercased.
// The attribute key is matched case-insensitively.
func (r AnalysisRequest) VIN() (string, bool) {
	v, ok := r.Car["vin"]
	if !ok {
		for k, val := range r.Car {
			if strings.EqualFold(strings.TrimSpace(k), "vin") {
				v, ok = val, true
				break
			}
		}
	}
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	return strings.ToUpper(strings.TrimSpace(s)), true
}

// RegistrationRef returns the trimmed registration document reference, or "" when absent.
func (r AnalysisRequest) RegistrationRef() string {
	if r.RegistrationCardImage == nil {
		return ""
	}
	return strings.TrimSpace(*r.RegistrationCardImage)
}

// ExtractedDocument is the OCR view of the registration document.
type ExtractedDocument struct {
	Text string
	VINs []string
}

// DetectionSummary aggregates vehicle detections over the inspected photos.
type DetectionSummary struct {
	CarDetections int     `json:"car_detections"`
	BestConf      float64 `json:"best_conf"`
}

// FeatureSet is the fixed record the fusion engine and judge consume.
type FeatureSet struct {
	VinInput           string  `json:"vin_input"`
	VinFoundInDoc      bool    `json:"vin_found_in_doc"`
	DocHasAnyVin       bool    `json:"doc_has_any_vin"`
	CarDetections      int     `json:"car_detections"`
	BestCarConf        float64 `json:"best_car_conf"`
	ImagesCount        int     `json:"images_count"`
	HasRegistrationDoc bool    `json:"has_registration_doc"`
}

// JudgeOpinion is a parsed generative-model verdict. Probability fields are nil
// when the model omitted them or returned something unusable.
type JudgeOpinion struct {
	RealProbability *float64 `json:"real_probability,omitempty"`
	FakeProbability *float64 `json:"fake_probability,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

// FusionResult is the final probability pair returned to the caller.
type FusionResult struct {
	RealProbability float64 `json:"real_probability"`
	FakeProbability float64 `json:"fake_probability"`
	Reason          string  `json:"reason"`
	Source          string  `json:"-"`
}

// Analysis bundles every intermediate artifact of one request.
type Analysis struct {
	Request  AnalysisRequest
	Document ExtractedDocument
	Vision   DetectionSummary
	Features FeatureSet
	Opinion  *JudgeOpinion
	Result   FusionResult
}
