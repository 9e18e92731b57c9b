package llm

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

const judgeSystemPrompt = "You are a fraud analyst for a used-car marketplace. " +
	"You judge whether a vehicle listing is genuine from extracted evidence only."

// BuildJudgePrompt embeds the feature record and asks for a strict JSON verdict.
func BuildJudgePrompt(f entity.FeatureSet) string {
	fj, _ := json.Marshal(f)

	parts := []string{
		"Evidence extracted from a vehicle listing:",
		string(fj),
		"",
		"Field meanings:",
		"- vin_input: VIN typed by the seller.",
		"- vin_found_in_doc: the seller VIN appears in the registration document text.",
		"- doc_has_any_vin: the registration document contains at least one VIN-like token.",
		"- car_detections: vehicles detected across the listing photos.",
		"- best_car_conf: highest vehicle detection confidence (0..1).",
		"- images_count: photos supplied with the listing.",
		"- has_registration_doc: a registration document was supplied.",
		"",
		`Reply with ONE JSON object and nothing else, exactly with the keys "real_probability", "fake_probability" and "reason".`,
		"The two probabilities are numbers between 0 and 1 that sum to 1.",
		`"reason" is one short sentence.`,
	}
	return strings.Join(parts, "\n")
}
