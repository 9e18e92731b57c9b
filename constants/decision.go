package constants

// DecisionSource records which path produced the final probabilities.
type DecisionSource string

const (
	SourceHeuristic DecisionSource = "heuristic" // additive heuristic, no usable judge opinion
	SourceJudge     DecisionSource = "judge"     // renormalized judge opinion replaced the heuristic
)

// Judge backends selectable through LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Vision backends selectable through VISION_BACKEND.
const (
	VisionBackendHTTP    = "http"
	VisionBackendCommand = "command"
	VisionBackendNone    = "none"
)
