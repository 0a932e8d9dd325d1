package verify

import (
	"encoding/json"
	"strings"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

// heuristicConfidence is the fixed conservative confidence assigned when the
// model response fails structured parsing and only keyword evidence remains.
const heuristicConfidence = 0.75

// modelVerdict mirrors the JSON shape the analysis prompt asks for.
// Confidence arrives on the model's native 0-100 scale.
type modelVerdict struct {
	SignatureDetected bool     `json:"signatureDetected"`
	Confidence        float64  `json:"confidence"`
	ReadableText      *string  `json:"readableText"`
	ImageQuality      string   `json:"imageQuality"`
	Notes             string   `json:"notes"`
}

// parseVerdict extracts a verdict from the raw model response. Strict JSON
// extraction is attempted first; on failure it falls back to keyword
// classification with a fixed conservative confidence, flagged Heuristic so
// the fallback is never mistaken for a confident model verdict.
func parseVerdict(text string) *model.VerificationVerdict {
	if raw, ok := extractJSON(text); ok {
		var mv modelVerdict
		if err := json.Unmarshal([]byte(raw), &mv); err == nil {
			verdict := &model.VerificationVerdict{
				SignatureDetected: mv.SignatureDetected,
				Confidence:        clamp01(mv.Confidence / 100),
				ImageQuality:      normalizeQuality(mv.ImageQuality),
				Notes:             mv.Notes,
			}
			if mv.ReadableText != nil {
				verdict.ReadableText = *mv.ReadableText
			}
			return verdict
		}
	}

	lower := strings.ToLower(text)
	return &model.VerificationVerdict{
		SignatureDetected: strings.Contains(lower, "yes") || strings.Contains(lower, "signature"),
		Confidence:        heuristicConfidence,
		ImageQuality:      model.QualityAcceptable,
		Notes:             "heuristic fallback used: model response was not well-formed JSON",
		Heuristic:         true,
	}
}

// extractJSON returns the first top-level JSON object embedded in text.
// Handles fenced code blocks and surrounding prose.
func extractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}

func normalizeQuality(q string) model.ImageQuality {
	switch strings.ToLower(strings.TrimSpace(q)) {
	case "good":
		return model.QualityGood
	case "poor":
		return model.QualityPoor
	default:
		return model.QualityAcceptable
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
