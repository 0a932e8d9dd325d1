package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

func TestParseVerdict_StrictJSON(t *testing.T) {
	verdict := parseVerdict(`{
		"signatureDetected": true,
		"confidence": 95,
		"readableText": "Received by R. Sharma",
		"imageQuality": "good",
		"notes": "clear signature in the bottom right"
	}`)

	assert.True(t, verdict.SignatureDetected)
	assert.InDelta(t, 0.95, verdict.Confidence, 1e-9)
	assert.Equal(t, model.QualityGood, verdict.ImageQuality)
	assert.Equal(t, "Received by R. Sharma", verdict.ReadableText)
	assert.False(t, verdict.Heuristic)
}

func TestParseVerdict_JSONEmbeddedInProse(t *testing.T) {
	verdict := parseVerdict("Here is my analysis:\n```json\n" +
		`{"signatureDetected": false, "confidence": 20, "readableText": null, "imageQuality": "poor", "notes": "blurry"}` +
		"\n```\nLet me know if you need more detail.")

	assert.False(t, verdict.SignatureDetected)
	assert.InDelta(t, 0.20, verdict.Confidence, 1e-9)
	assert.Equal(t, model.QualityPoor, verdict.ImageQuality)
	assert.Empty(t, verdict.ReadableText)
	assert.False(t, verdict.Heuristic)
}

func TestParseVerdict_HeuristicFallback(t *testing.T) {
	verdict := parseVerdict("Yes, I can see a signature on the receipt but I cannot format the output.")

	assert.True(t, verdict.SignatureDetected)
	assert.InDelta(t, heuristicConfidence, verdict.Confidence, 1e-9)
	assert.Equal(t, model.QualityAcceptable, verdict.ImageQuality)
	assert.True(t, verdict.Heuristic)
	assert.Contains(t, verdict.Notes, "heuristic fallback used")
}

func TestParseVerdict_HeuristicFallback_NoSignatureKeywords(t *testing.T) {
	verdict := parseVerdict("The image shows a cardboard box on a doorstep.")

	assert.False(t, verdict.SignatureDetected)
	assert.True(t, verdict.Heuristic)
}

func TestParseVerdict_ConfidenceClamped(t *testing.T) {
	over := parseVerdict(`{"signatureDetected": true, "confidence": 140, "imageQuality": "good", "notes": ""}`)
	assert.Equal(t, 1.0, over.Confidence)

	under := parseVerdict(`{"signatureDetected": true, "confidence": -5, "imageQuality": "good", "notes": ""}`)
	assert.Equal(t, 0.0, under.Confidence)
}

func TestExtractJSON(t *testing.T) {
	raw, ok := extractJSON(`prefix {"a": {"b": "with \" escaped quote and } brace"}} suffix`)
	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": "with \" escaped quote and } brace"}}`, raw)

	_, ok = extractJSON("no json here")
	assert.False(t, ok)

	_, ok = extractJSON(`{"unterminated": true`)
	assert.False(t, ok)
}

func TestNormalizeQuality(t *testing.T) {
	assert.Equal(t, model.QualityGood, normalizeQuality(" Good "))
	assert.Equal(t, model.QualityPoor, normalizeQuality("POOR"))
	assert.Equal(t, model.QualityAcceptable, normalizeQuality("acceptable"))
	assert.Equal(t, model.QualityAcceptable, normalizeQuality("something else"))
}
