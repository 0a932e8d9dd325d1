package model

import "time"

// ImageQuality grades how usable the proof photo is for verification.
type ImageQuality string

const (
	QualityGood       ImageQuality = "good"
	QualityAcceptable ImageQuality = "acceptable"
	QualityPoor       ImageQuality = "poor"
)

// VerificationVerdict is the content verifier's structured judgment of a
// proof photo. Confidence is always normalized to [0,1] regardless of the
// model's native scale. Created once per claim and never mutated.
type VerificationVerdict struct {
	SignatureDetected bool         `json:"signature_detected"`
	Confidence        float64      `json:"confidence"`
	ImageQuality      ImageQuality `json:"image_quality"`
	ReadableText      string       `json:"readable_text,omitempty"`
	Notes             string       `json:"notes,omitempty"`

	// Heuristic marks verdicts recovered by keyword fallback after the
	// model's response failed structured parsing. Such verdicts carry a
	// fixed conservative confidence and must never be mistaken for a
	// confident model verdict.
	Heuristic bool `json:"heuristic,omitempty"`

	// ContentFingerprint is the hex SHA-256 of the raw image bytes,
	// computed locally before the model is called.
	ContentFingerprint string `json:"content_fingerprint"`

	VerifiedAt time.Time `json:"verified_at"`
}
