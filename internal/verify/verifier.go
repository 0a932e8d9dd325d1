// Package verify analyzes proof-of-delivery photos with a vision model and
// produces structured verification verdicts.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/myna-logistics/settlement-cli/internal/model"
	"github.com/myna-logistics/settlement-cli/pkg/anthropic"
)

// Verifier produces a verdict for a delivery claim's proof photo. A returned
// error means the verification infrastructure failed (network, model, or an
// unusable response); "model responded but found no signature" is a verdict,
// not an error.
type Verifier interface {
	Verify(ctx context.Context, claim model.DeliveryClaim) (*model.VerificationVerdict, error)
}

// analysisPrompt is the fixed instruction sent with every proof photo. The
// model reports confidence on a 0-100 scale; normalization to [0,1] happens
// on our side.
const analysisPrompt = `Analyze this delivery proof image and determine:
1. Is there a signature visible in the image? (yes/no)
2. What is your confidence level that this is a valid delivery receipt with a signature? (0-100)
3. Can you read any text or details from the receipt?
4. Is the image clear enough for verification purposes?

Respond in JSON format:
{
  "signatureDetected": boolean,
  "confidence": number (0-100),
  "readableText": string or null,
  "imageQuality": "good" | "acceptable" | "poor",
  "notes": string
}`

// Fingerprint computes the hex SHA-256 content fingerprint of image bytes.
// It is a pure function of the bytes and participates in no network call.
func Fingerprint(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// ModelVerifier implements Verifier against a vision-capable Anthropic model.
type ModelVerifier struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// Option configures a ModelVerifier.
type Option func(*ModelVerifier)

// WithMaxTokens sets the response token budget for the analysis call.
// Non-positive values keep the default of 1024.
func WithMaxTokens(n int64) Option {
	return func(v *ModelVerifier) {
		if n > 0 {
			v.maxTokens = n
		}
	}
}

// NewModelVerifier creates a verifier using the given client and model id.
func NewModelVerifier(ai anthropic.Client, modelID string, opts ...Option) *ModelVerifier {
	v := &ModelVerifier{
		ai:        ai,
		model:     modelID,
		maxTokens: 1024,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *ModelVerifier) Verify(ctx context.Context, claim model.DeliveryClaim) (*model.VerificationVerdict, error) {
	// The fingerprint must be computable even if the model call fails.
	fingerprint := Fingerprint(claim.Image)

	resp, err := v.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     v.model,
		MaxTokens: v.maxTokens,
		Messages: []anthropic.Message{
			{
				Role: "user",
				Blocks: []anthropic.Block{
					anthropic.TextBlock(analysisPrompt),
					anthropic.ImageBlock(claim.MIMEType(), claim.Image),
				},
			},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "verify: vision request for shipment %s", claim.ShipmentID)
	}
	resp.Usage.Log(v.model, "verify")

	text := resp.Text()
	if text == "" {
		return nil, eris.Errorf("verify: empty model response for shipment %s", claim.ShipmentID)
	}

	verdict := parseVerdict(text)
	verdict.ContentFingerprint = fingerprint
	verdict.VerifiedAt = time.Now().UTC()

	if verdict.Heuristic {
		zap.L().Warn("verify: heuristic fallback used",
			zap.String("shipment_id", claim.ShipmentID),
			zap.String("fingerprint", fingerprint),
		)
	}

	return verdict, nil
}
