package verify

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/myna-logistics/settlement-cli/internal/model"
	"github.com/myna-logistics/settlement-cli/pkg/anthropic"
)

type mockAIClient struct {
	mock.Mock
}

func (m *mockAIClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func testClaim() model.DeliveryClaim {
	return model.DeliveryClaim{
		ShipmentID: "SHIP-001",
		Image:      []byte("fake-jpeg-bytes"),
		ImageMIME:  "image/jpeg",
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	image := []byte("identical image bytes")

	first := Fingerprint(image)
	second := Fingerprint(image)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, Fingerprint([]byte("different bytes")))
}

func TestModelVerifier_Verify(t *testing.T) {
	ai := &mockAIClient{}
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		if len(req.Messages) != 1 || len(req.Messages[0].Blocks) != 2 {
			return false
		}
		return req.Messages[0].Blocks[1].Type == "image" &&
			req.Messages[0].Blocks[1].MediaType == "image/jpeg"
	})).Return(textResponse(`{"signatureDetected": true, "confidence": 88, "readableText": null, "imageQuality": "good", "notes": "ok"}`), nil)

	v := NewModelVerifier(ai, "claude-sonnet-4-5-20250929")
	verdict, err := v.Verify(context.Background(), testClaim())

	require.NoError(t, err)
	assert.True(t, verdict.SignatureDetected)
	assert.InDelta(t, 0.88, verdict.Confidence, 1e-9)
	assert.Equal(t, Fingerprint([]byte("fake-jpeg-bytes")), verdict.ContentFingerprint)
	assert.False(t, verdict.VerifiedAt.IsZero())
	ai.AssertExpectations(t)
}

func TestModelVerifier_MaxTokensConfigurable(t *testing.T) {
	ai := &mockAIClient{}
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.MaxTokens == 2048
	})).Return(textResponse(`{"signatureDetected": true, "confidence": 90, "readableText": null, "imageQuality": "good", "notes": "ok"}`), nil)

	v := NewModelVerifier(ai, "claude-sonnet-4-5-20250929", WithMaxTokens(2048))
	_, err := v.Verify(context.Background(), testClaim())

	require.NoError(t, err)
	ai.AssertExpectations(t)
}

func TestModelVerifier_MaxTokensDefaultWhenUnset(t *testing.T) {
	ai := &mockAIClient{}
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.MaxTokens == 1024
	})).Return(textResponse(`{"signatureDetected": true, "confidence": 90, "readableText": null, "imageQuality": "good", "notes": "ok"}`), nil)

	v := NewModelVerifier(ai, "claude-sonnet-4-5-20250929", WithMaxTokens(0))
	_, err := v.Verify(context.Background(), testClaim())

	require.NoError(t, err)
	ai.AssertExpectations(t)
}

func TestModelVerifier_NetworkErrorIsError(t *testing.T) {
	ai := &mockAIClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, eris.New("connection timeout"))

	v := NewModelVerifier(ai, "claude-sonnet-4-5-20250929")
	verdict, err := v.Verify(context.Background(), testClaim())

	// Infrastructure failure is an error, never a low-confidence verdict.
	require.Error(t, err)
	assert.Nil(t, verdict)
	assert.Contains(t, err.Error(), "SHIP-001")
}

func TestModelVerifier_MalformedResponseUsesHeuristic(t *testing.T) {
	ai := &mockAIClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("Yes there is a signature visible, quality looks fine."), nil)

	v := NewModelVerifier(ai, "claude-sonnet-4-5-20250929")
	verdict, err := v.Verify(context.Background(), testClaim())

	require.NoError(t, err)
	assert.True(t, verdict.Heuristic)
	assert.True(t, verdict.SignatureDetected)
	assert.InDelta(t, heuristicConfidence, verdict.Confidence, 1e-9)
	assert.NotEmpty(t, verdict.ContentFingerprint)
}

func TestModelVerifier_EmptyResponseIsError(t *testing.T) {
	ai := &mockAIClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{}, nil)

	v := NewModelVerifier(ai, "claude-sonnet-4-5-20250929")
	_, err := v.Verify(context.Background(), testClaim())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty model response")
}
