// Package intent validates, serializes and submits cross-chain intents
// and builds the typed signing payload handed to an external wallet.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jetkite-hq/jetkite-go/pkg/jkerrors"
	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/metrics"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
	"github.com/jetkite-hq/jetkite-go/pkg/transport"
)

const (
	// SubmitPath is the intent submission endpoint.
	SubmitPath = "/intents"

	// IntentPath is the single-intent retrieval endpoint prefix.
	IntentPath = "/intents/"
)

// submission is the wire payload accepted by the submission endpoint.
type submission struct {
	Params    models.IntentParams `json:"params"`
	Signature string              `json:"signature"`
}

// submissionResponse is the wire shape returned on submission.
type submissionResponse struct {
	IntentID string `json:"intentId"`
}

// Manager submits and retrieves intents through the transport client.
type Manager struct {
	transport *transport.Client
	logger    logger.Logger
}

// NewManager creates an intent manager on top of a transport client.
func NewManager(tc *transport.Client, log logger.Logger) *Manager {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Manager{transport: tc, logger: log}
}

// Validate runs the pure parameter checks and collects every violation.
func (m *Manager) Validate(params models.IntentParams) ValidationResult {
	return ValidateParams(params)
}

// Submit validates the params, then posts them with the signature and
// returns the server-assigned intent id. Validation failures raise before
// any network call.
func (m *Manager) Submit(ctx context.Context, params models.IntentParams, signature string) (string, error) {
	result := ValidateParams(params)
	violations := result.Errors
	if strings.TrimSpace(signature) == "" {
		violations = append(violations, "signature is required")
	}
	if len(violations) > 0 {
		metrics.IntentsSubmitted.WithLabelValues("invalid").Inc()
		return "", jkerrors.NewValidationError(violations)
	}

	raw, err := m.transport.Post(ctx, SubmitPath, submission{Params: params, Signature: signature}, nil)
	if err != nil {
		metrics.IntentsSubmitted.WithLabelValues("error").Inc()
		return "", err
	}

	var resp submissionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		metrics.IntentsSubmitted.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to decode submission response: %w", err)
	}
	if resp.IntentID == "" {
		metrics.IntentsSubmitted.WithLabelValues("error").Inc()
		return "", fmt.Errorf("submission response missing intent id")
	}

	metrics.IntentsSubmitted.WithLabelValues("success").Inc()
	m.logger.Info("Submitted intent %s (%s -> %s)", resp.IntentID, params.SourceChain, params.DestChain)
	return resp.IntentID, nil
}

// Get fetches a single intent by id. Transport failures propagate
// unchanged.
func (m *Manager) Get(ctx context.Context, id string) (*models.Intent, error) {
	raw, err := m.transport.Get(ctx, IntentPath+id, nil)
	if err != nil {
		return nil, err
	}
	var it models.Intent
	if err := json.Unmarshal(raw, &it); err != nil {
		return nil, fmt.Errorf("failed to decode intent %s: %w", id, err)
	}
	return &it, nil
}

// List fetches every intent visible to the caller.
func (m *Manager) List(ctx context.Context) ([]models.Intent, error) {
	raw, err := m.transport.Get(ctx, SubmitPath, nil)
	if err != nil {
		return nil, err
	}
	var intents []models.Intent
	if err := json.Unmarshal(raw, &intents); err != nil {
		return nil, fmt.Errorf("failed to decode intent list: %w", err)
	}
	return intents, nil
}
