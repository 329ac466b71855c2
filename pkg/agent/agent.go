// Package agent composes batch submission, dry-run validation, policy
// enforcement and multi-intent subscriptions for autonomous callers.
package agent

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/jetkite-hq/jetkite-go/pkg/intent"
	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
	"github.com/jetkite-hq/jetkite-go/pkg/tracker"
)

// SubmitItem is one entry of a batch submission.
type SubmitItem struct {
	Params    models.IntentParams `json:"params"`
	Signature string              `json:"signature"`
}

// BatchResult reports one item's outcome. Results keep input order.
type BatchResult struct {
	Success  bool   `json:"success"`
	IntentID string `json:"intentId,omitempty"`
	Err      error  `json:"-"`
}

// DryRunResult is the outcome of a local-only validation pass.
type DryRunResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
	// EstimatedCost echoes the input amount: without a network call the
	// client has nothing better than the user's own ceiling.
	EstimatedCost string `json:"estimatedCost,omitempty"`
}

// Agent bundles intent submission and tracking for batch workflows.
type Agent struct {
	manager *intent.Manager
	tracker *tracker.Tracker
	logger  logger.Logger
}

// New creates an agent on top of an intent manager and tracker.
func New(manager *intent.Manager, trk *tracker.Tracker, log logger.Logger) *Agent {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Agent{manager: manager, tracker: trk, logger: log}
}

// BatchSubmit submits every item concurrently. The result slice has the
// same length and order as the input; one item's validation or network
// failure never blocks or corrupts another's result.
func (a *Agent) BatchSubmit(ctx context.Context, items []SubmitItem) []BatchResult {
	results := make([]BatchResult, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item SubmitItem) {
			defer wg.Done()
			id, err := a.manager.Submit(ctx, item.Params, item.Signature)
			if err != nil {
				results[i] = BatchResult{Success: false, Err: err}
				return
			}
			results[i] = BatchResult{Success: true, IntentID: id}
		}(i, item)
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	a.logger.InfoWithScope(logger.Agent, "Batch submit finished: %d/%d succeeded", succeeded, len(items))
	return results
}

// DryRun validates the params exactly like Submit but never touches the
// network.
func (a *Agent) DryRun(params models.IntentParams) DryRunResult {
	result := intent.ValidateParams(params)
	out := DryRunResult{Valid: result.Valid, Errors: result.Errors}
	if result.Valid {
		out.EstimatedCost = params.AmountIn
	}
	return out
}

// ValidatePolicy evaluates every configured constraint independently and
// accumulates all violations. An empty policy always passes.
func ValidatePolicy(params models.IntentParams, policy models.Policy) intent.ValidationResult {
	var violations []string

	if policy.MaxAmountIn != "" {
		max, maxOK := new(big.Int).SetString(policy.MaxAmountIn, 10)
		amount, amountOK := new(big.Int).SetString(params.AmountIn, 10)
		switch {
		case !maxOK || !amountOK:
			// A ceiling that cannot be checked must not pass silently.
			violations = append(violations, fmt.Sprintf("amountIn %q cannot be checked against policy maximum %q", params.AmountIn, policy.MaxAmountIn))
		case amount.Cmp(max) > 0:
			violations = append(violations, fmt.Sprintf("amountIn %s exceeds policy maximum %s", params.AmountIn, policy.MaxAmountIn))
		}
	}

	if len(policy.AllowedSourceChains) > 0 && !containsString(policy.AllowedSourceChains, params.SourceChain) {
		violations = append(violations, fmt.Sprintf("source chain %q is not in the policy allow-list", params.SourceChain))
	}
	if len(policy.AllowedDestChains) > 0 && !containsString(policy.AllowedDestChains, params.DestChain) {
		violations = append(violations, fmt.Sprintf("destination chain %q is not in the policy allow-list", params.DestChain))
	}
	if len(policy.AllowedTokensIn) > 0 && !containsFold(policy.AllowedTokensIn, params.TokenIn) {
		violations = append(violations, fmt.Sprintf("input token %s is not in the policy allow-list", params.TokenIn))
	}
	if len(policy.AllowedTokensOut) > 0 && !containsFold(policy.AllowedTokensOut, params.TokenOut) {
		violations = append(violations, fmt.Sprintf("output token %s is not in the policy allow-list", params.TokenOut))
	}

	if policy.MaxDeadlineOffsetMs > 0 {
		maxDeadline := time.Now().UnixMilli() + policy.MaxDeadlineOffsetMs
		if params.Deadline > maxDeadline {
			violations = append(violations, fmt.Sprintf("deadline exceeds the policy maximum offset of %dms", policy.MaxDeadlineOffsetMs))
		}
	}

	return intent.ValidationResult{Valid: len(violations) == 0, Errors: violations}
}

// ValidatePolicy evaluates a policy against params. Method form of the
// package-level function for facade consumers.
func (a *Agent) ValidatePolicy(params models.IntentParams, policy models.Policy) intent.ValidationResult {
	return ValidatePolicy(params, policy)
}

func containsString(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}

// containsFold compares case-insensitively, needed for hex addresses.
func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}
