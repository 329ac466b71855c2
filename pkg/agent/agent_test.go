package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetkite-hq/jetkite-go/pkg/intent"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
	"github.com/jetkite-hq/jetkite-go/pkg/tracker"
	"github.com/jetkite-hq/jetkite-go/pkg/transport"
)

func validParams() models.IntentParams {
	return models.IntentParams{
		SourceChain:  "ethereum",
		DestChain:    "base",
		TokenIn:      "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		TokenOut:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		AmountIn:     "1000000000000000000",
		MinAmountOut: "995000000000000000",
		Deadline:     time.Now().Add(time.Hour).UnixMilli(),
	}
}

func newTestAgent(t *testing.T, handler http.Handler) (*Agent, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := transport.DefaultConfig(server.URL)
	cfg.MaxRetries = 0
	cfg.RetryDelay = time.Millisecond
	tc, err := transport.NewClient(cfg)
	require.NoError(t, err)
	return New(intent.NewManager(tc, nil), tracker.NewTracker(tc, nil), nil), &hits
}

func TestBatchSubmit(t *testing.T) {
	t.Run("results keep input order across mixed outcomes", func(t *testing.T) {
		var submitted int32
		a, _ := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&submitted, 1)
			fmt.Fprintf(w, `{"intentId":"JK-%09d"}`, n)
		}))

		bad := validParams()
		bad.AmountIn = "0"

		items := []SubmitItem{
			{Params: validParams(), Signature: "0xsig1"},
			{Params: bad, Signature: "0xsig2"},
			{Params: validParams(), Signature: "0xsig3"},
		}
		results := a.BatchSubmit(context.Background(), items)

		require.Len(t, results, 3)
		assert.True(t, results[0].Success)
		assert.NotEmpty(t, results[0].IntentID)
		assert.False(t, results[1].Success)
		assert.Error(t, results[1].Err)
		assert.True(t, results[2].Success)
		assert.Equal(t, int32(2), atomic.LoadInt32(&submitted))
	})

	t.Run("empty batch yields an empty result", func(t *testing.T) {
		a, hits := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		results := a.BatchSubmit(context.Background(), nil)
		assert.Empty(t, results)
		assert.Equal(t, int32(0), atomic.LoadInt32(hits))
	})
}

func TestDryRun(t *testing.T) {
	t.Run("valid params estimate the input amount", func(t *testing.T) {
		a, hits := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		result := a.DryRun(validParams())
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
		assert.Equal(t, validParams().AmountIn, result.EstimatedCost)
		assert.Equal(t, int32(0), atomic.LoadInt32(hits))
	})

	t.Run("invalid params collect every defect without a network call", func(t *testing.T) {
		a, hits := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		params := validParams()
		params.AmountIn = "-1"
		params.TokenOut = "not-an-address"

		result := a.DryRun(params)
		assert.False(t, result.Valid)
		assert.GreaterOrEqual(t, len(result.Errors), 2)
		assert.Empty(t, result.EstimatedCost)
		assert.Equal(t, int32(0), atomic.LoadInt32(hits))
	})
}

func TestValidatePolicy(t *testing.T) {
	t.Run("empty policy always passes", func(t *testing.T) {
		result := ValidatePolicy(validParams(), models.Policy{})
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("amount ceiling", func(t *testing.T) {
		policy := models.Policy{MaxAmountIn: "500000000000000000"}
		result := ValidatePolicy(validParams(), policy)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "exceeds policy maximum")
	})

	t.Run("unparseable amount against a ceiling is a violation", func(t *testing.T) {
		params := validParams()
		params.AmountIn = "lots"
		policy := models.Policy{MaxAmountIn: "500000000000000000"}

		result := ValidatePolicy(params, policy)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "cannot be checked")
	})

	t.Run("no ceiling means no amount check", func(t *testing.T) {
		params := validParams()
		params.AmountIn = "lots"
		result := ValidatePolicy(params, models.Policy{})
		assert.True(t, result.Valid)
	})

	t.Run("chain allow-lists", func(t *testing.T) {
		policy := models.Policy{
			AllowedSourceChains: []string{"arbitrum"},
			AllowedDestChains:   []string{"base"},
		}
		result := ValidatePolicy(validParams(), policy)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "source chain")
	})

	t.Run("token allow-lists match case-insensitively", func(t *testing.T) {
		params := validParams()
		policy := models.Policy{
			AllowedTokensIn: []string{strings.ToLower(params.TokenIn)},
		}
		result := ValidatePolicy(params, policy)
		assert.True(t, result.Valid)
	})

	t.Run("deadline offset ceiling", func(t *testing.T) {
		params := validParams()
		params.Deadline = time.Now().Add(48 * time.Hour).UnixMilli()
		policy := models.Policy{MaxDeadlineOffsetMs: time.Hour.Milliseconds()}
		result := ValidatePolicy(params, policy)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors[0], "deadline")
	})

	t.Run("every violation is collected", func(t *testing.T) {
		params := validParams()
		policy := models.Policy{
			MaxAmountIn:         "1",
			AllowedSourceChains: []string{"arbitrum"},
			AllowedTokensOut:    []string{"0x0000000000000000000000000000000000000001"},
		}
		result := ValidatePolicy(params, policy)
		assert.False(t, result.Valid)
		assert.Len(t, result.Errors, 3)
	})

	t.Run("method form matches the package function", func(t *testing.T) {
		a, _ := newTestAgent(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		policy := models.Policy{MaxAmountIn: "1"}
		assert.Equal(t, ValidatePolicy(validParams(), policy), a.ValidatePolicy(validParams(), policy))
	})
}

func TestBatchResultSerialization(t *testing.T) {
	// Err is internal; the wire shape only exposes success and id.
	raw, err := json.Marshal(BatchResult{Success: true, IntentID: "JK-a1b2c3d4e", Err: fmt.Errorf("hidden")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"intentId":"JK-a1b2c3d4e"}`, string(raw))
}
