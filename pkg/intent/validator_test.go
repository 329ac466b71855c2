package intent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

func validParams() models.IntentParams {
	return models.IntentParams{
		SourceChain:  "ethereum",
		DestChain:    "base",
		TokenIn:      "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		TokenOut:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		AmountIn:     "1000000",
		MinAmountOut: "995000",
		Deadline:     time.Now().Add(time.Hour).UnixMilli(),
	}
}

func TestValidateParams(t *testing.T) {
	t.Run("valid params pass", func(t *testing.T) {
		result := ValidateParams(validParams())
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("zero amountIn is rejected", func(t *testing.T) {
		params := validParams()
		params.AmountIn = "0"

		result := ValidateParams(params)
		require.False(t, result.Valid)
		assert.True(t, mentionsField(result.Errors, "amountIn"))
	})

	t.Run("fractional amount is rejected", func(t *testing.T) {
		params := validParams()
		params.AmountIn = "1000.5"

		result := ValidateParams(params)
		require.False(t, result.Valid)
		assert.True(t, mentionsField(result.Errors, "amountIn"))
	})

	t.Run("past deadline is rejected", func(t *testing.T) {
		params := validParams()
		params.Deadline = time.Now().Add(-time.Second).UnixMilli()

		result := ValidateParams(params)
		require.False(t, result.Valid)
		assert.True(t, mentionsField(result.Errors, "deadline"))
	})

	t.Run("malformed token addresses are rejected", func(t *testing.T) {
		params := validParams()
		params.TokenIn = "0x123"
		params.TokenOut = "not-an-address"

		result := ValidateParams(params)
		require.False(t, result.Valid)
		assert.True(t, mentionsField(result.Errors, "tokenIn"))
		assert.True(t, mentionsField(result.Errors, "tokenOut"))
	})

	t.Run("unprefixed token addresses are rejected", func(t *testing.T) {
		params := validParams()
		params.TokenIn = "A0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

		result := ValidateParams(params)
		require.False(t, result.Valid)
		assert.True(t, mentionsField(result.Errors, "tokenIn"))
	})

	t.Run("blank fields are all reported", func(t *testing.T) {
		result := ValidateParams(models.IntentParams{})
		require.False(t, result.Valid)
		for _, field := range []string{"sourceChain", "destChain", "tokenIn", "tokenOut", "amountIn", "minAmountOut", "deadline"} {
			assert.True(t, mentionsField(result.Errors, field), "expected a violation mentioning %s", field)
		}
	})

	t.Run("independent defects are collected, not short-circuited", func(t *testing.T) {
		params := validParams()
		params.AmountIn = "0"
		params.TokenOut = "bogus"
		params.Deadline = 1

		result := ValidateParams(params)
		require.False(t, result.Valid)
		assert.GreaterOrEqual(t, len(result.Errors), 3)
	})
}

func mentionsField(violations []string, field string) bool {
	for _, v := range violations {
		if strings.Contains(v, field) {
			return true
		}
	}
	return false
}
