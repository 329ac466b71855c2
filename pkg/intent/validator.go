package intent

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

// ValidationResult reports every violation found in a set of params.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

var decimalInteger = regexp.MustCompile(`^[0-9]+$`)

// ValidateParams runs every check against the params and collects all
// violations rather than stopping at the first. Pure and side-effect-free.
func ValidateParams(params models.IntentParams) ValidationResult {
	var violations []string

	required := []struct {
		name  string
		value string
	}{
		{"sourceChain", params.SourceChain},
		{"destChain", params.DestChain},
		{"tokenIn", params.TokenIn},
		{"tokenOut", params.TokenOut},
		{"amountIn", params.AmountIn},
		{"minAmountOut", params.MinAmountOut},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			violations = append(violations, fmt.Sprintf("%s is required", field.name))
		}
	}

	if v := validateAmount("amountIn", params.AmountIn); v != "" {
		violations = append(violations, v)
	}
	if v := validateAmount("minAmountOut", params.MinAmountOut); v != "" {
		violations = append(violations, v)
	}

	if strings.TrimSpace(params.TokenIn) != "" && !isTokenAddress(params.TokenIn) {
		violations = append(violations, "tokenIn must be a 0x-prefixed 40-hex-character address")
	}
	if strings.TrimSpace(params.TokenOut) != "" && !isTokenAddress(params.TokenOut) {
		violations = append(violations, "tokenOut must be a 0x-prefixed 40-hex-character address")
	}

	if params.Deadline <= time.Now().UnixMilli() {
		violations = append(violations, "deadline must be in the future")
	}

	return ValidationResult{Valid: len(violations) == 0, Errors: violations}
}

// isTokenAddress requires the 0x prefix explicitly: IsHexAddress alone
// also accepts a bare 40-hex string.
func isTokenAddress(value string) bool {
	return strings.HasPrefix(value, "0x") && common.IsHexAddress(value)
}

// validateAmount checks that value is a positive decimal integer string.
// Blank values are reported by the required-field check instead.
func validateAmount(name, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	if !decimalInteger.MatchString(value) {
		return fmt.Sprintf("%s must be a decimal integer string with no fractional component", name)
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() <= 0 {
		return fmt.Sprintf("%s must be a positive integer", name)
	}
	return ""
}
