package intent

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

const (
	// TypedDataDomainName is the fixed EIP-712 domain name for intents.
	TypedDataDomainName = "JetKite Intents"

	// TypedDataDomainVersion is the fixed EIP-712 domain version.
	TypedDataDomainVersion = "1"

	// ZeroAddress is the default verifying contract.
	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// DefaultChainID is the default EIP-712 domain chain id.
	DefaultChainID = 1
)

// TypedDataOptions overrides the EIP-712 domain defaults.
type TypedDataOptions struct {
	// ChainID defaults to DefaultChainID when zero.
	ChainID int64
	// VerifyingContract defaults to the zero address when empty.
	VerifyingContract string
}

// GetTypedData builds the EIP-712 payload handed to an external signer.
// Pure function: identical input always yields identical output. The
// message holds exactly the seven canonical fields; extra application
// keys never enter the signing payload.
func GetTypedData(params models.IntentParams, opts *TypedDataOptions) apitypes.TypedData {
	chainID := int64(DefaultChainID)
	verifyingContract := ZeroAddress
	if opts != nil {
		if opts.ChainID != 0 {
			chainID = opts.ChainID
		}
		if opts.VerifyingContract != "" {
			verifyingContract = opts.VerifyingContract
		}
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Intent": []apitypes.Type{
				{Name: "sourceChain", Type: "string"},
				{Name: "destChain", Type: "string"},
				{Name: "tokenIn", Type: "address"},
				{Name: "tokenOut", Type: "address"},
				{Name: "amountIn", Type: "uint256"},
				{Name: "minAmountOut", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Intent",
		Domain: apitypes.TypedDataDomain{
			Name:              TypedDataDomainName,
			Version:           TypedDataDomainVersion,
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: verifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"sourceChain":  params.SourceChain,
			"destChain":    params.DestChain,
			"tokenIn":      params.TokenIn,
			"tokenOut":     params.TokenOut,
			"amountIn":     decimalOrZero(params.AmountIn),
			"minAmountOut": decimalOrZero(params.MinAmountOut),
			"deadline":     (*math.HexOrDecimal256)(big.NewInt(params.Deadline)),
		},
	}
}

// decimalOrZero parses a decimal-integer string for the message payload.
// Validation has already rejected malformed amounts; an unparseable value
// here maps to zero rather than panicking.
func decimalOrZero(value string) *math.HexOrDecimal256 {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		n = big.NewInt(0)
	}
	return (*math.HexOrDecimal256)(n)
}
