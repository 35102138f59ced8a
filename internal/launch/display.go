package launch

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Display helpers. Only used at the output boundary, never mid-calculation.

// FormatUnits renders an integer amount with the given decimals, e.g. wei as ETH.
func FormatUnits(x *big.Int, decimals int32, places int32) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -decimals).StringFixed(places)
}

// FormatETH renders wei as ETH with 6 places.
func FormatETH(wei *big.Int) string { return FormatUnits(wei, 18, 6) }

// FormatGwei renders wei as gwei with 2 places.
func FormatGwei(wei *big.Int) string { return FormatUnits(wei, 9, 2) }

// FormatBps renders basis points as a percentage with 2 places.
func FormatBps(bps *big.Int) string { return FormatUnits(bps, 2, 2) + "%" }
