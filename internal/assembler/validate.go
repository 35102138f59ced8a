package assembler

import (
	"fmt"

	"github.com/ligun0805/launch-bundler/internal/launch"
)

func invalid(field, reason string) error {
	return &launch.ValidationError{Field: field, Reason: reason}
}

// Validate rejects structurally unusable bundles. Errors are *launch.ValidationError.
func Validate(b Bundle) error {
	switch b := b.(type) {
	case *Sequential:
		if b == nil || len(b.Transactions) == 0 {
			return invalid("transactions", "empty")
		}
		for i, tx := range b.Transactions {
			if !tx.IsSigned() {
				return invalid("transactions", fmt.Sprintf("transaction %d is not signed", i))
			}
		}
		return validateTotals(b.TotalGas, b)
	case *Relay:
		if b == nil || len(b.SignedTransactions) == 0 {
			return invalid("signedTransactions", "empty")
		}
		for i, tx := range b.SignedTransactions {
			if tx == nil {
				return invalid("signedTransactions", fmt.Sprintf("transaction %d is nil", i))
			}
		}
		if err := validateTotals(b.TotalGas, b); err != nil {
			return err
		}
		if b.TargetBlock == 0 {
			return invalid("targetBlock", "must be > 0")
		}
		if b.FeeCaps.MaxFeePerGas == nil || b.FeeCaps.MaxPriorityFeePerGas == nil {
			return invalid("feeCaps", "not set")
		}
		if b.FeeCaps.MaxFeePerGas.Cmp(b.FeeCaps.MaxPriorityFeePerGas) < 0 {
			return invalid("feeCaps", "max fee below priority fee")
		}
		return nil
	case nil:
		return invalid("bundle", "nil")
	}
	return invalid("bundle", fmt.Sprintf("unknown kind %T", b))
}

func validateTotals(gas uint64, b Bundle) error {
	if gas == 0 {
		return invalid("totalGas", "must be > 0")
	}
	if c := b.Cost(); c == nil || c.Sign() <= 0 {
		return invalid("estimatedCost", "must be > 0")
	}
	return nil
}
