package launch

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrConfig     = errors.New("configuration error")
	ErrChain      = errors.New("chain query error")
	ErrBuild      = errors.New("build error")
	ErrSigning    = errors.New("signing error")
	ErrValidation = errors.New("validation error")

	// ErrMissingContract is a configuration error: no address for a contract on a network.
	ErrMissingContract = fmt.Errorf("%w: missing contract address", ErrConfig)
)

func configErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfig, msg)
}

// ChainError wraps an RPC failure, keeping the original error in the chain.
func ChainError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrChain, op, err)
}

// ValidationError reports a structurally invalid bundle.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StepError is returned when an orchestration step fails.
// Diagnostics carries whatever amounts were already computed.
type StepError struct {
	Step        string
	Kind        OpKind
	WalletIndex int // -1 when the step is not bound to a bundle wallet
	Err         error
	Diagnostics any
}

func (e *StepError) Error() string {
	if e.WalletIndex >= 0 {
		return fmt.Sprintf("step %s (%s, wallet %d): %v", e.Step, e.Kind, e.WalletIndex, e.Err)
	}
	return fmt.Sprintf("step %s (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
