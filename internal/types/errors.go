package types

import "errors"

// Error taxonomy shared by the builder, the coordinator and the HTTP layer.
// Callers wrap these with fmt.Errorf("...: %w", Err...) and classify with errors.Is.
var (
	// ErrInputInvalid user-correctable input: missing secret, zero amount, malformed address
	ErrInputInvalid = errors.New("invalid input")

	// ErrNoSuchCommitment the claimed prior deposit is not in the ledger snapshot
	ErrNoSuchCommitment = errors.New("no such commitment")

	// ErrInsufficientBalance withdrawal exceeds the recorded balance
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadySpent the ledger rejected a reused nullifier or duplicate leaf
	ErrAlreadySpent = errors.New("already spent")

	// ErrProverFailure constraint violation or prover transport error
	ErrProverFailure = errors.New("prover failure")

	// ErrSubmissionFailure contract call reverted or wallet unavailable
	ErrSubmissionFailure = errors.New("submission failure")
)

// ErrorCode returns a stable machine-readable code for an error, used in API responses.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInputInvalid):
		return "INPUT_INVALID"
	case errors.Is(err, ErrNoSuchCommitment):
		return "NO_SUCH_COMMITMENT"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrAlreadySpent):
		return "ALREADY_SPENT"
	case errors.Is(err, ErrProverFailure):
		return "PROVER_FAILURE"
	case errors.Is(err, ErrSubmissionFailure):
		return "SUBMISSION_FAILURE"
	default:
		return "INTERNAL_ERROR"
	}
}
