package chainkit

import "fmt"

// VerificationError represents an expected, terminal verification failure.
// Verifiers return these inside typed result values rather than as Go
// errors; the error interface is implemented so callers that do want to
// propagate them can.
type VerificationError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewVerificationError creates a new verification error.
func NewVerificationError(code, message string, details map[string]interface{}) *VerificationError {
	return &VerificationError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Failure codes. Verifiers never return a bare "invalid"; every rejection
// carries one of these so callers and operators can tell a replay attempt
// apart from a stale hash.
const (
	ErrCodeConfiguration       = "configuration_error"
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeNotFound            = "transaction_not_found"
	ErrCodeReceiptFailed       = "receipt_failed"
	ErrCodeTransactionFailed   = "transaction_failed"
	ErrCodeWrongContract       = "wrong_contract"
	ErrCodeMissingInput        = "missing_input"
	ErrCodeNotExpectedCall     = "not_expected_call"
	ErrCodeResourceIDMismatch  = "resource_id_mismatch"
	ErrCodePayerNotAllowed     = "payer_not_allowed"
	ErrCodeNoMatchingTransfer  = "no_matching_transfer"
	ErrCodeAmountMismatch      = "amount_mismatch"
	ErrCodeIdempotencyConflict = "idempotency_conflict"
)

// ConfigError is a fatal configuration problem: a missing or mismatched
// signer key or contract address. It is surfaced at startup or first use
// and never retried.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrCodeConfiguration, e.Message, e.Field)
}
