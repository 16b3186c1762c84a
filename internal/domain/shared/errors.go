package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	// Engine-specific errors
	ErrOutOfOrderCorrection   = NewDomainError("OUT_OF_ORDER_CORRECTION", "Correction effective date precedes the latest active correction")
	ErrIndexNotFound          = NewDomainError("INDEX_NOT_FOUND", "No index rate registered for the requested period")
	ErrInsufficientBalance    = NewDomainError("INSUFFICIENT_BALANCE", "Amount exceeds the outstanding balance")
	ErrInvalidPhaseTransition = NewDomainError("INVALID_PHASE_TRANSITION", "Remittance phase does not follow the legal sequence")
	ErrDuplicateLedgerEntry   = NewDomainError("DUPLICATE_LEDGER_ENTRY", "A ledger entry already exists for this contract/field/remittance/phase")
)
