package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeInsufficientBalance is used when an entry's balance cannot cover a transfer
	ErrCodeInsufficientBalance = "ERR_INSUFFICIENT_BALANCE"
	// ErrCodeOutOfOrderCorrection is used when a correction would precede the log head
	ErrCodeOutOfOrderCorrection = "ERR_OUT_OF_ORDER_CORRECTION"
	// ErrCodeInvalidPhaseTransition is used when a recognition phase breaks the legal sequence
	ErrCodeInvalidPhaseTransition = "ERR_INVALID_PHASE_TRANSITION"
	// ErrCodeIndexNotPublished is used when no index rate exists for a reference month
	ErrCodeIndexNotPublished = "ERR_INDEX_NOT_PUBLISHED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:           http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:           http.StatusUnprocessableEntity,
	ErrCodeInsufficientBalance:    http.StatusUnprocessableEntity,
	ErrCodeOutOfOrderCorrection:   http.StatusUnprocessableEntity,
	ErrCodeInvalidPhaseTransition: http.StatusUnprocessableEntity,
	ErrCodeIndexNotPublished:      http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the standardized
// wire format. Codes not named here pass through HTTP status derivation
// as-is and fall back to 500.
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"DUPLICATE_LEDGER_ENTRY":   ErrCodeAlreadyExists,
	"CONCURRENCY_CONFLICT":     ErrCodeConcurrencyConflict,
	"INSUFFICIENT_BALANCE":     ErrCodeInsufficientBalance,
	"OUT_OF_ORDER_CORRECTION":  ErrCodeOutOfOrderCorrection,
	"INVALID_PHASE_TRANSITION": ErrCodeInvalidPhaseTransition,
	"INDEX_NOT_FOUND":          ErrCodeIndexNotPublished,
	"INVALID_STATE":            ErrCodeInvalidState,
	"INVALID_INPUT":            ErrCodeInvalidInput,
	"INVALID_CONTRACT":         ErrCodeInvalidInput,
	"INVALID_FIELD":            ErrCodeInvalidInput,
	"INVALID_REMITTANCE":       ErrCodeInvalidInput,
	"INVALID_COST_ORIGIN":      ErrCodeInvalidInput,
	"INVALID_SHARING_GROUP":    ErrCodeInvalidInput,
	"INVALID_RECOGNITION_DATE": ErrCodeInvalidInput,
	"INVALID_CORRECTION_TYPE":  ErrCodeInvalidInput,
	"INVALID_EFFECTIVE_DATE":   ErrCodeInvalidInput,
	"INVALID_INDEX_KIND":       ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a domain error code to the standardized
// format. If the code is already in the new format or unknown, returns
// it as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
