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
	// ErrCodeUnavailable is used when a dependency such as the database is down
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Input error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeRequestTooLarge is used when the body exceeds the limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when the operator token is missing or wrong
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
)

// Auction rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeAuctionNotRunning is used for bids outside the bidding window
	ErrCodeAuctionNotRunning = "ERR_AUCTION_NOT_RUNNING"
	// ErrCodeAuctionNotEnded is used for contribution requests on open auctions
	ErrCodeAuctionNotEnded = "ERR_AUCTION_NOT_ENDED"
	// ErrCodeBidTooLow is used when a bid does not beat the top bid
	ErrCodeBidTooLow = "ERR_BID_TOO_LOW"
	// ErrCodeNoWinner is used when an ended auction has no settled bid
	ErrCodeNoWinner = "ERR_NO_WINNER"
	// ErrCodeAlreadySettled is used when a payment was already settled
	ErrCodeAlreadySettled = "ERR_ALREADY_SETTLED"
	// ErrCodeContributionExists is used when a contribution invoice already exists
	ErrCodeContributionExists = "ERR_CONTRIBUTION_EXISTS"
)

// Settlement and payout error codes
const (
	// ErrCodeReconcilerRunning is used when start is called on a running reconciler
	ErrCodeReconcilerRunning = "ERR_RECONCILER_RUNNING"
	// ErrCodeNotSettled is used when a payout precedes contribution settlement
	ErrCodeNotSettled = "ERR_NOT_SETTLED"
	// ErrCodeNoPayoutAddress is used when the seller has no Lightning address
	ErrCodeNoPayoutAddress = "ERR_NO_PAYOUT_ADDRESS"
	// ErrCodeNothingToPay is used when the contribution consumes the whole bid
	ErrCodeNothingToPay = "ERR_NOTHING_TO_PAY"
	// ErrCodeAlreadyPaid is used when a payout was already attempted
	ErrCodeAlreadyPaid = "ERR_ALREADY_PAID"
	// ErrCodeGateway is used when the Lightning backend fails
	ErrCodeGateway = "ERR_GATEWAY"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,

	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeAuctionNotRunning:  http.StatusUnprocessableEntity,
	ErrCodeAuctionNotEnded:    http.StatusUnprocessableEntity,
	ErrCodeBidTooLow:          http.StatusUnprocessableEntity,
	ErrCodeNoWinner:           http.StatusUnprocessableEntity,
	ErrCodeAlreadySettled:     http.StatusConflict,
	ErrCodeContributionExists: http.StatusConflict,

	ErrCodeReconcilerRunning: http.StatusConflict,
	ErrCodeNotSettled:        http.StatusUnprocessableEntity,
	ErrCodeNoPayoutAddress:   http.StatusUnprocessableEntity,
	ErrCodeNothingToPay:      http.StatusUnprocessableEntity,
	ErrCodeAlreadyPaid:       http.StatusConflict,
	ErrCodeGateway:           http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":           ErrCodeNotFound,
	"INVALID_INPUT":       ErrCodeInvalidInput,
	"INVALID_STATE":       ErrCodeInvalidState,
	"CONFLICT":            ErrCodeConflict,
	"INVALID_AMOUNT":      ErrCodeInvalidInput,
	"AUCTION_NOT_RUNNING": ErrCodeAuctionNotRunning,
	"AUCTION_NOT_ENDED":   ErrCodeAuctionNotEnded,
	"BID_TOO_LOW":         ErrCodeBidTooLow,
	"NO_WINNER":           ErrCodeNoWinner,
	"ALREADY_SETTLED":     ErrCodeAlreadySettled,
	"CONTRIBUTION_EXISTS": ErrCodeContributionExists,
	"NO_CONTRIBUTION":     ErrCodeInvalidState,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
