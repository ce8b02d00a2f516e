package core

import "errors"

var (
	ErrNotFound                 = errors.New("not found")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrInvalidState             = errors.New("invalid state")
	ErrInvalidInput             = errors.New("invalid input")
	ErrBidTooLow                = errors.New("bid too low")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrReserveFailed            = errors.New("reserve failed")
	ErrSettlementTransferFailed = errors.New("settlement transfer failed")
	ErrDuplicateIdentifier      = errors.New("duplicate identifier")
)

// ErrorKind maps an engine error to a stable snake_case name for wire responses.
// Unknown errors map to "internal".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	// Reserve failures usually wrap ErrInsufficientFunds too, so check them first.
	case errors.Is(err, ErrReserveFailed):
		return "reserve_failed"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrSettlementTransferFailed):
		return "settlement_transfer_failed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, ErrDuplicateIdentifier):
		return "duplicate_identifier"
	default:
		return "internal"
	}
}
