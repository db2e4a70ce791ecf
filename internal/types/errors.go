package types

import "errors"

// Domain error taxonomy. The REST layer maps these onto HTTP statuses;
// ErrStoreUnavailable is recovered inside the risk engine and never reaches
// a registry caller.
var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrStoreUnavailable = errors.New("alert store unavailable")
	ErrInvalidInput     = errors.New("invalid device input")
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
