package apierrors

import (
	"encoding/json"
	"fmt"
)

// APIError carries an HTTP status and a stable machine-readable code.
// Services return it; the handler layer renders it as a JSON error body.
type APIError struct {
	Status int      `json:"status"`
	Codes  []string `json:"error"`
}

func (e *APIError) Error() string {
	b, err := json.Marshal(e.Codes)
	if err != nil {
		return fmt.Sprintf("api error %d", e.Status)
	}
	return string(b)
}

func NewAPIError(status int, codes ...string) *APIError {
	return &APIError{Status: status, Codes: codes}
}

var (
	ErrGenerateAccessTokenFailed  = NewAPIError(500, "TOKEN_GENERATION_FAILED")
	ErrGenerateRefreshTokenFailed = NewAPIError(500, "TOKEN_GENERATION_FAILED")
)
