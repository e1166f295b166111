package apierrors

// Stable error codes returned by the two-factor endpoints.
const (
	// HTTP 400 Bad Request.
	ErrNoSecretConfigured  = "NO_SECRET_CONFIGURED"
	ErrTwoFactorNotEnabled = "TWO_FACTOR_NOT_ENABLED"

	// HTTP 401 Unauthorized.
	ErrInvalidCode         = "INVALID_CODE"
	ErrRecoveryCodeInvalid = "RECOVERY_CODE_INVALID"

	// HTTP 409 Conflict.
	ErrTwoFactorAlreadyEnabled = "TWO_FACTOR_ALREADY_ENABLED"

	// HTTP 429 Too Many Requests.
	ErrThrottledRegeneration = "THROTTLED_REGENERATION"
)
