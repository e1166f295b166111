package cache

import "helpdesk/internal/models"

type ICache interface {
	RegisterPlatform(id string) error
	DeleteInactivePlatform() error
	StartIdentityTicker(id string)

	GetRateLimit(userIdentifier string, requestsPerMinute int) (int, error)

	// GetSessionState loads the verification state for a session. A missing
	// key yields a zero-valued state and found == false.
	GetSessionState(sessionID string) (models.SessionState, bool, error)
	// SetSessionState stores the verification state with the session TTL.
	SetSessionState(sessionID string, state models.SessionState) error
	// DeleteSessionState removes the state, ending any session-level trust.
	DeleteSessionState(sessionID string) error

	// IsTOTPCodeUsed checks if a TOTP code has already been consumed for a user.
	IsTOTPCodeUsed(userID string, code string) (bool, error)
	// MarkTOTPCodeUsed marks a TOTP code as used. Returns false if the code
	// was already marked (replay).
	MarkTOTPCodeUsed(userID string, code string) (bool, error)

	// GetVerifyAttempts returns the current number of failed verification attempts.
	GetVerifyAttempts(userID string) (int, error)
	// IncrementVerifyAttempts increments failed attempts and refreshes the lockout TTL.
	IncrementVerifyAttempts(userID string) error
	// ResetVerifyAttempts clears the counter after a successful verification.
	ResetVerifyAttempts(userID string) error

	// SetOIDCState stores the nonce for an in-flight OIDC login keyed by state.
	SetOIDCState(state string, nonce string) error
	// ConsumeOIDCState pops the nonce for a state. A missing or expired state
	// yields found == false.
	ConsumeOIDCState(state string) (string, bool, error)

	TryAcquireLock(key string, instanceID string, ttlSeconds int) (bool, error)
	RefreshLock(key string, instanceID string, ttlSeconds int) (bool, error)

	Close() error
}
