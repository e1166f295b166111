package configuration

const AppName = "helpdesk"

// JWT Audience constants for token type separation.
const (
	AudienceAccessToken  = "app:*"
	AudienceRefreshToken = "auth:refresh"
)

// JWT Token expiry times (in minutes).
const (
	AccessTokenExpiry  = 60
	RefreshTokenExpiry = 600
)

const (
	CacheMaxAppIdentityLifetime = 60
	CacheAppIdentityKey         = "app:identity"
	CacheAppRateLimitKey        = "app:ratelimit:%s"
	CacheAppWorkerLockKey       = "app:worker:lock:%s" //nolint:gosec // not a credential
	CacheAppWorkerLockTTL       = 60
	CacheAppWorkerLockRefresh   = 55
	CacheSessionStateKey        = "2fa:session:%s"
	CacheSessionStateTTL        = 48 * 3600
	CacheLoginAttemptsKey       = "login:attempts:%s"
	CacheTOTPUsedKey            = "totp:used:%s:%s"
	CacheOIDCStateKey           = "oidc:state:%s"
	CacheOIDCStateTTL           = 600
)

const (
	EventsNotifications  = "notifications"
	EventsSecurityEvents = "security_events"
)

// Two-factor enforcement defaults. Every value can be overridden through
// the two_factor configuration section.
const (
	// AccountWindowDays is how long a successful verification covers the
	// whole account before a fresh challenge is required.
	AccountWindowDays = 30
	// SessionWindowHours is the per-session verification freshness window.
	SessionWindowHours = 24
	// TrustDurationDays is the lifetime of a remembered device.
	TrustDurationDays = 30
	// RedirectLoopThreshold is the number of consecutive redirects after
	// which the loop breaker grants a session bypass.
	RedirectLoopThreshold = 3
	// RecoveryCodeLength is the length of generated recovery codes.
	RecoveryCodeLength = 20
	// RecoveryRegenerationHours throttles recovery code regeneration.
	RecoveryRegenerationHours = 24
	// TOTPCodeTTL is the time-to-live for TOTP code replay protection (in seconds).
	TOTPCodeTTL = 90
	// VerifyMaxAttempts is the number of failed verification attempts before lockout.
	VerifyMaxAttempts = 5
	// VerifyLockoutSeconds is the lockout duration after max failed attempts.
	VerifyLockoutSeconds = 900
)

const (
	DefaultSetupPath  = "/account/two-factor/setup"
	DefaultVerifyPath = "/account/two-factor/verify"
)

// Messaging provider types.
const (
	ProviderJetstream = "jetstream"
	ProviderMemory    = "memory"
)

var ArrayConfigFields = []string{
	"app.trusted_proxies",
	"app.allowed_origins",
	"two_factor.exempt_paths",
	"cache.redis.hosts",
	"cache.valkey.hosts",
}

var ConfigFileSearchPaths = []string{
	"./config.yaml",
	"templates/config.yaml",
}

var AuthProviderKeys = []string{
	"name",
	"client_id",
	"client_secret",
	"issuer",
}
