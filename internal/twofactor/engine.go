package twofactor

import (
	"strings"
	"time"

	"helpdesk/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Audit event names emitted by the engine and the verification flows.
const (
	EventVerificationRequired  = "verification_required"
	EventVerificationSucceeded = "verification_succeeded"
	EventSetupRequired         = "setup_required"
	EventLoopBreakTriggered    = "loop_break_triggered"
	EventRecoveryCodeUsed      = "recovery_code_used"
)

// Outcome is the terminal state of one enforcement evaluation.
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeRedirectSetup
	OutcomeRedirectVerify
	OutcomeRedirectDebug
)

// Decision is what Evaluate returns. Every branch of the precedence order
// terminates in one of these; the engine never returns an error.
type Decision struct {
	Outcome    Outcome
	Reason     string
	ReturnPath string
	LoopBreak  bool
	Message    string
	Severity   string
}

// EnforcementConfig carries every knob the engine consults. It is built once
// at startup and injected; the engine reads no globals.
type EnforcementConfig struct {
	Enabled          bool
	AccountWindow    time.Duration
	SessionWindow    time.Duration
	LoopThreshold    int
	SetupPath        string
	VerifyPath       string
	ExemptPaths      []string
	ExemptSuperusers bool
}

// NewEnforcementConfig translates the configuration section into engine units.
func NewEnforcementConfig(cfg models.TwoFactorConfiguration) EnforcementConfig {
	return EnforcementConfig{
		Enabled:          cfg.Enabled,
		AccountWindow:    time.Duration(cfg.AccountWindowDays) * 24 * time.Hour,
		SessionWindow:    time.Duration(cfg.SessionWindowHours) * time.Hour,
		LoopThreshold:    cfg.RedirectLoopThreshold,
		SetupPath:        cfg.SetupPath,
		VerifyPath:       cfg.VerifyPath,
		ExemptPaths:      cfg.ExemptPaths,
		ExemptSuperusers: cfg.ExemptSuperusers,
	}
}

// Engine decides, per authenticated request, whether the caller may proceed
// or must first complete a 2FA flow. It mutates the session state it is
// handed; the caller persists it afterwards.
type Engine struct {
	Config   EnforcementConfig
	Profiles *ProfileStore
	Trust    *TrustStore
	Now      func() time.Time

	// Record, when set, receives audit events. Nil is fine.
	Record func(event string, userID uuid.UUID, fields map[string]string)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) record(event string, userID uuid.UUID, fields map[string]string) {
	if e.Record != nil {
		e.Record(event, userID, fields)
	}
}

// isExemptPath matches the configured exemption list. The setup and verify
// pages are exempt through that list too; the configuration loader seeds them
// there by default, and redirectVerify detects deployments that removed the
// verify page from it.
func (e *Engine) isExemptPath(path string) bool {
	for _, exempt := range e.Config.ExemptPaths {
		if path == exempt || strings.HasPrefix(path, exempt+"/") {
			return true
		}
	}
	return false
}

// VerifyPathExempt reports whether the verify flow itself escapes
// enforcement. When false every verification redirect would loop.
func (e *Engine) VerifyPathExempt() bool {
	return e.isExemptPath(e.Config.VerifyPath)
}

// redirectVerify builds the require-verification decision. If the verify
// target is itself subject to enforcement the deployment is misconfigured
// and every redirect would loop, so administrators get the debug outcome
// instead of the user getting trapped.
func (e *Engine) redirectVerify(state *models.SessionState, path string) Decision {
	if !e.isExemptPath(e.Config.VerifyPath) {
		return Decision{
			Outcome:  OutcomeRedirectDebug,
			Reason:   "verify_path_not_exempt",
			Message:  "Two-factor verification is misconfigured. Contact an administrator.",
			Severity: "error",
		}
	}

	state.RedirectLoopCount++
	if state.PendingReturnPath == "" {
		state.PendingReturnPath = path
	}

	return Decision{
		Outcome:    OutcomeRedirectVerify,
		Reason:     "verification_required",
		ReturnPath: state.PendingReturnPath,
		Message:    "Please confirm your identity with your authenticator app.",
		Severity:   "info",
	}
}

// Evaluate runs the precedence order for one request. First match wins:
//
//  1. exempt path
//  2. session bypass active
//  3. role, group or federated-identity exemption
//  4. not enrolled: approved users are forced into setup
//  5. account-level window fresh
//  6. session-level verification fresh
//  7. trusted device (account slot first, then device table)
//  8. loop breaker
//  9. default: require verification
//
// Storage failures never allow access; they degrade to the verification
// redirect (fail closed).
func (e *Engine) Evaluate(
	user *models.User,
	state *models.SessionState,
	path string,
	clientIP string,
	userAgent string,
) Decision {
	if !e.Config.Enabled {
		return Decision{Outcome: OutcomeAllow, Reason: "enforcement_disabled"}
	}

	if e.isExemptPath(path) {
		return Decision{Outcome: OutcomeAllow, Reason: "exempt_path"}
	}

	if state.BypassActive {
		return Decision{Outcome: OutcomeAllow, Reason: "session_bypass"}
	}

	if e.Config.ExemptSuperusers && user.Role == models.RoleAdmin {
		return Decision{Outcome: OutcomeAllow, Reason: "superuser_exempt"}
	}
	if user.ExemptFromTwoFactor() {
		return Decision{Outcome: OutcomeAllow, Reason: "group_exempt"}
	}
	if user.ProviderType != "" && user.ProviderType != models.LocalProviderType {
		// Federated identities prove themselves at the IdP; local TOTP
		// enforcement does not apply to them.
		return Decision{Outcome: OutcomeAllow, Reason: "federated_identity"}
	}

	now := e.now()

	profile, err := e.Profiles.Get(user.ID)
	if err != nil {
		zap.L().Error("Failed to load 2FA profile, failing closed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return e.redirectVerify(state, path)
	}

	if profile == nil || !profile.Enabled {
		if !user.Approved {
			return Decision{Outcome: OutcomeAllow, Reason: "account_not_approved"}
		}
		if path == e.Config.SetupPath {
			return Decision{Outcome: OutcomeAllow, Reason: "setup_in_progress"}
		}
		if state.PendingReturnPath == "" {
			state.PendingReturnPath = path
		}
		e.record(EventSetupRequired, user.ID, map[string]string{"path": path})
		return Decision{
			Outcome:    OutcomeRedirectSetup,
			Reason:     "setup_required",
			ReturnPath: state.PendingReturnPath,
			Message:    "Two-factor authentication is required for your account. Set it up now.",
			Severity:   "info",
		}
	}

	if profile.AuthenticatedWithin(e.Config.AccountWindow, now) {
		return Decision{Outcome: OutcomeAllow, Reason: "account_window"}
	}

	if state.VerifiedWithin(e.Config.SessionWindow, now) {
		return Decision{Outcome: OutcomeAllow, Reason: "session_window"}
	}

	fingerprint := e.Trust.Fingerprint(userAgent)
	if profile.AccountTrustMatches(fingerprint, clientIP, now) {
		state.MarkVerified(now)
		return Decision{Outcome: OutcomeAllow, Reason: "account_trust"}
	}

	trusted, err := e.Trust.IsTrusted(user.ID, fingerprint, clientIP)
	if err != nil {
		zap.L().Error("Failed to check device trust, failing closed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		trusted = false
	}
	if trusted {
		// Device trust also satisfies the session window for the rest of
		// this session.
		state.MarkVerified(now)
		return Decision{Outcome: OutcomeAllow, Reason: "device_trust"}
	}

	if state.RedirectLoopCount >= e.Config.LoopThreshold {
		state.ActivateBypass()
		zap.L().Warn("Redirect loop detected, bypass activated",
			zap.String("user_id", user.ID.String()),
			zap.String("path", path))
		e.record(EventLoopBreakTriggered, user.ID, map[string]string{"path": path})
		return Decision{
			Outcome:   OutcomeAllow,
			Reason:    "loop_break",
			LoopBreak: true,
			Message:   "We could not complete two-factor verification. Verify manually as soon as possible.",
			Severity:  "warning",
		}
	}

	e.record(EventVerificationRequired, user.ID, map[string]string{"path": path})
	return e.redirectVerify(state, path)
}
