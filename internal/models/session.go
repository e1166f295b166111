package models

import "time"

// SessionState is the ephemeral per-session verification record. It lives in
// the cache keyed by session ID and is destroyed with the session. The
// enforcement engine receives it as an explicit value and mutates it; the
// middleware persists it back after every evaluation.
type SessionState struct {
	Verified          bool       `json:"verified"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	RedirectLoopCount int        `json:"redirect_loop_count"`
	BypassActive      bool       `json:"bypass_active"`
	PendingReturnPath string     `json:"pending_return_path,omitempty"`
}

// MarkVerified records a successful verification and resets the
// loop-prevention counter.
func (s *SessionState) MarkVerified(now time.Time) {
	s.Verified = true
	s.VerifiedAt = &now
	s.RedirectLoopCount = 0
}

// ActivateBypass turns on the loop-breaker bypass. The flag is monotonic for
// the lifetime of the session; only a new login clears it.
func (s *SessionState) ActivateBypass() {
	s.BypassActive = true
	s.RedirectLoopCount = 0
}

// VerifiedWithin reports whether a session-level verification is still fresh.
func (s *SessionState) VerifiedWithin(ttl time.Duration, now time.Time) bool {
	return s.Verified && s.VerifiedAt != nil && now.Sub(*s.VerifiedAt) < ttl
}

// ConsumeReturnPath pops the stored post-verification redirect target.
func (s *SessionState) ConsumeReturnPath() string {
	path := s.PendingReturnPath
	s.PendingReturnPath = ""
	return path
}
