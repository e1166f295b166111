package models

type ProviderType string

const (
	LocalProviderType ProviderType = "local"
	OIDCProviderType  ProviderType = "oidc"
)

type AuthLoginBody struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type AuthLoginResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type AuthRefreshBody struct {
	RefreshToken string `json:"refresh_token" validate:"required,max=2048"`
}

type AuthRefreshResponse struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type ProviderResponse struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Type    ProviderType `json:"type"`
	Domains []string     `json:"domains"`
}

type Error struct {
	Status int      `json:"status"`
	Error  []string `json:"error"`
}

// TwoFactorChallenge is the JSON body returned when the enforcement
// middleware blocks a request. RedirectTo names the flow the client must
// complete; ReturnPath is replayed after a successful verification.
type TwoFactorChallenge struct {
	Error      string `json:"error"`
	RedirectTo string `json:"redirect_to"`
	ReturnPath string `json:"return_path,omitempty"`
	Message    string `json:"message,omitempty"`
	Severity   string `json:"severity,omitempty"`
	DebugPath  string `json:"debug_path,omitempty"`
}
