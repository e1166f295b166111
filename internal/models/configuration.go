package models

type Configuration struct {
	App       AppConfiguration       `mapstructure:"app"        validate:"required"`
	TwoFactor TwoFactorConfiguration `mapstructure:"two_factor" validate:"required"`
	Database  DatabaseConfiguration  `mapstructure:"database"   validate:"required"`
	Auth      AuthConfiguration      `mapstructure:"auth"       validate:"required"`
	Cache     CacheConfiguration     `mapstructure:"cache"      validate:"required"`
	Events    EventsConfiguration    `mapstructure:"events"     validate:"required"`
	Notifier  NotifierConfiguration  `mapstructure:"notifier"   validate:"required"`
	Activity  ActivityConfiguration  `mapstructure:"activity"   validate:"required"`
	Telemetry TelemetryConfiguration `mapstructure:"telemetry"`
}

// TelemetryConfiguration enables trace export and continuous profiling.
type TelemetryConfiguration struct {
	Enabled           bool   `mapstructure:"enabled"`
	OTLPEndpoint      string `mapstructure:"otlp_endpoint"      validate:"required_if=Enabled true"`
	PyroscopeEndpoint string `mapstructure:"pyroscope_endpoint"`
}

type AppConfiguration struct {
	Profile             string   `mapstructure:"profile"               validate:"oneof=default api worker"`
	AdminEmail          string   `mapstructure:"admin_email"           validate:"required,email"`
	AdminPassword       string   `mapstructure:"admin_password"        validate:"required"`
	APIURL              string   `mapstructure:"api_url"               validate:"required"`
	AllowedOrigins      []string `mapstructure:"allowed_origins"       validate:"required"`
	JWTSecret           string   `mapstructure:"jwt_secret"            validate:"required"`
	SecretEncryptionKey string   `mapstructure:"secret_encryption_key" validate:"len=32"`
	FingerprintSalt     string   `mapstructure:"fingerprint_salt"      validate:"required"`
	AccessTokenExpiry   int      `mapstructure:"access_token_expiry"   validate:"gte=1,lte=1440"`
	RefreshTokenExpiry  int      `mapstructure:"refresh_token_expiry"  validate:"gte=1,lte=720"`
	LogLevel            string   `mapstructure:"log_level"             validate:"oneof=debug info warn error fatal panic"`
	Port                int      `mapstructure:"port"                  validate:"gte=80,lte=65535"`
	TrustedProxies      []string `mapstructure:"trusted_proxies"       validate:"required"`
	WebURL              string   `mapstructure:"web_url"               validate:"required"`
}

// TwoFactorConfiguration drives the enforcement engine. All durations are
// expressed in the unit their name carries so that YAML stays readable.
type TwoFactorConfiguration struct {
	Enabled               bool     `mapstructure:"enabled"`
	Issuer                string   `mapstructure:"issuer"                  validate:"required"`
	AccountWindowDays     int      `mapstructure:"account_window_days"     validate:"gte=1,lte=365"`
	SessionWindowHours    int      `mapstructure:"session_window_hours"    validate:"gte=1,lte=720"`
	TrustDurationDays     int      `mapstructure:"trust_duration_days"     validate:"gte=1,lte=365"`
	RedirectLoopThreshold int      `mapstructure:"redirect_loop_threshold" validate:"gte=2,lte=10"`
	RecoveryCodeLength    int      `mapstructure:"recovery_code_length"    validate:"gte=16,lte=64"`
	RegenerationHours     int      `mapstructure:"regeneration_hours"      validate:"gte=1,lte=168"`
	SetupPath             string   `mapstructure:"setup_path"              validate:"required"`
	VerifyPath            string   `mapstructure:"verify_path"             validate:"required"`
	ExemptPaths           []string `mapstructure:"exempt_paths"`
	ExemptSuperusers      bool     `mapstructure:"exempt_superusers"`
}

type DatabaseConfiguration struct {
	Host     string `mapstructure:"host"     validate:"required"`
	Port     int32  `mapstructure:"port"     validate:"gte=80,lte=65535"`
	User     string `mapstructure:"user"     validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name"     validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

type AuthConfiguration struct {
	Providers map[string]ProviderConfiguration `mapstructure:"providers" validate:"omitempty,dive"`
}

type ProviderConfiguration struct {
	Name    string            `mapstructure:"name"    validate:"required_if=Type oidc"`
	Type    ProviderType      `mapstructure:"type"    validate:"required,oneof=local oidc"`
	OIDC    OIDCConfiguration `mapstructure:"oidc"    validate:"required_if=Type oidc"`
	Domains []string          `mapstructure:"domains"`
}

type OIDCConfiguration struct {
	ClientID     string `mapstructure:"client_id"     validate:"required_if=Type oidc"`
	ClientSecret string `mapstructure:"client_secret" validate:"required_if=Type oidc"`
	Issuer       string `mapstructure:"issuer"        validate:"required_if=Type oidc"`
}

type CacheConfiguration struct {
	Type   string                    `mapstructure:"type"   validate:"required,oneof=redis valkey"`
	Redis  *RedisCacheConfiguration  `mapstructure:"redis"  validate:"required_if=Type redis"`
	Valkey *ValkeyCacheConfiguration `mapstructure:"valkey" validate:"required_if=Type valkey"`
}

type RedisCacheConfiguration struct {
	Hosts         []string `mapstructure:"hosts"`
	Password      string   `mapstructure:"password"`
	TLSEnabled    bool     `mapstructure:"tls_enabled"`
	TLSServerName string   `mapstructure:"tls_server_name"`
}

type ValkeyCacheConfiguration struct {
	Hosts         []string `mapstructure:"hosts"`
	Password      string   `mapstructure:"password"`
	TLSEnabled    bool     `mapstructure:"tls_enabled"`
	TLSServerName string   `mapstructure:"tls_server_name"`
}

type QueueConfig struct {
	Name string `mapstructure:"name" validate:"required"`
}

type EventsConfiguration struct {
	Type      string                 `mapstructure:"type"      validate:"required,oneof=jetstream memory"`
	Queues    map[string]QueueConfig `mapstructure:"queues"    validate:"required"`
	Jetstream *JetStreamEventsConfig `mapstructure:"jetstream" validate:"required_if=Type jetstream"`
}

type JetStreamEventsConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port string `mapstructure:"port" validate:"required"`
}

type MailerConfiguration struct {
	Host          string `mapstructure:"host"            validate:"required"`
	Port          int    `mapstructure:"port"            validate:"required"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	Sender        string `mapstructure:"sender"          validate:"required"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
	SkipVerifyTLS bool   `mapstructure:"skip_verify_tls"`
}

type NotifierConfiguration struct {
	Type       string                           `mapstructure:"type"       validate:"required,oneof=smtp filesystem"`
	SMTP       *MailerConfiguration             `mapstructure:"smtp"       validate:"required_if=Type smtp"`
	Filesystem *FilesystemNotifierConfiguration `mapstructure:"filesystem" validate:"required_if=Type filesystem"`
}

type FilesystemNotifierConfiguration struct {
	Directory string `mapstructure:"directory" validate:"required"`
}

type ActivityConfiguration struct {
	Type       string                           `mapstructure:"type"       validate:"required,oneof=loki filesystem"`
	Loki       *LokiConfiguration               `mapstructure:"loki"       validate:"required_if=Type loki"`
	Filesystem *FilesystemActivityConfiguration `mapstructure:"filesystem" validate:"required_if=Type filesystem"`
}

type FilesystemActivityConfiguration struct {
	Directory string `mapstructure:"directory" validate:"required"`
}

type LokiConfiguration struct {
	Endpoint string `mapstructure:"endpoint" validate:"required,http_url"`
}

// AuthConfig groups authentication-related configuration for services.
// This reduces the number of individual fields passed to services and
// makes it easier to add new auth-related config without modifying service structs.
type AuthConfig struct {
	JWTSecret           string
	SecretEncryptionKey string
	FingerprintSalt     string
	AccessTokenExpiry   int
	RefreshTokenExpiry  int
	WebURL              string
	AdminEmail          string
}

// GetAuthConfig extracts authentication configuration from AppConfiguration.
func (c *AppConfiguration) GetAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:           c.JWTSecret,
		SecretEncryptionKey: c.SecretEncryptionKey,
		FingerprintSalt:     c.FingerprintSalt,
		AccessTokenExpiry:   c.AccessTokenExpiry,
		RefreshTokenExpiry:  c.RefreshTokenExpiry,
		WebURL:              c.WebURL,
		AdminEmail:          c.AdminEmail,
	}
}
