package helpers

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPKey holds the generated TOTP key information.
type TOTPKey struct {
	Secret string // Base32-encoded secret
	URL    string // otpauth:// URL for QR code generation
}

// GenerateTOTPSecret creates a new TOTP secret for the given email.
// Returns the secret and a URL that can be used to generate a QR code.
func GenerateTOTPSecret(issuer string, email string) (*TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: email,
		SecretSize:  20,
	})
	if err != nil {
		return nil, err
	}

	return &TOTPKey{
		Secret: key.Secret(),
		URL:    key.URL(),
	}, nil
}

// GenerateTOTPCode computes the code for the secret at the given time.
func GenerateTOTPCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCode(secret, at)
}

// ValidateTOTPCodeAt validates a 6-digit TOTP code against the given secret
// at the given time. One period of clock skew is tolerated in each direction.
func ValidateTOTPCodeAt(secret string, code string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

// ValidateTOTPCode validates a code against the current clock.
func ValidateTOTPCode(secret string, code string) bool {
	return ValidateTOTPCodeAt(secret, code, time.Now())
}
