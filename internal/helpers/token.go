package helpers

import (
	"context"
	"errors"
	"strings"
	"time"

	"helpdesk/internal/configuration"
	"helpdesk/internal/models"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenConfig holds configuration for creating a specific token type.
type tokenConfig struct {
	audience      string
	provider      string
	sessionID     uuid.UUID
	expiryMinutes int
}

// createToken is a generic helper for creating JWT tokens with specified configuration.
// This private function consolidates the common token creation logic used by all public
// token creation functions (NewAccessToken, NewRefreshToken).
func createToken(jwtSecret string, user *models.User, config tokenConfig) (string, error) {
	claims := models.UserClaims{
		Email:     user.Email,
		UserID:    user.ID,
		SessionID: config.sessionID,
		Role:      user.Role,
		Aud:       config.audience,
		Issuer:    configuration.AppName,
		Provider:  config.provider,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  &jwt.NumericDate{Time: time.Now()},
			ExpiresAt: &jwt.NumericDate{Time: time.Now().Add(time.Minute * time.Duration(config.expiryMinutes))},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// ParseToken parses and validates a JWT token without audience validation.
// It validates signature, expiry, and issuer only.
// Audience validation is delegated to the authenticator middleware for route-specific rules.
// The requireBearer parameter controls whether the "Bearer " prefix is required.
func ParseToken(jwtSecret string, tokenString string, requireBearer bool) (models.UserClaims, error) {
	if requireBearer {
		if !strings.HasPrefix(tokenString, "Bearer ") {
			return models.UserClaims{}, errors.New("invalid token")
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	}

	claims := &models.UserClaims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		},
	)
	if err != nil {
		return models.UserClaims{}, errors.New("invalid token")
	}

	return *claims, nil
}

func CreateHash(password string) (string, error) {
	argonParams := argon2id.Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  32,
		KeyLength:   32,
	}
	hash, err := argon2id.CreateHash(password, &argonParams)
	if err != nil {
		return "", errors.New("can not create hash password")
	}

	return hash, nil
}

// NewAccessToken issues an access token bound to the given session. The
// session ID keys the per-session verification state in the cache.
func NewAccessToken(jwtSecret string, user *models.User, provider string, sessionID uuid.UUID) (string, error) {
	return createToken(jwtSecret, user, tokenConfig{
		audience:      configuration.AudienceAccessToken,
		provider:      provider,
		sessionID:     sessionID,
		expiryMinutes: configuration.AccessTokenExpiry,
	})
}

func NewRefreshToken(jwtSecret string, user *models.User, provider string, sessionID uuid.UUID) (string, error) {
	return createToken(jwtSecret, user, tokenConfig{
		audience:      configuration.AudienceRefreshToken,
		provider:      provider,
		sessionID:     sessionID,
		expiryMinutes: configuration.RefreshTokenExpiry,
	})
}

// ParseAccessToken validates a bearer access token from the Authorization
// header.
func ParseAccessToken(jwtSecret string, header string) (models.UserClaims, error) {
	return ParseToken(jwtSecret, header, true)
}

// ParseRefreshToken validates and parses a refresh token.
// Returns error if token is invalid or has wrong audience.
func ParseRefreshToken(jwtSecret string, refreshToken string) (models.UserClaims, error) {
	claims, err := ParseToken(jwtSecret, refreshToken, false)
	if err != nil {
		return models.UserClaims{}, errors.New("invalid refresh token")
	}

	if claims.Aud != configuration.AudienceRefreshToken {
		return models.UserClaims{}, errors.New("invalid refresh token audience")
	}

	return claims, nil
}

func GetUserClaims(c context.Context) (models.UserClaims, error) {
	value, ok := c.Value(models.UserClaimKey{}).(models.UserClaims)
	if !ok {
		return models.UserClaims{}, errors.New("invalid user claims")
	}
	return value, nil
}
