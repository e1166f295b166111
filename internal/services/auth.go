package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"helpdesk/internal/activity"
	"helpdesk/internal/cache"
	"helpdesk/internal/configuration"
	apierrors "helpdesk/internal/errors"
	"helpdesk/internal/handlers"
	h "helpdesk/internal/helpers"
	"helpdesk/internal/messaging"
	m "helpdesk/internal/middlewares"
	"helpdesk/internal/models"

	"github.com/alexedwards/argon2id"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type AuthService struct {
	DB             *gorm.DB
	Cache          cache.ICache
	AuthConfig     models.AuthConfig
	Providers      configuration.Providers
	Publisher      messaging.IPublisher
	ActivityLogger activity.IActivityLogger
}

func (s AuthService) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(m.Validate[models.AuthLoginBody]).Post("/login", handlers.CreateHandler(s.Login))
	r.With(m.Validate[models.AuthRefreshBody]).Post("/refresh", handlers.CreateHandler(s.Refresh))
	r.Post("/logout", handlers.DeleteHandler(s.Logout))

	r.Route("/providers", func(r chi.Router) {
		r.Get("/", handlers.GetListHandler(s.GetProviderList))
		r.Route("/{provider}", func(r chi.Router) {
			r.Get("/begin", handlers.OpenIDBeginHandler(s.OpenIDBegin))
			r.Get("/callback", handlers.OpenIDCallbackHandler(s.AuthConfig.WebURL, s.OpenIDCallback))
		})
	})
	return r
}

// Login verifies a local email/password pair and issues a token pair bound to
// a fresh session. Failed attempts share the verification lockout counter so
// password guessing and TOTP guessing trip the same brake.
func (s AuthService) Login(
	logger *zap.Logger,
	_ models.UserClaims,
	_ uuid.UUIDs,
	body models.AuthLoginBody,
) (models.AuthLoginResponse, error) {
	if _, ok := s.Providers[string(models.LocalProviderType)]; !ok {
		logger.Debug("Local auth provider not activated in the configuration")
		return models.AuthLoginResponse{}, apierrors.NewAPIError(403, "FORBIDDEN")
	}

	if !h.IsDomainAllowed(body.Email, s.Providers[string(models.LocalProviderType)].Domains) {
		logger.Debug("Domain not allowed")
		return models.AuthLoginResponse{}, apierrors.NewAPIError(403, "FORBIDDEN")
	}

	attempts, err := s.Cache.GetVerifyAttempts(body.Email)
	if err != nil {
		logger.Error("Lockout check failed, denying request", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(503, "SERVICE_UNAVAILABLE")
	}
	if attempts >= configuration.VerifyMaxAttempts {
		logger.Warn("Login rate limited", zap.String("email", body.Email))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(429, "TOO_MANY_ATTEMPTS")
	}

	var searchUser models.User
	result := s.DB.Where("email = ? AND provider_type = ? AND provider_key = ?",
		body.Email, models.LocalProviderType, string(models.LocalProviderType)).
		First(&searchUser)
	if result.RowsAffected != 1 {
		s.recordFailedLogin(logger, body.Email)
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, "INVALID_CREDENTIALS")
	}

	match, err := argon2id.ComparePasswordAndHash(body.Password, searchUser.HashedPassword)
	if err != nil || !match {
		s.recordFailedLogin(logger, body.Email)
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, "INVALID_CREDENTIALS")
	}

	if resetErr := s.Cache.ResetVerifyAttempts(body.Email); resetErr != nil {
		logger.Error("Failed to reset login attempts", zap.Error(resetErr))
	}

	return s.openSession(logger, &searchUser, string(models.LocalProviderType))
}

func (s AuthService) recordFailedLogin(logger *zap.Logger, email string) {
	if err := s.Cache.IncrementVerifyAttempts(email); err != nil {
		logger.Error("Failed to increment login attempts", zap.Error(err))
	}
}

// openSession creates the per-session verification state and issues both
// tokens. Every login starts unverified; the enforcement middleware decides
// on the first request whether a challenge is due.
func (s AuthService) openSession(
	logger *zap.Logger,
	user *models.User,
	provider string,
) (models.AuthLoginResponse, error) {
	sessionID := uuid.New()

	if err := s.Cache.SetSessionState(sessionID.String(), models.SessionState{}); err != nil {
		logger.Error("Failed to initialize session state", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(503, "SERVICE_UNAVAILABLE")
	}

	accessToken, err := h.NewAccessToken(s.AuthConfig.JWTSecret, user, provider, sessionID)
	if err != nil {
		logger.Error("Failed to generate access token", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(500, "GENERATE_ACCESS_TOKEN_FAILED")
	}

	refreshToken, err := h.NewRefreshToken(s.AuthConfig.JWTSecret, user, provider, sessionID)
	if err != nil {
		logger.Error("Failed to generate refresh token", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(500, "GENERATE_REFRESH_TOKEN_FAILED")
	}

	action := models.Activity{
		Message: activity.UserLoggedIn,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.UserLoggedIn,
			"user_id":     user.ID.String(),
			"email":       user.Email,
			"object_type": "user",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log login activity", zap.Error(logErr))
	}

	logger.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", provider))

	return models.AuthLoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh exchanges a refresh token for a new access token on the same
// session. The session keeps its verification state.
func (s AuthService) Refresh(
	logger *zap.Logger,
	_ models.UserClaims,
	_ uuid.UUIDs,
	body models.AuthRefreshBody,
) (models.AuthRefreshResponse, error) {
	claims, err := h.ParseRefreshToken(s.AuthConfig.JWTSecret, body.RefreshToken)
	if err != nil {
		return models.AuthRefreshResponse{}, apierrors.NewAPIError(401, "INVALID_REFRESH_TOKEN")
	}

	var user models.User
	result := s.DB.Where("id = ?", claims.UserID).First(&user)
	if result.RowsAffected != 1 {
		return models.AuthRefreshResponse{}, apierrors.NewAPIError(401, "INVALID_REFRESH_TOKEN")
	}

	accessToken, err := h.NewAccessToken(s.AuthConfig.JWTSecret, &user, claims.Provider, claims.SessionID)
	if err != nil {
		logger.Error("Failed to generate access token", zap.Error(err))
		return models.AuthRefreshResponse{}, apierrors.NewAPIError(500, "GENERATE_ACCESS_TOKEN_FAILED")
	}

	return models.AuthRefreshResponse{AccessToken: accessToken}, nil
}

// Logout destroys the session verification state. Any session-level trust or
// loop-breaker bypass dies with it.
func (s AuthService) Logout(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
) error {
	if err := s.Cache.DeleteSessionState(claims.SessionID.String()); err != nil {
		logger.Error("Failed to delete session state", zap.Error(err))
		return apierrors.NewAPIError(500, "LOGOUT_FAILED")
	}

	action := models.Activity{
		Message: activity.UserLoggedOut,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.UserLoggedOut,
			"user_id":     claims.UserID.String(),
			"email":       claims.Email,
			"object_type": "user",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log logout activity", zap.Error(logErr))
	}

	return nil
}

func (s AuthService) GetProviderList(
	_ *zap.Logger,
	_ models.UserClaims,
	_ uuid.UUIDs,
) ([]models.ProviderResponse, error) {
	providers := make([]models.ProviderResponse, len(s.Providers))
	for id, provider := range s.Providers {
		if len(provider.Domains) == 0 {
			provider.Domains = []string{}
		}

		providers[provider.Order] = models.ProviderResponse{
			ID:      id,
			Name:    provider.Name,
			Type:    provider.Type,
			Domains: provider.Domains,
		}
	}
	return providers, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s AuthService) OpenIDBegin(logger *zap.Logger, providerKey string) (string, error) {
	provider, ok := s.Providers[providerKey]
	if !ok || provider.Type != models.OIDCProviderType {
		return "", apierrors.NewAPIError(404, "PROVIDER_NOT_FOUND")
	}

	state, err := randomToken()
	if err != nil {
		return "", err
	}
	nonce, err := randomToken()
	if err != nil {
		return "", err
	}

	if err = s.Cache.SetOIDCState(state, nonce); err != nil {
		logger.Error("Failed to store OIDC state", zap.Error(err))
		return "", apierrors.NewAPIError(503, "SERVICE_UNAVAILABLE")
	}

	return provider.OauthConfig.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.AccessTypeOffline), nil
}

func (s AuthService) OpenIDCallback(
	logger *zap.Logger,
	providerKey string,
	code string,
	state string,
) (models.AuthLoginResponse, error) {
	provider, ok := s.Providers[providerKey]
	if !ok || provider.Type != models.OIDCProviderType {
		return models.AuthLoginResponse{}, apierrors.NewAPIError(404, "PROVIDER_NOT_FOUND")
	}

	nonce, found, err := s.Cache.ConsumeOIDCState(state)
	if err != nil {
		logger.Error("Failed to load OIDC state", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(503, "SERVICE_UNAVAILABLE")
	}
	if !found {
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, "INVALID_OIDC_STATE")
	}

	ctx := context.Background()

	oauth2Token, err := provider.OauthConfig.Exchange(ctx, code)
	if err != nil {
		logger.Error("Failed to exchange authorization code", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, "OIDC_EXCHANGE_FAILED")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, "OIDC_EXCHANGE_FAILED")
	}

	idToken, err := provider.Verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logger.Error("Failed to verify ID token", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, "OIDC_EXCHANGE_FAILED")
	}

	if idToken.Nonce != nonce {
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, "INVALID_OIDC_NONCE")
	}

	userInfo, err := provider.Provider.UserInfo(ctx, oauth2.StaticTokenSource(oauth2Token))
	if err != nil {
		logger.Error("Failed to get user info", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, "OIDC_EXCHANGE_FAILED")
	}

	if !h.IsDomainAllowed(userInfo.Email, provider.Domains) {
		logger.Debug("Domain not allowed")
		return models.AuthLoginResponse{}, apierrors.NewAPIError(403, "FORBIDDEN")
	}

	searchUser := models.User{
		Email:        userInfo.Email,
		ProviderType: models.OIDCProviderType,
		ProviderKey:  providerKey,
	}
	result := s.DB.Where(searchUser, "email", "provider_type", "provider_key").Find(&searchUser)
	if result.Error != nil {
		return models.AuthLoginResponse{}, result.Error
	}
	if result.RowsAffected == 0 {
		searchUser.Role = models.RoleClient
		if err = s.DB.Create(&searchUser).Error; err != nil {
			logger.Error("Failed to create user", zap.Error(err))
			return models.AuthLoginResponse{}, apierrors.NewAPIError(500, "INTERNAL_SERVER_ERROR")
		}
	}

	return s.openSession(logger, &searchUser, providerKey)
}
