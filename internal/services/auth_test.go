package services

import (
	"errors"
	"regexp"
	"testing"

	"helpdesk/internal/activity"
	apierrors "helpdesk/internal/errors"
	"helpdesk/internal/cache"
	"helpdesk/internal/configuration"
	"helpdesk/internal/helpers"
	"helpdesk/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// --- Mock Activity Logger ---

type MockActivityLogger struct {
	sent []models.Activity
}

func (m *MockActivityLogger) Send(entry models.Activity) error {
	m.sent = append(m.sent, entry)
	return nil
}
func (m *MockActivityLogger) Search(_ map[string][]string) ([]map[string]any, error) {
	return nil, nil
}
func (m *MockActivityLogger) CountByDay(_ map[string][]string, _ int) ([]models.TimeSeriesPoint, error) {
	return nil, nil
}
func (m *MockActivityLogger) Close() error { return nil }

var _ activity.IActivityLogger = (*MockActivityLogger)(nil)

// --- Mock Cache ---

type MockCache struct {
	attempts          map[string]int
	sessions          map[string]models.SessionState
	failDeleteSession bool
}

func NewMockCache() *MockCache {
	return &MockCache{
		attempts: map[string]int{},
		sessions: map[string]models.SessionState{},
	}
}

func (m *MockCache) RegisterPlatform(string) error { return nil }
func (m *MockCache) DeleteInactivePlatform() error { return nil }
func (m *MockCache) StartIdentityTicker(string)    {}

func (m *MockCache) GetRateLimit(string, int) (int, error) { return 0, nil }

func (m *MockCache) GetSessionState(sessionID string) (models.SessionState, bool, error) {
	state, found := m.sessions[sessionID]
	return state, found, nil
}

func (m *MockCache) SetSessionState(sessionID string, state models.SessionState) error {
	m.sessions[sessionID] = state
	return nil
}

func (m *MockCache) DeleteSessionState(sessionID string) error {
	if m.failDeleteSession {
		return errors.New("cache unavailable")
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *MockCache) IsTOTPCodeUsed(string, string) (bool, error)   { return false, nil }
func (m *MockCache) MarkTOTPCodeUsed(string, string) (bool, error) { return true, nil }

func (m *MockCache) GetVerifyAttempts(identifier string) (int, error) {
	return m.attempts[identifier], nil
}

func (m *MockCache) IncrementVerifyAttempts(identifier string) error {
	m.attempts[identifier]++
	return nil
}

func (m *MockCache) ResetVerifyAttempts(identifier string) error {
	delete(m.attempts, identifier)
	return nil
}

func (m *MockCache) SetOIDCState(string, string) error { return nil }
func (m *MockCache) ConsumeOIDCState(string) (string, bool, error) {
	return "", false, nil
}

func (m *MockCache) TryAcquireLock(string, string, int) (bool, error) { return true, nil }
func (m *MockCache) RefreshLock(string, string, int) (bool, error)    { return true, nil }
func (m *MockCache) Close() error                                     { return nil }

var _ cache.ICache = (*MockCache)(nil)

// --- Helpers ---

const authTestJWTSecret = "test-secret-key-for-jwt-signing"

func newAuthTestService(t *testing.T) (AuthService, sqlmock.Sqlmock, *MockCache) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)

	mockCache := NewMockCache()
	service := AuthService{
		DB:    gormDB,
		Cache: mockCache,
		AuthConfig: models.AuthConfig{
			JWTSecret: authTestJWTSecret,
			WebURL:    "http://localhost:3000",
		},
		Providers: configuration.Providers{
			"local": {
				Name:    "Local",
				Type:    models.LocalProviderType,
				Domains: []string{}, // Allow all domains
			},
		},
		ActivityLogger: &MockActivityLogger{},
	}

	return service, mock, mockCache
}

func expectUserByCredentials(mock sqlmock.Sqlmock, email string, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM "users" WHERE (email = $1 AND provider_type = $2 AND provider_key = $3) AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $4`,
	)).
		WithArgs(email, models.LocalProviderType, "local", 1).
		WillReturnRows(rows)
}

// --- Tests ---

// TestLogin tests the local email/password login flow.
func TestLogin(t *testing.T) {
	t.Run("should issue a token pair and open an unverified session", func(t *testing.T) {
		service, mock, mockCache := newAuthTestService(t)

		userID := uuid.New()
		hashedPassword, err := helpers.CreateHash("correct-password")
		require.NoError(t, err)

		rows := sqlmock.NewRows([]string{"id", "email", "provider_type", "provider_key", "hashed_password", "role", "approved"}).
			AddRow(userID, "test@example.com", models.LocalProviderType, "local", hashedPassword, models.RoleClient, true)
		expectUserByCredentials(mock, "test@example.com", rows)

		response, err := service.Login(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: "test@example.com", Password: "correct-password"},
		)

		require.NoError(t, err)
		assert.NotEmpty(t, response.AccessToken)
		assert.NotEmpty(t, response.RefreshToken)

		claims, err := helpers.ParseToken(authTestJWTSecret, "Bearer "+response.AccessToken, true)
		require.NoError(t, err)
		assert.Equal(t, configuration.AudienceAccessToken, claims.Aud)
		assert.Equal(t, userID, claims.UserID)

		state, found, err := mockCache.GetSessionState(claims.SessionID.String())
		require.NoError(t, err)
		assert.True(t, found, "login must create the session verification state")
		assert.False(t, state.Verified, "every session starts unverified")

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should reject a wrong password and count the attempt", func(t *testing.T) {
		service, mock, mockCache := newAuthTestService(t)

		userID := uuid.New()
		hashedPassword, err := helpers.CreateHash("correct-password")
		require.NoError(t, err)

		rows := sqlmock.NewRows([]string{"id", "email", "provider_type", "provider_key", "hashed_password", "role"}).
			AddRow(userID, "test@example.com", models.LocalProviderType, "local", hashedPassword, models.RoleClient)
		expectUserByCredentials(mock, "test@example.com", rows)

		_, err = service.Login(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: "test@example.com", Password: "wrong-password"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.Status)
		assert.Contains(t, apiErr.Codes, "INVALID_CREDENTIALS")
		assert.Equal(t, 1, mockCache.attempts["test@example.com"])

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should return the same error for an unknown user", func(t *testing.T) {
		service, mock, _ := newAuthTestService(t)

		expectUserByCredentials(mock, "nobody@example.com",
			sqlmock.NewRows([]string{"id", "email"}))

		_, err := service.Login(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: "nobody@example.com", Password: "anything"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.Status)
		assert.Contains(t, apiErr.Codes, "INVALID_CREDENTIALS")

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should lock out after too many failed attempts", func(t *testing.T) {
		service, mock, mockCache := newAuthTestService(t)
		mockCache.attempts["test@example.com"] = configuration.VerifyMaxAttempts

		_, err := service.Login(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: "test@example.com", Password: "correct-password"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 429, apiErr.Status)
		assert.Contains(t, apiErr.Codes, "TOO_MANY_ATTEMPTS")

		// No database query may happen while locked out.
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should refuse login when the local provider is not configured", func(t *testing.T) {
		service, _, _ := newAuthTestService(t)
		service.Providers = configuration.Providers{}

		_, err := service.Login(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: "test@example.com", Password: "correct-password"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.Status)
	})

	t.Run("should refuse emails outside the allowed domains", func(t *testing.T) {
		service, _, _ := newAuthTestService(t)
		provider := service.Providers["local"]
		provider.Domains = []string{"example.com"}
		service.Providers["local"] = provider

		_, err := service.Login(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: "test@elsewhere.org", Password: "correct-password"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.Status)
	})
}

// TestRefresh tests the refresh token exchange.
func TestRefresh(t *testing.T) {
	t.Run("should exchange a valid refresh token for a new access token", func(t *testing.T) {
		service, mock, _ := newAuthTestService(t)

		user := &models.User{
			ID:    uuid.New(),
			Email: "test@example.com",
			Role:  models.RoleClient,
		}
		sessionID := uuid.New()
		refreshToken, err := helpers.NewRefreshToken(
			authTestJWTSecret, user, string(models.LocalProviderType), sessionID,
		)
		require.NoError(t, err)

		rows := sqlmock.NewRows([]string{"id", "email", "role"}).
			AddRow(user.ID, user.Email, user.Role)
		mock.ExpectQuery(regexp.QuoteMeta(
			`SELECT * FROM "users" WHERE id = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`,
		)).
			WithArgs(user.ID, 1).
			WillReturnRows(rows)

		response, err := service.Refresh(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthRefreshBody{RefreshToken: refreshToken},
		)

		require.NoError(t, err)

		claims, err := helpers.ParseToken(authTestJWTSecret, "Bearer "+response.AccessToken, true)
		require.NoError(t, err)
		assert.Equal(t, configuration.AudienceAccessToken, claims.Aud)
		assert.Equal(t, sessionID, claims.SessionID, "refresh must keep the session")

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should reject a garbage refresh token", func(t *testing.T) {
		service, _, _ := newAuthTestService(t)

		_, err := service.Refresh(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthRefreshBody{RefreshToken: "not-a-token"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.Status)
		assert.Contains(t, apiErr.Codes, "INVALID_REFRESH_TOKEN")
	})

	t.Run("should reject an access token used as refresh token", func(t *testing.T) {
		service, _, _ := newAuthTestService(t)

		user := &models.User{ID: uuid.New(), Email: "test@example.com", Role: models.RoleClient}
		accessToken, err := helpers.NewAccessToken(
			authTestJWTSecret, user, string(models.LocalProviderType), uuid.New(),
		)
		require.NoError(t, err)

		_, err = service.Refresh(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthRefreshBody{RefreshToken: accessToken},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.Status)
	})
}

// TestLogout tests session teardown.
func TestLogout(t *testing.T) {
	t.Run("should destroy the session verification state", func(t *testing.T) {
		service, _, mockCache := newAuthTestService(t)

		sessionID := uuid.New()
		require.NoError(t, mockCache.SetSessionState(sessionID.String(), models.SessionState{Verified: true}))

		err := service.Logout(
			zap.NewNop(),
			models.UserClaims{UserID: uuid.New(), Email: "test@example.com", SessionID: sessionID},
			uuid.UUIDs{},
		)

		require.NoError(t, err)
		_, found, err := mockCache.GetSessionState(sessionID.String())
		require.NoError(t, err)
		assert.False(t, found, "logout must delete the session state")
	})

	t.Run("should surface cache failures", func(t *testing.T) {
		service, _, mockCache := newAuthTestService(t)
		mockCache.failDeleteSession = true

		err := service.Logout(
			zap.NewNop(),
			models.UserClaims{UserID: uuid.New(), SessionID: uuid.New()},
			uuid.UUIDs{},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 500, apiErr.Status)
	})
}

// TestGetProviderList tests the provider listing order.
func TestGetProviderList(t *testing.T) {
	t.Run("should list providers in configured order", func(t *testing.T) {
		service, _, _ := newAuthTestService(t)
		service.Providers = configuration.Providers{
			"local": {Name: "Local", Type: models.LocalProviderType, Order: 1},
			"corp":  {Name: "Corporate SSO", Type: models.OIDCProviderType, Order: 0, Domains: []string{"corp.example.com"}},
		}

		providers, err := service.GetProviderList(zap.NewNop(), models.UserClaims{}, uuid.UUIDs{})

		require.NoError(t, err)
		require.Len(t, providers, 2)
		assert.Equal(t, "corp", providers[0].ID)
		assert.Equal(t, "local", providers[1].ID)
		assert.NotNil(t, providers[1].Domains, "domains should marshal as an empty list, not null")
	})
}
