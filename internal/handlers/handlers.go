package handlers

import (
	"errors"
	"net/http"

	apierrors "helpdesk/internal/errors"
	"helpdesk/internal/helpers"
	"helpdesk/internal/middlewares"
	"helpdesk/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// The service layer exposes plain functions taking the request logger, the
// caller's claims, positional UUID path params and (optionally) a validated
// body. These adapters wire them into chi.

func requestLogger(r *http.Request) *zap.Logger {
	return zap.L().With(zap.String("request_id", middleware.GetReqID(r.Context())))
}

func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		helpers.RespondWithError(w, apiErr.Status, apiErr.Codes)
		return
	}
	logger.Error("Unhandled service error", zap.Error(err))
	helpers.RespondWithError(w, 500, []string{"INTERNAL_SERVER_ERROR"})
}

func claimsAndIDs(w http.ResponseWriter, r *http.Request) (models.UserClaims, uuid.UUIDs, bool) {
	claims, _ := r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
	ids, ok := helpers.ParseUUIDs(w, r)
	return claims, ids, ok
}

// GetOneHandler adapts a read operation returning a single document.
func GetOneHandler[R any](fn func(*zap.Logger, models.UserClaims, uuid.UUIDs) (R, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		claims, ids, ok := claimsAndIDs(w, r)
		if !ok {
			return
		}
		result, err := fn(logger, claims, ids)
		if err != nil {
			respondError(w, logger, err)
			return
		}
		helpers.RespondWithJSON(w, 200, result)
	}
}

// GetListHandler adapts a read operation returning a collection.
func GetListHandler[R any](fn func(*zap.Logger, models.UserClaims, uuid.UUIDs) ([]R, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		claims, ids, ok := claimsAndIDs(w, r)
		if !ok {
			return
		}
		result, err := fn(logger, claims, ids)
		if err != nil {
			respondError(w, logger, err)
			return
		}
		if result == nil {
			result = []R{}
		}
		helpers.RespondWithJSON(w, 200, result)
	}
}

// CreateHandler adapts an operation taking a validated body and returning a
// document. The body must have passed through middlewares.Validate first.
func CreateHandler[B any, R any](
	fn func(*zap.Logger, models.UserClaims, uuid.UUIDs, B) (R, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		claims, ids, ok := claimsAndIDs(w, r)
		if !ok {
			return
		}
		body, ok := r.Context().Value(middlewares.BodyKey{}).(B)
		if !ok {
			helpers.RespondWithError(w, 400, []string{"BAD_REQUEST"})
			return
		}
		result, err := fn(logger, claims, ids, body)
		if err != nil {
			respondError(w, logger, err)
			return
		}
		helpers.RespondWithJSON(w, 200, result)
	}
}

// BodyHandler adapts an operation taking a validated body with no response
// document.
func BodyHandler[B any](
	fn func(*zap.Logger, models.UserClaims, uuid.UUIDs, B) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		claims, ids, ok := claimsAndIDs(w, r)
		if !ok {
			return
		}
		body, ok := r.Context().Value(middlewares.BodyKey{}).(B)
		if !ok {
			helpers.RespondWithError(w, 400, []string{"BAD_REQUEST"})
			return
		}
		if err := fn(logger, claims, ids, body); err != nil {
			respondError(w, logger, err)
			return
		}
		w.WriteHeader(204)
	}
}

// DeleteHandler adapts a delete operation.
func DeleteHandler(fn func(*zap.Logger, models.UserClaims, uuid.UUIDs) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		claims, ids, ok := claimsAndIDs(w, r)
		if !ok {
			return
		}
		if err := fn(logger, claims, ids); err != nil {
			respondError(w, logger, err)
			return
		}
		w.WriteHeader(204)
	}
}

// GetOneWithQueryHandler adapts a read operation taking validated query
// parameters.
func GetOneWithQueryHandler[Q any, R any](
	fn func(*zap.Logger, models.UserClaims, uuid.UUIDs, Q) (R, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		claims, ids, ok := claimsAndIDs(w, r)
		if !ok {
			return
		}
		query, ok := r.Context().Value(middlewares.QueryKey{}).(Q)
		if !ok {
			helpers.RespondWithError(w, 400, []string{"BAD_REQUEST"})
			return
		}
		result, err := fn(logger, claims, ids, query)
		if err != nil {
			respondError(w, logger, err)
			return
		}
		helpers.RespondWithJSON(w, 200, result)
	}
}

// OpenIDBeginHandler adapts the provider redirect step of the OIDC flow.
func OpenIDBeginHandler(fn func(*zap.Logger, string) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		providerID := chi.URLParam(r, "provider")
		redirectURL, err := fn(logger, providerID)
		if err != nil {
			respondError(w, logger, err)
			return
		}
		http.Redirect(w, r, redirectURL, http.StatusFound)
	}
}

// OpenIDCallbackHandler adapts the provider callback step of the OIDC flow.
// On success the browser is redirected back to the web app with tokens in the
// fragment.
func OpenIDCallbackHandler(
	webURL string,
	fn func(*zap.Logger, string, string, string) (models.AuthLoginResponse, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		providerID := chi.URLParam(r, "provider")
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		tokens, err := fn(logger, providerID, code, state)
		if err != nil {
			respondError(w, logger, err)
			return
		}
		http.Redirect(w, r,
			webURL+"/auth/callback#access_token="+tokens.AccessToken+"&refresh_token="+tokens.RefreshToken,
			http.StatusFound)
	}
}
