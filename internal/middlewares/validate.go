package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"helpdesk/internal/helpers"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// BodyKey is the context key under which Validate stores the decoded body.
type BodyKey struct{}

// QueryKey is the context key under which ValidateQuery stores the decoded
// query parameters.
type QueryKey struct{}

var validate = validator.New()

const maxBodySize = 1 << 20

// Validate decodes the JSON request body into T, validates it, and stores it
// in the request context for the handler layer.
func Validate[T any](next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body T

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			helpers.RespondWithError(w, 400, []string{"BAD_REQUEST"})
			return
		}

		if err := validate.Struct(body); err != nil {
			helpers.RespondWithError(w, 400, validationCodes(err))
			return
		}

		ctx := context.WithValue(r.Context(), BodyKey{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ValidateQuery decodes URL query parameters into T using `query` field tags,
// validates it, and stores it in the request context.
func ValidateQuery[T any](next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params T

		if err := decodeQuery(r, &params); err != nil {
			helpers.RespondWithError(w, 400, []string{"BAD_REQUEST"})
			return
		}

		if err := validate.Struct(params); err != nil {
			helpers.RespondWithError(w, 400, validationCodes(err))
			return
		}

		ctx := context.WithValue(r.Context(), QueryKey{}, params)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeQuery(r *http.Request, target any) error {
	values := r.URL.Query()
	v := reflect.ValueOf(target).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("query")
		if tag == "" {
			continue
		}
		raw := values.Get(tag)
		if raw == "" {
			continue
		}

		field := v.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return err
			}
			field.SetBool(b)
		default:
			zap.L().Warn("Unsupported query field type", zap.String("field", tag))
		}
	}

	return nil
}

func validationCodes(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{"BAD_REQUEST"}
	}

	codes := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		codes = append(codes, "INVALID_"+strings.ToUpper(fieldError.Field()))
	}
	return codes
}
