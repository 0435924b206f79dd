package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/sakif/profile-api/internal/apperror"
	"github.com/sakif/profile-api/internal/validation"
)

// MaxBodyBytes caps request bodies read by DecodeBody.
const MaxBodyBytes = 1 << 20

type bodyKey struct{}

// Validate is the validation gate. It decodes the request body into T and
// runs v on it; on failure it answers 400 and the next handler never runs.
// On success the decoded value is available through ValidatedBody.
func Validate[T any](v *validation.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body T
			err := DecodeBody(w, r, &body)
			if err == nil {
				err = v.Struct(body)
			}
			if err != nil {
				writeValidationError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bodyKey{}, body)))
		})
	}
}

// ValidatedBody returns the value stored by Validate[T].
func ValidatedBody[T any](ctx context.Context) (T, bool) {
	body, ok := ctx.Value(bodyKey{}).(T)
	return body, ok
}

// DecodeBody reads a JSON or application/x-www-form-urlencoded body into dst.
// Form fields are matched against dst's JSON field names. Malformed input is
// reported as an apperror validation error.
func DecodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		return decodeForm(r, dst)
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("", "request body is required")
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("", fmt.Sprintf("request body must be %d bytes or less", maxErr.Limit))
		default:
			return apperror.ValidationFailed("", "request body must be valid JSON")
		}
	}
	return nil
}

// decodeForm round-trips the first value of every form field through JSON so
// the same struct tags serve both encodings.
func decodeForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return apperror.ValidationFailed("", "request body must be a valid form")
	}
	fields := make(map[string]string, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("middleware: encoding form: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperror.ValidationFailed("", "request body has fields of the wrong type")
	}
	return nil
}

func writeValidationError(w http.ResponseWriter, err error) {
	body := struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Field   string `json:"field,omitempty"`
	}{Error: "validation_error", Message: "invalid request"}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Field = appErr.Field
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(body)
}
