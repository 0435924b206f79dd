package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/unrolled/secure"
)

// CORS allows cross-origin calls from origins. An empty list or "*" allows
// any origin; credentials are then not advertised, as browsers reject that
// combination.
func CORS(origins []string) func(http.Handler) http.Handler {
	anyOrigin := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			anyOrigin = true
		}
	}
	if anyOrigin {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodHead},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !anyOrigin,
		MaxAge:           300,
	})
}

// SecureHeaders sets X-Frame-Options: SAMEORIGIN,
// X-XSS-Protection: 1; mode=block and X-Content-Type-Options: nosniff.
func SecureHeaders() func(http.Handler) http.Handler {
	s := secure.New(secure.Options{
		CustomFrameOptionsValue: "SAMEORIGIN",
		BrowserXssFilter:        true,
		ContentTypeNosniff:      true,
	})
	return s.Handler
}
