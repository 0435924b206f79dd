package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// HandlerFunc is an http.HandlerFunc that reports failure by returning an
// error instead of writing it.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorHandler is the catch-all: it turns returned errors, unknown routes,
// wrong methods and panics into the JSON error shape.
type ErrorHandler struct {
	logger *slog.Logger
}

func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle adapts fn to an http.HandlerFunc.
func (h *ErrorHandler) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, h.logger, err)
		}
	}
}

// Install sets the JSON 404 and 405 handlers on router. It runs after all
// routes are registered.
func (h *ErrorHandler) Install(router chi.Router) {
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: fmt.Sprintf("route %s %s not found", r.Method, r.URL.Path),
		})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
			Error:   "method_not_allowed",
			Message: fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path),
		})
	})
}

// Recoverer answers a panicking request with a 500 JSON body and logs the
// stack. It must be mounted before any route.
func (h *ErrorHandler) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.logger.Error("panic recovered",
				slog.String("requestID", chimiddleware.GetReqID(r.Context())),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			writeError(w, r, h.logger, fmt.Errorf("panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}
