package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// statusSessionExpired is the status sent when the CSRF token is missing or
// stale. Clients treat it like a redirect to the login page.
const statusSessionExpired = 419

type requestIDKey struct{}

// RequestID returns the id assigned to the request by the access log.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// withMethodOverride lets HTML forms reach PUT and DELETE routes by posting
// a _method field.
func (s *Server) withMethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			method := r.Header.Get("X-HTTP-Method-Override")
			if method == "" && isForm(r) {
				if err := parseForm(r); err != nil {
					writeMessage(w, http.StatusBadRequest, "Could not read the form.")
					return
				}
				method = r.PostFormValue("_method")
			}
			switch method = strings.ToUpper(strings.TrimSpace(method)); method {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r.Method = method
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get("X-CSRF-TOKEN")
		if token == "" && isForm(r) {
			if err := parseForm(r); err == nil {
				token = r.PostFormValue("_token")
			}
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.csrfToken)) != 1 {
			s.logger.Warn("csrf token mismatch", zap.String("path", r.URL.Path), zap.String("request_id", RequestID(r.Context())))
			writeMessage(w, statusSessionExpired, "Your session has expired. Please refresh the page.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
