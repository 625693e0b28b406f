package httpserver

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"filedepot/internal/limiter"
)

// Cookie names set at login and read back on every authenticated request.
const (
	authCookie   = "Authorization"
	userIDCookie = "UserID"
)

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logging logs method, path, status, duration and remote for every request.
func logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			}
			if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
				fields = append(fields, zap.String("endpoint", route.GetName()))
			}
			log.Info("http", fields...)
		})
	}
}

// recovery converts handler panics into a 500 instead of killing the process.
func recovery(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic",
						zap.Any("reason", rec),
						zap.ByteString("stack", debug.Stack()),
						zap.String("path", r.URL.Path),
					)
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit counts the request against the endpoint's bracket before the
// handler runs.
func (s *Server) rateLimit(b limiter.Bracket, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allowed, retry := s.lim.Allow(clientIP(r), b); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)+1))
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// authenticate resolves the cookie pair into an account identity and injects
// it into the request context. Requests without a valid token get 401.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenCookie, err := r.Cookie(authCookie)
		if err != nil || tokenCookie.Value == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		idCookie, err := r.Cookie(userIDCookie)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		accountID, err := uuid.FromString(idCookie.Value)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ok, err := s.validator.ValidateToken(r.Context(), accountID, tokenCookie.Value, clientIP(r))
		if err != nil || !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		level, ok := s.creds.GetAccessLevel(r.Context(), accountID)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(withIdentity(r.Context(), accountID, level)))
	}
}
