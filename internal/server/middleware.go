package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sbnpy/clubsight/internal/session"
)

const sessionIDKey = "session_id"

var errUnauthenticated = errors.New("not authenticated")

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Context)

// withSession resolves the cookie into a live session or rejects the request.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := s.cookies.Get(r, s.cfg.Auth.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}
		raw, ok := cookie.Values[sessionIDKey].(string)
		if !ok {
			writeError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}
		sess, err := s.sessions.Get(id)
		if err != nil {
			writeError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}
		next(w, r, sess)
	}
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
