package httpapi

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tapgate/server/internal/tapgate/types"
)

// maxRequestBody bounds every request body.  The largest legitimate
// payload is a verify or enroll request, well under 4 KiB.
const maxRequestBody = 4096

func limitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s from=%s dur=%s", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

// operatorHandler is a handler that runs with an authenticated operator.
type operatorHandler func(w http.ResponseWriter, r *http.Request, op types.Operator)

// authed wraps a handler with bearer-token verification.  A missing or bad
// token is 401 (unauthenticated), distinct from the 403s the gate and
// role checks produce.
func (s *Server) authed(next operatorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
			return
		}

		op, err := s.auth.VerifyToken(strings.TrimSpace(tokenString))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
			return
		}

		next(w, r, op)
	}
}

// authedRole additionally requires one of the given roles.
func (s *Server) authedRole(next operatorHandler, roles ...types.Role) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, op types.Operator) {
		for _, role := range roles {
			if op.Role == role {
				next(w, r, op)
				return
			}
		}
		writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
	})
}
