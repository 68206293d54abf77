package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware requires the shared API token in the Authorization header,
// either raw or as "Bearer <token>".
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	expected := []byte(s.cfg.AuthToken)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.writeError(w, http.StatusUnauthorized, "API key is missing", "authentication_error")
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			s.log.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rejected request with invalid API key")
			s.writeError(w, http.StatusUnauthorized, "Invalid API key", "authentication_error")
			return
		}

		next.ServeHTTP(w, r)
	})
}
