package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mcoot/roomchat/internal/api/apierr"
)

// AdminToken creates middleware that requires "Authorization: Bearer <token>"
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
