package auth

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminAuthMiddleware gates staff routes with basic auth. The password is
// compared against a bcrypt hash from configuration, so no plaintext secret
// lives in the environment.
type AdminAuthMiddleware struct {
	User         string
	PasswordHash string
}

func (m *AdminAuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		user, password, ok := r.BasicAuth()
		if !ok || !m.check(user, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="printdesk admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AdminAuthMiddleware) check(user string, password string) bool {
	if subtle.ConstantTimeCompare([]byte(user), []byte(m.User)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)) == nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}
