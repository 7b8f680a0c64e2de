package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"log"
	"net/http"
)

// adminAuthMiddleware guards mutating routes with HTTP basic auth.
// Credentials are compared as hashes so the comparison time does not
// depend on the credential length.
func adminAuthMiddleware(user, pass string) func(http.Handler) http.Handler {
	wantUser := sha256.Sum256([]byte(user))
	wantPass := sha256.Sum256([]byte(pass))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if ok {
				gotUser := sha256.Sum256([]byte(u))
				gotPass := sha256.Sum256([]byte(p))
				userMatch := subtle.ConstantTimeCompare(gotUser[:], wantUser[:]) == 1
				passMatch := subtle.ConstantTimeCompare(gotPass[:], wantPass[:]) == 1
				if userMatch && passMatch {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.Printf("🔒 Rejected %s %s from %s", r.Method, r.URL.Path, GetClientIP(r))
			RecordConnectionRejected("auth")
			w.Header().Set("WWW-Authenticate", `Basic realm="tilegrid"`)
			writeError(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}
