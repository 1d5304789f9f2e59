package web

import (
	"net/http"

	"moire/internal/auth"
)

type Auth struct {
	creds *auth.Credentials
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !a.creds.Check(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="moire"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
