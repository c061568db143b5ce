package middleware

import (
	"net/http"

	"github.com/unrolled/secure"

	"github.com/fuelops/fuelops-backend/pkg/logger"
)

// SecureHeaders sets the standard hardening headers. HTTPS redirects are only
// enforced in production.
func SecureHeaders(production bool, logg *logger.Logger) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// secure has already written the redirect or rejection.
			if err := sec.Process(w, r); err != nil {
				if logg != nil {
					ctx := logg.WithField(r.Context(), "reason", err.Error())
					logg.Warn(ctx, "request.blocked")
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
