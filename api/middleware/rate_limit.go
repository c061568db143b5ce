package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/fuelops/fuelops-backend/api/responses"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
)

const (
	defaultWriteLimit  = 120
	defaultLimitWindow = time.Minute
)

// WriteRateLimit throttles ledger mutations per client IP. Limits are kept in
// process memory; each API replica enforces its own window.
func WriteRateLimit(limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = defaultWriteLimit
	}
	if window <= 0 {
		window = defaultLimitWindow
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many write requests"))
		}),
	)
}
