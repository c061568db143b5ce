package controllers

import (
	"net/http"

	"github.com/fuelops/fuelops-backend/api/responses"
	"github.com/fuelops/fuelops-backend/internal/ledger"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
)

// AdminLedgerSummary aggregates outstanding and overdue figures across
// credit-eligible accounts.
func AdminLedgerSummary(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
