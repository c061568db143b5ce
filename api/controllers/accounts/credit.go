package accounts

import (
	"net/http"

	"github.com/fuelops/fuelops-backend/api/responses"
	"github.com/fuelops/fuelops-backend/api/validators"
	"github.com/fuelops/fuelops-backend/internal/credit"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
)

type authorizeRequest struct {
	Amount string `json:"amount" validate:"required,decimal"`
}

type authorizeResponse struct {
	Approved     bool                 `json:"approved"`
	Availability *credit.Availability `json:"availability"`
}

func Credit(calc credit.Calculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit calculator unavailable"))
			return
		}
		ctx, accountID, err := parseAccount(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availability, err := calc.ComputeAvailability(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

// AuthorizeCredit checks a prospective credit order against the live limit.
// A rejection surfaces as STATE_CONFLICT with the shortfall in the details.
func AuthorizeCredit(calc credit.Calculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit calculator unavailable"))
			return
		}
		ctx, accountID, err := parseAccount(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req authorizeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		amount, err := validators.ParseAmount(req.Amount, "amount")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		availability, err := calc.EnsureCapacity(ctx, accountID, amount)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, authorizeResponse{Approved: true, Availability: availability})
	}
}
