package accounts

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fuelops/fuelops-backend/api/responses"
	"github.com/fuelops/fuelops-backend/api/validators"
	"github.com/fuelops/fuelops-backend/internal/ledger"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/pagination"
)

const accountParam = "accountId"

type outstandingResponse struct {
	CustomerID        uuid.UUID       `json:"customer_id"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
}

// Balance returns the account aggregate. Accounts without postings read as zero.
func Balance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		ctx, accountID, err := parseAccount(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.GetBalance(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

func Outstanding(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		ctx, accountID, err := parseAccount(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outstanding, err := svc.GetOutstanding(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outstandingResponse{CustomerID: accountID, OutstandingAmount: outstanding})
	}
}

// Transactions pages the entry log newest first.
func Transactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		ctx, accountID, err := parseAccount(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		size, err := validators.ParseQueryInt(r, "page_size", pagination.DefaultPageSize, 1, pagination.MaxPageSize)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.GetTransactionHistory(ctx, accountID, pagination.PageParams{Page: page, PageSize: size})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Recalculate rebuilds the aggregate from the entry log.
func Recalculate(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		ctx, accountID, err := parseAccount(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		totals, err := svc.Recalculate(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, totals)
	}
}

// parseAccount reads the account id and tags the request context with it.
func parseAccount(r *http.Request, logg *logger.Logger) (context.Context, uuid.UUID, error) {
	accountID, err := validators.ParseUUIDParam(r, accountParam)
	if err != nil {
		return r.Context(), uuid.Nil, err
	}
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithAccountID(ctx, accountID.String())
	}
	return ctx, accountID, nil
}
