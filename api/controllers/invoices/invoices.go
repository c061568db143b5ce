package invoices

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fuelops/fuelops-backend/api/responses"
	"github.com/fuelops/fuelops-backend/api/validators"
	"github.com/fuelops/fuelops-backend/internal/cashledger"
	internalinvoices "github.com/fuelops/fuelops-backend/internal/invoices"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
)

const invoiceParam = "invoiceId"

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type cashLedgerRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Method  string `json:"method" validate:"omitempty,oneof=cash qr"`
}

// UpdateStatus moves an invoice through its lifecycle. Reaching finalised
// posts the order to the customer ledger.
func UpdateStatus(bridge internalinvoices.Bridge, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if bridge == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice bridge unavailable"))
			return
		}
		invoiceID, err := validators.ParseUUIDParam(r, invoiceParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithInvoiceID(ctx, invoiceID.String())
		}

		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		target, err := enums.ParseInvoiceStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"}))
			return
		}

		change, err := bridge.UpdateStatus(ctx, invoiceID, target)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, change)
	}
}

// PostCashLedger records the driver-cash sub-ledger pair for an invoice.
func PostCashLedger(svc cashledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash ledger unavailable"))
			return
		}
		invoiceID, err := validators.ParseUUIDParam(r, invoiceParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithInvoiceID(ctx, invoiceID.String())
		}

		var req cashLedgerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orderID, err := uuid.Parse(strings.TrimSpace(req.OrderID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_id").WithDetails(map[string]any{"field": "order_id"}))
			return
		}
		method := enums.CashMethod(req.Method)

		result, err := svc.PostCashEntries(ctx, orderID, invoiceID, method)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := http.StatusOK
		if result != nil && result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
