package accounts

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fuelops/fuelops-backend/api/responses"
	"github.com/fuelops/fuelops-backend/api/validators"
	"github.com/fuelops/fuelops-backend/internal/ledger"
	"github.com/fuelops/fuelops-backend/internal/reconciliation"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/types"
)

const maxDescriptionLen = 500

type postingRequest struct {
	Amount        string            `json:"amount" validate:"required,decimal"`
	Description   string            `json:"description" validate:"max=500"`
	OrderID       string            `json:"order_id"`
	InvoiceID     string            `json:"invoice_id"`
	Channel       string            `json:"channel"`
	PaymentStatus string            `json:"payment_status"`
	ExternalRefs  map[string]string `json:"external_refs"`
}

type collectionRequest struct {
	postingRequest
	Category string `json:"category"`
}

type obligationRequest struct {
	postingRequest
	DeliveredQuantity string `json:"delivered_quantity"`
}

// RecordCollection posts a credit for money received from the customer.
func RecordCollection(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req collectionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := ledger.RecordCollectionInput{CustomerID: accountID}
		if err := req.apply(&input.Amount, &input.Description, &input.Channel, &input.PaymentStatus); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if input.OrderID, err = validators.ParseOptionalUUID(req.OrderID, "order_id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if input.InvoiceID, err = validators.ParseOptionalUUID(req.InvoiceID, "invoice_id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if raw := strings.TrimSpace(req.Category); raw != "" {
			category, parseErr := enums.ParseEntryCategory(raw)
			if parseErr != nil {
				responses.WriteError(ctx, logg, w, fieldError(parseErr, "category"))
				return
			}
			input.Category = category
		}
		input.ExternalRefs = types.ExternalRefs(req.ExternalRefs)

		result, err := svc.RecordCollection(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// RecordObligation posts a debit for value delivered to the customer.
func RecordObligation(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req obligationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := ledger.RecordObligationInput{CustomerID: accountID}
		if err := req.apply(&input.Amount, &input.Description, &input.Channel, &input.PaymentStatus); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if input.OrderID, err = validators.ParseOptionalUUID(req.OrderID, "order_id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if input.InvoiceID, err = validators.ParseOptionalUUID(req.InvoiceID, "invoice_id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if raw := strings.TrimSpace(req.DeliveredQuantity); raw != "" {
			qty, parseErr := decimal.NewFromString(raw)
			if parseErr != nil || qty.IsNegative() {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivered_quantity").WithDetails(map[string]any{"field": "delivered_quantity"}))
				return
			}
			input.DeliveredQuantity = &qty
		}
		input.ExternalRefs = types.ExternalRefs(req.ExternalRefs)

		result, err := svc.RecordObligation(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// AutoRecover re-posts collections for confirmed orders the ledger never saw.
func AutoRecover(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}
		ctx, accountID, err := parseAccount(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AutoRecover(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func (p postingRequest) apply(amount *decimal.Decimal, description *string, channel *enums.PaymentChannel, status *enums.EntryPaymentStatus) error {
	value, err := validators.ParseAmount(p.Amount, "amount")
	if err != nil {
		return err
	}
	*amount = value
	*description = validators.SanitizeString(p.Description, maxDescriptionLen)

	if raw := strings.TrimSpace(p.Channel); raw != "" {
		parsedChannel, err := enums.ParsePaymentChannel(raw)
		if err != nil {
			return fieldError(err, "channel")
		}
		*channel = parsedChannel
	}
	if raw := strings.TrimSpace(p.PaymentStatus); raw != "" {
		parsedStatus, err := enums.ParseEntryPaymentStatus(raw)
		if err != nil {
			return fieldError(err, "payment_status")
		}
		*status = parsedStatus
	}
	return nil
}

func fieldError(err error, field string) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]any{"field": field})
}
