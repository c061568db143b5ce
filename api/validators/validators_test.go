package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
)

type sampleBody struct {
	Amount string `json:"amount" validate:"required,decimal"`
	Note   string `json:"note" validate:"max=5"`
	Method string `json:"method" validate:"omitempty,oneof=cash qr"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"note":"too long"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	typed := pkgerrors.As(err)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["amount"])
	require.Equal(t, "must be at most 5", details["note"])
}

func TestDecodeJSONBodyDecimalAndOneOf(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"ten","method":"card"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a decimal amount", details["amount"])
	require.Equal(t, "must be one of: cash, qr", details["method"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":" 400.50 ","method":"qr"}`))
	require.NoError(t, DecodeJSONBody(req, &body))
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingData(t *testing.T) {
	var body sampleBody

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "request body is required", pkgerrors.As(err).Message())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1"}{"amount":"2"}`))
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	payload := `{"amount":"1","note":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1","extra":true}`))
	var body sampleBody
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&page_size=500&bad=x", nil)

	v, err := ParseQueryInt(req, "page", 1, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, 3, v)

	v, err = ParseQueryInt(req, "missing", 7, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 7, v)

	_, err = ParseQueryInt(req, "page_size", 20, 1, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(req, "bad", 1, 1, 10)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("accountId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseUUIDParam(req, "accountId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "invoiceId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseAmountRounds(t *testing.T) {
	amount, err := ParseAmount("400.005", "amount")
	require.NoError(t, err)
	require.Equal(t, "400.01", amount.StringFixed(2))

	_, err = ParseAmount("abc", "amount")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseOptionalUUID(t *testing.T) {
	got, err := ParseOptionalUUID("", "order_id")
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = ParseOptionalUUID("nope", "order_id")
	require.Error(t, err)
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	require.Equal(t, "x", SanitizeString(" x ", 0))
	require.Equal(t, "Credit payment received for ORD-1", SanitizeString(" Credit\tpayment  received\nfor ORD-1\x00 ", 0))
	require.Equal(t, "₹₹", SanitizeString("₹₹₹", 2))
	require.Equal(t, "ab", SanitizeString("ab cd", 3))
}

func TestDecodeJSONBodyNamesMistypedField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":12.5}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a number", details["amount"])
}

func TestNewValidatorReportsBadRegistration(t *testing.T) {
	_, err := newValidator(map[string]validator.Func{"": func(validator.FieldLevel) bool { return true }})
	require.Error(t, err)

	_, err = newValidator(map[string]validator.Func{"decimal": nil})
	require.ErrorContains(t, err, `register "decimal" validation`)

	v, err := newValidator(customValidations)
	require.NoError(t, err)
	require.NoError(t, v.Struct(sampleBody{Amount: "400.50"}))
	require.Error(t, v.Struct(sampleBody{Amount: "four hundred"}))
}
