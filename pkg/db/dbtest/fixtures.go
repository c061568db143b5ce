package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
)

// SeedCustomer inserts a credit-eligible customer with the given limit.
func SeedCustomer(t testing.TB, conn *gorm.DB, limit string) models.Customer {
	t.Helper()
	customer := models.Customer{
		Name:            "Customer " + uuid.NewString()[:8],
		CreditEligible:  true,
		CreditLimit:     decimal.RequireFromString(limit),
		CreditLimitUsed: decimal.Zero,
		AmountAvailable: decimal.Zero,
	}
	if err := conn.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}

// SeedOrder inserts an order for the customer. Callers adjust fields through mutate.
func SeedOrder(t testing.TB, conn *gorm.DB, customerID uuid.UUID, amount string, mutate func(*models.Order)) models.Order {
	t.Helper()
	order := models.Order{
		CustomerID:                customerID,
		OrderNumber:               fmt.Sprintf("ORD-%s", uuid.NewString()[:8]),
		PaymentMethod:             enums.OrderPaymentMethodCredit,
		Status:                    enums.OrderStatusPending,
		Amount:                    decimal.RequireFromString(amount),
		PaymentConfirmationStatus: enums.ConfirmationStatusPending,
	}
	if mutate != nil {
		mutate(&order)
	}
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

// SeedInvoice inserts an invoice for the order in the given status.
func SeedInvoice(t testing.TB, conn *gorm.DB, order models.Order, status enums.InvoiceStatus, mutate func(*models.Invoice)) models.Invoice {
	t.Helper()
	invoice := models.Invoice{
		InvoiceNumber: fmt.Sprintf("INV-%s", uuid.NewString()[:8]),
		CustomerID:    order.CustomerID,
		OrderID:       order.ID,
		Status:        status,
		BaseAmount:    order.Amount,
	}
	if mutate != nil {
		mutate(&invoice)
	}
	if err := conn.Create(&invoice).Error; err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return invoice
}
