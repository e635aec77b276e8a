package validation_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
	"github.com/vladislavdragonenkov/orderprovider/internal/validation"
)

func validInput() domain.CreateOrderInput {
	return domain.CreateOrderInput{
		UserID: "user-1",
		ShippingChoice: &domain.ShippingChoice{
			CompanyName: "PostNord",
			Method:      "Standard",
			Price:       decimal.NewFromInt(100),
		},
		Products: []domain.Product{
			{ID: "p-1", Name: "Boot", Stock: 20, Price: decimal.NewFromInt(100)},
		},
		PaymentIsConfirmed: true,
	}
}

func reasonOf(t *testing.T, err error) *domain.ValidationError {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr
}

func TestPipeline_Valid(t *testing.T) {
	require.NoError(t, validation.NewPipeline().Validate(validInput()))
}

func TestPipeline_PaymentNotConfirmed(t *testing.T) {
	in := validInput()
	in.PaymentIsConfirmed = false

	verr := reasonOf(t, validation.NewPipeline().Validate(in))
	assert.Equal(t, domain.ReasonPaymentNotConfirmed, verr.Reason)
}

func TestPipeline_OutOfStockNamesProducts(t *testing.T) {
	in := validInput()
	in.Products = append(in.Products,
		domain.Product{ID: "p-2", Name: "Hat", Stock: 0, Price: decimal.NewFromInt(5)},
		domain.Product{ID: "p-2", Name: "Hat", Stock: 0, Price: decimal.NewFromInt(5)},
		domain.Product{ID: "p-3", Name: "Scarf", Stock: -1, Price: decimal.NewFromInt(5)},
	)

	verr := reasonOf(t, validation.NewPipeline().Validate(in))
	assert.Equal(t, domain.ReasonOutOfStock, verr.Reason)
	assert.Equal(t, []string{"Hat", "Scarf"}, verr.Details)
	assert.Equal(t, []string{"p-2", "p-3"}, verr.ProductIDs)
	assert.Contains(t, verr.Error(), "Hat")
}

func TestPipeline_MissingFields(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(in *domain.CreateOrderInput)
		field string
	}{
		{name: "user", mut: func(in *domain.CreateOrderInput) { in.UserID = "" }, field: "userId"},
		{name: "shipping nil", mut: func(in *domain.CreateOrderInput) { in.ShippingChoice = nil }, field: "shippingChoice"},
		{name: "shipping empty", mut: func(in *domain.CreateOrderInput) { in.ShippingChoice = &domain.ShippingChoice{} }, field: "shippingChoice"},
		{name: "products", mut: func(in *domain.CreateOrderInput) { in.Products = nil }, field: "productList"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mut(&in)

			verr := reasonOf(t, validation.NewPipeline().Validate(in))
			assert.Equal(t, domain.ReasonMissingField, verr.Reason)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestPipeline_ShortCircuitsInOrder(t *testing.T) {
	// Все три проверки нарушены: должна сработать первая.
	in := domain.CreateOrderInput{
		Products: []domain.Product{{ID: "p", Name: "Gone", Stock: 0}},
	}
	verr := reasonOf(t, validation.NewPipeline().Validate(in))
	assert.Equal(t, domain.ReasonPaymentNotConfirmed, verr.Reason)

	in.PaymentIsConfirmed = true
	verr = reasonOf(t, validation.NewPipeline().Validate(in))
	assert.Equal(t, domain.ReasonOutOfStock, verr.Reason)
}

func TestPipeline_ExtraChecksRunAfterBuiltins(t *testing.T) {
	called := false
	extra := func(domain.CreateOrderInput) *domain.ValidationError {
		called = true
		return domain.NewValidationError("custom")
	}

	in := validInput()
	in.PaymentIsConfirmed = false
	_ = validation.NewPipeline(extra).Validate(in)
	assert.False(t, called, "extra check must not run when a builtin check fails")

	verr := reasonOf(t, validation.NewPipeline(extra).Validate(validInput()))
	assert.True(t, called)
	assert.Equal(t, "custom", verr.Reason)
}

func TestNonNegativePrices(t *testing.T) {
	in := validInput()
	in.Products[0].Price = decimal.NewFromInt(-1)

	verr := reasonOf(t, validation.NewPipeline(validation.NonNegativePrices).Validate(in))
	assert.Equal(t, domain.ReasonInvalidPrice, verr.Reason)
}

func TestDeliveryAddressComplete(t *testing.T) {
	in := validInput()
	in.DeliveryAddress = &domain.Address{Street: "gata"}

	verr := reasonOf(t, validation.NewPipeline(validation.DeliveryAddressComplete).Validate(in))
	assert.Equal(t, domain.ReasonInvalidAddress, verr.Reason)
	assert.NotEmpty(t, verr.Details)
}
