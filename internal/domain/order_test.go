package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// helper для создания базового заказа с одним товаром.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:     "order-1",
		UserID: "user-1",
		ShippingChoice: domain.ShippingChoice{
			CompanyName: "PostNord",
			Method:      "Standard",
			Price:       decimal.NewFromInt(100),
		},
		Products: []domain.Product{
			{ID: "p-1", Name: "Boot", Stock: 20, Price: decimal.NewFromInt(100)},
		},
		PriceTotal:  decimal.NewFromInt(200),
		IsConfirmed: true,
		Status:      domain.OrderStatusAccepted,
		CreatedAt:   now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{name: "no id", mut: func(o *domain.Order) { o.ID = "" }},
		{name: "no user", mut: func(o *domain.Order) { o.UserID = "" }},
		{name: "confirmed without products", mut: func(o *domain.Order) { o.Products = nil }},
		{name: "unknown status", mut: func(o *domain.Order) { o.Status = "Lost" }},
		{name: "negative shipping", mut: func(o *domain.Order) { o.ShippingChoice.Price = decimal.NewFromInt(-1) }},
		{name: "negative product price", mut: func(o *domain.Order) { o.Products[0].Price = decimal.NewFromInt(-5) }},
		{
			name: "discount above 100",
			mut: func(o *domain.Order) {
				o.PromoCode = &domain.PromoCode{Code: "X", DiscountPercentage: decimal.NewFromInt(150)}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderApplyDefaults(t *testing.T) {
	created := time.Date(2024, 11, 6, 12, 0, 0, 0, time.UTC)
	order := domain.Order{CreatedAt: created}
	order.ApplyDefaults()

	if order.Status != domain.OrderStatusAccepted {
		t.Fatalf("expected default status Accepted, got %q", order.Status)
	}
	if !order.DeliveryDate.Equal(created.Add(7 * 24 * time.Hour)) {
		t.Fatalf("expected delivery date creation+7d, got %v", order.DeliveryDate)
	}
}

func TestOrderClone_DoesNotShareProducts(t *testing.T) {
	order := makeOrder()
	clone := order.Clone()
	clone.Products[0].Name = "changed"

	if order.Products[0].Name != "Boot" {
		t.Fatal("clone must not share product slice with original")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw     string
		want    domain.Role
		wantErr bool
	}{
		{raw: "Admin", want: domain.RoleAdmin},
		{raw: "user", want: domain.RoleUser},
		{raw: " GUEST ", want: domain.RoleGuest},
		{raw: "superuser", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := domain.ParseRole(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAddressValidate(t *testing.T) {
	addr := domain.Address{
		ID:                 "addr-1",
		Street:             "gata",
		City:               "Kalmar",
		State:              "Kalmar län",
		PhoneNumber:        "123790",
		ZipCode:            "39350",
		CountryCallingCode: "+46",
		Country:            "Sweden",
	}
	if errs := addr.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid address, got %v", errs)
	}

	addr.ZipCode = ""
	addr.Country = "  "
	if errs := addr.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}

func TestShippingDisplayName(t *testing.T) {
	choice := domain.ShippingChoice{CompanyName: "PostNord", Method: "Standard"}
	if choice.DisplayName() != "PostNord Standard" {
		t.Fatalf("unexpected display name %q", choice.DisplayName())
	}

	parsed := domain.ParseShippingDisplay("DHL Express")
	if parsed.CompanyName != "DHL" || parsed.Method != "Express" {
		t.Fatalf("unexpected parse result %+v", parsed)
	}
}

func TestPredicateMatches(t *testing.T) {
	var all domain.Predicate[domain.Order]
	order := makeOrder()
	if !all.Matches(order) {
		t.Fatal("nil predicate must match everything")
	}
	if !domain.ByID[domain.Order]("order-1").Matches(order) {
		t.Fatal("ByID must match by id")
	}
	combined := domain.And(domain.ByID[domain.Order]("order-1"), domain.OrdersOwnedBy("someone-else"))
	if combined.Matches(order) {
		t.Fatal("And must require all predicates")
	}
}
