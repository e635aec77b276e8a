package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл доставки заказа.
type OrderStatus string

const (
	// OrderStatusAccepted — заказ принят (значение по умолчанию).
	OrderStatusAccepted OrderStatus = "Accepted"
	// OrderStatusInTransit — заказ передан перевозчику.
	OrderStatusInTransit OrderStatus = "In Transit"
	// OrderStatusDelivered — заказ доставлен; DeliveryDate хранит фактическую дату.
	OrderStatusDelivered OrderStatus = "Delivered"
)

// DefaultDeliveryWindow — оценка срока доставки от момента создания.
const DefaultDeliveryWindow = 7 * 24 * time.Hour

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusAccepted, OrderStatusInTransit, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// Order — подтверждённая покупка.
type Order struct {
	ID              string
	UserID          string
	Address         *Address
	DeliveryAddress *Address
	ShippingChoice  ShippingChoice
	Products        []Product
	PromoCode       *PromoCode
	PriceTotal      decimal.Decimal
	IsConfirmed     bool
	Status          OrderStatus
	DeliveryDate    time.Time
	CreatedAt       time.Time
}

func (o Order) EntityID() string { return o.ID }

func (o Order) WithEntityID(id string) Order {
	o.ID = id
	return o
}

var _ Entity[Order] = Order{}

// Clone возвращает глубокую копию заказа, чтобы хранилище не разделяло срезы и указатели с вызывающим.
func (o Order) Clone() Order {
	out := o
	if o.Products != nil {
		out.Products = make([]Product, len(o.Products))
		copy(out.Products, o.Products)
	}
	if o.Address != nil {
		addr := *o.Address
		out.Address = &addr
	}
	if o.DeliveryAddress != nil {
		addr := *o.DeliveryAddress
		out.DeliveryAddress = &addr
	}
	if o.PromoCode != nil {
		promo := *o.PromoCode
		out.PromoCode = &promo
	}
	return out
}

// ApplyDefaults проставляет статус и дату доставки по умолчанию.
func (o *Order) ApplyDefaults() {
	if o.Status == "" {
		o.Status = OrderStatusAccepted
	}
	if o.DeliveryDate.IsZero() && !o.CreatedAt.IsZero() {
		o.DeliveryDate = o.CreatedAt.Add(DefaultDeliveryWindow)
	}
}

// ValidateInvariants проверяет структурные инварианты заказа.
// Сверка PriceTotal выполняется в pricing, так как требует движка цен.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if o.UserID == "" {
		errs = append(errs, ErrUserIDRequired)
	}
	if o.IsConfirmed && len(o.Products) == 0 {
		errs = append(errs, ErrProductsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrOrderStatusInvalid)
	}
	if o.ShippingChoice.Price.IsNegative() {
		errs = append(errs, ErrShippingPriceInvalid)
	}
	for _, p := range o.Products {
		if p.Price.IsNegative() {
			errs = append(errs, ErrProductPriceNegative)
			break
		}
	}
	if o.PromoCode != nil {
		if err := o.PromoCode.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// CreateOrderInput — входные данные создания заказа от транспортного слоя.
type CreateOrderInput struct {
	UserID             string          `json:"userId"`
	ShippingChoice     *ShippingChoice `json:"shippingChoice"`
	DeliveryAddress    *Address        `json:"deliveryAddress,omitempty"`
	Products           []Product       `json:"productList"`
	PromoCode          string          `json:"promoCode,omitempty"`
	PaymentIsConfirmed bool            `json:"paymentIsConfirmed"`
}

// Cart — незавершённый выбор товаров пользователя или гостевой сессии.
type Cart struct {
	UserID     string          `json:"userId"`
	Products   []Product       `json:"productList"`
	PromoCode  *PromoCode      `json:"promoCode,omitempty"`
	Shipping   *ShippingChoice `json:"shippingChoice,omitempty"`
	PriceTotal decimal.Decimal `json:"priceTotal"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
