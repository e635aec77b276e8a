package postgres

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderprovider/internal/codec"
	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// NewOrderStore создаёт PostgreSQL-хранилище заказов.
// Вложенные значения хранятся JSON-текстом. Способ доставки хранится строкой "<company> <method>"
// и отдельными колонками перевозчика, способа и ID, из которых он и восстанавливается.
func NewOrderStore(store *Store) domain.EntityStore[domain.Order] {
	return newEntityStore(store, orderCodec)
}

// NewUserStore создаёт PostgreSQL-хранилище пользователей.
func NewUserStore(store *Store) domain.EntityStore[domain.User] {
	return newEntityStore(store, userCodec)
}

// NewPromoCodeStore создаёт PostgreSQL-справочник промокодов.
func NewPromoCodeStore(store *Store) domain.EntityStore[domain.PromoCode] {
	return newEntityStore(store, promoCodeCodec)
}

var orderCodec = rowCodec[domain.Order]{
	table: "orders",
	columns: []string{
		"id", "user_id", "address", "delivery_address", "shipping_choice", "shipping_price",
		"shipping_id", "shipping_company", "shipping_method", "product_list", "promo_code", "price_total", "is_confirmed", "status", "delivery_date", "created_at",
	},
	orderBy: "created_at, id",
	scan:    scanOrder,
	values:  orderValues,
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o               domain.Order
		address         string
		deliveryAddress string
		shipping        string
		shippingPrice   decimal.Decimal
		shippingID      string
		company         string
		method          string
		products        string
		promo           string
		status          string
		deliveryDate    sql.NullTime
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &address, &deliveryAddress, &shipping, &shippingPrice,
		&shippingID, &company, &method, &products, &promo, &o.PriceTotal, &o.IsConfirmed, &status, &deliveryDate, &o.CreatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	var err error
	if o.Address, err = codec.DecodeAddress(address); err != nil {
		return domain.Order{}, err
	}
	if o.DeliveryAddress, err = codec.DecodeAddress(deliveryAddress); err != nil {
		return domain.Order{}, err
	}
	if o.Products, err = codec.DecodeProducts(products); err != nil {
		return domain.Order{}, err
	}
	if o.PromoCode, err = codec.DecodePromoCode(promo); err != nil {
		return domain.Order{}, err
	}

	o.ShippingChoice = shippingFromColumns(shipping, shippingID, company, method)
	o.ShippingChoice.Price = shippingPrice
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = o.CreatedAt.UTC()
	if deliveryDate.Valid {
		o.DeliveryDate = deliveryDate.Time.UTC()
	}

	return o, nil
}

// shippingFromColumns собирает способ доставки из отдельных колонок.
// Строки, записанные до появления колонок, разбираются из отображаемой строки.
func shippingFromColumns(display, id, company, method string) domain.ShippingChoice {
	if company == "" && method == "" {
		parsed := domain.ParseShippingDisplay(display)
		parsed.ID = id
		return parsed
	}
	return domain.ShippingChoice{ID: id, CompanyName: company, Method: method}
}

func orderValues(o domain.Order) ([]any, error) {
	address, err := codec.EncodeAddress(o.Address)
	if err != nil {
		return nil, err
	}
	deliveryAddress, err := codec.EncodeAddress(o.DeliveryAddress)
	if err != nil {
		return nil, err
	}
	products, err := codec.EncodeProducts(o.Products)
	if err != nil {
		return nil, err
	}
	promo, err := codec.EncodePromoCode(o.PromoCode)
	if err != nil {
		return nil, err
	}

	return []any{
		o.ID, o.UserID, address, deliveryAddress, o.ShippingChoice.DisplayName(), o.ShippingChoice.Price,
		o.ShippingChoice.ID, o.ShippingChoice.CompanyName, o.ShippingChoice.Method, products, promo, o.PriceTotal, o.IsConfirmed, string(o.Status), nullTime(o.DeliveryDate), o.CreatedAt,
	}, nil
}

var userCodec = rowCodec[domain.User]{
	table:   "users",
	columns: []string{"id", "role", "address"},
	scan:    scanUser,
	values:  userValues,
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u       domain.User
		role    string
		address string
	)
	if err := row.Scan(&u.ID, &role, &address); err != nil {
		return domain.User{}, err
	}

	parsed, err := domain.ParseRole(role)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = parsed

	if u.Address, err = codec.DecodeAddress(address); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func userValues(u domain.User) ([]any, error) {
	address, err := codec.EncodeAddress(u.Address)
	if err != nil {
		return nil, err
	}
	return []any{u.ID, string(u.Role), address}, nil
}

var promoCodeCodec = rowCodec[domain.PromoCode]{
	table:   "promo_codes",
	columns: []string{"id", "code", "discount_percentage"},
	scan: func(row rowScanner) (domain.PromoCode, error) {
		var p domain.PromoCode
		if err := row.Scan(&p.ID, &p.Code, &p.DiscountPercentage); err != nil {
			return domain.PromoCode{}, err
		}
		return p, nil
	},
	values: func(p domain.PromoCode) ([]any, error) {
		return []any{p.ID, p.Code, p.DiscountPercentage}, nil
	},
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
