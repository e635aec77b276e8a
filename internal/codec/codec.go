// Package codec отвечает за сериализацию вложенных значений заказа
// (адрес, список товаров, промокод) в JSON-текст и обратно.
// Используется postgres-хранилищем для JSON-колонок и redis-репозиторием корзин.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// EncodeAddress сериализует адрес; nil кодируется пустой строкой.
func EncodeAddress(addr *domain.Address) (string, error) {
	if addr == nil {
		return "", nil
	}
	return encode("address", addr)
}

// DecodeAddress восстанавливает адрес; пустая строка означает отсутствие адреса.
func DecodeAddress(raw string) (*domain.Address, error) {
	if isEmpty(raw) {
		return nil, nil
	}
	var addr domain.Address
	if err := decode("address", raw, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

// EncodeProducts сериализует список товаров; nil кодируется как "[]".
func EncodeProducts(products []domain.Product) (string, error) {
	if products == nil {
		products = []domain.Product{}
	}
	return encode("product list", products)
}

// DecodeProducts восстанавливает список товаров с сохранением порядка и повторов.
func DecodeProducts(raw string) ([]domain.Product, error) {
	products := []domain.Product{}
	if isEmpty(raw) {
		return products, nil
	}
	if err := decode("product list", raw, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// EncodePromoCode сериализует промокод; nil кодируется пустой строкой.
func EncodePromoCode(promo *domain.PromoCode) (string, error) {
	if promo == nil {
		return "", nil
	}
	return encode("promo code", promo)
}

// DecodePromoCode восстанавливает промокод.
func DecodePromoCode(raw string) (*domain.PromoCode, error) {
	if isEmpty(raw) {
		return nil, nil
	}
	var promo domain.PromoCode
	if err := decode("promo code", raw, &promo); err != nil {
		return nil, err
	}
	return &promo, nil
}

// EncodeCart сериализует корзину целиком.
func EncodeCart(c domain.Cart) ([]byte, error) {
	if c.Products == nil {
		c.Products = []domain.Product{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return data, nil
}

// DecodeCart восстанавливает корзину.
func DecodeCart(data []byte) (domain.Cart, error) {
	var c domain.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	if c.Products == nil {
		c.Products = []domain.Product{}
	}
	return c, nil
}

// OrderRecord — внешнее представление заказа: способ доставки хранится строкой
// "<company> <method>", дата создания передаётся полем creationDate.
// Обратный разбор строки доставки неоднозначен (см. domain.ParseShippingDisplay).
type OrderRecord struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	Address         *domain.Address   `json:"address,omitempty"`
	DeliveryAddress *domain.Address   `json:"deliveryAddress,omitempty"`
	ShippingChoice  string            `json:"shippingChoice"`
	ShippingPrice   decimal.Decimal   `json:"shippingPrice"`
	Products        []domain.Product  `json:"productList"`
	PromoCode       *domain.PromoCode `json:"promoCode,omitempty"`
	PriceTotal      decimal.Decimal   `json:"priceTotal"`
	IsConfirmed     bool              `json:"isConfirmed"`
	Status          string            `json:"status"`
	DeliveryDate    time.Time         `json:"deliveryDate"`
	CreationDate    time.Time         `json:"creationDate"`
}

// NewOrderRecord строит внешнее представление заказа.
func NewOrderRecord(o domain.Order) OrderRecord {
	products := o.Products
	if products == nil {
		products = []domain.Product{}
	}
	return OrderRecord{
		ID:              o.ID,
		UserID:          o.UserID,
		Address:         o.Address,
		DeliveryAddress: o.DeliveryAddress,
		ShippingChoice:  o.ShippingChoice.DisplayName(),
		ShippingPrice:   o.ShippingChoice.Price,
		Products:        products,
		PromoCode:       o.PromoCode,
		PriceTotal:      o.PriceTotal,
		IsConfirmed:     o.IsConfirmed,
		Status:          string(o.Status),
		DeliveryDate:    o.DeliveryDate,
		CreationDate:    o.CreatedAt,
	}
}

// NewOrderRecords строит представления для списка заказов; пустой вход даёт пустой срез.
func NewOrderRecords(orders []domain.Order) []OrderRecord {
	out := make([]OrderRecord, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderRecord(o))
	}
	return out
}

// Order восстанавливает доменный заказ из внешнего представления.
func (r OrderRecord) Order() domain.Order {
	shipping := domain.ParseShippingDisplay(r.ShippingChoice)
	shipping.Price = r.ShippingPrice

	return domain.Order{
		ID:              r.ID,
		UserID:          r.UserID,
		Address:         r.Address,
		DeliveryAddress: r.DeliveryAddress,
		ShippingChoice:  shipping,
		Products:        r.Products,
		PromoCode:       r.PromoCode,
		PriceTotal:      r.PriceTotal,
		IsConfirmed:     r.IsConfirmed,
		Status:          domain.OrderStatus(r.Status),
		DeliveryDate:    r.DeliveryDate,
		CreatedAt:       r.CreationDate,
	}
}

func encode(what string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", what, err)
	}
	return string(data), nil
}

func decode(what, raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}

func isEmpty(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || raw == "null"
}
