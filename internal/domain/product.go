package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product — товар в корзине или заказе. Повторы в списке означают количество.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	Price       decimal.Decimal `json:"price"`
}

// ShippingChoice — выбранный перевозчик и способ доставки.
type ShippingChoice struct {
	ID          string          `json:"id,omitempty"`
	CompanyName string          `json:"companyName"`
	Method      string          `json:"method"`
	Price       decimal.Decimal `json:"price"`
}

// DisplayName возвращает строку вида "<company> <method>", которая хранится в заказе.
func (s ShippingChoice) DisplayName() string {
	return strings.TrimSpace(s.CompanyName + " " + s.Method)
}

// IsZero сообщает, что способ доставки не выбран.
func (s ShippingChoice) IsZero() bool {
	return s.CompanyName == "" && s.Method == "" && s.ID == ""
}

// ParseShippingDisplay восстанавливает перевозчика и способ из строки "<company> <method>".
// Разбор идёт по последнему пробелу, поэтому способ из нескольких слов
// ("PostNord Home Delivery") попадает в имя перевозчика. ID и цена в строке
// не хранятся и остаются пустыми. Хранилища, которым нужен точный способ доставки,
// сохраняют поля отдельно.
func ParseShippingDisplay(display string) ShippingChoice {
	display = strings.TrimSpace(display)
	idx := strings.LastIndex(display, " ")
	if idx < 0 {
		return ShippingChoice{CompanyName: display}
	}
	return ShippingChoice{CompanyName: display[:idx], Method: display[idx+1:]}
}

// PromoCode — скидочный код, применяемый к стоимости товаров до доставки.
type PromoCode struct {
	ID                 string          `json:"id"`
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
}

// Validate проверяет, что процент скидки лежит в диапазоне 0..100.
func (p PromoCode) Validate() error {
	if p.DiscountPercentage.IsNegative() || p.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return ErrDiscountOutOfRange
	}
	return nil
}

func (p PromoCode) EntityID() string { return p.ID }

func (p PromoCode) WithEntityID(id string) PromoCode {
	p.ID = id
	return p
}

var _ Entity[PromoCode] = PromoCode{}

