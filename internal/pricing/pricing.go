// Package pricing содержит чистые функции расчёта стоимости заказа.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// CurrencyPlaces — точность округления итоговой суммы.
const CurrencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// SumProductPrices складывает цены товаров; каждый повтор в списке считается отдельной единицей.
func SumProductPrices(products []domain.Product) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range products {
		sum = sum.Add(p.Price)
	}
	return sum
}

// ApplyShipping прибавляет стоимость доставки к цене заказа.
func ApplyShipping(orderPrice, shippingPrice decimal.Decimal) decimal.Decimal {
	return orderPrice.Add(shippingPrice)
}

// ApplyDiscount возвращает orderPrice * (1 - pct/100). Процент ограничивается диапазоном 0..100.
func ApplyDiscount(orderPrice, discountPercentage decimal.Decimal) decimal.Decimal {
	pct := clampPercentage(discountPercentage)
	factor := decimal.NewFromInt(1).Sub(pct.Div(hundred))
	return orderPrice.Mul(factor)
}

// ValidatePromoCode сравнивает коды посимвольно, с учётом регистра и без нормализации.
func ValidatePromoCode(candidate, expected string) bool {
	return candidate == expected
}

// Total считает итог: скидка применяется к сумме товаров до доставки, затем прибавляется доставка.
func Total(products []domain.Product, shipping decimal.Decimal, promo *domain.PromoCode) decimal.Decimal {
	subtotal := SumProductPrices(products)
	if promo != nil {
		subtotal = ApplyDiscount(subtotal, promo.DiscountPercentage)
	}
	return RoundCurrency(ApplyShipping(subtotal, shipping))
}

// OrderTotal пересчитывает итог заказа по его товарам, доставке и промокоду.
func OrderTotal(order domain.Order) decimal.Decimal {
	return Total(order.Products, order.ShippingChoice.Price, order.PromoCode)
}

// VerifyTotal проверяет, что сохранённая сумма совпадает с пересчитанной.
func VerifyTotal(order domain.Order) error {
	if !RoundCurrency(order.PriceTotal).Equal(OrderTotal(order)) {
		return domain.ErrPriceTotalMismatch
	}
	return nil
}

// RoundCurrency округляет сумму до денежной точности.
func RoundCurrency(v decimal.Decimal) decimal.Decimal {
	return v.Round(CurrencyPlaces)
}

func clampPercentage(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}
