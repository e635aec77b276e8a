// Package validation реализует последовательную проверку бизнес-правил перед созданием заказа.
package validation

import (
	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// Check — одна проверка конвейера. nil означает, что проверка пройдена.
type Check func(in domain.CreateOrderInput) *domain.ValidationError

// Pipeline выполняет проверки по порядку и останавливается на первой неудаче.
type Pipeline struct {
	checks []Check
}

// NewPipeline создаёт конвейер из проверок по умолчанию и дополнительных проверок.
// Дополнительные проверки выполняются после базовых и не меняют их порядок.
func NewPipeline(extra ...Check) *Pipeline {
	checks := []Check{
		PaymentConfirmed,
		ProductsInStock,
		RequiredFields,
	}
	checks = append(checks, extra...)
	return &Pipeline{checks: checks}
}

// Validate возвращает первую причину отказа или nil.
func (p *Pipeline) Validate(in domain.CreateOrderInput) error {
	for _, check := range p.checks {
		if verr := check(in); verr != nil {
			return verr
		}
	}
	return nil
}

// PaymentConfirmed отклоняет заказ без подтверждения оплаты.
func PaymentConfirmed(in domain.CreateOrderInput) *domain.ValidationError {
	if !in.PaymentIsConfirmed {
		return domain.NewValidationError(domain.ReasonPaymentNotConfirmed)
	}
	return nil
}

// ProductsInStock отклоняет заказ, если хотя бы одного товара нет на складе.
// В причине перечисляются все такие товары, повторы схлопываются.
func ProductsInStock(in domain.CreateOrderInput) *domain.ValidationError {
	var (
		names []string
		ids   []string
		seen  = make(map[string]struct{})
	)
	for _, p := range in.Products {
		if p.Stock >= 1 {
			continue
		}
		key := p.ID
		if key == "" {
			key = p.Name
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, displayName(p))
		ids = append(ids, p.ID)
	}
	if len(names) == 0 {
		return nil
	}

	verr := domain.NewValidationError(domain.ReasonOutOfStock, names...)
	verr.ProductIDs = ids
	return verr
}

// RequiredFields проверяет наличие владельца, способа доставки и списка товаров.
func RequiredFields(in domain.CreateOrderInput) *domain.ValidationError {
	switch {
	case in.UserID == "":
		return missing("userId")
	case in.ShippingChoice == nil || in.ShippingChoice.IsZero():
		return missing("shippingChoice")
	case len(in.Products) == 0:
		return missing("productList")
	default:
		return nil
	}
}

// NonNegativePrices отклоняет отрицательные цены товаров и доставки.
func NonNegativePrices(in domain.CreateOrderInput) *domain.ValidationError {
	if in.ShippingChoice != nil && in.ShippingChoice.Price.IsNegative() {
		return domain.NewValidationError(domain.ReasonInvalidPrice, "shippingChoice.price")
	}
	for _, p := range in.Products {
		if p.Price.IsNegative() {
			return domain.NewValidationError(domain.ReasonInvalidPrice, displayName(p))
		}
	}
	return nil
}

// DeliveryAddressComplete проверяет адрес доставки, если он передан.
func DeliveryAddressComplete(in domain.CreateOrderInput) *domain.ValidationError {
	if in.DeliveryAddress == nil {
		return nil
	}
	errs := in.DeliveryAddress.Validate()
	if len(errs) == 0 {
		return nil
	}
	details := make([]string, 0, len(errs))
	for _, err := range errs {
		details = append(details, err.Error())
	}
	return domain.NewValidationError(domain.ReasonInvalidAddress, details...)
}

func missing(field string) *domain.ValidationError {
	return &domain.ValidationError{Reason: domain.ReasonMissingField, Field: field}
}

func displayName(p domain.Product) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
