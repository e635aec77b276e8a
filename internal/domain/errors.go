package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation — входные данные заказа нарушают бизнес-правила.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound возвращается, если сущность не найдена или недоступна запрашивающему.
	ErrNotFound = errors.New("not found")
	// ErrConflict сигнализирует о дубликате идентификатора при создании.
	ErrConflict = errors.New("entity already exists")
	// ErrForbidden — роль запрашивающего не допускает операцию.
	ErrForbidden = errors.New("operation is not permitted for requester role")
	// ErrUnauthorized — не удалось установить личность запрашивающего.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreUnavailable — инфраструктурная ошибка хранилища; не путать с "не найдено".
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUnknownRole — строка роли не входит в закрытый набор.
	ErrUnknownRole = errors.New("unknown role")

	// Ошибки полей адреса.
	ErrAddressStreetRequired             = errors.New("address street is required")
	ErrAddressCityRequired               = errors.New("address city is required")
	ErrAddressStateRequired              = errors.New("address state is required")
	ErrAddressPhoneNumberRequired        = errors.New("address phone number is required")
	ErrAddressZipCodeRequired            = errors.New("address zip code is required")
	ErrAddressCountryCallingCodeRequired = errors.New("address country calling code is required")
	ErrAddressCountryRequired            = errors.New("address country is required")

	// Ошибки инвариантов заказа.
	ErrOrderIDRequired      = errors.New("order id is required")
	ErrUserIDRequired       = errors.New("user id is required")
	ErrProductsRequired     = errors.New("confirmed order must contain at least one product")
	ErrProductPriceNegative = errors.New("product price must be non-negative")
	ErrProductStockNegative = errors.New("product stock must be non-negative")
	ErrShippingPriceInvalid = errors.New("shipping price must be non-negative")
	ErrPriceTotalMismatch   = errors.New("order price total does not match products, shipping and promo code")
	ErrOrderStatusInvalid   = errors.New("order status is invalid")
	ErrDiscountOutOfRange   = errors.New("promo discount must be between 0 and 100")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrOutboxRecordNotFound — запись outbox с таким ID отсутствует.
	ErrOutboxRecordNotFound = errors.New("outbox record not found")
)

// Причины отказа при создании заказа, видимые вызывающей стороне.
const (
	ReasonPaymentNotConfirmed = "payment not confirmed"
	ReasonOutOfStock          = "product(s) out of stock"
	ReasonMissingField        = "missing required field"
	ReasonInvalidPrice        = "invalid price"
	ReasonInvalidPromoCode    = "invalid promo code"
	ReasonInvalidAddress      = "invalid address"
	ReasonUnknownUser         = "unknown user"
	ReasonInvalidOrder        = "invalid order"
	ReasonInvalidQuantity     = "invalid quantity"
)

// ValidationError несёт человекочитаемую причину отказа.
type ValidationError struct {
	Reason     string
	Field      string
	ProductIDs []string
	Details    []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason)
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, ", "))
	}
	return b.String()
}

// Unwrap позволяет сравнивать ошибку с ErrValidation через errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError создаёт ошибку валидации с причиной и опциональными деталями.
func NewValidationError(reason string, details ...string) *ValidationError {
	return &ValidationError{Reason: reason, Details: details}
}

// StoreError оборачивает инфраструктурную ошибку хранилища.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// IsValidation проверяет, является ли ошибка бизнес-отказом валидации.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound проверяет, является ли ошибка отсутствием сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStoreFailure проверяет, вызвана ли ошибка недоступностью хранилища.
func IsStoreFailure(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// JoinErrors склеивает список ошибок в одну строку.
func JoinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
