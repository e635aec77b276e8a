package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
	"github.com/vladislavdragonenkov/orderprovider/internal/pricing"
)

// MaxCartUnits ограничивает число единиц товара в одной корзине.
const MaxCartUnits = 1000

// Service управляет корзинами до подтверждения заказа.
type Service struct {
	carts  domain.CartRepository
	promos domain.EntityStore[domain.PromoCode]
	logger *log.Entry
	now    func() time.Time
}

// NewService конструирует сервис корзины.
func NewService(carts domain.CartRepository, promos domain.EntityStore[domain.PromoCode], logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart-service")
	}
	return &Service{
		carts:  carts,
		promos: promos,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetUserCart возвращает текущую корзину с живой оценкой стоимости.
// Для пользователя без корзины возвращается пустая корзина.
func (s *Service) GetUserCart(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, &domain.ValidationError{Reason: domain.ReasonMissingField, Field: "userId"}
	}

	c, found, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !found {
		c = domain.Cart{UserID: userID, Products: []domain.Product{}}
	}
	if c.Products == nil {
		c.Products = []domain.Product{}
	}
	c.PriceTotal = estimate(c)
	return c, nil
}

// AddProduct добавляет count единиц товара в корзину.
func (s *Service) AddProduct(ctx context.Context, userID string, product domain.Product, count int) (domain.Cart, error) {
	if product.ID == "" {
		return domain.Cart{}, &domain.ValidationError{Reason: domain.ReasonMissingField, Field: "product.id"}
	}
	if product.Price.IsNegative() {
		return domain.Cart{}, domain.NewValidationError(domain.ReasonInvalidPrice, product.ID)
	}
	if count <= 0 {
		count = 1
	}
	if count > MaxCartUnits {
		return domain.Cart{}, tooManyUnits(count)
	}

	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		if len(c.Products)+count > MaxCartUnits {
			return tooManyUnits(len(c.Products) + count)
		}
		for i := 0; i < count; i++ {
			c.Products = append(c.Products, product)
		}
		return nil
	})
}

func tooManyUnits(n int) error {
	return &domain.ValidationError{
		Reason:  domain.ReasonInvalidQuantity,
		Field:   "count",
		Details: []string{fmt.Sprintf("%d units exceed the cart limit of %d", n, MaxCartUnits)},
	}
}

// RemoveProduct убирает до amount единиц товара из корзины.
func (s *Service) RemoveProduct(ctx context.Context, userID, productID string, amount int) (domain.Cart, error) {
	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		c.Products = DeleteProductFromList(c.Products, productID, amount)
		return nil
	})
}

// SetShipping задаёт способ доставки для оценки стоимости.
func (s *Service) SetShipping(ctx context.Context, userID string, shipping domain.ShippingChoice) (domain.Cart, error) {
	if shipping.Price.IsNegative() {
		return domain.Cart{}, domain.NewValidationError(domain.ReasonInvalidPrice, "shippingChoice.price")
	}
	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		c.Shipping = &shipping
		return nil
	})
}

// ApplyPromoCode проверяет код по справочнику промокодов и прикрепляет его к корзине.
func (s *Service) ApplyPromoCode(ctx context.Context, userID, code string) (domain.Cart, error) {
	promo, err := LookupPromoCode(ctx, s.promos, code)
	if err != nil {
		return domain.Cart{}, err
	}
	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		c.PromoCode = &promo
		return nil
	})
}

// Clear удаляет корзину, например после оформления заказа.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// mutate применяет fn к корзине атомарно относительно других изменений той же корзины.
func (s *Service) mutate(ctx context.Context, userID string, fn func(c *domain.Cart) error) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, &domain.ValidationError{Reason: domain.ReasonMissingField, Field: "userId"}
	}

	c, err := s.carts.Update(ctx, userID, func(c *domain.Cart) error {
		if c.Products == nil {
			c.Products = []domain.Product{}
		}
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedAt = s.now()
		c.PriceTotal = estimate(*c)
		return nil
	})
	if err != nil {
		if !domain.IsValidation(err) {
			s.logger.WithError(err).WithField("user_id", userID).Error("failed to update cart")
		}
		return domain.Cart{}, err
	}
	return c, nil
}

// LookupPromoCode ищет промокод с точным совпадением кода.
func LookupPromoCode(ctx context.Context, promos domain.EntityStore[domain.PromoCode], code string) (domain.PromoCode, error) {
	if code == "" {
		return domain.PromoCode{}, &domain.ValidationError{Reason: domain.ReasonMissingField, Field: "promoCode"}
	}
	if promos == nil {
		return domain.PromoCode{}, domain.NewValidationError(domain.ReasonInvalidPromoCode, code)
	}

	promo, found, err := promos.GetOne(ctx, func(p domain.PromoCode) bool {
		return pricing.ValidatePromoCode(code, p.Code)
	})
	if err != nil {
		return domain.PromoCode{}, err
	}
	if !found {
		return domain.PromoCode{}, domain.NewValidationError(domain.ReasonInvalidPromoCode, code)
	}
	return promo, nil
}

func estimate(c domain.Cart) decimal.Decimal {
	shipping := decimal.Zero
	if c.Shipping != nil {
		shipping = c.Shipping.Price
	}
	return pricing.Total(c.Products, shipping, c.PromoCode)
}
