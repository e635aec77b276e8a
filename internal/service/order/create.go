package order

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/orderprovider/internal/access"
	"github.com/vladislavdragonenkov/orderprovider/internal/cart"
	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
	"github.com/vladislavdragonenkov/orderprovider/internal/pricing"
)

// CreateOrder проверяет запрос на создание, считает итоговую цену и сохраняет заказ.
//
// Порядок проверок: право на создание, конвейер валидации (оплата, наличие, обязательные поля),
// владелец заказа, промокод. Заказ без подтверждённой оплаты, с отсутствующим товаром
// или незаполненным полем не сохраняется.
func (s *Service) CreateOrder(ctx context.Context, req access.Requester, in domain.CreateOrderInput) (created domain.Order, err error) {
	ctx, finish := s.startOperation(ctx, "create", req)
	defer finish(&err)

	if !access.CanCreate(req).Allowed() {
		s.metrics.RecordAccessDenied(string(access.ActionCreate), string(req.Role))
		return domain.Order{}, domain.ErrForbidden
	}

	if err := s.pipeline.Validate(in); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			s.metrics.RecordRejection(vErr.Reason)
		}
		s.logger.WithFields(log.Fields{
			"user_id": in.UserID,
			"reason":  err.Error(),
		}).Info("order rejected")
		return domain.Order{}, err
	}

	owner, err := s.resolveOwner(ctx, req, in.UserID)
	if err != nil {
		return domain.Order{}, err
	}

	var promo *domain.PromoCode
	if in.PromoCode != "" {
		found, err := cart.LookupPromoCode(ctx, s.promos, in.PromoCode)
		if err != nil {
			if domain.IsValidation(err) {
				s.metrics.RecordRejection(domain.ReasonInvalidPromoCode)
			}
			return domain.Order{}, err
		}
		promo = &found
	}

	order := s.buildOrder(in, owner, promo)
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, &domain.ValidationError{
			Reason:  domain.ReasonInvalidOrder,
			Details: []string{domain.JoinErrors(errs)},
		}
	}

	ok, err := s.orders.Create(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, domain.ErrConflict
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.price_total", order.PriceTotal.String()),
	)
	s.metrics.RecordOrderCreated()
	s.recordEvent(ctx, order, domain.EventOrderCreated, domain.TimelineOrderCreated, string(order.Status))
	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"price_total": order.PriceTotal.String(),
	}).Info("order created")

	return order, nil
}

// resolveOwner находит владельца будущего заказа. Заказ для себя регистрирует
// пользователя при первом обращении; заказ для другого пользователя доступен только
// администратору и требует существующего пользователя.
func (s *Service) resolveOwner(ctx context.Context, req access.Requester, userID string) (domain.User, error) {
	if userID != req.ID && req.Role != domain.RoleAdmin {
		s.metrics.RecordAccessDenied(string(access.ActionCreate), string(req.Role))
		return domain.User{}, domain.ErrForbidden
	}

	user, found, err := domain.GetByID(ctx, s.users, userID)
	if err != nil {
		return domain.User{}, err
	}
	if found {
		if req.Role == domain.RoleGuest && user.Role != domain.RoleGuest {
			// гостевая сессия не может выдать себя за зарегистрированного пользователя
			s.metrics.RecordAccessDenied(string(access.ActionCreate), string(req.Role))
			return domain.User{}, domain.ErrForbidden
		}
		return user, nil
	}

	if userID != req.ID {
		return domain.User{}, &domain.ValidationError{Reason: domain.ReasonUnknownUser, Field: "userId", Details: []string{userID}}
	}

	user = domain.User{ID: req.ID, Role: req.Role}
	if _, err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}
	// Параллельная регистрация того же пользователя тоже даёт валидного владельца.
	return user, nil
}

func (s *Service) buildOrder(in domain.CreateOrderInput, owner domain.User, promo *domain.PromoCode) domain.Order {
	products := make([]domain.Product, len(in.Products))
	copy(products, in.Products)

	address := in.DeliveryAddress
	if owner.Address != nil {
		address = owner.Address
	}

	order := domain.Order{
		ID:              s.newID(),
		UserID:          owner.ID,
		Address:         address,
		DeliveryAddress: in.DeliveryAddress,
		ShippingChoice:  *in.ShippingChoice,
		Products:        products,
		PromoCode:       promo,
		IsConfirmed:     in.PaymentIsConfirmed,
		CreatedAt:       s.now(),
	}
	order.PriceTotal = pricing.OrderTotal(order)
	order.ApplyDefaults()
	return order.Clone()
}
