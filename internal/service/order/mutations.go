package order

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderprovider/internal/access"
	"github.com/vladislavdragonenkov/orderprovider/internal/cart"
	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
	"github.com/vladislavdragonenkov/orderprovider/internal/pricing"
)

// UpdateOrder полностью заменяет заказ с ID replacement.ID.
// Идентификатор, владелец и дата создания берутся из сохранённого заказа,
// итоговая цена пересчитывается. Пустой статус оставляет текущий.
// Промокод принимается только из справочника, nil снимает скидку.
func (s *Service) UpdateOrder(ctx context.Context, req access.Requester, replacement domain.Order) (updated domain.Order, err error) {
	ctx, finish := s.startOperation(ctx, "update", req)
	defer finish(&err)

	current, err := s.loadAuthorized(ctx, req, access.ActionUpdate, replacement.ID)
	if err != nil {
		return domain.Order{}, err
	}

	next := replacement.Clone()
	next.ID = current.ID
	next.UserID = current.UserID
	next.CreatedAt = current.CreatedAt
	if next.Status == "" {
		next.Status = current.Status
	}
	if !next.Status.Valid() {
		return domain.Order{}, &domain.ValidationError{Reason: domain.ReasonInvalidOrder, Field: "status", Details: []string{string(next.Status)}}
	}
	if next.Status == domain.OrderStatusDelivered && current.Status != domain.OrderStatusDelivered && next.DeliveryDate.IsZero() {
		next.DeliveryDate = s.now()
	}
	if next.DeliveryDate.IsZero() {
		next.DeliveryDate = current.DeliveryDate
	}
	if next.ShippingChoice.DisplayName() == current.ShippingChoice.DisplayName() {
		// строка доставки не меняется: сохраняем точное разбиение и ID перевозчика
		price := next.ShippingChoice.Price
		next.ShippingChoice = current.ShippingChoice
		next.ShippingChoice.Price = price
	}
	promo, err := s.resolveUpdatePromo(ctx, current.PromoCode, replacement.PromoCode)
	if err != nil {
		return domain.Order{}, err
	}
	next.PromoCode = promo
	next.PriceTotal = pricing.OrderTotal(next)

	if errs := next.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, &domain.ValidationError{
			Reason:  domain.ReasonInvalidOrder,
			Details: []string{domain.JoinErrors(errs)},
		}
	}

	ok, err := domain.UpdateByID(ctx, s.orders, current.ID, next)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		// Заказ удалён между чтением и обновлением.
		return domain.Order{}, domain.ErrNotFound
	}

	s.metrics.RecordOrderUpdated()
	if next.Status != current.Status {
		s.recordEvent(ctx, next, domain.EventOrderUpdated, domain.TimelineOrderStatusChanged, string(next.Status))
		s.logger.WithFields(log.Fields{
			"order_id": next.ID,
			"from":     current.Status,
			"to":       next.Status,
		}).Info("order status changed")
	} else {
		s.recordEvent(ctx, next, domain.EventOrderUpdated, domain.TimelineOrderUpdated, "")
	}

	return next, nil
}

// resolveUpdatePromo возвращает промокод для обновлённого заказа. Скидка всегда берётся
// из справочника: сохранённый код остаётся как есть, новый код ищется по Code.
func (s *Service) resolveUpdatePromo(ctx context.Context, current, requested *domain.PromoCode) (*domain.PromoCode, error) {
	if requested == nil {
		return nil, nil
	}
	if current != nil && current.Code == requested.Code {
		kept := *current
		return &kept, nil
	}

	found, err := cart.LookupPromoCode(ctx, s.promos, requested.Code)
	if err != nil {
		if domain.IsValidation(err) {
			s.metrics.RecordRejection(domain.ReasonInvalidPromoCode)
		}
		return nil, err
	}
	return &found, nil
}

// DeleteOrder удаляет заказ. Удалённый заказ не восстанавливается.
func (s *Service) DeleteOrder(ctx context.Context, req access.Requester, id string) (err error) {
	ctx, finish := s.startOperation(ctx, "delete", req)
	defer finish(&err)

	current, err := s.loadAuthorized(ctx, req, access.ActionDelete, id)
	if err != nil {
		return err
	}

	ok, err := domain.DeleteByID(ctx, s.orders, current.ID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}

	s.metrics.RecordOrderDeleted()
	s.recordEvent(ctx, current, domain.EventOrderDeleted, "", "")
	s.logger.WithField("order_id", current.ID).Info("order deleted")
	return nil
}

// GetUserAddress возвращает сохранённый адрес пользователя.
func (s *Service) GetUserAddress(ctx context.Context, req access.Requester, userID string) (addr domain.Address, err error) {
	ctx, finish := s.startOperation(ctx, "get_address", req)
	defer finish(&err)

	if err := s.authorizeProfile(req, userID); err != nil {
		return domain.Address{}, err
	}

	user, found, err := domain.GetByID(ctx, s.users, userID)
	if err != nil {
		return domain.Address{}, err
	}
	if !found || user.Address == nil {
		return domain.Address{}, domain.ErrNotFound
	}
	return *user.Address, nil
}

// UpdateUserAddress заменяет адрес пользователя. Возвращает false без изменений,
// если не заполнено хотя бы одно поле адреса.
func (s *Service) UpdateUserAddress(ctx context.Context, req access.Requester, userID string, addr domain.Address) (updated bool, err error) {
	ctx, finish := s.startOperation(ctx, "update_address", req)
	defer finish(&err)

	if err := s.authorizeProfile(req, userID); err != nil {
		return false, err
	}
	if errs := addr.Validate(); len(errs) > 0 {
		s.logger.WithFields(log.Fields{
			"user_id": userID,
			"reason":  domain.JoinErrors(errs),
		}).Info("address update rejected")
		return false, nil
	}

	user, found, err := domain.GetByID(ctx, s.users, userID)
	if err != nil {
		return false, err
	}
	if !found {
		if userID != req.ID {
			return false, domain.ErrNotFound
		}
		return s.users.Create(ctx, domain.User{ID: userID, Role: req.Role, Address: &addr})
	}

	user.Address = &addr
	ok, err := domain.UpdateByID(ctx, s.users, userID, user)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, domain.ErrNotFound
	}
	return true, nil
}

func (s *Service) authorizeProfile(req access.Requester, userID string) error {
	switch access.CanManageProfile(req, userID) {
	case access.Allow:
		return nil
	case access.DenyNotOwner:
		s.metrics.RecordAccessDenied("profile", string(req.Role))
		return domain.ErrNotFound
	default:
		s.metrics.RecordAccessDenied("profile", string(req.Role))
		return domain.ErrForbidden
	}
}
