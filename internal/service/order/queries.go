package order

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/orderprovider/internal/access"
	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// GetOneUserOrder возвращает заказ, если он существует и доступен запрашивающему.
// Чужой заказ и несуществующий заказ неразличимы: в обоих случаях ErrNotFound.
func (s *Service) GetOneUserOrder(ctx context.Context, id string, req access.Requester) (order domain.Order, err error) {
	ctx, finish := s.startOperation(ctx, "get", req)
	defer finish(&err)

	return s.loadAuthorized(ctx, req, access.ActionRead, id)
}

// GetAllUserOrders возвращает заказы пользователя userID, новые первыми.
// Пользователь видит только свои заказы: запрос чужой истории даёт пустой список.
func (s *Service) GetAllUserOrders(ctx context.Context, req access.Requester, userID string) (orders []domain.Order, err error) {
	ctx, finish := s.startOperation(ctx, "list_user", req)
	defer finish(&err)

	switch access.CanList(req, userID) {
	case access.Allow:
	case access.DenyNotOwner:
		s.metrics.RecordAccessDenied(string(access.ActionRead), string(req.Role))
		return []domain.Order{}, nil
	default:
		s.metrics.RecordAccessDenied(string(access.ActionRead), string(req.Role))
		return nil, domain.ErrForbidden
	}

	orders, err = s.orders.GetAll(ctx, domain.OrdersOwnedBy(userID))
	if err != nil {
		return nil, err
	}
	return sortNewestFirst(orders), nil
}

// GetAllOrders возвращает все заказы системы; доступно только администратору.
func (s *Service) GetAllOrders(ctx context.Context, req access.Requester) (orders []domain.Order, err error) {
	ctx, finish := s.startOperation(ctx, "list_all", req)
	defer finish(&err)

	if !access.CanListAll(req).Allowed() {
		s.metrics.RecordAccessDenied(string(access.ActionRead), string(req.Role))
		return nil, domain.ErrForbidden
	}

	orders, err = s.orders.GetAll(ctx, access.ReadScope(req))
	if err != nil {
		return nil, err
	}
	return sortNewestFirst(orders), nil
}

// GetProductList возвращает список товаров заказа.
func (s *Service) GetProductList(ctx context.Context, req access.Requester, orderID string) (products []domain.Product, err error) {
	ctx, finish := s.startOperation(ctx, "products", req)
	defer finish(&err)

	order, err := s.loadAuthorized(ctx, req, access.ActionRead, orderID)
	if err != nil {
		return nil, err
	}
	if order.Products == nil {
		return []domain.Product{}, nil
	}
	return order.Products, nil
}

// GetOrderTimeline возвращает историю статусов заказа в хронологическом порядке.
func (s *Service) GetOrderTimeline(ctx context.Context, req access.Requester, orderID string) (events []domain.TimelineEvent, err error) {
	ctx, finish := s.startOperation(ctx, "timeline", req)
	defer finish(&err)

	if _, err := s.loadAuthorized(ctx, req, access.ActionRead, orderID); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}

	events, err = s.timeline.List(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.TimelineEvent{}
	}
	return events, nil
}

// loadAuthorized читает заказ и проверяет право на действие.
// Отказ из-за чужого заказа маскируется под ErrNotFound; отказ роли (гость) для
// чтения тоже даёт ErrNotFound, для изменения ErrForbidden.
func (s *Service) loadAuthorized(ctx context.Context, req access.Requester, action access.Action, id string) (domain.Order, error) {
	if id == "" {
		return domain.Order{}, domain.ErrNotFound
	}

	order, found, err := domain.GetByID(ctx, s.orders, id)
	if err != nil {
		return domain.Order{}, err
	}

	decision := access.Authorize(req, action, order.UserID)
	if !found {
		if decision == access.Deny && action != access.ActionRead {
			return domain.Order{}, domain.ErrForbidden
		}
		return domain.Order{}, domain.ErrNotFound
	}

	switch decision {
	case access.Allow:
		return order, nil
	case access.DenyNotOwner:
		s.metrics.RecordAccessDenied(string(action), string(req.Role))
		return domain.Order{}, domain.ErrNotFound
	default:
		s.metrics.RecordAccessDenied(string(action), string(req.Role))
		if action == access.ActionRead {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, domain.ErrForbidden
	}
}

// sortNewestFirst упорядочивает заказы по дате создания по убыванию;
// заказы с одинаковой датой сохраняют порядок хранилища.
func sortNewestFirst(orders []domain.Order) []domain.Order {
	if orders == nil {
		return []domain.Order{}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}
