// Package access решает, какие операции над заказами доступны запрашивающему.
package access

import (
	"context"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// Requester — личность и роль того, кто выполняет операцию.
type Requester struct {
	ID   string
	Role domain.Role
}

// Конструкторы для тестов и транспортного слоя.
func Admin(id string) Requester { return Requester{ID: id, Role: domain.RoleAdmin} }

func User(id string) Requester { return Requester{ID: id, Role: domain.RoleUser} }

func Guest(id string) Requester { return Requester{ID: id, Role: domain.RoleGuest} }

// Action — операция над заказом.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Decision — результат проверки доступа.
type Decision int

const (
	// Deny — операция недоступна роли как таковой.
	Deny Decision = iota
	// DenyNotOwner — роль допускает операцию, но заказ принадлежит другому пользователю.
	DenyNotOwner
	// Allow — операция разрешена.
	Allow
)

// Allowed сообщает, что решение разрешающее.
func (d Decision) Allowed() bool { return d == Allow }

// CanCreate: создавать заказ могут все роли; гостю по-прежнему нужна подтверждённая оплата.
func CanCreate(req Requester) Decision {
	switch req.Role {
	case domain.RoleAdmin, domain.RoleUser, domain.RoleGuest:
		return Allow
	default:
		return Deny
	}
}

// Authorize проверяет операцию над существующим заказом с владельцем ownerID.
func Authorize(req Requester, action Action, ownerID string) Decision {
	if action == ActionCreate {
		return CanCreate(req)
	}

	switch req.Role {
	case domain.RoleAdmin:
		return Allow
	case domain.RoleUser:
		if req.ID != "" && req.ID == ownerID {
			return Allow
		}
		return DenyNotOwner
	case domain.RoleGuest:
		return Deny
	default:
		return Deny
	}
}

// CanRead проверяет чтение заказа.
func CanRead(req Requester, order domain.Order) Decision {
	return Authorize(req, ActionRead, order.UserID)
}

// CanUpdate проверяет полную замену заказа.
func CanUpdate(req Requester, order domain.Order) Decision {
	return Authorize(req, ActionUpdate, order.UserID)
}

// CanDelete проверяет удаление заказа.
func CanDelete(req Requester, order domain.Order) Decision {
	return Authorize(req, ActionDelete, order.UserID)
}

// CanList проверяет просмотр истории заказов пользователя ownerID.
func CanList(req Requester, ownerID string) Decision {
	return Authorize(req, ActionRead, ownerID)
}

// CanListAll проверяет просмотр всех заказов системы.
func CanListAll(req Requester) Decision {
	switch req.Role {
	case domain.RoleAdmin:
		return Allow
	case domain.RoleUser, domain.RoleGuest:
		return Deny
	default:
		return Deny
	}
}

// CanManageProfile проверяет чтение и изменение адреса пользователя userID.
func CanManageProfile(req Requester, userID string) Decision {
	switch req.Role {
	case domain.RoleAdmin:
		return Allow
	case domain.RoleUser:
		if req.ID != "" && req.ID == userID {
			return Allow
		}
		return DenyNotOwner
	case domain.RoleGuest:
		return Deny
	default:
		return Deny
	}
}

// ReadScope возвращает предикат, ограничивающий выборку заказами, видимыми запрашивающему.
// Для гостя предикат не совпадает ни с одним заказом.
func ReadScope(req Requester) domain.Predicate[domain.Order] {
	switch req.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleUser:
		return domain.OrdersOwnedBy(req.ID)
	case domain.RoleGuest:
		return func(domain.Order) bool { return false }
	default:
		return func(domain.Order) bool { return false }
	}
}

type requesterKey struct{}

// WithRequester кладёт запрашивающего в контекст.
func WithRequester(ctx context.Context, req Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, req)
}

// FromContext достаёт запрашивающего из контекста.
func FromContext(ctx context.Context) (Requester, bool) {
	req, ok := ctx.Value(requesterKey{}).(Requester)
	return req, ok
}
