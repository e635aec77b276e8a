package domain

import "context"

// Entity — агрегат с уникальным идентификатором, который умеет
// вернуть свою копию с подменённым ID (нужно Update, чтобы сохранить исходный ID).
type Entity[T any] interface {
	EntityID() string
	WithEntityID(id string) T
}

// Predicate выбирает сущности хранилища. nil означает "любая сущность".
type Predicate[T any] func(T) bool

// Matches применяет предикат; nil-предикат совпадает со всем.
func (p Predicate[T]) Matches(v T) bool {
	return p == nil || p(v)
}

// EntityStore — обобщённое хранилище агрегатов с выборкой по предикату.
//
// Бизнес-отказы (дубликат, нет совпадений) возвращаются как false,
// error используется только для инфраструктурных сбоев (ErrStoreUnavailable)
// и отмены контекста.
type EntityStore[T Entity[T]] interface {
	// Create сохраняет сущность, если ID непустой и ещё не занят.
	Create(ctx context.Context, entity T) (bool, error)
	// GetOne возвращает первую сущность, удовлетворяющую предикату.
	GetOne(ctx context.Context, pred Predicate[T]) (T, bool, error)
	// GetAll возвращает все совпадения; пустой срез, а не nil, если совпадений нет.
	GetAll(ctx context.Context, pred Predicate[T]) ([]T, error)
	// Update атомарно заменяет запись первой совпавшей сущности, сохраняя её исходный ID.
	Update(ctx context.Context, pred Predicate[T], entity T) (bool, error)
	// Delete атомарно удаляет все совпадения; true, если удалена хотя бы одна.
	Delete(ctx context.Context, pred Predicate[T]) (bool, error)
}

// KeyedStore — необязательное расширение EntityStore с доступом по первичному ключу.
// Хранилища, где полный перебор или блокировка всей таблицы дороги, реализуют его,
// чтобы операции над разными ID не мешали друг другу.
type KeyedStore[T Entity[T]] interface {
	GetByID(ctx context.Context, id string) (T, bool, error)
	UpdateByID(ctx context.Context, id string, entity T) (bool, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// GetByID читает сущность по ID через KeyedStore, если хранилище его поддерживает.
func GetByID[T Entity[T]](ctx context.Context, store EntityStore[T], id string) (T, bool, error) {
	if keyed, ok := store.(KeyedStore[T]); ok {
		return keyed.GetByID(ctx, id)
	}
	return store.GetOne(ctx, ByID[T](id))
}

// UpdateByID заменяет сущность с указанным ID.
func UpdateByID[T Entity[T]](ctx context.Context, store EntityStore[T], id string, entity T) (bool, error) {
	if keyed, ok := store.(KeyedStore[T]); ok {
		return keyed.UpdateByID(ctx, id, entity)
	}
	return store.Update(ctx, ByID[T](id), entity)
}

// DeleteByID удаляет сущность с указанным ID.
func DeleteByID[T Entity[T]](ctx context.Context, store EntityStore[T], id string) (bool, error) {
	if keyed, ok := store.(KeyedStore[T]); ok {
		return keyed.DeleteByID(ctx, id)
	}
	return store.Delete(ctx, ByID[T](id))
}

// ByID выбирает сущность по идентификатору.
func ByID[T Entity[T]](id string) Predicate[T] {
	return func(v T) bool {
		return v.EntityID() == id
	}
}

// And объединяет предикаты логическим "и"; nil-элементы игнорируются.
func And[T any](preds ...Predicate[T]) Predicate[T] {
	return func(v T) bool {
		for _, p := range preds {
			if !p.Matches(v) {
				return false
			}
		}
		return true
	}
}

// OrdersOwnedBy выбирает заказы пользователя.
func OrdersOwnedBy(userID string) Predicate[Order] {
	return func(o Order) bool {
		return o.UserID == userID
	}
}

// All совпадает с любой сущностью.
func All[T any]() Predicate[T] {
	return nil
}
