package domain

import "context"

// CartRepository хранит корзины пользователей и гостевых сессий.
type CartRepository interface {
	// Get возвращает корзину; found=false, если корзины нет.
	Get(ctx context.Context, userID string) (Cart, bool, error)
	// Save перезаписывает корзину целиком.
	Save(ctx context.Context, cart Cart) error
	// Update атомарно читает корзину, применяет fn и сохраняет результат.
	// Отсутствующая корзина передаётся в fn пустой, с заполненным UserID.
	// Ошибка fn отменяет изменение и возвращается как есть.
	Update(ctx context.Context, userID string, fn func(*Cart) error) (Cart, error)
	// Delete удаляет корзину, отсутствие корзины ошибкой не считается.
	Delete(ctx context.Context, userID string) error
}

// EventPublisher отправляет событие заказа во внешний брокер.
// Доставка at-least-once, поэтому потребители обязаны быть идемпотентными.
type EventPublisher interface {
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository — очередь событий заказа, ожидающих публикации.
type OutboxRepository interface {
	// Enqueue ставит событие в очередь; пустой ID заполняется UUID.
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	// PullPending возвращает до limit ожидающих событий в порядке постановки.
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит историю заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	// List возвращает события заказа по возрастанию Occurred.
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}
