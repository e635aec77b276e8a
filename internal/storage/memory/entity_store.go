package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// entityStoreInMemory — in-memory реализация EntityStore для локальной разработки и тестов.
// Порядок обхода совпадает с порядком вставки. Предикаты выполняются под блокировкой,
// поэтому не должны обращаться к тому же хранилищу.
type entityStoreInMemory[T domain.Entity[T]] struct {
	mu    sync.RWMutex
	items []T
	index map[string]int
}

// NewEntityStore возвращает in-memory хранилище сущностей типа T.
func NewEntityStore[T domain.Entity[T]]() domain.EntityStore[T] {
	return &entityStoreInMemory[T]{index: make(map[string]int)}
}

// Create сохраняет сущность, если ID непустой и ещё не занят.
func (s *entityStoreInMemory[T]) Create(ctx context.Context, entity T) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	id := entity.EntityID()
	if id == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[id]; exists {
		return false, nil
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	s.items = append(s.items, clone(entity))
	s.index[id] = len(s.items) - 1
	return true, nil
}

// GetOne возвращает первую сущность, удовлетворяющую предикату.
func (s *entityStoreInMemory[T]) GetOne(ctx context.Context, pred domain.Predicate[T]) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if pred.Matches(item) {
			return clone(item), true, nil
		}
	}
	return zero, false, nil
}

// GetAll возвращает все совпадения, прерываясь при отмене ctx.
func (s *entityStoreInMemory[T]) GetAll(ctx context.Context, pred domain.Predicate[T]) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]T, 0, len(s.items))
	for _, item := range s.items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pred.Matches(item) {
			result = append(result, clone(item))
		}
	}
	return result, nil
}

// Update заменяет первую совпавшую сущность, сохраняя её ID.
// Поиск и замена выполняются под одной блокировкой.
func (s *entityStoreInMemory[T]) Update(ctx context.Context, pred domain.Predicate[T], entity T) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if !pred.Matches(item) {
			continue
		}
		s.items[i] = clone(entity.WithEntityID(item.EntityID()))
		return true, nil
	}
	return false, nil
}

// Delete удаляет все совпадения под одной блокировкой.
func (s *entityStoreInMemory[T]) Delete(ctx context.Context, pred domain.Predicate[T]) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0:0]
	removed := 0
	for _, item := range s.items {
		if pred.Matches(item) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	if removed == 0 {
		return false, nil
	}

	s.items = kept
	s.index = make(map[string]int, len(kept))
	for i, item := range kept {
		s.index[item.EntityID()] = i
	}
	return true, nil
}

// clone делает глубокую копию, если тип её поддерживает.
func clone[T any](v T) T {
	if c, ok := any(v).(interface{ Clone() T }); ok {
		return c.Clone()
	}
	return v
}

var _ domain.EntityStore[domain.Order] = (*entityStoreInMemory[domain.Order])(nil)
