package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// cartRepositoryInMemory хранит корзины в памяти (для разработки/тестов).
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

// NewCartRepository создаёт in-memory реализацию CartRepository.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{carts: make(map[string]domain.Cart)}
}

func (r *cartRepositoryInMemory) Get(ctx context.Context, userID string) (domain.Cart, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, false, nil
	}
	return copyCart(c), true, nil
}

func (r *cartRepositoryInMemory) Save(ctx context.Context, c domain.Cart) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[c.UserID] = copyCart(c)
	return nil
}

func (r *cartRepositoryInMemory) Update(ctx context.Context, userID string, fn func(*domain.Cart) error) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if ok {
		c = copyCart(c)
	} else {
		c = domain.Cart{UserID: userID}
	}
	if err := fn(&c); err != nil {
		return domain.Cart{}, err
	}
	c.UserID = userID
	r.carts[userID] = copyCart(c)
	return c, nil
}

func (r *cartRepositoryInMemory) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, userID)
	return nil
}

func copyCart(c domain.Cart) domain.Cart {
	out := c
	out.Products = make([]domain.Product, len(c.Products))
	copy(out.Products, c.Products)
	if c.PromoCode != nil {
		promo := *c.PromoCode
		out.PromoCode = &promo
	}
	if c.Shipping != nil {
		shipping := *c.Shipping
		out.Shipping = &shipping
	}
	return out
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
