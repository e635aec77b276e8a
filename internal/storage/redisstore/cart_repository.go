// Package redisstore хранит корзины в Redis: по одному ключу на корзину с JSON-значением и TTL.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/orderprovider/internal/codec"
	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

const (
	// DefaultCartTTL — время жизни неактивной корзины.
	DefaultCartTTL = 24 * time.Hour

	cartKeyPrefix = "orderprovider:cart:"

	// maxUpdateAttempts ограничивает число повторов WATCH-транзакции при конкурентной записи.
	maxUpdateAttempts = 100
)

var errCartContention = errors.New("cart is modified concurrently")

type cartRepository struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewCartRepository создаёт CartRepository поверх клиента Redis.
// ttl <= 0 заменяется на DefaultCartTTL.
func NewCartRepository(rdb redis.UniversalClient, ttl time.Duration) domain.CartRepository {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &cartRepository{rdb: rdb, ttl: ttl}
}

func (r *cartRepository) Get(ctx context.Context, userID string) (domain.Cart, bool, error) {
	data, err := r.rdb.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}, false, nil
	}
	if err != nil {
		return domain.Cart{}, false, domain.StoreError("redis get cart", err)
	}

	c, err := codec.DecodeCart(data)
	if err != nil {
		return domain.Cart{}, false, domain.StoreError("redis get cart", err)
	}
	return c, true, nil
}

// Save перезаписывает корзину и продлевает TTL.
func (r *cartRepository) Save(ctx context.Context, c domain.Cart) error {
	data, err := codec.EncodeCart(c)
	if err != nil {
		return domain.StoreError("redis save cart", err)
	}
	if err := r.rdb.Set(ctx, cartKey(c.UserID), data, r.ttl).Err(); err != nil {
		return domain.StoreError("redis save cart", err)
	}
	return nil
}

// Update выполняет чтение и запись корзины в WATCH/MULTI транзакции.
// Если ключ изменился между чтением и EXEC, попытка повторяется.
func (r *cartRepository) Update(ctx context.Context, userID string, fn func(*domain.Cart) error) (domain.Cart, error) {
	key := cartKey(userID)

	var (
		updated domain.Cart
		fnErr   error
	)
	txf := func(tx *redis.Tx) error {
		c := domain.Cart{UserID: userID}
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if c, err = codec.DecodeCart(data); err != nil {
				return err
			}
		}

		if fnErr = fn(&c); fnErr != nil {
			return fnErr
		}
		c.UserID = userID

		encoded, err := codec.EncodeCart(c)
		if err != nil {
			return err
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, r.ttl)
			return nil
		}); err != nil {
			return err
		}
		updated = c
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		fnErr = nil
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if fnErr != nil {
			return domain.Cart{}, fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.Cart{}, domain.StoreError("redis update cart", err)
	}
	return domain.Cart{}, domain.StoreError("redis update cart", errCartContention)
}

func (r *cartRepository) Delete(ctx context.Context, userID string) error {
	if err := r.rdb.Del(ctx, cartKey(userID)).Err(); err != nil {
		return domain.StoreError("redis delete cart", err)
	}
	return nil
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}

var _ domain.CartRepository = (*cartRepository)(nil)
