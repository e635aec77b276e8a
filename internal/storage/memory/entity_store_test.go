package memory_test

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
	"github.com/vladislavdragonenkov/orderprovider/internal/storage/memory"
)

func newOrder(id, userID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:     id,
		UserID: userID,
		ShippingChoice: domain.ShippingChoice{
			CompanyName: "PostNord",
			Method:      "Standard",
			Price:       decimal.NewFromInt(100),
		},
		Products: []domain.Product{
			{ID: "p-1", Name: "Boot", Stock: 20, Price: decimal.NewFromInt(100)},
		},
		PriceTotal:  decimal.NewFromInt(200),
		IsConfirmed: true,
		Status:      domain.OrderStatusAccepted,
		CreatedAt:   createdAt,
	}
}

func TestEntityStore_CreateGetOne(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore[domain.Order]()
	order := newOrder("order-1", "user-1", time.Now().UTC())

	ok, err := store.Create(ctx, order)
	require.NoError(t, err)
	require.True(t, ok)

	stored, found, err := store.GetOne(ctx, domain.ByID[domain.Order]("order-1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, order.ID, stored.ID)
	assert.Equal(t, order.UserID, stored.UserID)
}

func TestEntityStore_CreateRejectsEmptyAndDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore[domain.Order]()

	ok, err := store.Create(ctx, newOrder("", "user-1", time.Now()))
	require.NoError(t, err)
	assert.False(t, ok, "empty id must be rejected")

	ok, err = store.Create(ctx, newOrder("order-1", "user-1", time.Now()))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Create(ctx, newOrder("order-1", "user-2", time.Now()))
	require.NoError(t, err)
	assert.False(t, ok, "duplicate id must be rejected")

	all, err := store.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "user-1", all[0].UserID)
}

func TestEntityStore_GetOneNotFound(t *testing.T) {
	store := memory.NewEntityStore[domain.Order]()

	_, found, err := store.GetOne(context.Background(), domain.ByID[domain.Order]("missing"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEntityStore_GetAllReturnsEmptySlice(t *testing.T) {
	store := memory.NewEntityStore[domain.Order]()

	all, err := store.GetAll(context.Background(), domain.OrdersOwnedBy("nobody"))
	require.NoError(t, err)
	require.NotNil(t, all)
	assert.Empty(t, all)
}

func TestEntityStore_GetAllFilters(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore[domain.Order]()
	now := time.Now().UTC()
	for i, owner := range []string{"alice", "bob", "alice"} {
		_, err := store.Create(ctx, newOrder(fmt.Sprintf("order-%d", i), owner, now))
		require.NoError(t, err)
	}

	alice, err := store.GetAll(ctx, domain.OrdersOwnedBy("alice"))
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "order-0", alice[0].ID)
	assert.Equal(t, "order-2", alice[1].ID)

	all, err := store.GetAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEntityStore_GetAllHonoursCancellation(t *testing.T) {
	store := memory.NewEntityStore[domain.Order]()
	_, err := store.Create(context.Background(), newOrder("order-1", "alice", time.Now()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.GetAll(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEntityStore_UpdateRetainsOriginalID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore[domain.Order]()
	order := newOrder("order-1", "alice", time.Now().UTC())
	_, err := store.Create(ctx, order)
	require.NoError(t, err)

	replacement := order
	replacement.ID = "something-else"
	replacement.Status = domain.OrderStatusInTransit

	ok, err := store.Update(ctx, domain.ByID[domain.Order]("order-1"), replacement)
	require.NoError(t, err)
	require.True(t, ok)

	stored, found, err := store.GetOne(ctx, domain.ByID[domain.Order]("order-1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.OrderStatusInTransit, stored.Status)

	_, found, err = store.GetOne(ctx, domain.ByID[domain.Order]("something-else"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEntityStore_UpdateNoMatchLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore[domain.Order]()
	order := newOrder("order-1", "alice", time.Now().UTC())
	_, err := store.Create(ctx, order)
	require.NoError(t, err)

	before, err := store.GetAll(ctx, nil)
	require.NoError(t, err)

	ok, err := store.Update(ctx, domain.ByID[domain.Order]("missing"), newOrder("missing", "mallory", time.Now()))
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := store.GetAll(ctx, nil)
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(before, after), "store must be unchanged")
}

func TestEntityStore_DeleteAllMatches(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore[domain.Order]()
	now := time.Now().UTC()
	for i, owner := range []string{"alice", "bob", "alice"} {
		_, err := store.Create(ctx, newOrder(fmt.Sprintf("order-%d", i), owner, now))
		require.NoError(t, err)
	}

	ok, err := store.Delete(ctx, domain.OrdersOwnedBy("alice"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Delete(ctx, domain.OrdersOwnedBy("alice"))
	require.NoError(t, err)
	assert.False(t, ok, "second delete must report nothing removed")

	all, err := store.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "order-1", all[0].ID)

	// ID удалённой сущности снова свободен, но индекс оставшихся не сломан.
	_, found, err := store.GetOne(ctx, domain.ByID[domain.Order]("order-1"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestEntityStore_ReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore[domain.Order]()
	order := newOrder("order-1", "alice", time.Now().UTC())
	_, err := store.Create(ctx, order)
	require.NoError(t, err)

	order.Products[0].Name = "mutated after create"

	stored, _, err := store.GetOne(ctx, domain.ByID[domain.Order]("order-1"))
	require.NoError(t, err)
	assert.Equal(t, "Boot", stored.Products[0].Name)

	stored.Products[0].Name = "mutated after read"
	again, _, err := store.GetOne(ctx, domain.ByID[domain.Order]("order-1"))
	require.NoError(t, err)
	assert.Equal(t, "Boot", again.Products[0].Name)
}

func TestEntityStore_ConcurrentCreateSameID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore[domain.Order]()

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := store.Create(ctx, newOrder("order-1", fmt.Sprintf("user-%d", i), time.Now()))
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestEntityStore_ConcurrentUpdateDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore[domain.Order]()
	_, err := store.Create(ctx, newOrder("order-1", "alice", time.Now()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			upd := newOrder("order-1", "alice", time.Now())
			upd.Status = domain.OrderStatusInTransit
			_, _ = store.Update(ctx, domain.ByID[domain.Order]("order-1"), upd)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Delete(ctx, domain.ByID[domain.Order]("order-1"))
		}()
	}
	wg.Wait()

	// После удаления запись не воскресает: Update без совпадения ничего не создаёт.
	all, err := store.GetAll(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEntityStore_Users(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore[domain.User]()
	addr := &domain.Address{Street: "gata"}

	ok, err := store.Create(ctx, domain.User{ID: "alice", Role: domain.RoleUser, Address: addr})
	require.NoError(t, err)
	require.True(t, ok)

	addr.Street = "mutated"
	u, found, err := store.GetOne(ctx, domain.ByID[domain.User]("alice"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "gata", u.Address.Street)
}
