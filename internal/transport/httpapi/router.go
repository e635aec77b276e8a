// Package httpapi реализует REST-интерфейс сервиса заказов и корзин поверх gorilla/mux.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderprovider/internal/access"
	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// OrderService — сценарии заказов, которые обслуживает HTTP-слой.
type OrderService interface {
	CreateOrder(ctx context.Context, req access.Requester, in domain.CreateOrderInput) (domain.Order, error)
	GetOneUserOrder(ctx context.Context, id string, req access.Requester) (domain.Order, error)
	GetAllUserOrders(ctx context.Context, req access.Requester, userID string) ([]domain.Order, error)
	GetAllOrders(ctx context.Context, req access.Requester) ([]domain.Order, error)
	GetProductList(ctx context.Context, req access.Requester, orderID string) ([]domain.Product, error)
	GetOrderTimeline(ctx context.Context, req access.Requester, orderID string) ([]domain.TimelineEvent, error)
	UpdateOrder(ctx context.Context, req access.Requester, replacement domain.Order) (domain.Order, error)
	DeleteOrder(ctx context.Context, req access.Requester, id string) error
	GetUserAddress(ctx context.Context, req access.Requester, userID string) (domain.Address, error)
	UpdateUserAddress(ctx context.Context, req access.Requester, userID string, addr domain.Address) (bool, error)
}

// CartService — операции корзины текущего запрашивающего.
type CartService interface {
	GetUserCart(ctx context.Context, userID string) (domain.Cart, error)
	AddProduct(ctx context.Context, userID string, product domain.Product, count int) (domain.Cart, error)
	RemoveProduct(ctx context.Context, userID, productID string, amount int) (domain.Cart, error)
	SetShipping(ctx context.Context, userID string, shipping domain.ShippingChoice) (domain.Cart, error)
	ApplyPromoCode(ctx context.Context, userID, code string) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// Handler обслуживает REST-маршруты /api.
type Handler struct {
	orders OrderService
	carts  CartService
	logger *log.Entry
}

// NewHandler создаёт обработчики поверх сервисов заказов и корзин.
func NewHandler(orders OrderService, carts CartService, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{orders: orders, carts: carts, logger: logger}
}

// NewRouter собирает маршрутизатор с трассировкой, логированием и аутентификацией.
func NewRouter(h *Handler, auth *Authenticator) *mux.Router {
	r := mux.NewRouter()
	r.Use(traceMiddleware, loggingMiddleware(h.logger))

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware)

	api.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.updateOrder).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id}", h.deleteOrder).Methods(http.MethodDelete)
	api.HandleFunc("/orders/{id}/products", h.getProducts).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/timeline", h.getTimeline).Methods(http.MethodGet)

	api.HandleFunc("/users/{id}/orders", h.listUserOrders).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/address", h.getAddress).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/address", h.updateAddress).Methods(http.MethodPut)

	api.HandleFunc("/cart", h.getCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", h.clearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/products", h.addCartProduct).Methods(http.MethodPost)
	api.HandleFunc("/cart/products/{productId}", h.removeCartProduct).Methods(http.MethodDelete)
	api.HandleFunc("/cart/shipping", h.setCartShipping).Methods(http.MethodPut)
	api.HandleFunc("/cart/promo", h.applyCartPromo).Methods(http.MethodPut)

	return r
}

func requester(r *http.Request) (access.Requester, bool) {
	return access.FromContext(r.Context())
}
