package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

type addProductRequest struct {
	Product domain.Product `json:"product"`
	Count   int            `json:"count"`
}

type promoRequest struct {
	Code string `json:"code"`
}

// Корзина привязана к запрашивающему: пользователю или гостевой сессии.

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	c, err := h.carts.GetUserCart(r.Context(), req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) addCartProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	var body addProductRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.carts.AddProduct(r.Context(), req.ID, body.Product, body.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) removeCartProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	amount := 1
	if raw := r.URL.Query().Get("amount"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, &domain.ValidationError{Reason: reasonMalformedRequest, Field: "amount"})
			return
		}
		amount = n
	}

	c, err := h.carts.RemoveProduct(r.Context(), req.ID, mux.Vars(r)["productId"], amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) setCartShipping(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	var shipping domain.ShippingChoice
	if err := decodeJSON(r, &shipping); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.carts.SetShipping(r.Context(), req.ID, shipping)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) applyCartPromo(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	var body promoRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.carts.ApplyPromoCode(r.Context(), req.ID, body.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	if err := h.carts.Clear(r.Context(), req.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
