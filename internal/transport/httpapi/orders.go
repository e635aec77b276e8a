package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vladislavdragonenkov/orderprovider/internal/codec"
	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

type timelineEntry struct {
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type addressUpdateResponse struct {
	Updated bool           `json:"updated"`
	Address domain.Address `json:"address"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	var in domain.CreateOrderInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.UserID == "" {
		in.UserID = req.ID
	}

	created, err := h.orders.CreateOrder(r.Context(), req, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, codec.NewOrderRecord(created))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	orders, err := h.orders.GetAllOrders(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.NewOrderRecords(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	o, err := h.orders.GetOneUserOrder(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.NewOrderRecord(o))
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	var record codec.OrderRecord
	if err := decodeJSON(r, &record); err != nil {
		writeError(w, err)
		return
	}
	replacement := record.Order()
	replacement.ID = mux.Vars(r)["id"]

	updated, err := h.orders.UpdateOrder(r.Context(), req, replacement)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.NewOrderRecord(updated))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	if err := h.orders.DeleteOrder(r.Context(), req, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getProducts(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	products, err := h.orders.GetProductList(r.Context(), req, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) getTimeline(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	events, err := h.orders.GetOrderTimeline(r.Context(), req, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]timelineEntry, 0, len(events))
	for _, e := range events {
		out = append(out, timelineEntry{Type: e.Type, Reason: e.Reason, OccurredAt: e.Occurred})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	orders, err := h.orders.GetAllUserOrders(r.Context(), req, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.NewOrderRecords(orders))
}

func (h *Handler) getAddress(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	addr, err := h.orders.GetUserAddress(r.Context(), req, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

func (h *Handler) updateAddress(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(r)
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	var addr domain.Address
	if err := decodeJSON(r, &addr); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.orders.UpdateUserAddress(r.Context(), req, mux.Vars(r)["id"], addr)
	if err != nil {
		writeError(w, err)
		return
	}
	if !updated {
		writeError(w, domain.NewValidationError(domain.ReasonInvalidAddress, domain.JoinErrors(addr.Validate())))
		return
	}
	writeJSON(w, http.StatusOK, addressUpdateResponse{Updated: true, Address: addr})
}
