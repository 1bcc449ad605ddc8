// internal/marketplace/handler.go
package marketplace

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nftmarket/internal/account"
	"nftmarket/internal/auth"
	"nftmarket/internal/units"
)

type Handler struct {
	service Service
	journal *Journal
}

// NewHandler exposes the marketplace. journal may be nil, in which case item
// history is unavailable.
func NewHandler(service Service, journal *Journal) *Handler {
	return &Handler{service: service, journal: journal}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/marketplace", h.HandleInfo)
	r.Get("/items", h.HandleListItems)
	r.Post("/items", h.HandleMakeItem)
	r.Get("/items/{id}", h.HandleGetItem)
	r.Get("/items/{id}/total-price", h.HandleTotalPrice)
	r.Post("/items/{id}/purchase", h.HandlePurchase)
	r.Get("/items/{id}/history", h.HandleHistory)
}

// TotalPrice is the response of the total price endpoint.
type TotalPrice struct {
	ItemID uint64   `json:"item_id"`
	Wei    *big.Int `json:"wei"`
	Ether  string   `json:"ether"`
}

func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.service.Info(r.Context()))
}

func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.service.ListItems(r.Context()))
}

func (h *Handler) HandleMakeItem(w http.ResponseWriter, r *http.Request) {
	seller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		NFT     account.Address `json:"nft"`
		TokenID uint64          `json:"token_id"`
		Price   *big.Int        `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.service.MakeItem(r.Context(), seller, req.NFT, req.TokenID, req.Price)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]uint64{"item_id": id})
}

func (h *Handler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(item)
}

func (h *Handler) HandleTotalPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	total := h.service.GetTotalPrice(r.Context(), id)
	json.NewEncoder(w).Encode(TotalPrice{ItemID: id, Wei: total, Ether: units.FromWei(total)})
}

func (h *Handler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	buyer, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req struct {
		Payment *big.Int `json:"payment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.PurchaseItem(r.Context(), buyer, id, req.Payment); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if h.journal == nil {
		http.Error(w, "item history is not enabled", http.StatusNotImplemented)
		return
	}
	if _, err := h.service.GetItem(r.Context(), id); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	events, err := h.journal.History(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(events)
}

func itemID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid item ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidPrice):
		return http.StatusBadRequest
	case errors.Is(err, ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrAlreadySold):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}
