// internal/registry/handler.go
package registry

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nftmarket/internal/account"
	"nftmarket/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/collection", h.HandleCollection)
	r.Post("/tokens", h.HandleMint)
	r.Get("/tokens/{id}", h.HandleToken)
	r.Post("/tokens/{id}/approve", h.HandleApprove)
	r.Post("/tokens/{id}/transfer", h.HandleTransfer)
	r.Get("/owners/{owner}/balance", h.HandleBalance)
	r.Get("/owners/{owner}/operators/{operator}", h.HandleIsApprovedForAll)
	r.Post("/operators", h.HandleSetApprovalForAll)
}

func (h *Handler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.service.Collection(r.Context()))
}

func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		URI string `json:"uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.service.Mint(r.Context(), caller, req.URI)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]uint64{"token_id": id})
}

func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenID(w, r)
	if !ok {
		return
	}

	token, err := h.service.Token(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(token)
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	id, ok := tokenID(w, r)
	if !ok {
		return
	}

	var req struct {
		To account.Address `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.Approve(r.Context(), caller, req.To, id); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	id, ok := tokenID(w, r)
	if !ok {
		return
	}

	var req struct {
		From account.Address `json:"from"`
		To   account.Address `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.TransferFrom(r.Context(), caller, req.From, req.To, id); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	owner, err := account.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	balance, err := h.service.BalanceOf(r.Context(), owner)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(map[string]uint64{"balance": balance})
}

func (h *Handler) HandleIsApprovedForAll(w http.ResponseWriter, r *http.Request) {
	owner, err := account.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	operator, err := account.ParseAddress(chi.URLParam(r, "operator"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	approved, err := h.service.IsApprovedForAll(r.Context(), owner, operator)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(map[string]bool{"approved": approved})
}

func (h *Handler) HandleSetApprovalForAll(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		Operator account.Address `json:"operator"`
		Approved bool            `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SetApprovalForAll(r.Context(), caller, req.Operator, req.Approved); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func tokenID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid token ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNonexistentToken):
		return http.StatusNotFound
	case errors.Is(err, ErrMintRateExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNotOwnerNorApproved), errors.Is(err, ErrApproveNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrZeroAddress), errors.Is(err, ErrTransferToZero),
		errors.Is(err, ErrIncorrectOwner), errors.Is(err, ErrApproveToCaller),
		errors.Is(err, ErrApprovalToCurrentOwner):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
