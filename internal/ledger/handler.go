// internal/ledger/handler.go
package ledger

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nftmarket/internal/account"
	"nftmarket/internal/units"
)

type Handler struct {
	service Service
	faucet  bool
}

// NewHandler exposes balances. Deposits are only routed when faucet is set.
func NewHandler(service Service, faucet bool) *Handler {
	return &Handler{service: service, faucet: faucet}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/balances/{address}", h.HandleBalance)
	if h.faucet {
		r.Post("/balances/{address}/deposit", h.HandleDeposit)
	}
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := account.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	wei := h.service.BalanceOf(r.Context(), addr)
	json.NewEncoder(w).Encode(Balance{Address: addr, Wei: wei, Ether: units.FromWei(wei)})
}

func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	addr, err := account.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req struct {
		Amount *big.Int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.Deposit(r.Context(), addr, req.Amount); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	wei := h.service.BalanceOf(r.Context(), addr)
	json.NewEncoder(w).Encode(Balance{Address: addr, Wei: wei, Ether: units.FromWei(wei)})
}
