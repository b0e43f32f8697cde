package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type transferRequest struct {
	ToPlayerID int64           `json:"to_player_id"`
	Amount     decimal.Decimal `json:"amount"`
	Memo       string          `json:"memo"`
}

type grantRequest struct {
	PlayerID int64           `json:"player_id"`
	Amount   decimal.Decimal `json:"amount"`
	Memo     string          `json:"memo"`
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	id, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	balance, err := h.economy.Balance(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "balance", map[string]interface{}{
		"player_id": id,
		"balance":   balance,
	})
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	id, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	txs, err := h.economy.History(r.Context(), id, limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "transactions", txs)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req transferRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.economy.Transfer(r.Context(), id, req.ToPlayerID, req.Amount, req.Memo)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "transfer completed", res)
}

// Grant credits money to a player. Admin only.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	_, role, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req grantRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	tx, err := h.economy.Grant(r.Context(), role, req.PlayerID, req.Amount, req.Memo)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, "grant booked", tx)
}
