package handlers

import (
	"net/http"
)

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) ListCompanions(w http.ResponseWriter, r *http.Request) {
	companions, err := h.companions.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "companions", companions)
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	player, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	companion, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	reply, err := h.companions.Chat(r.Context(), player, companion, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "companion replied", reply)
}

func (h *Handler) Memories(w http.ResponseWriter, r *http.Request) {
	player, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	companion, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ms, err := h.companions.Memories(r.Context(), player, companion, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "memories", ms)
}

// Forget wipes everything the companion remembers about the caller.
func (h *Handler) Forget(w http.ResponseWriter, r *http.Request) {
	player, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	companion, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	n, err := h.companions.Forget(r.Context(), player, companion)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "memories forgotten", map[string]int64{"deleted": n})
}
