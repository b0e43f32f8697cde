package handlers

import (
	"net/http"

	"github.com/avvvet/ganggpt-services/internal/apisvc/service"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.players.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, "player registered", p)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	token, p, err := h.players.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "logged in", map[string]interface{}{
		"token":  token,
		"player": p,
	})
}

// Me returns the caller's dashboard.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	d, err := h.players.Dashboard(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "dashboard", d)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.players.UpdateProfile(r.Context(), id, req.DisplayName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "profile updated", p)
}

// ListPlayers is the reputation leaderboard.
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
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

	players, err := h.players.Leaderboard(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "players", players)
}

func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.players.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "player", p)
}
