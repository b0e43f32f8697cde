package handlers

import (
	"fmt"
	"net/http"

	"github.com/avvvet/ganggpt-services/internal/apisvc/service"
	"github.com/go-chi/chi"
)

func (h *Handler) ListFactions(w http.ResponseWriter, r *http.Request) {
	factions, err := h.factions.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "factions", factions)
}

func (h *Handler) CreateFaction(w http.ResponseWriter, r *http.Request) {
	id, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req service.CreateFactionInput
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	f, err := h.factions.Create(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, "faction created", f)
}

func (h *Handler) GetFaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	f, err := h.factions.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "faction", f)
}

func (h *Handler) DisbandFaction(w http.ResponseWriter, r *http.Request) {
	actor, role, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.factions.Disband(r.Context(), actor, role, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "faction disbanded", nil)
}

func (h *Handler) FactionMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	members, err := h.factions.Members(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "members", members)
}

func (h *Handler) JoinFaction(w http.ResponseWriter, r *http.Request) {
	player, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	f, err := h.factions.Join(r.Context(), player, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "joined faction", f)
}

func (h *Handler) LeaveFaction(w http.ResponseWriter, r *http.Request) {
	player, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.factions.Leave(r.Context(), player); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "left faction", nil)
}

// MemberAction handles kick, promote, demote and leader on a member of the
// caller's faction.
func (h *Handler) MemberAction(w http.ResponseWriter, r *http.Request) {
	actor, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	target, err := pathInt(r, "playerId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	var data interface{}
	switch action := chi.URLParam(r, "action"); action {
	case "kick":
		err = h.factions.Kick(ctx, actor, target)
	case "promote":
		data, err = h.factions.Promote(ctx, actor, target)
	case "demote":
		data, err = h.factions.Demote(ctx, actor, target)
	case "leader":
		err = h.factions.TransferLeadership(ctx, actor, target)
	default:
		err = fmt.Errorf("%w: unknown member action %q", errBadRequest, action)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "member updated", data)
}
