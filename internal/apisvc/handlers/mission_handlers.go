package handlers

import (
	"context"
	"net/http"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type generateRequest struct {
	Difficulty string `json:"difficulty"`
	Location   string `json:"location"`
}

func (h *Handler) ListMissions(w http.ResponseWriter, r *http.Request) {
	id, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	missions, err := h.missions.List(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "missions", missions)
}

// GenerateMission drafts a new mission for the caller. The body is optional.
func (h *Handler) GenerateMission(w http.ResponseWriter, r *http.Request) {
	id, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req generateRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	m, err := h.missions.Generate(r.Context(), id, req.Difficulty, req.Location)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, "mission generated", m)
}

func (h *Handler) GetMission(w http.ResponseWriter, r *http.Request) {
	h.withMission(w, r, "mission", h.missions.Get)
}

func (h *Handler) AcceptMission(w http.ResponseWriter, r *http.Request) {
	h.withMission(w, r, "mission accepted", h.missions.Accept)
}

func (h *Handler) AbandonMission(w http.ResponseWriter, r *http.Request) {
	h.withMission(w, r, "mission abandoned", h.missions.Abandon)
}

func (h *Handler) withMission(w http.ResponseWriter, r *http.Request, msg string,
	fn func(ctx context.Context, playerID int64, id uuid.UUID) (*models.Mission, error)) {
	player, _, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	m, err := fn(r.Context(), player, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, msg, m)
}

// CompleteMission pays out a mission. Called by the bridge or an admin.
func (h *Handler) CompleteMission(w http.ResponseWriter, r *http.Request) {
	_, role, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.missions.Complete(r.Context(), role, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.companions.RecordMissionEvent(r.Context(), res.Mission); err != nil {
		log.Warnf("record mission %s for companions: %v", id, err)
	}
	h.ok(w, http.StatusOK, "mission completed", res)
}
