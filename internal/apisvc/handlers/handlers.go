package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avvvet/ganggpt-services/internal/apisvc/service"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("invalid request")

type Services struct {
	Players    *service.PlayerService
	Factions   *service.FactionService
	Economy    *service.EconomyService
	Missions   *service.MissionService
	Companions *service.CompanionService
}

type Handler struct {
	tokenAuth  *jwtauth.JWTAuth
	players    *service.PlayerService
	factions   *service.FactionService
	economy    *service.EconomyService
	missions   *service.MissionService
	companions *service.CompanionService
	aiLimit    int
	port       string
}

func NewHandler(tokenAuth *jwtauth.JWTAuth, svc Services, aiLimit int, port string) *Handler {
	return &Handler{
		tokenAuth:  tokenAuth,
		players:    svc.Players,
		factions:   svc.Factions,
		economy:    svc.Economy,
		missions:   svc.Missions,
		companions: svc.Companions,
		aiLimit:    aiLimit,
		port:       port,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) ok(w http.ResponseWriter, code int, message string, data interface{}) {
	h.CreateResponse(w, Response{Message: message, Code: code, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := MapServiceError(r, err)
	h.CreateResponse(w, Response{Message: http.StatusText(code), Code: code, Error: msg})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.ok(w, http.StatusOK, "api service is running at port "+h.port, nil)
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errBadRequest
	}
	return nil
}

func pathInt(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest
	}
	return id, nil
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, errBadRequest
	}
	return id, nil
}

// queryInt returns def when the parameter is absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errBadRequest
	}
	return n, nil
}

func identity(r *http.Request) (int64, string, error) {
	return auth.Identity(r.Context())
}
