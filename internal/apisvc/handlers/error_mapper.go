package handlers

import (
	"errors"
	"net/http"

	"github.com/avvvet/ganggpt-services/internal/apisvc/service"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/go-chi/chi/middleware"
	log "github.com/sirupsen/logrus"
)

// MapServiceError converts a service error into a status code and the
// message shown to the client. Unknown errors are logged and hidden.
func MapServiceError(r *http.Request, err error) (int, string) {
	switch {
	// ===== Bad Request → 400 =====
	case errors.Is(err, errBadRequest),
		errors.Is(err, service.ErrInvalidSocialClub),
		errors.Is(err, service.ErrInvalidDisplayName),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrPasswordTooLong),
		errors.Is(err, service.ErrInvalidFactionName),
		errors.Is(err, service.ErrInvalidFactionTag),
		errors.Is(err, service.ErrInvalidFactionKind),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrSelfTransfer),
		errors.Is(err, service.ErrInvalidDifficulty),
		errors.Is(err, service.ErrInvalidMessage),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrCannotTargetSelf):
		return http.StatusBadRequest, err.Error()

	// ===== Authentication → 401 =====
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNoIdentity):
		return http.StatusUnauthorized, err.Error()

	// ===== Authorization → 403 =====
	case errors.Is(err, service.ErrPlayerBanned),
		errors.Is(err, service.ErrNotFactionMember),
		errors.Is(err, service.ErrInsufficientRank),
		errors.Is(err, service.ErrNotMissionOwner),
		errors.Is(err, service.ErrAdminOnly),
		errors.Is(err, service.ErrServiceOnly):
		return http.StatusForbidden, err.Error()

	// ===== Not Found → 404 =====
	case errors.Is(err, service.ErrPlayerNotFound),
		errors.Is(err, service.ErrFactionNotFound),
		errors.Is(err, service.ErrMissionNotFound),
		errors.Is(err, service.ErrCompanionNotFound):
		return http.StatusNotFound, err.Error()

	// ===== Conflict → 409 =====
	case errors.Is(err, service.ErrAlreadyRegistered),
		errors.Is(err, service.ErrAlreadyInFaction),
		errors.Is(err, service.ErrNotInFaction),
		errors.Is(err, service.ErrLeaderMustTransfer),
		errors.Is(err, service.ErrFactionExists),
		errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrTooManyMissions),
		errors.Is(err, service.ErrMissionState),
		errors.Is(err, service.ErrRankLimit):
		return http.StatusConflict, err.Error()

	// ===== AI =====
	case errors.Is(err, service.ErrContentFiltered):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrAIUnavailable):
		log.WithField("request_id", middleware.GetReqID(r.Context())).Warn(err)
		return http.StatusBadGateway, service.ErrAIUnavailable.Error()
	case errors.Is(err, service.ErrAIDisabled):
		return http.StatusServiceUnavailable, err.Error()
	}

	log.WithField("request_id", middleware.GetReqID(r.Context())).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	return http.StatusInternalServerError, "internal error"
}
