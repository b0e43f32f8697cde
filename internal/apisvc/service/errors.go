package service

import (
	"errors"
	"fmt"

	"github.com/avvvet/ganggpt-services/internal/ai"
	"github.com/avvvet/ganggpt-services/internal/apisvc/store"
)

// ===== Validation Errors =====
var (
	ErrInvalidSocialClub  = errors.New("social club must be 3-32 characters of letters, digits, '_', '.' or '-'")
	ErrInvalidDisplayName = errors.New("display name must be 1-32 characters")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 128 characters")
	ErrInvalidFactionName = errors.New("faction name must be 3-48 characters")
	ErrInvalidFactionTag  = errors.New("faction tag must be 2-5 uppercase letters or digits")
	ErrInvalidFactionKind = errors.New("unknown faction kind")
	ErrInvalidAmount      = errors.New("amount must be positive, at most 1000000 with 2 decimal places")
	ErrSelfTransfer       = errors.New("cannot transfer to yourself")
	ErrInvalidDifficulty  = errors.New("difficulty must be easy, medium or hard")
	ErrInvalidMessage     = errors.New("message must be 1-500 characters")
	ErrInvalidStatus      = errors.New("unknown mission status")
)

// ===== Authentication Errors =====
var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrAlreadyRegistered  = errors.New("player already registered")
)

// ===== Authorization Errors =====
var (
	ErrPlayerBanned     = errors.New("player is banned")
	ErrNotFactionMember = errors.New("not a member of this faction")
	ErrInsufficientRank = errors.New("rank too low for this action")
	ErrNotMissionOwner  = errors.New("mission belongs to another player")
	ErrAdminOnly        = errors.New("admin only")
	ErrServiceOnly      = errors.New("only game servers or admins may do this")
)

// ===== Not Found Errors =====
var (
	ErrPlayerNotFound    = errors.New("player not found")
	ErrFactionNotFound   = errors.New("faction not found")
	ErrMissionNotFound   = errors.New("mission not found")
	ErrCompanionNotFound = errors.New("companion not found")
)

// ===== Conflict Errors =====
var (
	ErrAlreadyInFaction   = errors.New("already in a faction")
	ErrNotInFaction       = errors.New("not in a faction")
	ErrLeaderMustTransfer = errors.New("leader must transfer leadership before leaving")
	ErrFactionExists      = errors.New("a faction with this name or tag already exists")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrTooManyMissions    = errors.New("too many open missions")
	ErrMissionState       = errors.New("mission cannot change to that state")
	ErrCannotTargetSelf   = errors.New("cannot target yourself")
	ErrRankLimit          = errors.New("rank cannot change further")
)

// ===== AI Errors =====
var (
	ErrAIDisabled      = errors.New("ai is not configured")
	ErrContentFiltered = errors.New("message blocked by content filter")
	ErrAIUnavailable   = errors.New("ai upstream failure")
)

// notFound turns store.ErrNotFound into the given domain error and passes
// anything else through.
func notFound(err error, domain error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain
	}
	return err
}

func aiError(err error) error {
	switch {
	case errors.Is(err, ai.ErrDisabled):
		return ErrAIDisabled
	case errors.Is(err, ai.ErrContentFiltered):
		return ErrContentFiltered
	}
	return fmt.Errorf("%w: %v", ErrAIUnavailable, err)
}
