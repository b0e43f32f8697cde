package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/apisvc/store"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var factionTagPattern = regexp.MustCompile(`^[A-Z0-9]{2,5}$`)

type FactionService struct {
	factions FactionStore
	players  PlayerStore
}

func NewFactionService(factions FactionStore, players PlayerStore) *FactionService {
	return &FactionService{factions: factions, players: players}
}

type CreateFactionInput struct {
	Name        string `json:"name"`
	Tag         string `json:"tag"`
	Kind        string `json:"kind"`
	Color       string `json:"color"`
	Territory   string `json:"territory"`
	Description string `json:"description"`
}

func (in *CreateFactionInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Tag = strings.TrimSpace(in.Tag)
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	if in.Kind == "" {
		in.Kind = "crew"
	}

	if n := utf8.RuneCountInString(in.Name); n < 3 || n > 48 {
		return ErrInvalidFactionName
	}
	if !factionTagPattern.MatchString(in.Tag) {
		return ErrInvalidFactionTag
	}
	if !lo.Contains(models.FactionKinds, in.Kind) {
		return ErrInvalidFactionKind
	}
	return nil
}

// Create founds a player faction led by leaderID.
func (s *FactionService) Create(ctx context.Context, leaderID int64, in CreateFactionInput) (*models.Faction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	leader, err := s.player(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	if leader.InFaction() {
		return nil, ErrAlreadyInFaction
	}

	f := &models.Faction{
		Name:        in.Name,
		Tag:         in.Tag,
		Kind:        in.Kind,
		Color:       in.Color,
		Territory:   in.Territory,
		Description: in.Description,
		LeaderID:    &leaderID,
	}
	if err := s.factions.Create(ctx, f); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// the leader row is checked above, so this is the name or tag
			return nil, ErrFactionExists
		}
		return nil, err
	}
	log.Infof("faction %d [%s] founded by player %d", f.ID, f.Tag, leaderID)
	return f, nil
}

func (s *FactionService) List(ctx context.Context) ([]*models.Faction, error) {
	return s.factions.List(ctx)
}

func (s *FactionService) Get(ctx context.Context, id int64) (*models.Faction, error) {
	f, err := s.factions.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrFactionNotFound)
	}
	return f, nil
}

func (s *FactionService) Members(ctx context.Context, id int64) ([]*models.Player, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.factions.Members(ctx, id)
}

// Join adds the player to a faction as a recruit.
func (s *FactionService) Join(ctx context.Context, playerID, factionID int64) (*models.Faction, error) {
	p, err := s.player(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.InFaction() {
		return nil, ErrAlreadyInFaction
	}
	f, err := s.Get(ctx, factionID)
	if err != nil {
		return nil, err
	}

	if err := s.factions.Join(ctx, playerID, factionID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyInFaction
		}
		return nil, notFound(err, ErrFactionNotFound)
	}
	f.MemberCount++
	return f, nil
}

// Leave removes the player from their faction. A leader has to hand over
// first unless they are the last member, in which case the faction is
// disbanded.
func (s *FactionService) Leave(ctx context.Context, playerID int64) error {
	p, err := s.player(ctx, playerID)
	if err != nil {
		return err
	}
	if !p.InFaction() {
		return ErrNotInFaction
	}

	if p.FactionRank == models.RankLeader {
		members, err := s.factions.Members(ctx, *p.FactionID)
		if err != nil {
			return err
		}
		if len(members) > 1 {
			return ErrLeaderMustTransfer
		}
		if err := s.factions.Delete(ctx, *p.FactionID); err != nil {
			return notFound(err, ErrFactionNotFound)
		}
		log.Infof("faction %d disbanded, last member %d left", *p.FactionID, playerID)
		return nil
	}

	return notFound(s.factions.Leave(ctx, playerID), ErrNotInFaction)
}

// Kick removes target from the actor's faction. The actor must be at least
// lieutenant and outrank the target.
func (s *FactionService) Kick(ctx context.Context, actorID, targetID int64) error {
	actor, target, err := s.pair(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if actor.FactionRank < models.RankLieutenant || actor.FactionRank <= target.FactionRank {
		return ErrInsufficientRank
	}
	if err := s.factions.Leave(ctx, targetID); err != nil {
		return notFound(err, ErrNotFactionMember)
	}
	log.Infof("player %d kicked %d from faction %d", actorID, targetID, *actor.FactionID)
	return nil
}

// Promote raises target one rank, up to lieutenant. Leader only.
func (s *FactionService) Promote(ctx context.Context, actorID, targetID int64) (*models.Player, error) {
	return s.changeRank(ctx, actorID, targetID, +1)
}

// Demote lowers target one rank, down to recruit. Leader only.
func (s *FactionService) Demote(ctx context.Context, actorID, targetID int64) (*models.Player, error) {
	return s.changeRank(ctx, actorID, targetID, -1)
}

func (s *FactionService) changeRank(ctx context.Context, actorID, targetID int64, delta int) (*models.Player, error) {
	actor, target, err := s.pair(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if actor.FactionRank != models.RankLeader {
		return nil, ErrInsufficientRank
	}

	rank := target.FactionRank + delta
	if rank < models.RankRecruit || rank > models.RankLieutenant {
		return nil, ErrRankLimit
	}
	if err := s.factions.SetRank(ctx, *actor.FactionID, targetID, rank); err != nil {
		return nil, notFound(err, ErrNotFactionMember)
	}
	target.FactionRank = rank
	return target, nil
}

// TransferLeadership hands the faction to another member; the old leader
// becomes lieutenant.
func (s *FactionService) TransferLeadership(ctx context.Context, actorID, targetID int64) error {
	actor, _, err := s.pair(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if actor.FactionRank != models.RankLeader {
		return ErrInsufficientRank
	}
	if err := s.factions.TransferLeadership(ctx, *actor.FactionID, actorID, targetID); err != nil {
		return notFound(err, ErrNotFactionMember)
	}
	log.Infof("faction %d leadership moved from %d to %d", *actor.FactionID, actorID, targetID)
	return nil
}

// Disband deletes a faction. Its leader or an admin may do this.
func (s *FactionService) Disband(ctx context.Context, actorID int64, role string, factionID int64) error {
	f, err := s.Get(ctx, factionID)
	if err != nil {
		return err
	}

	if role != auth.RoleAdmin {
		actor, err := s.player(ctx, actorID)
		if err != nil {
			return err
		}
		if actor.FactionID == nil || *actor.FactionID != f.ID {
			return ErrNotFactionMember
		}
		if actor.FactionRank != models.RankLeader {
			return ErrInsufficientRank
		}
	}

	if err := s.factions.Delete(ctx, f.ID); err != nil {
		return notFound(err, ErrFactionNotFound)
	}
	log.Infof("faction %d [%s] disbanded by %d (%s)", f.ID, f.Tag, actorID, role)
	return nil
}

func (s *FactionService) player(ctx context.Context, id int64) (*models.Player, error) {
	p, err := s.players.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}
	return p, nil
}

// pair loads actor and target and checks they share a faction.
func (s *FactionService) pair(ctx context.Context, actorID, targetID int64) (*models.Player, *models.Player, error) {
	if actorID == targetID {
		return nil, nil, ErrCannotTargetSelf
	}
	actor, err := s.player(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.InFaction() {
		return nil, nil, ErrNotInFaction
	}
	target, err := s.player(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	if target.FactionID == nil || *target.FactionID != *actor.FactionID {
		return nil, nil, fmt.Errorf("player %d: %w", targetID, ErrNotFactionMember)
	}
	return actor, target, nil
}
