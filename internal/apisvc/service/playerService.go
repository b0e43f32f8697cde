package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/apisvc/store"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/go-chi/jwtauth"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

var socialClubPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

type PlayerConfig struct {
	StarterBalance decimal.Decimal
	TokenTTL       time.Duration
	HashCost       int // bcrypt cost, bcrypt.DefaultCost when zero
}

// PlayerService handles accounts, sessions and the player-facing read models.
type PlayerService struct {
	players  PlayerStore
	ledger   LedgerStore
	factions FactionStore
	missions MissionStore
	tokens   *jwtauth.JWTAuth
	cfg      PlayerConfig
}

func NewPlayerService(players PlayerStore, ledger LedgerStore, factions FactionStore, missions MissionStore, tokens *jwtauth.JWTAuth, cfg PlayerConfig) *PlayerService {
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &PlayerService{
		players:  players,
		ledger:   ledger,
		factions: factions,
		missions: missions,
		tokens:   tokens,
		cfg:      cfg,
	}
}

type RegisterInput struct {
	SocialClub  string `json:"social_club"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (in *RegisterInput) validate() error {
	in.SocialClub = strings.TrimSpace(in.SocialClub)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.DisplayName == "" {
		in.DisplayName = in.SocialClub
	}

	if !socialClubPattern.MatchString(in.SocialClub) {
		return ErrInvalidSocialClub
	}
	if err := validateDisplayName(in.DisplayName); err != nil {
		return err
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return ErrInvalidEmail
	}
	switch n := utf8.RuneCountInString(in.Password); {
	case n < 8:
		return ErrPasswordTooShort
	case n > 128:
		return ErrPasswordTooLong
	}
	return nil
}

func validateDisplayName(name string) error {
	if n := utf8.RuneCountInString(name); n < 1 || n > 32 {
		return ErrInvalidDisplayName
	}
	return nil
}

// Register creates a web account. A player first seen in game has no
// credentials yet; registering with the same social club claims it.
func (s *PlayerService) Register(ctx context.Context, in RegisterInput) (*models.Player, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)

	existing, err := s.players.GetBySocialClub(ctx, in.SocialClub)
	switch {
	case err == nil:
		if existing.HasCredentials() {
			return nil, ErrAlreadyRegistered
		}
		if err := s.players.SetCredentials(ctx, existing.ID, in.Email, hashed); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, ErrAlreadyRegistered
			}
			return nil, err
		}
		log.Infof("player %d (%s) claimed web account", existing.ID, existing.SocialClub)
		return s.players.GetByID(ctx, existing.ID)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	p := &models.Player{
		SocialClub:   in.SocialClub,
		DisplayName:  in.DisplayName,
		Email:        &in.Email,
		PasswordHash: &hashed,
		Role:         auth.RolePlayer,
		Status:       models.PlayerOffline,
	}
	if err := s.players.Create(ctx, p, s.cfg.StarterBalance); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	log.Infof("player %d (%s) registered", p.ID, p.SocialClub)
	return p, nil
}

// Login checks the password for an email or social club and returns a
// signed token.
func (s *PlayerService) Login(ctx context.Context, login, password string) (string, *models.Player, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	// emails are stored lowercased, social clubs as typed
	if strings.Contains(login, "@") {
		login = strings.ToLower(login)
	}

	p, err := s.players.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !p.HasCredentials() {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*p.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if p.Status == models.PlayerBanned {
		return "", nil, ErrPlayerBanned
	}

	token, err := auth.IssueToken(s.tokens, p.ID, p.Role, s.cfg.TokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, p, nil
}

// GetOrCreateFromGame is called when a player joins a game server. Unknown
// social clubs get a fresh player with the starter grant.
func (s *PlayerService) GetOrCreateFromGame(ctx context.Context, socialClub, name string) (*models.Player, error) {
	socialClub = strings.TrimSpace(socialClub)
	if !socialClubPattern.MatchString(socialClub) {
		return nil, ErrInvalidSocialClub
	}

	p, err := s.players.GetBySocialClub(ctx, socialClub)
	if errors.Is(err, store.ErrNotFound) {
		name = strings.TrimSpace(name)
		if validateDisplayName(name) != nil {
			name = socialClub
		}
		p = &models.Player{
			SocialClub:  socialClub,
			DisplayName: name,
			Role:        auth.RolePlayer,
			Status:      models.PlayerOnline,
		}
		err = s.players.Create(ctx, p, s.cfg.StarterBalance)
		if errors.Is(err, store.ErrConflict) {
			// another join raced us
			p, err = s.players.GetBySocialClub(ctx, socialClub)
		} else if err == nil {
			log.Infof("player %d (%s) created from game join", p.ID, p.SocialClub)
		}
	}
	if err != nil {
		return nil, err
	}

	if p.Status == models.PlayerBanned {
		return nil, ErrPlayerBanned
	}
	if err := s.players.SetStatus(ctx, p.ID, models.PlayerOnline); err != nil {
		return nil, err
	}
	p.Status = models.PlayerOnline
	return p, nil
}

func (s *PlayerService) SetOffline(ctx context.Context, id int64) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Status == models.PlayerBanned {
		return nil
	}
	return notFound(s.players.SetStatus(ctx, id, models.PlayerOffline), ErrPlayerNotFound)
}

func (s *PlayerService) Get(ctx context.Context, id int64) (*models.Player, error) {
	p, err := s.players.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}
	return p, nil
}

func (s *PlayerService) UpdateProfile(ctx context.Context, id int64, displayName string) (*models.Player, error) {
	displayName = strings.TrimSpace(displayName)
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}
	if err := s.players.UpdateProfile(ctx, id, displayName); err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}
	return s.Get(ctx, id)
}

func (s *PlayerService) Leaderboard(ctx context.Context, limit, offset int) ([]*models.Player, error) {
	limit = clamp(limit, 1, 100)
	if offset < 0 {
		offset = 0
	}
	return s.players.List(ctx, limit, offset)
}

// Dashboard gathers what the web dashboard and the game welcome screen show.
func (s *PlayerService) Dashboard(ctx context.Context, id int64) (*models.Dashboard, error) {
	d := &models.Dashboard{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.Get(gctx, id)
		if err != nil {
			return err
		}
		d.Player = p
		return nil
	})
	g.Go(func() error {
		bal, err := s.ledger.Balance(gctx, id)
		if err != nil {
			return err
		}
		d.Balance = bal
		return nil
	})
	g.Go(func() error {
		ms, err := s.missions.ListByPlayer(gctx, id, models.MissionActive)
		if err != nil {
			return err
		}
		d.Missions = ms
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if d.Player.FactionID != nil {
		f, err := s.factions.GetByID(ctx, *d.Player.FactionID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		d.Faction = f
	}
	if d.Missions == nil {
		d.Missions = []*models.Mission{}
	}
	return d, nil
}

func clamp(v, floor, ceil int) int {
	if v < floor {
		return floor
	}
	if v > ceil {
		return ceil
	}
	return v
}
