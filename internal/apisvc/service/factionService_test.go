package service

import (
	"context"
	"testing"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/avvvet/ganggpt-services/internal/testing/fakes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type factionFixture struct {
	db      *fakes.DB
	svc     *FactionService
	faction *models.Faction
	leader  *models.Player
	lt      *models.Player
	member  *models.Player
	recruit *models.Player
}

// newFactionFixture builds a faction with one player at every rank.
func newFactionFixture(t *testing.T) *factionFixture {
	t.Helper()
	db := fakes.New()
	svc := NewFactionService(db.Factions(), db.Players())
	ctx := context.Background()

	fx := &factionFixture{db: db, svc: svc}
	fx.leader = db.SeedPlayer(t, "Boss_Man")
	f, err := svc.Create(ctx, fx.leader.ID, CreateFactionInput{Name: "Vagos Nuevos", Tag: "VGN", Kind: "gang", Territory: "El Burro Heights"})
	require.NoError(t, err)
	fx.faction = f

	fx.lt = db.SeedPlayer(t, "Right_Hand")
	fx.member = db.SeedPlayer(t, "Soldier_Sam")
	fx.recruit = db.SeedPlayer(t, "New_Kid")
	for _, p := range []*models.Player{fx.lt, fx.member, fx.recruit} {
		_, err := svc.Join(ctx, p.ID, f.ID)
		require.NoError(t, err)
	}
	db.MutatePlayer(fx.lt.ID, func(p *models.Player) { p.FactionRank = models.RankLieutenant })
	db.MutatePlayer(fx.member.ID, func(p *models.Player) { p.FactionRank = models.RankMember })
	return fx
}

func (fx *factionFixture) rank(t *testing.T, id int64) int {
	t.Helper()
	p, err := fx.db.Players().GetByID(context.Background(), id)
	require.NoError(t, err)
	if p.FactionID == nil {
		return -1
	}
	return p.FactionRank
}

func TestFactionCreate(t *testing.T) {
	fx := newFactionFixture(t)
	ctx := context.Background()

	assert.Equal(t, models.RankLeader, fx.rank(t, fx.leader.ID))
	assert.Equal(t, fx.leader.ID, *fx.faction.LeaderID)
	assert.False(t, fx.faction.AIControlled)

	_, err := fx.svc.Create(ctx, fx.member.ID, CreateFactionInput{Name: "Splinter", Tag: "SPL"})
	assert.ErrorIs(t, err, ErrAlreadyInFaction)

	loner := fx.db.SeedPlayer(t, "Lone_Wolf")
	_, err = fx.svc.Create(ctx, loner.ID, CreateFactionInput{Name: "Vagos Nuevos", Tag: "VN2"})
	assert.ErrorIs(t, err, ErrFactionExists)

	f, err := fx.svc.Create(ctx, loner.ID, CreateFactionInput{Name: "Lone Wolves", Tag: "LW"})
	require.NoError(t, err)
	assert.Equal(t, "crew", f.Kind)
}

func TestFactionCreate_Validation(t *testing.T) {
	db := fakes.New()
	svc := NewFactionService(db.Factions(), db.Players())
	p := db.SeedPlayer(t, "Boss_Man")

	cases := []struct {
		in   CreateFactionInput
		want error
	}{
		{CreateFactionInput{Name: "ab", Tag: "AB"}, ErrInvalidFactionName},
		{CreateFactionInput{Name: "Good Name", Tag: "toolong"}, ErrInvalidFactionTag},
		{CreateFactionInput{Name: "Good Name", Tag: "ab"}, ErrInvalidFactionTag},
		{CreateFactionInput{Name: "Good Name", Tag: "GN", Kind: "knights"}, ErrInvalidFactionKind},
	}
	for _, tc := range cases {
		_, err := svc.Create(context.Background(), p.ID, tc.in)
		assert.ErrorIs(t, err, tc.want, "%+v", tc.in)
	}

	_, err := svc.Create(context.Background(), 999, CreateFactionInput{Name: "Good Name", Tag: "GN"})
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestFactionJoinAndMembers(t *testing.T) {
	fx := newFactionFixture(t)
	ctx := context.Background()

	members, err := fx.svc.Members(ctx, fx.faction.ID)
	require.NoError(t, err)
	require.Len(t, members, 4)
	assert.Equal(t, fx.leader.ID, members[0].ID)
	assert.Equal(t, models.RankRecruit, fx.rank(t, fx.recruit.ID))

	_, err = fx.svc.Join(ctx, fx.recruit.ID, fx.faction.ID)
	assert.ErrorIs(t, err, ErrAlreadyInFaction)

	outsider := fx.db.SeedPlayer(t, "Outsider")
	_, err = fx.svc.Join(ctx, outsider.ID, 999)
	assert.ErrorIs(t, err, ErrFactionNotFound)

	_, err = fx.svc.Members(ctx, 999)
	assert.ErrorIs(t, err, ErrFactionNotFound)

	f, err := fx.svc.Get(ctx, fx.faction.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, f.MemberCount)
}

func TestFactionKick(t *testing.T) {
	fx := newFactionFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, fx.svc.Kick(ctx, fx.member.ID, fx.recruit.ID), ErrInsufficientRank)
	assert.ErrorIs(t, fx.svc.Kick(ctx, fx.lt.ID, fx.leader.ID), ErrInsufficientRank)
	assert.ErrorIs(t, fx.svc.Kick(ctx, fx.lt.ID, fx.lt.ID), ErrCannotTargetSelf)

	outsider := fx.db.SeedPlayer(t, "Outsider")
	assert.ErrorIs(t, fx.svc.Kick(ctx, fx.leader.ID, outsider.ID), ErrNotFactionMember)
	assert.ErrorIs(t, fx.svc.Kick(ctx, outsider.ID, fx.recruit.ID), ErrNotInFaction)

	require.NoError(t, fx.svc.Kick(ctx, fx.lt.ID, fx.member.ID))
	assert.Equal(t, -1, fx.rank(t, fx.member.ID))

	require.NoError(t, fx.svc.Kick(ctx, fx.leader.ID, fx.lt.ID))
	assert.Equal(t, -1, fx.rank(t, fx.lt.ID))
}

func TestFactionPromoteDemote(t *testing.T) {
	fx := newFactionFixture(t)
	ctx := context.Background()

	p, err := fx.svc.Promote(ctx, fx.leader.ID, fx.recruit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RankMember, p.FactionRank)
	assert.Equal(t, models.RankMember, fx.rank(t, fx.recruit.ID))

	_, err = fx.svc.Promote(ctx, fx.leader.ID, fx.lt.ID)
	assert.ErrorIs(t, err, ErrRankLimit, "promotion stops at lieutenant")

	_, err = fx.svc.Promote(ctx, fx.lt.ID, fx.member.ID)
	assert.ErrorIs(t, err, ErrInsufficientRank, "leader only")

	_, err = fx.svc.Demote(ctx, fx.leader.ID, fx.lt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RankMember, fx.rank(t, fx.lt.ID))

	newKid := fx.db.SeedPlayer(t, "Newer_Kid")
	_, err = fx.svc.Join(ctx, newKid.ID, fx.faction.ID)
	require.NoError(t, err)
	_, err = fx.svc.Demote(ctx, fx.leader.ID, newKid.ID)
	assert.ErrorIs(t, err, ErrRankLimit)
}

func TestFactionLeave(t *testing.T) {
	fx := newFactionFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, fx.svc.Leave(ctx, fx.leader.ID), ErrLeaderMustTransfer)

	require.NoError(t, fx.svc.Leave(ctx, fx.recruit.ID))
	assert.Equal(t, -1, fx.rank(t, fx.recruit.ID))
	assert.ErrorIs(t, fx.svc.Leave(ctx, fx.recruit.ID), ErrNotInFaction)

	require.NoError(t, fx.svc.TransferLeadership(ctx, fx.leader.ID, fx.lt.ID))
	assert.Equal(t, models.RankLeader, fx.rank(t, fx.lt.ID))
	assert.Equal(t, models.RankLieutenant, fx.rank(t, fx.leader.ID))

	f, err := fx.svc.Get(ctx, fx.faction.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.lt.ID, *f.LeaderID)

	require.NoError(t, fx.svc.Leave(ctx, fx.leader.ID))
	require.NoError(t, fx.svc.Kick(ctx, fx.lt.ID, fx.member.ID))

	// the last member leaving disbands the faction
	require.NoError(t, fx.svc.Leave(ctx, fx.lt.ID))
	_, err = fx.svc.Get(ctx, fx.faction.ID)
	assert.ErrorIs(t, err, ErrFactionNotFound)
}

func TestFactionTransferLeadership_LeaderOnly(t *testing.T) {
	fx := newFactionFixture(t)
	assert.ErrorIs(t, fx.svc.TransferLeadership(context.Background(), fx.lt.ID, fx.member.ID), ErrInsufficientRank)
}

func TestFactionDisband(t *testing.T) {
	fx := newFactionFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, fx.svc.Disband(ctx, fx.lt.ID, auth.RolePlayer, fx.faction.ID), ErrInsufficientRank)

	outsider := fx.db.SeedPlayer(t, "Outsider")
	assert.ErrorIs(t, fx.svc.Disband(ctx, outsider.ID, auth.RolePlayer, fx.faction.ID), ErrNotFactionMember)

	require.NoError(t, fx.svc.Disband(ctx, fx.leader.ID, auth.RolePlayer, fx.faction.ID))
	assert.Equal(t, -1, fx.rank(t, fx.member.ID))

	loner := fx.db.SeedPlayer(t, "Lone_Wolf")
	f, err := fx.svc.Create(ctx, loner.ID, CreateFactionInput{Name: "Lone Wolves", Tag: "LW"})
	require.NoError(t, err)
	require.NoError(t, fx.svc.Disband(ctx, 0, auth.RoleAdmin, f.ID))

	assert.ErrorIs(t, fx.svc.Disband(ctx, 0, auth.RoleAdmin, f.ID), ErrFactionNotFound)
}
