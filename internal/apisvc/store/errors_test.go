package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, "noop"))

	err := translate(pgx.ErrNoRows, "get player")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "get player: record not found", err.Error())

	err = translate(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "players_social_club_key"}, "create player")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "players_social_club_key")

	err = translate(&pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "missions_player_id_fkey"}, "create mission")
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("connection reset")
	err = translate(boom, "balance")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
}
