package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tableProfiles = "profiles"

// ProfileRepository resolves opaque auth tokens to profile identities.
type ProfileRepository interface {
	// FindIDByAuthToken returns "" when no profile carries the token.
	FindIDByAuthToken(ctx context.Context, token string) (string, error)
}

type profileRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *profileRepository) FindIDByAuthToken(ctx context.Context, token string) (string, error) {
	sql, args, err := r.qb.
		Select("id").
		From(tableProfiles).
		Where(sq.Eq{"auth_token": token}).
		ToSql()
	if err != nil {
		return "", createQueryError(err)
	}

	var id string
	err = r.pool.QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", executeQueryError(err)
	}

	return id, nil
}
