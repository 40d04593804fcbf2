package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LucsL0pes/mini-gymatch/internal/models"
)

const tableProofs = "proofs"

const proofColumns = "id, user_id, status, reason, file_url, ocr_text, created_at, updated_at"

// ProofRepository owns the single current proof record per user.
type ProofRepository interface {
	// UpsertByUser creates the user's record or overwrites the existing one
	// in place. The one-record-per-user invariant is enforced by the
	// UNIQUE(user_id) constraint, not by a read-then-write.
	UpsertByUser(ctx context.Context, userID string, fields models.ProofFields) (*models.ProofRecord, error)
	// UpdateDecisionByUser writes the classification outcome. Status and
	// reason always change together.
	UpdateDecisionByUser(ctx context.Context, userID, status string, reason, ocrText *string) error
	// FindByUser returns nil, nil when the user has no record.
	FindByUser(ctx context.Context, userID string) (*models.ProofRecord, error)
}

type proofRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewProofRepository(pool *pgxpool.Pool) ProofRepository {
	return &proofRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *proofRepository) UpsertByUser(ctx context.Context, userID string, fields models.ProofFields) (*models.ProofRecord, error) {
	sql, args, err := r.qb.
		Insert(tableProofs).
		Columns("id", "user_id", "status", "reason", "file_url", "ocr_text").
		Values(uuid.NewString(), userID, fields.Status, fields.Reason, fields.FileURL, fields.OcrText).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			file_url = EXCLUDED.file_url,
			ocr_text = EXCLUDED.ocr_text,
			updated_at = now()
		RETURNING ` + proofColumns).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	record, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[models.ProofRecord])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return record, nil
}

func (r *proofRepository) UpdateDecisionByUser(ctx context.Context, userID, status string, reason, ocrText *string) error {
	sql, args, err := r.qb.
		Update(tableProofs).
		Set("status", status).
		Set("reason", reason).
		Set("ocr_text", ocrText).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}

func (r *proofRepository) FindByUser(ctx context.Context, userID string) (*models.ProofRecord, error) {
	sql, args, err := r.qb.
		Select(
			"id",
			"user_id",
			"status",
			"reason",
			"file_url",
			"ocr_text",
			"created_at",
			"updated_at",
		).
		From(tableProofs).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	record, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[models.ProofRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, collectRowsError(err)
	}

	return record, nil
}
