package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"presence-auth/internal/domain"
)

// SessionRepository define el contrato de persistencia para sesiones.
// RemoveByRefreshToken es idempotente y atómico sobre el valor exacto del
// token: la rotación lo usa como compare-and-swap.
type SessionRepository interface {
	Add(ctx context.Context, session domain.Session) error
	ExistsByID(ctx context.Context, id string) (bool, error)
	FindByRefreshToken(ctx context.Context, token string) (domain.Session, error)
	RemoveByRefreshToken(ctx context.Context, token string) (bool, error)
	RemoveAll(ctx context.Context, userID string) ([]domain.Session, error)
	CountActive(ctx context.Context, userID string) (int, error)
	OldestByUser(ctx context.Context, userID string) (domain.Session, error)
}

// PgSessionRepository implementa SessionRepository usando pgxpool.
type PgSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgSessionRepository(pool *pgxpool.Pool) *PgSessionRepository {
	return &PgSessionRepository{pool: pool}
}

func (r *PgSessionRepository) Add(ctx context.Context, s domain.Session) error {
	const query = `
		INSERT INTO sessions (id, user_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.AccessToken,
		s.RefreshToken,
		s.AccessExpiresAt,
		s.RefreshExpiresAt,
		s.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *PgSessionRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, id).Scan(&exists)
	return exists, err
}

func (r *PgSessionRepository) FindByRefreshToken(ctx context.Context, token string) (domain.Session, error) {
	const query = `
		SELECT id, user_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at
		FROM sessions
		WHERE refresh_token = $1
	`
	var s domain.Session
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&s.ID,
		&s.UserID,
		&s.AccessToken,
		&s.RefreshToken,
		&s.AccessExpiresAt,
		&s.RefreshExpiresAt,
		&s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, ErrNotFound
	}
	return s, err
}

func (r *PgSessionRepository) RemoveByRefreshToken(ctx context.Context, token string) (bool, error) {
	const query = `DELETE FROM sessions WHERE refresh_token = $1`
	tag, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgSessionRepository) RemoveAll(ctx context.Context, userID string) ([]domain.Session, error) {
	const query = `
		DELETE FROM sessions
		WHERE user_id = $1
		RETURNING id, user_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var removed []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.AccessToken,
			&s.RefreshToken,
			&s.AccessExpiresAt,
			&s.RefreshExpiresAt,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		removed = append(removed, s)
	}
	return removed, rows.Err()
}

func (r *PgSessionRepository) CountActive(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND refresh_expires_at > $2`
	var n int
	err := r.pool.QueryRow(ctx, query, userID, time.Now().UTC()).Scan(&n)
	return n, err
}

func (r *PgSessionRepository) OldestByUser(ctx context.Context, userID string) (domain.Session, error) {
	const query = `
		SELECT id, user_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`
	var s domain.Session
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.ID,
		&s.UserID,
		&s.AccessToken,
		&s.RefreshToken,
		&s.AccessExpiresAt,
		&s.RefreshExpiresAt,
		&s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, ErrNotFound
	}
	return s, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
