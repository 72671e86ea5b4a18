package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"presence-auth/internal/domain"
)

// ConnectionRepository define el contrato de persistencia para conexiones
// vivas. RemoveAll devuelve los ids eliminados para que el caller pueda
// procesar la desconexión de cada uno tras un reinicio.
type ConnectionRepository interface {
	Create(ctx context.Context, conn domain.Connection) error
	GetByConnectionID(ctx context.Context, id string) (domain.Connection, error)
	RemoveByConnectionID(ctx context.Context, id string) (bool, error)
	ListActive(ctx context.Context) ([]domain.Connection, error)
	RemoveAll(ctx context.Context) ([]string, error)
	IsUserOnline(ctx context.Context, userID string) (bool, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// PgConnectionRepository implementa ConnectionRepository usando pgxpool.
type PgConnectionRepository struct {
	pool *pgxpool.Pool
}

func NewPgConnectionRepository(pool *pgxpool.Pool) *PgConnectionRepository {
	return &PgConnectionRepository{pool: pool}
}

func (r *PgConnectionRepository) Create(ctx context.Context, c domain.Connection) error {
	const query = `
		INSERT INTO connections (id, user_id, ip_address, device_id, user_agent, connected_at, active)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.UserID,
		c.IPAddress,
		c.DeviceID,
		c.UserAgent,
		c.ConnectedAt,
		c.Active,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *PgConnectionRepository) GetByConnectionID(ctx context.Context, id string) (domain.Connection, error) {
	const query = `
		SELECT id, COALESCE(user_id, ''), ip_address, device_id, user_agent, connected_at, active
		FROM connections
		WHERE id = $1 AND active
	`
	var c domain.Connection
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.UserID,
		&c.IPAddress,
		&c.DeviceID,
		&c.UserAgent,
		&c.ConnectedAt,
		&c.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Connection{}, ErrNotFound
	}
	return c, err
}

func (r *PgConnectionRepository) RemoveByConnectionID(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM connections WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgConnectionRepository) ListActive(ctx context.Context) ([]domain.Connection, error) {
	const query = `
		SELECT id, COALESCE(user_id, ''), ip_address, device_id, user_agent, connected_at, active
		FROM connections
		WHERE active
		ORDER BY connected_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []domain.Connection
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.IPAddress,
			&c.DeviceID,
			&c.UserAgent,
			&c.ConnectedAt,
			&c.Active,
		); err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (r *PgConnectionRepository) RemoveAll(ctx context.Context) ([]string, error) {
	const query = `DELETE FROM connections RETURNING id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgConnectionRepository) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM connections WHERE user_id = $1 AND active)`
	var online bool
	err := r.pool.QueryRow(ctx, query, userID).Scan(&online)
	return online, err
}

func (r *PgConnectionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM connections WHERE user_id = $1 AND active`
	var n int
	err := r.pool.QueryRow(ctx, query, userID).Scan(&n)
	return n, err
}
