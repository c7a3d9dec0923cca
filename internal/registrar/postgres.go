package registrar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/commitment"
)

// registrarLockKey is a stable PostgreSQL advisory lock key used to serialise
// admin claims and root updates. The value is arbitrary but must be consistent
// across all service instances sharing the database.
const registrarLockKey = int64(7_420_118_101)

// PostgresRegistrar persists the admin identity and verifier root in a
// single-row PostgreSQL table. It implements the Registrar interface.
type PostgresRegistrar struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRegistrar creates a PostgresRegistrar backed by the given pool.
func NewPostgresRegistrar(pool *pgxpool.Pool, logger *zap.Logger) *PostgresRegistrar {
	return &PostgresRegistrar{pool: pool, logger: logger}
}

// ClaimAdmin implements Registrar. The insert races to first caller: the
// single-row primary key makes exactly one concurrent claim win.
func (r *PostgresRegistrar) ClaimAdmin(ctx context.Context, caller commitment.Address) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO registrar (id, admin, root, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		caller[:], commitment.ZeroRoot[:], time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("claim admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyInitialized
	}
	r.logger.Info("admin claimed", zap.String("admin", caller.String()))
	return nil
}

// SetRoot implements Registrar. The check and the write run inside one
// advisory-locked transaction so a racing claim or update is totally ordered
// with respect to this one.
func (r *PostgresRegistrar) SetRoot(ctx context.Context, caller commitment.Address, root commitment.Root) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", registrarLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	var adminRaw []byte
	err = tx.QueryRow(ctx, "SELECT admin FROM registrar WHERE id = 1").Scan(&adminRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotInitialized
	}
	if err != nil {
		return fmt.Errorf("read admin: %w", err)
	}

	admin, err := commitment.AddressFromBytes(adminRaw)
	if err != nil {
		return fmt.Errorf("stored admin corrupt: %w", err)
	}
	if caller != admin {
		return ErrUnauthorized
	}

	if _, err := tx.Exec(ctx,
		"UPDATE registrar SET root = $1, updated_at = $2 WHERE id = 1",
		root[:], time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("update root: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.Info("verifier root updated", zap.String("root", root.String()))
	return nil
}

// Root implements Registrar.
func (r *PostgresRegistrar) Root(ctx context.Context) (commitment.Root, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, "SELECT root FROM registrar WHERE id = 1").Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return commitment.ZeroRoot, nil
	}
	if err != nil {
		return commitment.ZeroRoot, fmt.Errorf("read root: %w", err)
	}
	return commitment.RootFromBytes(raw)
}

// Admin implements Registrar.
func (r *PostgresRegistrar) Admin(ctx context.Context) (commitment.Address, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, "SELECT admin FROM registrar WHERE id = 1").Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return commitment.ZeroAddress, nil
	}
	if err != nil {
		return commitment.ZeroAddress, fmt.Errorf("read admin: %w", err)
	}
	return commitment.AddressFromBytes(raw)
}
