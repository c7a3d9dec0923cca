package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/events"
)

// ledgerLockKey is a stable PostgreSQL advisory lock key used to serialise
// ledger mutations. Every mutation runs inside a transaction holding this
// lock, which gives the single global ordering the state machine requires.
const ledgerLockKey = int64(7_420_118_102)

// PostgresLedger persists the token state machine to PostgreSQL.
// It implements the Ledger interface.
//
// mu spans each mutation from the start of its transaction through its event
// emission, so events reach the sink in commit order. The advisory lock alone
// cannot give that: it is released at commit, before the event goes out, and
// two committed mutations could otherwise emit in the opposite order.
type PostgresLedger struct {
	mu     sync.Mutex
	pool   *pgxpool.Pool
	sink   events.Sink // nil = no event emission
	logger *zap.Logger
}

// NewPostgresLedger creates a PostgresLedger backed by the given pool.
// sink may be nil to disable event emission.
func NewPostgresLedger(pool *pgxpool.Pool, sink events.Sink, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{pool: pool, sink: sink, logger: logger}
}

// begin opens a mutation transaction and takes the ledger advisory lock.
func (l *PostgresLedger) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey); err != nil {
		tx.Rollback(ctx) //nolint:errcheck
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	return tx, nil
}

// Mint implements Ledger. The id counter lives in ledger_meta and only ever
// moves forward, so burned ids are never handed out again.
func (l *PostgresLedger) Mint(ctx context.Context, to commitment.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id uint64
	if err := tx.QueryRow(ctx,
		"UPDATE ledger_meta SET next_id = next_id + 1 WHERE id = 1 RETURNING next_id - 1",
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate token id: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		"INSERT INTO tokens (id, owner, minted_at, updated_at) VALUES ($1, $2, $3, $3)",
		id, to[:], now,
	); err != nil {
		return 0, fmt.Errorf("insert token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	l.emit(events.Transfer(commitment.ZeroAddress, to, id))
	return id, nil
}

// OwnerOf implements Ledger.
func (l *PostgresLedger) OwnerOf(ctx context.Context, tokenID uint64) (commitment.Address, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, "SELECT owner FROM tokens WHERE id = $1", tokenID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return commitment.ZeroAddress, ErrNotFound
	}
	if err != nil {
		return commitment.ZeroAddress, fmt.Errorf("read owner: %w", err)
	}
	return commitment.AddressFromBytes(raw)
}

// BalanceOf implements Ledger.
func (l *PostgresLedger) BalanceOf(ctx context.Context, owner commitment.Address) (uint64, error) {
	if owner.IsZero() {
		return 0, ErrInvalidActor
	}
	var n uint64
	if err := l.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM tokens WHERE owner = $1", owner[:],
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count balance: %w", err)
	}
	return n, nil
}

// Approve implements Ledger.
func (l *PostgresLedger) Approve(ctx context.Context, caller, to commitment.Address, tokenID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	owner, err := l.tokenOwner(ctx, tx, tokenID)
	if err != nil {
		return err
	}
	authorized := caller == owner
	if !authorized {
		authorized, err = l.isOperator(ctx, tx, owner, caller)
		if err != nil {
			return err
		}
	}
	if !authorized {
		return ErrUnauthorized
	}

	if _, err := tx.Exec(ctx,
		"UPDATE tokens SET approved = $1, updated_at = $2 WHERE id = $3",
		to[:], time.Now().UTC(), tokenID,
	); err != nil {
		return fmt.Errorf("set approval: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	l.emit(events.Approval(owner, to, tokenID))
	return nil
}

// GetApproved implements Ledger.
func (l *PostgresLedger) GetApproved(ctx context.Context, tokenID uint64) (commitment.Address, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, "SELECT approved FROM tokens WHERE id = $1", tokenID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return commitment.ZeroAddress, ErrNotFound
	}
	if err != nil {
		return commitment.ZeroAddress, fmt.Errorf("read approval: %w", err)
	}
	if raw == nil {
		return commitment.ZeroAddress, nil
	}
	return commitment.AddressFromBytes(raw)
}

// SetApprovalForAll implements Ledger.
func (l *PostgresLedger) SetApprovalForAll(ctx context.Context, caller, operator commitment.Address, approved bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if approved {
		_, err = l.pool.Exec(ctx, `
			INSERT INTO operators (owner, operator, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (owner, operator) DO NOTHING`,
			caller[:], operator[:], time.Now().UTC(),
		)
	} else {
		_, err = l.pool.Exec(ctx,
			"DELETE FROM operators WHERE owner = $1 AND operator = $2",
			caller[:], operator[:],
		)
	}
	if err != nil {
		return fmt.Errorf("set operator approval: %w", err)
	}

	l.emit(events.ApprovalForAll(caller, operator, approved))
	return nil
}

// IsApprovedForAll implements Ledger.
func (l *PostgresLedger) IsApprovedForAll(ctx context.Context, owner, operator commitment.Address) (bool, error) {
	var exists bool
	if err := l.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM operators WHERE owner = $1 AND operator = $2)",
		owner[:], operator[:],
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check operator: %w", err)
	}
	return exists, nil
}

// TransferFrom implements Ledger.
func (l *PostgresLedger) TransferFrom(ctx context.Context, caller, from, to commitment.Address, tokenID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	owner, approved, err := l.tokenState(ctx, tx, tokenID)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrOwnerMismatch
	}
	if to.IsZero() {
		return ErrInvalidActor
	}
	authorized := caller == owner || caller == approved
	if !authorized {
		authorized, err = l.isOperator(ctx, tx, owner, caller)
		if err != nil {
			return err
		}
	}
	if !authorized {
		return ErrUnauthorized
	}

	if _, err := tx.Exec(ctx,
		"UPDATE tokens SET owner = $1, approved = NULL, updated_at = $2 WHERE id = $3",
		to[:], time.Now().UTC(), tokenID,
	); err != nil {
		return fmt.Errorf("transfer token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	l.emit(events.Approval(owner, commitment.ZeroAddress, tokenID))
	l.emit(events.Transfer(from, to, tokenID))
	return nil
}

// Burn implements Ledger. Only the owner or an operator may burn; the
// token's single approved actor may not.
func (l *PostgresLedger) Burn(ctx context.Context, caller commitment.Address, tokenID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	owner, err := l.tokenOwner(ctx, tx, tokenID)
	if err != nil {
		return err
	}
	authorized := caller == owner
	if !authorized {
		authorized, err = l.isOperator(ctx, tx, owner, caller)
		if err != nil {
			return err
		}
	}
	if !authorized {
		return ErrUnauthorized
	}

	if _, err := tx.Exec(ctx, "DELETE FROM tokens WHERE id = $1", tokenID); err != nil {
		return fmt.Errorf("burn token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	l.emit(events.Approval(owner, commitment.ZeroAddress, tokenID))
	l.emit(events.Transfer(owner, commitment.ZeroAddress, tokenID))
	return nil
}

// TotalSupply implements Ledger.
func (l *PostgresLedger) TotalSupply(ctx context.Context) (uint64, error) {
	var n uint64
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tokens").Scan(&n); err != nil {
		return 0, fmt.Errorf("count supply: %w", err)
	}
	return n, nil
}

// tokenOwner reads a token's owner inside a mutation transaction.
func (l *PostgresLedger) tokenOwner(ctx context.Context, tx pgx.Tx, tokenID uint64) (commitment.Address, error) {
	var raw []byte
	err := tx.QueryRow(ctx, "SELECT owner FROM tokens WHERE id = $1", tokenID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return commitment.ZeroAddress, ErrNotFound
	}
	if err != nil {
		return commitment.ZeroAddress, fmt.Errorf("read owner: %w", err)
	}
	return commitment.AddressFromBytes(raw)
}

// tokenState reads a token's owner and approval inside a mutation transaction.
func (l *PostgresLedger) tokenState(ctx context.Context, tx pgx.Tx, tokenID uint64) (owner, approved commitment.Address, err error) {
	var ownerRaw, approvedRaw []byte
	err = tx.QueryRow(ctx, "SELECT owner, approved FROM tokens WHERE id = $1", tokenID).Scan(&ownerRaw, &approvedRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return commitment.ZeroAddress, commitment.ZeroAddress, ErrNotFound
	}
	if err != nil {
		return commitment.ZeroAddress, commitment.ZeroAddress, fmt.Errorf("read token: %w", err)
	}
	owner, err = commitment.AddressFromBytes(ownerRaw)
	if err != nil {
		return commitment.ZeroAddress, commitment.ZeroAddress, err
	}
	if approvedRaw != nil {
		approved, err = commitment.AddressFromBytes(approvedRaw)
		if err != nil {
			return commitment.ZeroAddress, commitment.ZeroAddress, err
		}
	}
	return owner, approved, nil
}

// isOperator checks the operator relation inside a mutation transaction.
func (l *PostgresLedger) isOperator(ctx context.Context, tx pgx.Tx, owner, operator commitment.Address) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM operators WHERE owner = $1 AND operator = $2)",
		owner[:], operator[:],
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check operator: %w", err)
	}
	return exists, nil
}

// emit forwards an event to the sink if one is configured.
// Callers hold mu, so emission order is commit order.
func (l *PostgresLedger) emit(ev events.Event) {
	if l.sink != nil {
		l.sink.Emit(ev)
	}
}
