package ledger_test

import (
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/events"
	"github.com/gatemint/gatemint/internal/ledger"
)

// testPool connects to the database named by GATEMINT_TEST_DATABASE_URL and
// resets the ledger tables. The schema from migrations/ must already be
// applied; tests using the pool are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("GATEMINT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GATEMINT_TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	for _, stmt := range []string{
		"TRUNCATE tokens, operators",
		"UPDATE ledger_meta SET next_id = 1 WHERE id = 1",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatal(err)
		}
	}
	return pool
}

func TestPostgresLedger_eventOrderMatchesCommitOrder(t *testing.T) {
	pool := testPool(t)
	journal := events.NewJournal()
	l := ledger.NewPostgresLedger(pool, journal, zap.NewNop())

	id, err := l.Mint(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}

	// Two actors fight over one token. Replaying the journal's transfer
	// events must yield a consistent ownership chain; an event emitted out
	// of commit order breaks the chain.
	const rounds = 25
	bounceToken(t, l, id, rounds)

	owner, n := replayTransfers(t, journal, id)
	if n != 2*rounds+1 {
		t.Errorf("transfer events: got %d, want %d", n, 2*rounds+1)
	}
	final, err := l.OwnerOf(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if owner != final {
		t.Errorf("replay ends at %v, ledger owner is %v", owner, final)
	}
}
