package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/events"
	"github.com/gatemint/gatemint/internal/ledger"
)

var ctx = context.Background()

var (
	alice    = mustAddr("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob      = mustAddr("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol    = mustAddr("0xcccccccccccccccccccccccccccccccccccccccc")
	operator = mustAddr("0xdddddddddddddddddddddddddddddddddddddddd")
)

func mustAddr(s string) commitment.Address {
	a, err := commitment.ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestMint_idsStartAtOneAndIncrease(t *testing.T) {
	l := ledger.New(nil)

	id1, err := l.Mint(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != 1 {
		t.Errorf("first id: got %d, want 1", id1)
	}

	id2, _ := l.Mint(ctx, bob)
	if id2 != 2 {
		t.Errorf("second id: got %d, want 2", id2)
	}

	owner, err := l.OwnerOf(ctx, id1)
	if err != nil {
		t.Fatal(err)
	}
	if owner != alice {
		t.Errorf("owner of %d: got %v, want minting actor", id1, owner)
	}
}

func TestMint_idNeverReusedAfterBurn(t *testing.T) {
	l := ledger.New(nil)

	id, _ := l.Mint(ctx, alice)
	if err := l.Burn(ctx, alice, id); err != nil {
		t.Fatal(err)
	}

	next, _ := l.Mint(ctx, alice)
	if next == id {
		t.Fatalf("burned id %d was reused", id)
	}
	if next != id+1 {
		t.Errorf("next id: got %d, want %d", next, id+1)
	}
}

func TestOwnerOf_notFound(t *testing.T) {
	l := ledger.New(nil)

	if _, err := l.OwnerOf(ctx, 42); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("never minted: got %v, want ErrNotFound", err)
	}

	id, _ := l.Mint(ctx, alice)
	_ = l.Burn(ctx, alice, id)
	if _, err := l.OwnerOf(ctx, id); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("after burn: got %v, want ErrNotFound", err)
	}
}

func TestBalanceOf_zeroAddressRejected(t *testing.T) {
	l := ledger.New(nil)
	if _, err := l.BalanceOf(ctx, commitment.ZeroAddress); !errors.Is(err, ledger.ErrInvalidActor) {
		t.Errorf("got %v, want ErrInvalidActor", err)
	}
}

func TestTransferFrom_happyPath(t *testing.T) {
	l := ledger.New(nil)
	id, _ := l.Mint(ctx, alice)

	if err := l.TransferFrom(ctx, alice, alice, bob, id); err != nil {
		t.Fatal(err)
	}

	owner, _ := l.OwnerOf(ctx, id)
	if owner != bob {
		t.Errorf("owner: got %v, want recipient", owner)
	}

	aBal, _ := l.BalanceOf(ctx, alice)
	bBal, _ := l.BalanceOf(ctx, bob)
	if aBal != 0 || bBal != 1 {
		t.Errorf("balances after transfer: alice=%d bob=%d, want 0/1", aBal, bBal)
	}
}

func TestTransferFrom_preconditions(t *testing.T) {
	l := ledger.New(nil)
	id, _ := l.Mint(ctx, alice)

	if err := l.TransferFrom(ctx, alice, alice, bob, 99); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("absent token: got %v, want ErrNotFound", err)
	}
	if err := l.TransferFrom(ctx, alice, bob, carol, id); !errors.Is(err, ledger.ErrOwnerMismatch) {
		t.Errorf("wrong from: got %v, want ErrOwnerMismatch", err)
	}
	if err := l.TransferFrom(ctx, alice, alice, commitment.ZeroAddress, id); !errors.Is(err, ledger.ErrInvalidActor) {
		t.Errorf("zero recipient: got %v, want ErrInvalidActor", err)
	}
	if err := l.TransferFrom(ctx, bob, alice, carol, id); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("stranger caller: got %v, want ErrUnauthorized", err)
	}

	// Failed calls must leave state untouched.
	owner, _ := l.OwnerOf(ctx, id)
	if owner != alice {
		t.Errorf("owner after failed transfers: got %v, want alice", owner)
	}
	bal, _ := l.BalanceOf(ctx, alice)
	if bal != 1 {
		t.Errorf("balance after failed transfers: got %d, want 1", bal)
	}
}

func TestTransferFrom_clearsApproval(t *testing.T) {
	l := ledger.New(nil)
	id, _ := l.Mint(ctx, alice)

	if err := l.Approve(ctx, alice, carol, id); err != nil {
		t.Fatal(err)
	}
	if err := l.TransferFrom(ctx, alice, alice, bob, id); err != nil {
		t.Fatal(err)
	}

	approved, err := l.GetApproved(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !approved.IsZero() {
		t.Errorf("approval after transfer: got %v, want zero sentinel", approved)
	}
}

func TestApprove_authorization(t *testing.T) {
	l := ledger.New(nil)
	id, _ := l.Mint(ctx, alice)

	if err := l.Approve(ctx, bob, carol, id); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("non-owner approve: got %v, want ErrUnauthorized", err)
	}
	if err := l.Approve(ctx, alice, carol, 99); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("absent token approve: got %v, want ErrNotFound", err)
	}

	// Operator of the owner may approve.
	if err := l.SetApprovalForAll(ctx, alice, operator, true); err != nil {
		t.Fatal(err)
	}
	if err := l.Approve(ctx, operator, carol, id); err != nil {
		t.Errorf("operator approve: %v", err)
	}

	approved, _ := l.GetApproved(ctx, id)
	if approved != carol {
		t.Errorf("approved: got %v, want carol", approved)
	}
}

func TestApprove_overwritesPrevious(t *testing.T) {
	l := ledger.New(nil)
	id, _ := l.Mint(ctx, alice)

	_ = l.Approve(ctx, alice, bob, id)
	_ = l.Approve(ctx, alice, carol, id)

	approved, _ := l.GetApproved(ctx, id)
	if approved != carol {
		t.Errorf("approved: got %v, want latest approval", approved)
	}
}

func TestApprovedActor_mayTransfer(t *testing.T) {
	l := ledger.New(nil)
	id, _ := l.Mint(ctx, alice)
	_ = l.Approve(ctx, alice, carol, id)

	if err := l.TransferFrom(ctx, carol, alice, bob, id); err != nil {
		t.Fatalf("approved actor transfer: %v", err)
	}
}

func TestOperator_mayTransfer(t *testing.T) {
	l := ledger.New(nil)
	id, _ := l.Mint(ctx, alice)
	_ = l.SetApprovalForAll(ctx, alice, operator, true)

	if err := l.TransferFrom(ctx, operator, alice, bob, id); err != nil {
		t.Fatalf("operator transfer: %v", err)
	}

	// Revocation takes effect for subsequent tokens.
	id2, _ := l.Mint(ctx, alice)
	_ = l.SetApprovalForAll(ctx, alice, operator, false)
	if err := l.TransferFrom(ctx, operator, alice, bob, id2); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("after revocation: got %v, want ErrUnauthorized", err)
	}
}

func TestBurn_narrowerThanTransfer(t *testing.T) {
	l := ledger.New(nil)
	id, _ := l.Mint(ctx, alice)
	_ = l.Approve(ctx, alice, carol, id)

	// The single approved actor may NOT burn...
	if err := l.Burn(ctx, carol, id); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("approved actor burn: got %v, want ErrUnauthorized", err)
	}
	// ...but may transfer the same token.
	if err := l.TransferFrom(ctx, carol, alice, bob, id); err != nil {
		t.Fatalf("approved actor transfer: %v", err)
	}
}

func TestBurn_byOwnerAndOperator(t *testing.T) {
	l := ledger.New(nil)

	id1, _ := l.Mint(ctx, alice)
	if err := l.Burn(ctx, alice, id1); err != nil {
		t.Fatalf("owner burn: %v", err)
	}

	id2, _ := l.Mint(ctx, alice)
	_ = l.SetApprovalForAll(ctx, alice, operator, true)
	if err := l.Burn(ctx, operator, id2); err != nil {
		t.Fatalf("operator burn: %v", err)
	}

	if err := l.Burn(ctx, alice, id2); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("double burn: got %v, want ErrNotFound", err)
	}

	bal, _ := l.BalanceOf(ctx, alice)
	if bal != 0 {
		t.Errorf("balance after burns: got %d, want 0", bal)
	}
}

func TestTotalSupply_conservation(t *testing.T) {
	l := ledger.New(nil)

	ids := make([]uint64, 0, 5)
	for i := 0; i < 3; i++ {
		id, _ := l.Mint(ctx, alice)
		ids = append(ids, id)
	}
	for i := 0; i < 2; i++ {
		id, _ := l.Mint(ctx, bob)
		ids = append(ids, id)
	}

	_ = l.TransferFrom(ctx, alice, alice, bob, ids[0])
	_ = l.Burn(ctx, bob, ids[3])

	supply, _ := l.TotalSupply(ctx)
	aBal, _ := l.BalanceOf(ctx, alice)
	bBal, _ := l.BalanceOf(ctx, bob)
	if aBal+bBal != supply {
		t.Errorf("conservation violated: balances sum %d, supply %d", aBal+bBal, supply)
	}
	if supply != 4 {
		t.Errorf("supply: got %d, want 4 (5 minted, 1 burned)", supply)
	}
}

func TestEvents_orderAndContent(t *testing.T) {
	journal := events.NewJournal()
	l := ledger.New(journal)

	id, _ := l.Mint(ctx, alice)
	_ = l.Approve(ctx, alice, carol, id)
	_ = l.TransferFrom(ctx, carol, alice, bob, id)
	_ = l.Burn(ctx, bob, id)

	got := journal.Since(0)
	want := []struct {
		typ      events.Type
		from, to commitment.Address
	}{
		{events.TypeTransfer, commitment.ZeroAddress, alice}, // mint
		{events.TypeApproval, commitment.ZeroAddress, commitment.ZeroAddress},
		{events.TypeApproval, commitment.ZeroAddress, commitment.ZeroAddress}, // clear precedes transfer
		{events.TypeTransfer, alice, bob},
		{events.TypeApproval, commitment.ZeroAddress, commitment.ZeroAddress}, // clear precedes burn
		{events.TypeTransfer, bob, commitment.ZeroAddress},
	}
	if len(got) != len(want) {
		t.Fatalf("event count: got %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Type != w.typ {
			t.Errorf("event %d: type %q, want %q", i, got[i].Type, w.typ)
		}
		if got[i].Seq != uint64(i+1) {
			t.Errorf("event %d: seq %d, want %d", i, got[i].Seq, i+1)
		}
		if w.typ == events.TypeTransfer && (got[i].From != w.from || got[i].To != w.to) {
			t.Errorf("event %d: transfer %v→%v, want %v→%v", i, got[i].From, got[i].To, w.from, w.to)
		}
	}

	// The approval event before the transfer must record the cleared state.
	if !got[2].Approved.IsZero() {
		t.Error("approval-clear event carries a non-zero approved actor")
	}
}

// bounceToken transfers id between alice and bob from two goroutines until
// each has completed rounds successful transfers.
func bounceToken(t *testing.T, l ledger.Ledger, id uint64, rounds int) {
	t.Helper()
	var wg sync.WaitGroup
	run := func(caller, from, to commitment.Address) {
		defer wg.Done()
		for n := 0; n < rounds; {
			switch err := l.TransferFrom(ctx, caller, from, to, id); {
			case err == nil:
				n++
			case errors.Is(err, ledger.ErrOwnerMismatch):
				// The other actor holds it right now; try again.
			default:
				t.Error(err)
				return
			}
		}
	}
	wg.Add(2)
	go run(alice, alice, bob)
	go run(bob, bob, alice)
	wg.Wait()
}

// replayTransfers replays the journal's transfer events for id and returns
// the replayed owner and event count, failing if any event's From does not
// match the replayed state.
func replayTransfers(t *testing.T, journal *events.Journal, id uint64) (owner commitment.Address, n int) {
	t.Helper()
	for _, ev := range journal.Since(0) {
		if ev.Type != events.TypeTransfer || ev.TokenID != id {
			continue
		}
		if ev.From != owner {
			t.Fatalf("seq %d: transfer from %v, replayed owner is %v", ev.Seq, ev.From, owner)
		}
		owner = ev.To
		n++
	}
	return owner, n
}

func TestEvents_concurrentTransfersKeepJournalOrder(t *testing.T) {
	journal := events.NewJournal()
	l := ledger.New(journal)
	id, _ := l.Mint(ctx, alice)

	const rounds = 50
	bounceToken(t, l, id, rounds)

	owner, n := replayTransfers(t, journal, id)
	if n != 2*rounds+1 {
		t.Errorf("transfer events: got %d, want %d", n, 2*rounds+1)
	}
	final, _ := l.OwnerOf(ctx, id)
	if owner != final {
		t.Errorf("replay ends at %v, ledger owner is %v", owner, final)
	}
}

func TestSetApprovalForAll_independentDirections(t *testing.T) {
	l := ledger.New(nil)
	_ = l.SetApprovalForAll(ctx, alice, bob, true)

	ab, _ := l.IsApprovedForAll(ctx, alice, bob)
	ba, _ := l.IsApprovedForAll(ctx, bob, alice)
	if !ab {
		t.Error("granted relation not visible")
	}
	if ba {
		t.Error("operator relation must not be symmetric")
	}
}
