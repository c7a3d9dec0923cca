package identity_test

import (
	"crypto/rand"
	"crypto/rsa"
	"path/filepath"
	"testing"
	"time"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/identity"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func mustAddr(t *testing.T, s string) commitment.Address {
	t.Helper()
	a, err := commitment.ParseAddress(s)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestActorToken_roundTrip(t *testing.T) {
	issuer := identity.NewActorTokenIssuer(testKey(t), "https://gate.test", time.Hour)
	addr := mustAddr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	tok, err := issuer.Issue(addr)
	if err != nil {
		t.Fatal(err)
	}

	got, err := issuer.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if got != addr {
		t.Errorf("verified address: got %v, want %v", got, addr)
	}
}

func TestActorToken_wrongKeyRejected(t *testing.T) {
	issuerA := identity.NewActorTokenIssuer(testKey(t), "https://gate.test", time.Hour)
	issuerB := identity.NewActorTokenIssuer(testKey(t), "https://gate.test", time.Hour)
	addr := mustAddr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	tok, err := issuerA.Issue(addr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuerB.Verify(tok); err == nil {
		t.Error("token signed by a different key verified")
	}
}

func TestActorToken_expiredRejected(t *testing.T) {
	issuer := identity.NewActorTokenIssuer(testKey(t), "https://gate.test", -time.Minute)
	addr := mustAddr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	tok, err := issuer.Issue(addr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Verify(tok); err == nil {
		t.Error("expired token verified")
	}
}

func TestActorToken_garbageRejected(t *testing.T) {
	issuer := identity.NewActorTokenIssuer(testKey(t), "https://gate.test", time.Hour)
	if _, err := issuer.Verify("not.a.jwt"); err == nil {
		t.Error("garbage token verified")
	}
}

func TestLoadOrCreateKey_persistsAcrossCalls(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	k1, err := identity.LoadOrCreateKey(dir)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := identity.LoadOrCreateKey(dir)
	if err != nil {
		t.Fatal(err)
	}
	if k1.N.Cmp(k2.N) != 0 {
		t.Error("second load produced a different key")
	}
}
