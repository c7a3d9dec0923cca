package verifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/verifier"
)

var ctx = context.Background()

var actor = mustAddr("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

func mustAddr(s string) commitment.Address {
	a, err := commitment.ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestHashVerifier_acceptsMatchingCredential(t *testing.T) {
	v := verifier.NewHashVerifier()
	credential := []byte("open sesame")
	root := commitment.Digest(actor, credential)

	if !v.Verify(ctx, actor, credential, root) {
		t.Error("matching credential rejected")
	}
}

func TestHashVerifier_rejections(t *testing.T) {
	v := verifier.NewHashVerifier()
	credential := []byte("open sesame")
	root := commitment.Digest(actor, credential)

	if v.Verify(ctx, actor, []byte("wrong"), root) {
		t.Error("wrong credential accepted")
	}

	other := mustAddr("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	if v.Verify(ctx, other, credential, root) {
		t.Error("credential bound to a different actor accepted")
	}

	if v.Verify(ctx, actor, nil, root) {
		t.Error("empty credential accepted")
	}

	if v.Verify(ctx, actor, credential, commitment.ZeroRoot) {
		t.Error("zero root accepted a credential")
	}
}

func TestHashVerifier_deterministic(t *testing.T) {
	v := verifier.NewHashVerifier()
	credential := []byte("repeatable")
	root := commitment.Digest(actor, credential)

	for i := 0; i < 3; i++ {
		if !v.Verify(ctx, actor, credential, root) {
			t.Fatalf("call %d: verification not repeatable", i)
		}
	}
}

func TestRemoteVerifier_acceptsValidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["actor"] != actor.String() {
			t.Errorf("actor: got %q", req["actor"])
		}
		json.NewEncoder(w).Encode(map[string]bool{"valid": true})
	}))
	defer srv.Close()

	v := verifier.NewRemoteVerifier(srv.URL, time.Second, zap.NewNop())
	root := commitment.Digest(actor, []byte("x"))
	if !v.Verify(ctx, actor, []byte("proof-bytes"), root) {
		t.Error("valid remote response rejected")
	}
}

func TestRemoteVerifier_rejectsOnFailure(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"negative verdict", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]bool{"valid": false})
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
	}

	root := commitment.Digest(actor, []byte("x"))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			v := verifier.NewRemoteVerifier(srv.URL, time.Second, zap.NewNop())
			if v.Verify(ctx, actor, []byte("proof"), root) {
				t.Error("expected rejection")
			}
		})
	}
}

func TestRemoteVerifier_unreachableEndpointRejects(t *testing.T) {
	v := verifier.NewRemoteVerifier("http://127.0.0.1:1", 100*time.Millisecond, zap.NewNop())
	root := commitment.Digest(actor, []byte("x"))
	if v.Verify(ctx, actor, []byte("proof"), root) {
		t.Error("unreachable verifier accepted a credential")
	}
}

func TestRemoteVerifier_emptyCredentialShortCircuits(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		json.NewEncoder(w).Encode(map[string]bool{"valid": true})
	}))
	defer srv.Close()

	v := verifier.NewRemoteVerifier(srv.URL, time.Second, zap.NewNop())
	root := commitment.Digest(actor, []byte("x"))
	if v.Verify(ctx, actor, nil, root) {
		t.Error("empty credential accepted")
	}
	if called {
		t.Error("empty credential reached the remote verifier")
	}
}
