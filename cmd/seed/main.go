// cmd/seed — walks a running gate through a realistic demo scenario for
// development: claims the admin slot, publishes roots, mints tokens for a
// few demo actors, and leaves some approvals and an operator grant behind.
//
// The gate must be running with gate.dev_auth enabled (the default).
// Running twice is safe: a second admin claim is skipped, and replayed
// credentials mint additional tokens by design.
//
// Usage:
//
//	go run ./cmd/seed
//	GATE_URL=http://localhost:8080 go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/pkg/client"
)

const defaultGate = "http://localhost:8080"

type seedActor struct {
	Name       string
	Address    string
	Credential string
}

var actors = []seedActor{
	{
		Name:       "alice",
		Address:    "0x" + strings.Repeat("a1", 20),
		Credential: "alice-launch-pass",
	},
	{
		Name:       "bob",
		Address:    "0x" + strings.Repeat("b2", 20),
		Credential: "bob-launch-pass",
	},
	{
		Name:       "carol",
		Address:    "0x" + strings.Repeat("c3", 20),
		Credential: "carol-launch-pass",
	},
}

var adminAddress = "0x" + strings.Repeat("ad", 20)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	gateURL := os.Getenv("GATE_URL")
	if gateURL == "" {
		gateURL = defaultGate
	}

	ctx := context.Background()

	admin, err := authedClient(ctx, gateURL, adminAddress)
	if err != nil {
		return fmt.Errorf("authenticate admin: %w", err)
	}

	switch err := admin.ClaimAdmin(ctx); {
	case err == nil:
		fmt.Printf("  admin %s claimed\n", adminAddress)
	case errors.Is(err, client.ErrConflict):
		fmt.Println("  admin already claimed, continuing")
	default:
		return fmt.Errorf("claim admin: %w", err)
	}

	// The hash verifier accepts exactly one (actor, credential) commitment
	// per root, so rotate the root before each actor's mint.
	tokens := map[string]uint64{}
	for _, a := range actors {
		addr, err := commitment.ParseAddress(a.Address)
		if err != nil {
			return fmt.Errorf("parse %s address: %w", a.Name, err)
		}
		root := commitment.Digest(addr, []byte(a.Credential))

		if err := admin.SetRoot(ctx, root.String()); err != nil {
			return fmt.Errorf("set root for %s: %w", a.Name, err)
		}

		c, err := authedClient(ctx, gateURL, a.Address)
		if err != nil {
			return fmt.Errorf("authenticate %s: %w", a.Name, err)
		}
		id, err := c.Issue(ctx, []byte(a.Credential))
		if err != nil {
			return fmt.Errorf("issue for %s: %w", a.Name, err)
		}
		tokens[a.Name] = id
		fmt.Printf("  token %d minted for %-6s %s\n", id, a.Name, a.Address)
	}

	// Leave some approval state behind: alice approves bob on her token,
	// carol grants bob blanket operator rights.
	alice, err := authedClient(ctx, gateURL, actors[0].Address)
	if err != nil {
		return err
	}
	if err := alice.Approve(ctx, tokens["alice"], actors[1].Address); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	fmt.Printf("  approval: bob may transfer token %d\n", tokens["alice"])

	carol, err := authedClient(ctx, gateURL, actors[2].Address)
	if err != nil {
		return err
	}
	if err := carol.SetOperator(ctx, actors[1].Address, true); err != nil {
		return fmt.Errorf("set operator: %w", err)
	}
	fmt.Println("  operator: bob manages carol's tokens")

	supply, err := admin.TotalSupply(ctx)
	if err != nil {
		return fmt.Errorf("total supply: %w", err)
	}
	fmt.Printf("\nseed complete — %d token(s) in circulation\n", supply)
	return nil
}

// authedClient returns an SDK client holding a dev actor token for address.
func authedClient(ctx context.Context, gateURL, address string) (*client.Client, error) {
	c, err := client.New(gateURL)
	if err != nil {
		return nil, err
	}
	if err := c.Authenticate(ctx, address); err != nil {
		return nil, err
	}
	return c, nil
}
