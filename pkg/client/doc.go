// Package client is the Gatemint Go SDK.
//
// It covers the full gate service surface: obtaining an actor token,
// claiming the admin slot, publishing verifier roots, submitting
// credentials for token issuance, and working with the ledger (queries,
// approvals, transfers, burns) and the event journal.
//
// # Connecting
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Authenticate(ctx, "0x11aa...ff00"); err != nil {
//	    log.Fatal(err)
//	}
//
// Authenticate uses the development token endpoint. Production deployments
// disable it; mint a token out of band and pass it with WithActorToken:
//
//	c := client.MustNew("https://gate.example.com",
//	    client.WithActorToken(token),
//	)
//
// # Issuing a token
//
// The authenticated actor submits a credential; the service verifies it
// against the published root and mints on success:
//
//	id, err := c.Issue(ctx, credential)
//	if errors.Is(err, client.ErrForbidden) {
//	    // credential rejected
//	}
//
// # Ledger operations
//
// Approvals, transfers, and burns mirror the service's authorization
// rules. Transfer requires the stated source to match the current owner:
//
//	err = c.Approve(ctx, id, spenderAddr)
//	err = c.Transfer(ctx, id, ownerAddr, recipientAddr)
//	err = c.Burn(ctx, id)
//
// Burns are owner-or-operator only: an actor approved for just the one
// token may transfer it but not burn it.
//
// # Watching events
//
// Poll the journal incrementally, or register a webhook for push
// delivery:
//
//	events, err := c.Events(ctx, lastSeen)
//	sub, err := c.SubscribeWebhook(ctx, "https://hooks.example.com/gm", nil)
//	// sub.Secret signs deliveries; it is returned only once.
package client
