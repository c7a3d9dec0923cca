package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	gateURL    string
	cfgFile    string
	actorToken string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gatemint",
	Short: "Gatemint CLI",
	Long: `gatemint is the command-line interface for a Gatemint gate service.

It lets you claim the admin slot, publish verifier roots, submit
credentials for token issuance, and manage tokens on the ledger.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".gatemint"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if gateURL == "" {
			gateURL = viper.GetString("gate_url")
		}
		if gateURL == "" {
			gateURL = "http://localhost:8080"
		}
		if actorToken == "" {
			actorToken = viper.GetString("token")
		}
		if actorToken == "" {
			actorToken = readSavedToken()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.gatemint/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&gateURL, "gate", "", "gate service URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&actorToken, "token", "", "actor token (default from config or ~/.gatemint/token)")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(claimAdminCmd)
	rootCmd.AddCommand(setRootCmd)
	rootCmd.AddCommand(rootStatusCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(burnCmd)
	rootCmd.AddCommand(operatorCmd)
	rootCmd.AddCommand(supplyCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client with the configured token attached.
func newClient() *client.Client {
	opts := []client.Option{}
	if actorToken != "" {
		opts = append(opts, client.WithActorToken(actorToken))
	}
	return client.MustNew(gateURL, opts...)
}

// tokenPath is where 'gatemint auth' persists the actor token.
func tokenPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gatemint", "token")
}

func readSavedToken() string {
	raw, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// ── auth ─────────────────────────────────────────────────────────────────────

var authCmd = &cobra.Command{
	Use:   "auth <0xaddress>",
	Short: "Obtain an actor token from the development token endpoint",
	Long: `Auth requests an actor token for the given address and saves it to
~/.gatemint/token for subsequent commands.

The development token endpoint is only available when the gate runs with
gate.dev_auth enabled; against production gates, obtain a token out of
band and pass it with --token.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := commitment.ParseAddress(args[0]); err != nil {
			return fmt.Errorf("invalid address %q: %w", args[0], err)
		}

		c := client.MustNew(gateURL)
		if err := c.Authenticate(context.Background(), args[0]); err != nil {
			return err
		}
		token := c.BearerToken()

		if err := os.MkdirAll(filepath.Dir(tokenPath()), 0o700); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err := os.WriteFile(tokenPath(), []byte(token+"\n"), 0o600); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Printf("Actor token for %s saved to %s\n", args[0], tokenPath())
		return nil
	},
}

// ── admin ────────────────────────────────────────────────────────────────────

var claimAdminCmd = &cobra.Command{
	Use:   "claim-admin",
	Short: "Claim the one-time admin slot for the authenticated actor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().ClaimAdmin(context.Background()); err != nil {
			return err
		}
		fmt.Println("Admin slot claimed.")
		return nil
	},
}

var setRootCmd = &cobra.Command{
	Use:   "set-root <0xroot>",
	Short: "Publish a new verifier root (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := commitment.ParseRoot(args[0]); err != nil {
			return fmt.Errorf("invalid root %q: %w", args[0], err)
		}
		if err := newClient().SetRoot(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("Root published.")
		return nil
	},
}

var rootStatusCmd = &cobra.Command{
	Use:   "root",
	Short: "Show the current verifier root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := newClient().Root(context.Background())
		if err != nil {
			return err
		}
		if !status.Set {
			fmt.Println("No root published yet.")
			return nil
		}
		fmt.Println(status.Root)
		return nil
	},
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Show the admin address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := newClient().Admin(context.Background())
		if err != nil {
			return err
		}
		fmt.Println(admin)
		return nil
	},
}

// ── issuance ─────────────────────────────────────────────────────────────────

var issueCredentialFile string

var issueCmd = &cobra.Command{
	Use:   "issue [credential]",
	Short: "Submit a credential and mint a token on success",
	Long: `Issue submits a credential for the authenticated actor. The gate
verifies it against the published root and mints a fresh token when it
checks out.

The credential is taken from the argument, or from --file when set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var credential []byte
		switch {
		case issueCredentialFile != "":
			raw, err := os.ReadFile(issueCredentialFile)
			if err != nil {
				return fmt.Errorf("read credential file: %w", err)
			}
			credential = raw
		case len(args) == 1:
			credential = []byte(args[0])
		default:
			return fmt.Errorf("provide a credential argument or --file")
		}

		id, err := newClient().Issue(context.Background(), credential)
		if err != nil {
			return err
		}
		fmt.Printf("Minted token %d\n", id)
		return nil
	},
}

func init() {
	issueCmd.Flags().StringVar(&issueCredentialFile, "file", "", "read the credential from a file")
}

// ── ledger ───────────────────────────────────────────────────────────────────

var tokenCmd = &cobra.Command{
	Use:   "token <id>",
	Short: "Show a token's owner and approval state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTokenID(args[0])
		if err != nil {
			return err
		}
		tok, err := newClient().GetToken(context.Background(), id)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "TOKEN\t%d\n", tok.TokenID)
		fmt.Fprintf(w, "OWNER\t%s\n", tok.Owner)
		fmt.Fprintf(w, "APPROVED\t%s\n", tok.Approved)
		return w.Flush()
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <0xaddress>",
	Short: "Show how many tokens an address owns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bal, err := newClient().Balance(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(bal)
		return nil
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer <id> <0xfrom> <0xto>",
	Short: "Transfer a token as owner, approved actor, or operator",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTokenID(args[0])
		if err != nil {
			return err
		}
		if err := newClient().Transfer(context.Background(), id, args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("Token %d transferred to %s\n", id, args[2])
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <id> <0xto>",
	Short: "Set a token's single approved actor (zero address clears it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTokenID(args[0])
		if err != nil {
			return err
		}
		if err := newClient().Approve(context.Background(), id, args[1]); err != nil {
			return err
		}
		fmt.Printf("Approval for token %d set to %s\n", id, args[1])
		return nil
	},
}

var burnCmd = &cobra.Command{
	Use:   "burn <id>",
	Short: "Permanently retire a token (owner or operator only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTokenID(args[0])
		if err != nil {
			return err
		}
		if err := newClient().Burn(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("Token %d burned\n", id)
		return nil
	},
}

var operatorRevoke bool

var operatorCmd = &cobra.Command{
	Use:   "operator <0xoperator>",
	Short: "Grant (or revoke with --revoke) blanket operator rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		approved := !operatorRevoke
		if err := newClient().SetOperator(context.Background(), args[0], approved); err != nil {
			return err
		}
		if approved {
			fmt.Printf("Operator %s granted\n", args[0])
		} else {
			fmt.Printf("Operator %s revoked\n", args[0])
		}
		return nil
	},
}

func init() {
	operatorCmd.Flags().BoolVar(&operatorRevoke, "revoke", false, "revoke instead of grant")
}

var supplyCmd = &cobra.Command{
	Use:   "supply",
	Short: "Show the number of tokens in circulation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		supply, err := newClient().TotalSupply(context.Background())
		if err != nil {
			return err
		}
		fmt.Println(supply)
		return nil
	},
}

// ── events ───────────────────────────────────────────────────────────────────

var (
	eventsSince  uint64
	eventsFormat string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List journal events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		evts, err := newClient().Events(context.Background(), eventsSince)
		if err != nil {
			return err
		}

		if eventsFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(evts)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTYPE\tTOKEN\tDETAIL")
		for _, ev := range evts {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", ev.Seq, ev.Type, ev.TokenID, eventDetail(ev))
		}
		return w.Flush()
	},
}

func init() {
	eventsCmd.Flags().Uint64Var(&eventsSince, "since", 0, "only events with seq greater than this")
	eventsCmd.Flags().StringVar(&eventsFormat, "format", "text", "output format: text or json")
}

func eventDetail(ev client.Event) string {
	switch ev.Type {
	case "transfer":
		return fmt.Sprintf("%s -> %s", ev.From, ev.To)
	case "approval":
		return fmt.Sprintf("owner %s approved %s", ev.Owner, ev.Approved)
	case "approval_for_all":
		return fmt.Sprintf("owner %s operator %s granted=%t", ev.Owner, ev.Operator, ev.Granted)
	default:
		return ""
	}
}

// ── digest ───────────────────────────────────────────────────────────────────

var digestCmd = &cobra.Command{
	Use:   "digest <0xaddress> <credential>",
	Short: "Compute the commitment digest for an address and credential",
	Long: `Digest computes the Keccak-256 commitment of address || credential
locally. Publish the result as the verifier root to entitle the address
to mint with that credential under the hash verifier.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := commitment.ParseAddress(args[0])
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", args[0], err)
		}
		fmt.Println(commitment.Digest(addr, []byte(args[1])))
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gatemint CLI version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("gatemint", version)
	},
}

func parseTokenID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid token id %q", s)
	}
	return id, nil
}
