package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/adrian-1-cardona/DocPulse/internal/access"
	"github.com/adrian-1-cardona/DocPulse/internal/auth/apikey"
	"github.com/adrian-1-cardona/DocPulse/pkg/postgres"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage gateway API keys in the configured Postgres database",
}

var (
	keyName      string
	keyRole      string
	keyRateLimit int
	keyExpiresIn time.Duration
)

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key; the raw key is printed once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := access.ParseRole(keyRole)
		if err != nil {
			return err
		}
		v, closeDB, err := openKeys(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		nk := apikey.NewKey{Name: keyName, Role: role, RateLimit: keyRateLimit}
		if nk.RateLimit <= 0 {
			nk.RateLimit = cfg.Gateway.DefaultRateLimit
		}
		if keyExpiresIn > 0 {
			at := time.Now().Add(keyExpiresIn).UTC()
			nk.ExpiresAt = &at
		}
		created, err := v.CreateKey(cmd.Context(), nk)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:    %s\n", created.ID)
		fmt.Fprintf(out, "Role:  %s\n", created.Role)
		fmt.Fprintf(out, "Limit: %d requests per %s\n", created.RateLimit, cfg.Gateway.RateWindow)
		fmt.Fprintf(out, "Key:   %s\n", created.Key)
		fmt.Fprintln(out, "\nStore the key now; it cannot be shown again.")
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Deactivate an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, closeDB, err := openKeys(cmd)
		if err != nil {
			return err
		}
		defer closeDB()
		if err := v.RevokeKey(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", args[0])
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, closeDB, err := openKeys(cmd)
		if err != nil {
			return err
		}
		defer closeDB()
		keys, err := v.ListKeys(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tROLE\tLIMIT\tACTIVE\tEXPIRES")
		for _, k := range keys {
			expires := "-"
			if k.ExpiresAt != nil {
				expires = k.ExpiresAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%s\n", k.ID, k.Name, k.Role, k.RateLimit, k.IsActive, expires)
		}
		return tw.Flush()
	},
}

func init() {
	f := keysCreateCmd.Flags()
	f.StringVar(&keyName, "name", "", "key name, recorded as the actor in audit entries")
	f.StringVar(&keyRole, "role", string(access.RoleViewer), "admin | editor | viewer")
	f.IntVar(&keyRateLimit, "rate-limit", 0, "requests per rate window (default gateway.defaultRateLimit)")
	f.DurationVar(&keyExpiresIn, "expires-in", 0, "lifetime, e.g. 720h (default never)")
	_ = keysCreateCmd.MarkFlagRequired("name")

	keysCmd.AddCommand(keysCreateCmd, keysRevokeCmd, keysListCmd)
}

func openKeys(cmd *cobra.Command) (*apikey.Validator, func(), error) {
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	v := apikey.NewValidator(db)
	if err := v.Migrate(cmd.Context()); err != nil {
		db.Close()
		return nil, nil, err
	}
	return v, func() { db.Close() }, nil
}
