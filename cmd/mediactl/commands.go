package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mediashare/internal/auth/token"
	"mediashare/internal/registry/handler"
	id "mediashare/pkg/domain"
)

func (c *cli) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <asset-id> <title>",
		Short: "Register an asset you wholly own",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireToken(); err != nil {
				return err
			}
			asset, err := c.client().CreateAsset(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.printAsset(asset)
		},
	}
}

func (c *cli) transferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <asset-id> <to> <percentage>",
		Short: "Transfer part of your stake to another owner",
		Long: `Transfer moves percentage points of your stake in an asset to another owner.

Examples:
  # Give bob 40% of sunset-01
  mediactl transfer sunset-01 bob 40`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireToken(); err != nil {
				return err
			}
			pct, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("percentage must be an integer: %w", err)
			}
			asset, err := c.client().Transfer(cmd.Context(), args[0], args[1], pct)
			if err != nil {
				return err
			}
			return c.printAsset(asset)
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <asset-id>",
		Short: "Show an asset and its ownership partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := c.client().GetAsset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printAsset(asset)
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered assets by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := c.client().ListAssets(cmd.Context(), cursor, limit)
			if err != nil {
				return err
			}
			if !c.textOutput() {
				return c.printJSON(page)
			}
			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ASSET\tTITLE\tOWNERS\tVERSION")
			for _, a := range page.Assets {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", a.AssetID, a.Title, len(a.Partition), a.Version)
			}
			if page.NextCursor != "" {
				fmt.Fprintf(w, "next cursor: %s\n", page.NextCursor)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "page size (1-100, default 50)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "list assets after this id")
	return cmd
}

func (c *cli) holdingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "holdings [owner]",
		Short: "List the assets an owner holds a stake in (default: you)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl := c.client()
			var owner string
			if len(args) == 1 {
				owner = args[0]
			} else {
				if err := c.requireToken(); err != nil {
					return err
				}
				me, err := cl.WhoAmI(cmd.Context())
				if err != nil {
					return err
				}
				owner = me
			}
			holdings, err := cl.Holdings(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if !c.textOutput() {
				return c.printJSON(holdings)
			}
			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ASSET\tTITLE\tSHARE")
			for _, h := range holdings.Holdings {
				fmt.Fprintf(w, "%s\t%s\t%d%%\n", h.AssetID, h.Title, h.Share)
			}
			return w.Flush()
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the owner id the server derives from your token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireToken(); err != nil {
				return err
			}
			owner, err := c.client().WhoAmI(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, owner)
			return nil
		},
	}
}

// tokenCmd mints a token locally. It needs the server's signing key, so it
// is meant for development setups.
func (c *cli) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <owner>",
		Short: "Mint an identity token with a shared signing key (development)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := c.v.GetString("signing-key")
			if key == "" {
				return fmt.Errorf("a signing key is required: pass --signing-key or set MEDIACTL_SIGNING_KEY")
			}
			owner, err := id.ParseOwnerID(args[0])
			if err != nil {
				return err
			}
			svc := token.NewService(key, c.v.GetString("issuer"), c.v.GetString("audience"), c.v.GetDuration("ttl"))
			tok, _, err := svc.Issue(owner)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, tok)
			return nil
		},
	}
	cmd.Flags().String("signing-key", "", "HS256 signing key shared with the server")
	cmd.Flags().String("issuer", "mediashare", "token issuer")
	cmd.Flags().String("audience", "mediashare-api", "token audience")
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	for _, name := range []string{"signing-key", "issuer", "audience", "ttl"} {
		_ = c.v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

func (c *cli) printAsset(a *handler.AssetResponse) error {
	if !c.textOutput() {
		return c.printJSON(a)
	}
	fmt.Fprintf(c.out, "%s  %q  (creator %s, version %d)\n", a.AssetID, a.Title, a.Creator, a.Version)
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tSHARE")
	for _, s := range a.Partition {
		fmt.Fprintf(w, "%s\t%d%%\n", s.Owner, s.Share)
	}
	return w.Flush()
}
