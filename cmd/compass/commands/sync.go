// ABOUTME: Sync commands for Charm cloud synchronization of contacts
// ABOUTME: Provides push, pull, status, wipe, and SSH key management
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/charm"
	"github.com/harper/contact-compass/internal/storage/sqlite"
)

// NewSyncCmd creates the sync command group
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage Charm cloud synchronization",
		Long: `Manage synchronization of contacts with Charm cloud.

The local SQLite store is the working copy. Push copies every contact to
your Charm KV namespace; pull folds remote contacts back in with the same
merge rules as ingestion (tags union, flags accumulate, classification is
kept when already set). Charm authenticates with your SSH keys.`,
	}

	cmd.AddCommand(newSyncPushCmd())
	cmd.AddCommand(newSyncPullCmd())
	cmd.AddCommand(newSyncStatusCmd())
	cmd.AddCommand(newSyncWipeCmd())
	cmd.AddCommand(newSyncKeysCmd())
	cmd.AddCommand(newSyncUnlinkCmd())

	return cmd
}

func openCharm() (*charm.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := charm.NewClient(charm.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Charm: %w", err)
	}
	return client, nil
}

func newSyncPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Copy every local contact to Charm",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := openCharm()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			contacts, err := a.store.List(cmd.Context(), sqlite.ListOptions{})
			if err != nil {
				return err
			}

			var pushed int
			err = client.Batch(func() error {
				var perr error
				pushed, perr = charm.Push(cmd.Context(), client, contacts)
				return perr
			})
			if err != nil {
				return fmt.Errorf("push failed after %d contact(s): %w", pushed, err)
			}

			logger.Info("pushed contacts", zap.Int("contacts", pushed))
			fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d contact(s)\n", pushed)
			return nil
		},
	}
}

func newSyncPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Merge remote contacts into the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := openCharm()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := client.Sync(); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			res, err := charm.Pull(cmd.Context(), client, a.store)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pulled %d contact(s): %d created, %d updated, %d skipped\n",
				res.Total, res.Created, res.Updated, res.Skipped)
			return nil
		},
	}
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status and connection info",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := openCharm()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			out := cmd.OutOrStdout()
			id, err := client.ID()
			if err != nil {
				fmt.Fprintln(out, "Status: Not connected")
				fmt.Fprintln(out, "Run 'compass sync keys' to check your SSH keys")
				return nil
			}

			fmt.Fprintln(out, "Status: Connected")
			fmt.Fprintf(out, "User ID: %s\n", id)
			fmt.Fprintf(out, "Host: %s\n", cfg.CharmHost)
			fmt.Fprintf(out, "Database: %s\n", cfg.CharmDBName)

			if n, err := charm.RemoteCount(client); err == nil {
				fmt.Fprintf(out, "Remote contacts: %d\n", n)
			}
			return nil
		},
	}
}

func newSyncWipeCmd() *cobra.Command {
	var (
		confirm bool
		remote  bool
	)

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Wipe synced contact data (nuclear option)",
		Long: `Wipe synced contact data.

By default this resets the local Charm cache; cloud data remains intact
and will be re-synced on next access. With --remote every contact record
is deleted from the Charm namespace instead. The SQLite contact store is
never touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				fmt.Fprintln(cmd.OutOrStdout(), "This will wipe synced contact data!")
				fmt.Fprintln(cmd.OutOrStdout(), "Run with --confirm to proceed")
				return nil
			}

			client, err := openCharm()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if remote {
				var deleted int
				err := client.Batch(func() error {
					var werr error
					deleted, werr = charm.Wipe(cmd.Context(), client)
					return werr
				})
				if err != nil {
					return fmt.Errorf("failed to wipe remote contacts: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d remote contact(s)\n", deleted)
				return nil
			}

			if err := client.Reset(); err != nil {
				return fmt.Errorf("failed to wipe data: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Local sync cache wiped successfully")
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm the wipe operation")
	cmd.Flags().BoolVar(&remote, "remote", false, "Delete contact records from the cloud namespace")

	return cmd
}

func newSyncKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List authorized SSH keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openCharm()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			keys, err := client.GetAuthorizedKeys()
			if err != nil {
				return fmt.Errorf("failed to get authorized keys: %w", err)
			}

			if keys == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No authorized keys found")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Authorized SSH keys:")
			fmt.Fprintln(cmd.OutOrStdout(), keys)
			return nil
		},
	}
}

func newSyncUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink KEY",
		Short: "Remove an authorized SSH key from your Charm account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openCharm()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := client.UnlinkKey(args[0]); err != nil {
				return fmt.Errorf("failed to unlink key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Key unlinked")
			return nil
		},
	}
}
