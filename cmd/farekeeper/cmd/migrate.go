package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/farekeeper/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded SQL migrations to a sqlite:// or postgres:// store",
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func sqlStoreURL() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(cfg.Store.URL, "sqlite://") && !strings.HasPrefix(cfg.Store.URL, "postgres://") {
		return "", fmt.Errorf("migrations apply to SQL stores only, got %q", cfg.Store.URL)
	}
	return cfg.Store.URL, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	url, err := sqlStoreURL()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	database, err := db.Open(cmd.Context(), url)
	if err != nil {
		return err
	}
	defer database.Close()

	ran, err := db.MigrateUp(cmd.Context(), database)
	if err != nil {
		return err
	}

	logger.Info("migrations complete", "applied", ran)
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(ran))
	for _, id := range ran {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	url, err := sqlStoreURL()
	if err != nil {
		return err
	}

	database, err := db.Open(cmd.Context(), url)
	if err != nil {
		return err
	}
	defer database.Close()

	statuses, err := db.MigrateStatus(cmd.Context(), database)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		state, at := "pending", "-"
		if s.Applied {
			state = "applied"
			if s.AppliedAt != nil {
				at = *s.AppliedAt
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, state, at)
	}
	return w.Flush()
}
