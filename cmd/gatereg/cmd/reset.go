package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatereg/registry/internal/config"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset gatereg to a clean state",
	Long: `Reset gatereg by removing the persisted registry catalog.

This removes the servers and agents directories (every registered
server/agent document, their enable-state files, and the vector index)
plus the scan archive root. On next "gatereg serve", the registry
boots empty.

Examples:
  # Reset with interactive confirmation
  gatereg reset

  # Reset without prompting
  gatereg reset --force`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	type target struct {
		path string
		desc string
	}
	targets := []target{
		{cfg.Storage.ServersDir, "server catalog"},
		{cfg.Storage.AgentsDir, "agent catalog"},
		{cfg.Storage.ScansRoot, "scan archive"},
	}

	var existing []target
	for _, t := range targets {
		if _, err := os.Stat(t.path); err == nil {
			existing = append(existing, t)
		}
	}
	if len(existing) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to reset — no persisted registry data found.")
		return nil
	}

	fmt.Fprintln(os.Stderr, "The following will be removed:")
	for _, t := range existing {
		fmt.Fprintf(os.Stderr, "  - %s (%s)\n", t.path, t.desc)
	}

	if !resetForce {
		fmt.Fprint(os.Stderr, "\nProceed? [y/N] ")
		var answer string
		fmt.Scanln(&answer) //nolint:errcheck // interactive prompt, error irrelevant
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return nil
		}
	}

	var errCount int
	for _, t := range existing {
		if err := os.RemoveAll(t.path); err != nil {
			fmt.Fprintf(os.Stderr, "  ERROR removing %s: %v\n", t.path, err)
			errCount++
		} else {
			fmt.Fprintf(os.Stderr, "  Removed %s\n", t.path)
		}
	}

	if errCount > 0 {
		return fmt.Errorf("%d path(s) could not be removed", errCount)
	}

	fmt.Fprintln(os.Stderr, "\nReset complete. gatereg will start fresh on next launch.")
	return nil
}
