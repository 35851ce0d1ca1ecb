// Package cmd provides the CLI commands for gatereg.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatereg/registry/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gatereg",
	Short: "gatereg - gateway registry for MCP servers and A2A agents",
	Long: `gatereg is the registry and security gateway for Model Context
Protocol tool servers and A2A agents.

It exposes a Control API for registering, discovering, and
security-scanning servers and agents, backed by a hybrid (keyword +
semantic) search index over the registered catalog.

Quick start:
  1. Create a config file: gatereg.yaml
  2. Run: gatereg serve

Configuration:
  Config is loaded from gatereg.yaml in the current directory,
  $HOME/.gatereg/, or /etc/gatereg/.

  Environment variables can override config values with the GATEREG_ prefix.
  Example: GATEREG_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the Control API server
  reset       Reset to clean state (remove persisted registry data)
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./gatereg.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
