// Package main is the libraryql command which runs the catalog GraphQL server
package main

import (
	"fmt"
	"os"

	"github.com/andrewwphillips/libraryql"
	"github.com/andrewwphillips/libraryql/internal/config"
	"github.com/andrewwphillips/libraryql/internal/schema"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "libraryql",
		Short:         "libraryql serves a catalog of books and authors using GraphQL",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	var addr, store string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the GraphQL server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, addr, store)
			if err != nil {
				return err
			}
			return libraryql.Run(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides the configuration)")
	serveCmd.Flags().StringVar(&store, "store", "", `"mongo" or "memory" (overrides the configuration)`)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (secrets hidden)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, "", "")
			if err != nil {
				return err
			}
			cfg.Auth.Secret, cfg.Redis.Password = hide(cfg.Auth.Secret), hide(cfg.Redis.Password)
			buf, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(buf)
			return err
		},
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the GraphQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), schema.String())
			return err
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of libraryql",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "libraryql version %s\n", Version)
			return err
		},
	}

	rootCmd.AddCommand(serveCmd, configCmd, schemaCmd, versionCmd)
	return rootCmd
}

// loadConfig reads the configuration then applies command line overrides
func loadConfig(path, addr, store string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("configuration load failed: %w", err)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if store != "" {
		cfg.Store = store
		if err = cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func hide(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
