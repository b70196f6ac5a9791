package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/bloglist/internal/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "bloglist",
	Short:   "Blog list server and client",
	Long: `bloglist serves a small blogging REST API and talks to it.

Server side:
  bloglist serve                      start the HTTP API
  bloglist stats                      summarize the blogs in the database

Client side (credentials are kept in ~/.bloglist/credentials.json):
  bloglist register | login | add | list | like | delete
  bloglist stats --api URL | --file blogs.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			files = append(files, path)
		}
		cfg, err := config.Load(files, cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg)
		cmd.SetContext(withConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./bloglist.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (env: BLOGLIST_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (env: BLOGLIST_DATABASE_DSN)")
	rootCmd.PersistentFlags().StringP("api", "a", "", "API base URL for client commands (default: saved login or "+defaultServer+")")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
