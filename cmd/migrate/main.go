package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hugh/taskhub/internal/database"
	"github.com/hugh/taskhub/pkg/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	databaseURL string
	steps       int
)

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Apply or roll back the taskhub schema",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if databaseURL != "" {
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		databaseURL = cfg.Database.URL()
		return nil
	},
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "up")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations (all of them unless --steps is set)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "down")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, dirty, err := database.MigrationVersion(databaseURL)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
		return nil
	},
}

func run(cmd *cobra.Command, direction string) error {
	err := database.Migrate(databaseURL, direction, steps)
	if errors.Is(err, database.ErrNoChange) {
		fmt.Fprintln(cmd.OutOrStdout(), "no change")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", direction)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "postgres URL (defaults to DATABASE_* settings)")
	upCmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply")
	downCmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
