// Package cli implements the trafficctl admin commands. The CLI operates
// directly on the area store, without going through the API server.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	storeDriver string
	sqlitePath  string
	postgresDSN string
)

// BuildCLI assembles the trafficctl command tree.
func BuildCLI(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "trafficctl",
		Short:   "TrafficLens admin CLI",
		Version: version,
		Long: `trafficctl manages TrafficLens areas and training runs directly on the
store. It is the standalone companion to the API server: create areas,
run collections in the foreground, inspect snapshots, and mint operator
tokens.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "sqlite", "store backend: sqlite or postgres")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "db", "trafficlens.db", "sqlite database path")
	rootCmd.PersistentFlags().StringVar(&postgresDSN, "dsn", "", "postgres connection string (defaults to the DB_* environment)")

	rootCmd.AddCommand(areaCmd())
	rootCmd.AddCommand(snapshotsCmd())
	rootCmd.AddCommand(trainingCmd())
	rootCmd.AddCommand(tokenCmd())

	return rootCmd
}
