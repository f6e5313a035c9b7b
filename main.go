// Command planadmin serves the planning administration site and manages its
// users from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configFile is set by the --config flag.
var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "planadmin",
	Short: "Planning administration site",
	Long: `planadmin serves the web administration of the planning application:
login, per-user report preferences, the model index and the users report.
Configuration comes from config.json or config.yaml, PLANADMIN_* environment
variables and an optional .env file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./config.{json,yaml})")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(setPlanDateCmd)
	rootCmd.AddCommand(versionCmd)
}
