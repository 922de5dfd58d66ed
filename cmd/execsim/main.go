package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "execsim",
	Short: "execsim - historical order execution simulator",
	Long: `execsim replays historical price data against strategy signals and
simulates realistic order execution: sub-bar fill resolution, trailing
stops, exit precedence and futures contract-roll accounting.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

func main() {
	// Optional .env for credentials (S3 archive etc.)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
