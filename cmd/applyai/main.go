// Package main provides the entry point for the ApplyAI HTTP API server and its operator commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "applyai",
	Short: "ApplyAI HTTP API Server",
	Long: "ApplyAI stores job seeker profiles and job applications, meters monthly usage, " +
		"and hands generation of tailored application documents to an external engine.",
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
