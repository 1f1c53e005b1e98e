// Kestrel - Explainable supplier risk evaluation.
// Copyright (c) 2026 opensource.finance
// Licensed under the Apache License 2.0

// kestrel evaluates supplier risk with an explainable rule catalog.
//
// Usage:
//
//	kestrel serve [--config kestrel.yaml]
//	kestrel evaluate supplier.yaml... [--rules rules.yaml] [--format table|json|markdown]
//	kestrel rules [--category legal] [--rules rules.yaml]
//	kestrel bench labelled.csv [--url http://localhost:8080]
//	kestrel version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "Explainable supplier risk evaluation",
	Long: "Kestrel scores suppliers across financial, operational, legal and reputational\n" +
		"indicators and explains every decision with the rules that fired.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kestrel %s (commit %s, built %s)\n", version, commit, buildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
