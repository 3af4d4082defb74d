package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "slangd",
	Short: "Gen Z slang translation service",
	Long: `slangd serves the slang translation API and maintains the lexicon behind it.

Translations combine lexicon matches with a language model. New terms arrive as
user submissions, are checked against web search and the model, and reach the
lexicon through automatic approval, community votes or an admin.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.AddCommand(serveCmd, seedCmd, decayCmd, recoverCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
