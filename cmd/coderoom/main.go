package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var languageFlag string

var rootCmd = &cobra.Command{
	Use:   "coderoom",
	Short: "Coderoom - collaborative code rooms with sandboxed execution",
	Long: `Coderoom hosts shared code-editing rooms over WebSocket and runs the
code members write in per-language sandboxes.

Every room keeps one buffer per supported language; edits are relayed to
everyone else in the room as they happen.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&languageFlag, "language", "", "Language to use (javascript, python)")
}

func main() {
	// A .env next to the binary is the easiest place for the review API key.
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
