package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"coderoom/internal/config"
	"coderoom/internal/executor"
	"coderoom/internal/language"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute a source file in the sandbox",
	Long: `Execute a source file through the same sandboxes the server uses,
printing the captured log lines in order.

The language is taken from --language, or inferred from the file
extension (.js, .py).

Examples:
  coderoom run fib.js
  coderoom run --language python script.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	lang, err := pickLanguage(path)
	if err != nil {
		return err
	}

	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	host := executor.New(executor.Options{
		Timeout:        cfg.Timeout(),
		PythonWasmPath: cfg.Sandbox.PythonWasm,
	})

	result := host.Run(cmd.Context(), string(code), lang)
	for _, line := range result.Logs {
		fmt.Println(line)
	}
	if result.Type != "success" {
		if result.Error != "" {
			fmt.Fprintln(os.Stderr, result.Error)
		}
		os.Exit(1)
	}
	return nil
}

func pickLanguage(path string) (language.Language, error) {
	if languageFlag != "" {
		lang := language.Language(languageFlag)
		if !language.IsSupported(lang) {
			return "", fmt.Errorf("unsupported language %q", languageFlag)
		}
		return lang, nil
	}
	switch filepath.Ext(path) {
	case ".js", ".mjs":
		return language.JavaScript, nil
	case ".py":
		return language.Python, nil
	}
	return "", fmt.Errorf("cannot infer language from %s; pass --language", path)
}
