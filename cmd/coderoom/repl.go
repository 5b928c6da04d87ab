package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"coderoom/internal/config"
	"coderoom/internal/executor"
	"coderoom/internal/language"
)

// runCanceller hands the active run's cancel func between the input loop
// and the signal goroutine. interrupt only ever fires the currently set
// cancel; a cleared holder makes it a no-op.
type runCanceller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *runCanceller) set(cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
}

func (r *runCanceller) clear() {
	r.set(nil)
}

func (r *runCanceller) interrupt() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run snippets interactively in the sandbox",
	Long: `Start an interactive loop that executes each entered snippet in the
sandbox. Runs are independent: no state survives between snippets.

Examples:
  coderoom repl
  coderoom repl --language python`,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	lang := language.Default
	if languageFlag != "" {
		lang = language.Language(languageFlag)
		if !language.IsSupported(lang) {
			return fmt.Errorf("unsupported language %q", languageFlag)
		}
	}

	host := executor.New(executor.Options{
		Timeout:        cfg.Timeout(),
		PythonWasmPath: cfg.Sandbox.PythonWasm,
	})

	fmt.Printf("Coderoom sandbox REPL (%s)\n", lang)
	fmt.Printf("Each snippet runs fresh; type /help for commands, /quit to exit\n\n")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36m" + string(lang) + ">\033[0m ",
		HistoryFile:     "/tmp/coderoom_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// Ctrl+C cancels the active run, not the whole loop. The holder
	// serializes the signal goroutine against the loop's set/clear.
	var active runCanceller
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			active.interrupt()
		}
	}()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if next, handled := replCommand(input, lang); handled {
				if next != lang {
					lang = next
					rl.SetPrompt("\033[36m" + string(lang) + ">\033[0m ")
				}
				continue
			}
		}

		runCtx, cancel := context.WithCancel(context.Background())
		active.set(cancel)
		result := host.Run(runCtx, input, lang)
		active.clear()
		cancel()

		for _, line := range result.Logs {
			fmt.Println(line)
		}
		if result.Type != "success" && result.Error != "" {
			fmt.Printf("\033[31m%s\033[0m\n", result.Error)
		}
	}
}

func replCommand(input string, lang language.Language) (language.Language, bool) {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		fmt.Println("Goodbye!")
		os.Exit(0)
	case "/lang":
		if len(fields) < 2 {
			fmt.Printf("Language: %s\n\n", lang)
			return lang, true
		}
		next := language.Language(fields[1])
		if !language.IsSupported(next) {
			fmt.Printf("Unsupported language %q\n\n", fields[1])
			return lang, true
		}
		return next, true
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help         - Show this help")
		fmt.Println("  /lang [name]  - Show or switch the language")
		fmt.Println("  /quit         - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try /help)\n\n", input)
	}
	return lang, true
}
