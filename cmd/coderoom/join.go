package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"coderoom/internal/client"
	"coderoom/internal/language"
)

var serverURLFlag string

var joinCmd = &cobra.Command{
	Use:   "join <room>",
	Short: "Join a room from the terminal",
	Long: `Join a shared room and edit its buffer line by line. Each entered
line is appended to the visible buffer and synced to the room; edits
from other members are printed as they arrive.

Examples:
  coderoom join demo
  coderoom join demo --server ws://example.com:8080/ws`,
	Args: cobra.ExactArgs(1),
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().StringVar(&serverURLFlag, "server", "ws://localhost:8080/ws", "Relay WebSocket URL")
	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	roomID := args[0]

	c, err := client.Dial(cmd.Context(), serverURLFlag, roomID)
	if err != nil {
		return err
	}
	defer c.Close()

	prompt := func() string {
		return "\033[36m" + roomID + "/" + string(c.Language()) + ">\033[0m "
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(),
		HistoryFile:     "/tmp/coderoom_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	c.OnBufferChange = func(code string) {
		fmt.Printf("\r\033[90m── room update ──\033[0m\n%s\n", code)
		rl.Refresh()
	}
	c.OnLanguageUpdate = func(lang language.Language) {
		fmt.Printf("\r\033[90m── room switched to %s ──\033[0m\n", lang)
		rl.SetPrompt(prompt())
		rl.Refresh()
	}
	c.OnDisconnect = func(err error) {
		fmt.Printf("\r\033[31mconnection lost: %v\033[0m\n", err)
		if rerr := c.Reconnect(context.Background()); rerr != nil {
			fmt.Printf("\033[31mreconnect failed: %v\033[0m\n", rerr)
			rl.Close()
			return
		}
		fmt.Println("\033[90mreconnected; room state restored\033[0m")
		rl.Refresh()
	}

	fmt.Printf("Joined room %q (%s)\n", roomID, c.Language())
	fmt.Printf("Type /help for commands, /quit to leave\n\n%s\n", c.Buffer())

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nLeft the room.")
				return nil
			}
			return err
		}

		if strings.HasPrefix(strings.TrimSpace(input), "/") {
			if joinCommand(strings.TrimSpace(input), c) {
				rl.SetPrompt(prompt())
				continue
			}
		}

		buf := c.Buffer()
		if buf != "" && !strings.HasSuffix(buf, "\n") {
			buf += "\n"
		}
		if err := c.Edit(buf + input); err != nil {
			fmt.Printf("\033[31medit failed: %v\033[0m\n", err)
		}
	}
}

func joinCommand(input string, c *client.Client) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		fmt.Println("Left the room.")
		os.Exit(0)
	case "/show":
		fmt.Println(c.Buffer())
	case "/clear":
		if err := c.Edit(""); err != nil {
			fmt.Printf("\033[31medit failed: %v\033[0m\n", err)
		}
	case "/lang":
		if len(fields) < 2 {
			fmt.Printf("Language: %s\n", c.Language())
			return true
		}
		lang := language.Language(fields[1])
		if !language.IsSupported(lang) {
			fmt.Printf("Unsupported language %q\n", fields[1])
			return true
		}
		if err := c.SwitchLanguage(lang); err != nil {
			fmt.Printf("\033[31mswitch failed: %v\033[0m\n", err)
			return true
		}
		fmt.Println(c.Buffer())
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help         - Show this help")
		fmt.Println("  /show         - Print the current buffer")
		fmt.Println("  /clear        - Empty the buffer")
		fmt.Println("  /lang [name]  - Show or switch the room language")
		fmt.Println("  /quit         - Leave the room")
	default:
		fmt.Printf("Unknown command: %s (try /help)\n", input)
	}
	return true
}
