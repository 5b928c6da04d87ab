package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"coderoom/internal/config"
	"coderoom/internal/executor"
	"coderoom/internal/language"
	"coderoom/internal/review"
	"coderoom/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Coderoom relay server",
	Long: `Start the Coderoom HTTP server with the WebSocket relay and REST API.

Rooms are created lazily the first time somebody joins or edits them.
API endpoints are under /api; the relay is at /ws.

Examples:
  coderoom serve
  coderoom serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Languages.TemplatesFile != "" {
		if err := language.LoadTemplateOverrides(cfg.Languages.TemplatesFile); err != nil {
			return fmt.Errorf("loading templates: %w", err)
		}
		log.Printf("Templates: loaded overrides from %s", cfg.Languages.TemplatesFile)
	}

	host := executor.New(executor.Options{
		Timeout:        cfg.Timeout(),
		PythonWasmPath: cfg.Sandbox.PythonWasm,
	})

	// The review endpoint is optional; without a key it answers 501.
	var reviewer *review.Reviewer
	if cfg.Review.APIKey != "" {
		reviewer = review.New(cfg.Review.BaseURL, cfg.Review.APIKey, cfg.Review.Model)
		log.Printf("Review: enabled (model %s)", cfg.Review.Model)
	} else {
		log.Println("Review: disabled (no API key)")
	}

	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(cfg, host, reviewer)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	return srv.Start(port)
}
