/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the credit-book bot: webhook server, conversation
  engine, SQLite store, and the daily overdue digest. Handles configuration
  and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and configure logging
  2. Parse command-line flags and environment
  3. Initialize SQLite store
  4. Wire engine, sender, dispatcher, router
  5. Start digest scheduler and HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: creditbook.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  BOT_TOKEN        webhook shared secret and API token (required)
  CHAT_API_URL     chat platform API base, e.g. https://api.telegram.org
  ADMIN_CHAT_ID    chat that receives the daily overdue digest (optional)
  DIGEST_SCHEDULE  cron expression for the digest (default: 0 9 * * *)
  LOG_LEVEL        debug, info, warn, error (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new webhook requests (30s drain timeout)
  2. Stop the digest scheduler
  3. Drain per-chat event queues
  4. Close the database connection

SEE ALSO:
  - bot/server.go: Router configuration
  - bot/dispatcher.go: Per-chat event processing
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/creditbook/bot"
	"github.com/warp/creditbook/conversation"
	"github.com/warp/creditbook/logging"
	"github.com/warp/creditbook/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	logging.Setup()

	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "creditbook.db", "SQLite database path")
	flag.Parse()

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		slog.Error("BOT_TOKEN is required")
		os.Exit(1)
	}
	apiURL := os.Getenv("CHAT_API_URL")
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Wire the bot
	engine := conversation.New(store)
	sender := bot.NewAPISender(apiURL + "/bot" + token)
	dispatcher := bot.NewDispatcher(engine, sender)
	router := bot.NewRouter(token, dispatcher)

	// Daily overdue digest, only when an admin chat is configured
	var digest *bot.Digest
	if raw := os.Getenv("ADMIN_CHAT_ID"); raw != "" {
		adminChatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			slog.Error("invalid ADMIN_CHAT_ID", "value", raw, "error", err)
			os.Exit(1)
		}
		digest = bot.NewDigest(store, sender, adminChatID)
		if err := digest.Start(os.Getenv("DIGEST_SCHEDULE")); err != nil {
			slog.Error("failed to start digest", "error", err)
			os.Exit(1)
		}
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("bot starting", "port", *port, "db", *dbPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if digest != nil {
		digest.Stop()
	}
	dispatcher.Close()

	slog.Info("stopped")
}
