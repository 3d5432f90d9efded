package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventsite/registry/internal/api"
	"github.com/eventsite/registry/internal/db"
	"github.com/eventsite/registry/internal/extract"
	"github.com/eventsite/registry/internal/store"
)

func main() {
	fs := flag.NewFlagSet("registry", flag.ContinueOnError)

	defaultDB := envString("REGISTRY_DB", "registry.sqlite3")
	var dbPath string
	fs.StringVar(&dbPath, "db", defaultDB, "")
	fs.StringVar(&dbPath, "d", defaultDB, "")

	defaultAddr := envString("REGISTRY_ADDR", ":8080")
	var addr string
	fs.StringVar(&addr, "addr", defaultAddr, "")
	fs.StringVar(&addr, "a", defaultAddr, "")

	var adminUser string
	fs.StringVar(&adminUser, "user", "Admin", "")
	fs.StringVar(&adminUser, "u", "Admin", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	var verbose bool
	fs.BoolVar(&verbose, "verbose", false, "")
	fs.BoolVar(&verbose, "v", false, "")

	var lookupRPS float64
	fs.Float64Var(&lookupRPS, "lookup-rps", envFloat("REGISTRY_LOOKUP_RPS", 2), "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: registry [flags]

Flags:
  -d, -db <path>          SQLite database path (env REGISTRY_DB, default: registry.sqlite3)
  -a, -addr <host:port>   listen address (env REGISTRY_ADDR, default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -v, -verbose            include debug logs
  -lookup-rps <n>         product page lookups per second, 0 for unlimited
                          (env REGISTRY_LOOKUP_RPS, default: 2)
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	if lookupRPS < 0 {
		fmt.Fprintln(os.Stderr, "-lookup-rps cannot be negative")
		os.Exit(1)
	}

	closeLog, err := setupLogger(logPath, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		database, password, err := initDatabase(dbPath, adminUser)
		if err != nil {
			slog.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		database.Close()

		printInitResult(dbPath, adminUser, password)
		fmt.Println()
	}

	database, err := db.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	// Idempotent; also applies migrations to older databases.
	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	slog.Info("database ready", "path", dbPath)

	jwtSecret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}

	extractor := extract.New(extract.Options{RequestsPerSecond: lookupRPS})

	handler := api.LoggingMiddleware(api.NewRouter(database, jwtSecret, extractor))

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr, "lookup_rps", lookupRPS)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}
