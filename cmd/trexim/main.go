package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/trexim"
	"github.com/eringen/trexim/views"
)

// version is set at build time via ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve()
	case "hash-password":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: trexim hash-password <password>")
			os.Exit(1)
		}
		err = hashPassword(os.Args[2])
	case "version":
		fmt.Printf("trexim %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (trexim.SiteConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return trexim.SiteConfig{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := trexim.LoadConfig(os.Getenv("TREXIM_CONFIG"))
	if err != nil {
		return cfg, err
	}
	return cfg, trexim.ApplyEnv(&cfg)
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app := trexim.New(cfg, views.Default())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start(ctx) }()

	select {
	case err := <-errc:
		_ = app.Close()
		return err
	case <-ctx.Done():
	}
	app.Echo.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

func hashPassword(pw string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}

func printUsage() {
	fmt.Println(`trexim - the Trexim marketing site, blog CMS and analytics

Usage:
  trexim [command]

Commands:
  serve                    Run the web server (default)
  hash-password <password> Print a bcrypt hash for ADMIN_PASSWORD
  version                  Print the version
  help                     Show this help message

Configuration is read from TREXIM_CONFIG (YAML), .env and the environment.`)
}
