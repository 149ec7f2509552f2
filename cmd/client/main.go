package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tradesync/internal/gateway"
	"tradesync/internal/infra"
	"tradesync/internal/market"
	"tradesync/internal/session"
	"tradesync/internal/storage"
	"tradesync/internal/vault"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	slog.SetDefault(infra.NewLogger(cfg))
	infra.PrintBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workDir := infra.WorkspaceDir()
	if err := infra.EnsureDir(workDir); err != nil {
		return fmt.Errorf("failed to create workspace dir: %w", err)
	}

	keystore, err := storage.NewKeystore(filepath.Join(workDir, "keystore.db"))
	if err != nil {
		return err
	}
	defer keystore.Close()

	keyFile := cfg.Vault.KeyFile
	if keyFile == "" {
		keyFile = filepath.Join(workDir, "vault.key")
	}
	cipher, err := vault.NewAESCipher(keyFile)
	if err != nil {
		return err
	}
	v := vault.New(cipher, keystore)

	// A token in the environment logs in without a stored credential,
	// e.g. for first use or CI.
	if token := os.Getenv("TRADESYNC_TOKEN"); token != "" {
		cred := vault.Credential{Token: token, ObtainedAt: time.Now()}
		if err := v.Store(ctx, cred); err != nil {
			return err
		}
		slog.Info("Credential stored from environment")
	}

	rest := gateway.NewRESTClient(cfg.API.BaseURL)
	gw := gateway.New(rest, v, consoleAuthorizer{})
	store := market.NewStore(cfg.Store.InboxSize, cfg.Store.TradeHistory)

	s := session.New(cfg.Stream.URL, store, v, gw, rest)
	s.Start(ctx)
	defer s.Close()

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", infra.MetricsHandler())
			slog.Info("Metrics server listening", slog.String("addr", cfg.Metrics.ListenAddr))
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				slog.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
	}

	if len(os.Args) > 1 {
		s.SelectSymbol(os.Args[1])
	}

	slog.Info("Session running, press Ctrl+C to exit",
		slog.String("stream", cfg.Stream.URL),
		slog.String("api", cfg.API.BaseURL))
	<-ctx.Done()

	slog.Info("Shutting down")
	return nil
}

// consoleAuthorizer is the terminal stand-in for a step-up prompt: each
// sensitive action requires an explicit y/n on stdin.
type consoleAuthorizer struct{}

func (consoleAuthorizer) Authorize(ctx context.Context, purpose string) (gateway.AuthDecision, error) {
	fmt.Printf("Authorize %s? [y/N]: ", purpose)

	answers := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			answers <- ""
			return
		}
		answers <- strings.TrimSpace(strings.ToLower(line))
	}()

	select {
	case <-ctx.Done():
		return gateway.AuthCancelled, nil
	case answer := <-answers:
		switch answer {
		case "y", "yes":
			return gateway.AuthApproved, nil
		case "":
			return gateway.AuthCancelled, nil
		default:
			return gateway.AuthDenied, nil
		}
	}
}
