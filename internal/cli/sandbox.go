package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/alexbotov/pokepay-go/internal/config"
	"github.com/alexbotov/pokepay-go/internal/logging"
	"github.com/alexbotov/pokepay-go/internal/metrics"
	"github.com/alexbotov/pokepay-go/internal/output"
	"github.com/alexbotov/pokepay-go/internal/sandbox"
)

func newSandboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run a local partner API sandbox",
		Long: `Run a local server that speaks the partner envelope protocol.

It answers POST /echo and any fixtures loaded through the admin API
(/_sandbox/fixtures, bearer token from "pokepay sandbox token").
Settings come from SANDBOX_* environment variables and flags.`,
	}
	cmd.AddCommand(newSandboxServeCmd(a), newSandboxTokenCmd(a))
	return cmd
}

func newSandboxServeCmd(a *app) *cobra.Command {
	var (
		addr, adminSecret, redisURL string
		clients                     []string
		maxSkew                     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sandbox server",
		Long: `Start the sandbox server. Clients come from --client id:secret,
SANDBOX_CLIENTS, or else the active profile's credentials.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSandbox()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("admin-secret") {
				cfg.AdminSecret = adminSecret
			}
			if flags.Changed("redis-url") {
				cfg.RedisURL = redisURL
			}
			if flags.Changed("max-skew") {
				cfg.MaxSkew = maxSkew
			}
			if len(clients) > 0 {
				parsed, err := config.ParseClients(clients)
				if err != nil {
					return err
				}
				cfg.Clients = parsed
			}
			if len(cfg.Clients) == 0 {
				p, err := a.loadProfile()
				if err != nil {
					return err
				}
				if p.ClientID == "" || p.ClientSecret == "" {
					return errors.New("no sandbox clients: pass --client id:secret, set SANDBOX_CLIENTS or configure a profile")
				}
				cfg.Clients = map[string]string{p.ClientID: p.ClientSecret}
			}

			logger := a.logger
			if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-format") {
				logger = logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
			}
			return runSandbox(ctx, ln, cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", ":8080", "listen address (env SANDBOX_ADDR)")
	flags.StringSliceVar(&clients, "client", nil, "partner client as id:secret, repeatable (env SANDBOX_CLIENTS)")
	flags.StringVar(&adminSecret, "admin-secret", "", "HMAC secret for admin tokens (env SANDBOX_ADMIN_SECRET)")
	flags.StringVar(&redisURL, "redis-url", "", "Redis URL for the replay cache (env SANDBOX_REDIS_URL)")
	flags.DurationVar(&maxSkew, "max-skew", sandbox.DefaultMaxSkew, "allowed envelope clock skew, 0 disables (env SANDBOX_MAX_SKEW)")
	return cmd
}

// runSandbox serves on ln until ctx is done, then shuts down gracefully
func runSandbox(ctx context.Context, ln net.Listener, cfg *config.SandboxConfig, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var nonces sandbox.NonceStore
	if cfg.RedisURL != "" {
		store, err := sandbox.NewRedisNonceStore(cfg.RedisURL)
		if err != nil {
			ln.Close()
			return err
		}
		nonces = store
	}

	srv, err := sandbox.New(sandbox.Config{
		Clients:     cfg.Clients,
		AdminSecret: []byte(cfg.AdminSecret),
		MaxSkew:     cfg.MaxSkew,
		Nonces:      nonces,
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		Logger:      logger,
	})
	if err != nil {
		if nonces != nil {
			nonces.Close()
		}
		ln.Close()
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Handler:      srv.SetupRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sandbox listening", logging.Remote(ln.Addr().String()), slog.Int("clients", len(cfg.Clients)))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down sandbox")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sandbox forced to shutdown: %w", err)
	}
	return nil
}

func newSandboxTokenCmd(a *app) *cobra.Command {
	var (
		secret, subject string
		ttl             time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token for the sandbox API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.LoadSandbox()
				if err != nil {
					return err
				}
				secret = cfg.AdminSecret
			}
			if secret == "" {
				return errors.New("admin secret is required (--admin-secret or SANDBOX_ADMIN_SECRET)")
			}

			token, err := sandbox.IssueAdminToken([]byte(secret), subject, ttl)
			if err != nil {
				return err
			}
			if a.outputFormat == output.FormatTable {
				fmt.Fprintln(output.Stdout, token)
				return nil
			}
			return output.Render(a.outputFormat, map[string]any{
				"token":      token,
				"subject":    subject,
				"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
			}, nil)
		},
	}
	cmd.Flags().StringVar(&secret, "admin-secret", "", "HMAC secret (env SANDBOX_ADMIN_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
