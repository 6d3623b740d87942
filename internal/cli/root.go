// Package cli implements the pokepay command-line tool
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"

	"github.com/alexbotov/pokepay-go/internal/config"
	"github.com/alexbotov/pokepay-go/internal/journal"
	"github.com/alexbotov/pokepay-go/internal/logging"
	"github.com/alexbotov/pokepay-go/internal/metrics"
	"github.com/alexbotov/pokepay-go/internal/output"
	"github.com/alexbotov/pokepay-go/pkg/pokepay"
)

const version = "0.1.0"

// metricsJob is the Pushgateway job label for client call metrics
const metricsJob = "pokepay_cli"

// app carries the persistent flags shared by all commands
type app struct {
	cfgFile      string
	profile      string
	logLevel     string
	logFormat    string
	outputFormat string
	pushgateway  string

	logger *slog.Logger
}

// Execute runs the root command and reports any error on stderr
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		output.Error("%v", err)
		return err
	}
	return nil
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pokepay",
		Short: "Pokepay partner API client",
		Long: `pokepay calls the Pokepay partner API with encrypted envelopes.

Credentials come from a profile section of the config file
($POKEPAY_CONFIG or ~/.pokepay/config.ini) and can be overridden
with POKEPAY_CLIENT_ID, POKEPAY_CLIENT_SECRET, POKEPAY_API_BASE_URL
and friends.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !output.ValidFormat(a.outputFormat) {
				return fmt.Errorf("unknown output format %q (want table, json or yaml)", a.outputFormat)
			}
			a.logger = logging.New(logging.ParseLevel(a.logLevel), a.logFormat)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: $POKEPAY_CONFIG or $HOME/.pokepay/config.ini)")
	pf.StringVarP(&a.profile, "profile", "p", config.DefaultProfile, "profile section to use")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format: text, json")
	pf.StringVarP(&a.outputFormat, "output", "o", output.FormatTable, "output format: table, json, yaml")
	pf.StringVar(&a.pushgateway, "pushgateway", "", "push client call metrics to this Prometheus Pushgateway URL when done")

	root.AddCommand(
		newEchoCmd(a),
		newCallCmd(a),
		newRequestCmd(a),
		newOperationsCmd(a),
		newEncryptCmd(a),
		newDecryptCmd(a),
		newSandboxCmd(a),
		newJournalCmd(a),
	)
	return root
}

// configPath resolves --config, then $POKEPAY_CONFIG, then the home file if
// it exists. An empty result means environment only.
func (a *app) configPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	if os.Getenv(config.EnvPrefix+"_CONFIG") != "" {
		return config.DefaultPath()
	}
	if p := config.DefaultPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (a *app) loadProfile() (*config.Profile, error) {
	return config.LoadProfile(a.configPath(), a.profile)
}

// newClient builds a client from the active profile. A profile with
// JOURNAL_DSN gets its calls journaled and --pushgateway collects call
// metrics. The returned func releases the client and flushes both.
func (a *app) newClient(ctx context.Context) (*pokepay.Client, func(), error) {
	p, err := a.loadProfile()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := p.ClientConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg.Logger = a.logger

	var store *journal.Store
	if p.JournalDSN != "" {
		store, err = journal.Open(ctx, p.JournalDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("journal: %w", err)
		}
		cfg.Observers = append(cfg.Observers, store)
	}

	var pusher *push.Pusher
	if a.pushgateway != "" {
		reg := prometheus.NewRegistry()
		cfg.Observers = append(cfg.Observers, metrics.New(reg))
		pusher = push.New(a.pushgateway, metricsJob).Gatherer(reg).Grouping("profile", p.Name)
	}

	client, err := pokepay.NewClient(cfg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		client.Close()
		if store != nil {
			store.Close()
		}
		if pusher != nil {
			if err := pusher.Push(); err != nil {
				a.logger.Warn("failed to push metrics", logging.Error(err))
			}
		}
	}
	return client, cleanup, nil
}
