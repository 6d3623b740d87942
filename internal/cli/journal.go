package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexbotov/pokepay-go/internal/journal"
	"github.com/alexbotov/pokepay-go/internal/output"
)

func newJournalCmd(a *app) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the call journal",
		Long: `Inspect the Postgres call journal. Calls are journaled when the
profile sets JOURNAL_DSN; --dsn overrides it here.`,
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres DSN (default: profile JOURNAL_DSN)")

	open := func(cmd *cobra.Command) (*journal.Store, error) {
		target := dsn
		if target == "" {
			p, err := a.loadProfile()
			if err != nil {
				return nil, err
			}
			target = p.JournalDSN
		}
		if target == "" {
			return nil, errors.New("no journal configured: pass --dsn or set JOURNAL_DSN")
		}
		return journal.Open(cmd.Context(), target)
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the journal table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			output.Success("Journal schema is up to date")
			return nil
		},
	}

	var (
		filter journal.Filter
		since  time.Duration
	)
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent calls, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if since > 0 {
				filter.From = time.Now().Add(-since)
			}
			entries, err := store.Recent(cmd.Context(), &filter)
			if err != nil {
				return err
			}

			return output.Render(a.outputFormat, entries, func() *output.Table {
				return journalTable(entries)
			})
		},
	}
	recentCmd.Flags().StringVar(&filter.Operation, "operation", "", "only this operation")
	recentCmd.Flags().StringVar(&filter.ErrorKind, "error-kind", "", "only this error kind")
	recentCmd.Flags().BoolVar(&filter.FailedOnly, "failed", false, "only failed calls")
	recentCmd.Flags().DurationVar(&since, "since", 0, "only calls newer than this")
	recentCmd.Flags().IntVar(&filter.Limit, "limit", journal.DefaultLimit, "maximum rows")

	cmd.AddCommand(migrateCmd, recentCmd)
	return cmd
}

func journalTable(entries []*journal.Entry) *output.Table {
	table := output.NewTable([]string{"Started", "Operation", "Method", "Path", "Status", "Result", "Elapsed"})
	for _, e := range entries {
		result := "ok"
		switch {
		case e.ErrorKind != "":
			result = e.ErrorKind
		case !e.OK:
			result = "http_error"
		}
		status := "-"
		if e.StatusCode != 0 {
			status = strconv.Itoa(e.StatusCode)
		}
		table.AddRow([]string{
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Operation,
			e.Method,
			e.Path,
			status,
			result,
			fmt.Sprintf("%dms", e.ElapsedMS),
		})
	}
	return table
}
