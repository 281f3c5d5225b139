package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/arxiv-digest/internal/app"
	"github.com/user/arxiv-digest/internal/arxiv"
	"github.com/user/arxiv-digest/internal/config"
	"github.com/user/arxiv-digest/internal/logging"
	"github.com/user/arxiv-digest/internal/notifier"
	"github.com/user/arxiv-digest/internal/ranker"
	"github.com/user/arxiv-digest/internal/store"
	"github.com/user/arxiv-digest/internal/summarizer"
)

var modeFlag string

var rootCmd = &cobra.Command{
	Use:          "arxiv-digest",
	Short:        "Scheduled arXiv paper digest bot",
	Long:         "Fetches newly published arXiv papers into a staging table (ingest) and periodically ranks, summarizes, and emails the best of them (digest).",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), modeFlag)
	},
}

// Execute runs the CLI and maps orchestrator errors to process exit
// codes: 0 success, 1 configuration/unexpected, 2 source fetch, 3
// summarization, 4 email delivery, 5 nothing to do.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var xe *app.ExitError
		if errors.As(err, &xe) {
			os.Exit(xe.Code)
		}
		os.Exit(app.CodeConfig)
	}
}

func init() {
	rootCmd.Flags().StringVar(&modeFlag, "mode", "", "operation mode: ingest (daily) or digest (weekly)")
	_ = rootCmd.MarkFlagRequired("mode")
}

func run(ctx context.Context, mode string) error {
	if mode != store.RunIngest && mode != store.RunDigest {
		return fmt.Errorf("invalid --mode %q: want ingest or digest", mode)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(cfg.LogDir())

	st, err := store.Open(cfg.DBPath(), logger.With("component", "store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	summ, err := summarizer.New(cfg, logger.With("component", "summarizer"))
	if err != nil {
		return err
	}
	notif, err := notifier.New(cfg, logger.With("component", "notifier"))
	if err != nil {
		return err
	}

	application := app.New(app.Deps{
		Config:     cfg,
		Store:      st,
		Source:     arxiv.NewClient(cfg.Categories, cfg.SearchQuery, logger.With("component", "arxiv")),
		Ranker:     ranker.New(cfg.Keywords, logger.With("component", "ranker")),
		Summarizer: summ,
		Notifier:   notif,
		Logger:     logger.With("component", "app"),
		RecentLogs: func(n int) []string { return logging.Recent(cfg.LogDir(), n) },
	})

	if mode == store.RunIngest {
		return application.Ingest(ctx)
	}
	return application.Digest(ctx)
}
