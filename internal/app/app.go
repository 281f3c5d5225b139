package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/arxiv-digest/internal/arxiv"
	"github.com/user/arxiv-digest/internal/config"
	"github.com/user/arxiv-digest/internal/notifier"
	"github.com/user/arxiv-digest/internal/ranker"
	"github.com/user/arxiv-digest/internal/store"
	"github.com/user/arxiv-digest/internal/summarizer"
)

// Collaborator contracts, defined here on the consumer side so the run
// state machines can be driven by fakes in tests.

type Source interface {
	Fetch(ctx context.Context, maxResults int, since time.Time) ([]arxiv.Paper, error)
}

type Store interface {
	AddPending(papers []arxiv.Paper, fetchedAt time.Time) (int, error)
	PendingPapers() ([]arxiv.Paper, error)
	IsPendingOrProcessed(id string) (bool, error)
	MarkProcessed(papers []arxiv.Paper, digestAt time.Time, includedIDs []string) error
	ClearPending() error
	LastSuccessfulIngestTime() (time.Time, error)
	LogRun(kind string, count int, status, message string) error
}

type Ranker interface {
	Rank(papers []arxiv.Paper) ([]ranker.RankedPaper, error)
}

type Summarizer interface {
	SummarizeBatch(ctx context.Context, papers []ranker.RankedPaper) ([]summarizer.SummarizedPaper, error)
}

type Notifier interface {
	SendDigest(ctx context.Context, papers []summarizer.SummarizedPaper, totalFetched int, dateRange string, keywords []string) error
	SendError(ctx context.Context, details notifier.ErrorDetails)
	SendSuccess(ctx context.Context, mode string, stats []notifier.Stat)
}

// Deps wires collaborators into the orchestrator.
type Deps struct {
	Config     *config.Config
	Store      Store
	Source     Source
	Ranker     Ranker
	Summarizer Summarizer
	Notifier   Notifier
	Logger     *slog.Logger
	// RecentLogs supplies the log tail embedded in error notifications.
	RecentLogs func(n int) []string
}

// App runs the two-phase pipeline: ingest stages new papers, digest
// ranks, summarizes, and delivers them.
type App struct {
	cfg        *config.Config
	store      Store
	source     Source
	ranker     Ranker
	summarizer Summarizer
	notifier   Notifier
	logger     *slog.Logger
	recentLogs func(n int) []string
}

func New(deps Deps) *App {
	recent := deps.RecentLogs
	if recent == nil {
		recent = func(int) []string { return nil }
	}
	return &App{
		cfg:        deps.Config,
		store:      deps.Store,
		source:     deps.Source,
		ranker:     deps.Ranker,
		summarizer: deps.Summarizer,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		recentLogs: recent,
	}
}

// Ingest fetches papers published since the last successful ingest and
// stages the new ones. Returns nil on success, an *ExitError otherwise
// (CodeNothing when there was simply nothing to add).
func (a *App) Ingest(ctx context.Context) error {
	a.logger.Info("ingest started")

	last, err := a.store.LastSuccessfulIngestTime()
	if err != nil {
		return a.fail(ctx, store.RunIngest, codeFor(err, CodeConfig), "read high-water mark", err, nil)
	}
	lastLabel := "first run"
	if !last.IsZero() {
		lastLabel = last.Format("2006-01-02 15:04")
		a.logger.Info("last successful ingest", "at", lastLabel)
	} else {
		a.logger.Info("no previous ingest found, fetching recent papers")
	}

	papers, err := a.source.Fetch(ctx, a.cfg.FetchLimit, last)
	if err != nil {
		return a.fail(ctx, store.RunIngest, CodeSource, "fetch papers", err, nil)
	}

	if len(papers) == 0 {
		a.logger.Info("no new papers since last ingest")
		return a.nothingToIngest(ctx, "No new papers since last run", lastLabel)
	}

	var fresh []arxiv.Paper
	for _, p := range papers {
		seen, err := a.store.IsPendingOrProcessed(p.ID)
		if err != nil {
			return a.fail(ctx, store.RunIngest, codeFor(err, CodeConfig), "dedup check", err, nil)
		}
		if !seen {
			fresh = append(fresh, p)
		}
	}

	if len(fresh) == 0 {
		a.logger.Info("all fetched papers already known", "fetched", len(papers))
		return a.nothingToIngest(ctx, fmt.Sprintf("All %d papers already in database", len(papers)), lastLabel)
	}

	added, err := a.store.AddPending(fresh, time.Now().UTC())
	if err != nil {
		return a.fail(ctx, store.RunIngest, codeFor(err, CodeConfig), "stage papers", err, nil)
	}

	if err := a.store.LogRun(store.RunIngest, added, store.StatusSuccess, ""); err != nil {
		a.logger.Error("failed to log run", "error", err)
	}
	a.logger.Info("ingest completed", "added", added)

	a.notifier.SendSuccess(ctx, store.RunIngest, []notifier.Stat{
		{Name: "Papers Fetched", Value: fmt.Sprint(added)},
		{Name: "Categories", Value: strings.Join(a.cfg.Categories, ", ")},
		{Name: "Last Ingest", Value: lastLabel},
	})
	return nil
}

// nothingToIngest records the empty outcome and still notifies, so the
// operator knows the run happened.
func (a *App) nothingToIngest(ctx context.Context, status, lastLabel string) error {
	if err := a.store.LogRun(store.RunIngest, 0, store.StatusNoPapers, ""); err != nil {
		a.logger.Error("failed to log run", "error", err)
	}
	a.notifier.SendSuccess(ctx, store.RunIngest, []notifier.Stat{
		{Name: "Papers Fetched", Value: "0"},
		{Name: "Status", Value: status},
		{Name: "Categories", Value: strings.Join(a.cfg.Categories, ", ")},
		{Name: "Last Ingest", Value: lastLabel},
	})
	return exitErr(CodeNothing, "nothing to do")
}

// Digest ranks the pending set, summarizes the top papers, emails the
// digest, and clears the staging table. The no-match branch still marks
// every pending paper processed: unmatched papers are never retried.
func (a *App) Digest(ctx context.Context) error {
	a.logger.Info("digest started")

	pending, err := a.store.PendingPapers()
	if err != nil {
		return a.fail(ctx, store.RunDigest, codeFor(err, CodeSummarize), "load pending", err, nil)
	}

	if len(pending) == 0 {
		a.logger.Info("no pending papers to process")
		if err := a.store.LogRun(store.RunDigest, 0, store.StatusNoPapers, ""); err != nil {
			a.logger.Error("failed to log run", "error", err)
		}
		a.notifier.SendSuccess(ctx, store.RunDigest, []notifier.Stat{
			{Name: "Papers Summarized", Value: "0"},
			{Name: "Status", Value: "No pending papers to process"},
			{Name: "Recipients", Value: fmt.Sprint(len(a.cfg.EmailTo))},
			{Name: "Keywords Configured", Value: fmt.Sprint(len(a.cfg.Keywords))},
		})
		return exitErr(CodeNothing, "nothing to do")
	}

	a.logger.Info("processing pending papers", "count", len(pending))

	ranked, err := a.ranker.Rank(pending)
	if err != nil {
		// Degraded path: a ranking failure never kills the run.
		a.logger.Error("ranking failed, falling back to chronological order", "error", err)
		ranked = ranker.Chronological(pending)
	}

	now := time.Now().UTC()
	if len(ranked) == 0 {
		a.logger.Info("no papers matched interest keywords", "pending", len(pending))
		if err := a.store.LogRun(store.RunDigest, 0, store.StatusNoMatches, ""); err != nil {
			a.logger.Error("failed to log run", "error", err)
		}
		if err := a.clearProcessed(pending, now, nil); err != nil {
			return a.fail(ctx, store.RunDigest, codeFor(err, CodeSummarize), "mark processed", err, pendingContext(pending))
		}
		a.notifier.SendSuccess(ctx, store.RunDigest, []notifier.Stat{
			{Name: "Papers Summarized", Value: "0"},
			{Name: "Status", Value: fmt.Sprintf("No papers matched keywords from %d pending", len(pending))},
			{Name: "Recipients", Value: fmt.Sprint(len(a.cfg.EmailTo))},
			{Name: "Keywords", Value: strings.Join(a.cfg.Keywords, ", ")},
		})
		return exitErr(CodeNothing, "no keyword matches")
	}

	top := ranked
	if len(top) > a.cfg.DisplayLimit {
		top = top[:a.cfg.DisplayLimit]
	}
	a.logger.Info("selected top papers for digest", "count", len(top))

	summarized, err := a.summarizer.SummarizeBatch(ctx, top)
	if err != nil {
		return a.fail(ctx, store.RunDigest, CodeSummarize, "summarize batch", err, pendingContext(pending))
	}

	dateRange := formatDateRange(pending)
	if err := a.notifier.SendDigest(ctx, summarized, len(pending), dateRange, a.cfg.Keywords); err != nil {
		return a.fail(ctx, store.RunDigest, CodeEmail, "send digest", err, pendingContext(pending))
	}

	included := make([]string, 0, len(summarized))
	for _, sp := range summarized {
		included = append(included, sp.Ranked.Paper.ID)
	}
	if err := a.clearProcessed(pending, now, included); err != nil {
		return a.fail(ctx, store.RunDigest, codeFor(err, CodeSummarize), "mark processed", err, pendingContext(pending))
	}

	if err := a.store.LogRun(store.RunDigest, len(summarized), store.StatusSuccess, ""); err != nil {
		a.logger.Error("failed to log run", "error", err)
	}
	a.logger.Info("digest completed", "sent", len(summarized), "recipients", len(a.cfg.EmailTo))

	a.notifier.SendSuccess(ctx, store.RunDigest, []notifier.Stat{
		{Name: "Papers Summarized", Value: fmt.Sprint(len(summarized))},
		{Name: "Total Pending Processed", Value: fmt.Sprint(len(pending))},
		{Name: "Recipients", Value: fmt.Sprint(len(a.cfg.EmailTo))},
		{Name: "Date Range", Value: dateRange},
		{Name: "Keywords Configured", Value: fmt.Sprint(len(a.cfg.Keywords))},
	})
	return nil
}

func (a *App) clearProcessed(pending []arxiv.Paper, digestAt time.Time, included []string) error {
	if err := a.store.MarkProcessed(pending, digestAt, included); err != nil {
		return err
	}
	return a.store.ClearPending()
}

// fail records the run outcome, sends a best-effort error notification,
// and wraps the cause with its exit code.
func (a *App) fail(ctx context.Context, kind string, code int, op string, cause error, context []notifier.Stat) error {
	a.logger.Error(op+" failed", "error", cause)
	if err := a.store.LogRun(kind, 0, store.StatusError, cause.Error()); err != nil {
		a.logger.Error("failed to log run", "error", err)
	}
	a.notifier.SendError(ctx, notifier.ErrorDetails{
		Mode:     kind,
		Time:     time.Now().UTC(),
		Message:  fmt.Sprintf("%s: %v", op, cause),
		ExitCode: code,
		Context:  context,
		Logs:     a.recentLogs(50),
	})
	return &ExitError{Code: code, Err: fmt.Errorf("%s: %w", op, cause)}
}

// codeFor promotes store lock contention to the configuration exit code;
// everything else keeps the fallback.
func codeFor(err error, fallback int) int {
	if errors.Is(err, store.ErrLocked) {
		return CodeConfig
	}
	return fallback
}

func pendingContext(pending []arxiv.Paper) []notifier.Stat {
	return []notifier.Stat{{Name: "pending_papers", Value: fmt.Sprint(len(pending))}}
}

// formatDateRange renders the collection period from the oldest and
// newest pending publication times, e.g. "Jan 31 - Feb 07, 2026".
func formatDateRange(papers []arxiv.Paper) string {
	oldest, newest := papers[0].Published, papers[0].Published
	for _, p := range papers[1:] {
		if p.Published.Before(oldest) {
			oldest = p.Published
		}
		if p.Published.After(newest) {
			newest = p.Published
		}
	}
	return oldest.Format("Jan 02") + " - " + newest.Format("Jan 02, 2006")
}
