package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/arxiv-digest/internal/config"
	"github.com/user/arxiv-digest/internal/ranker"
)

// PlaceholderSummary stands in for papers whose summarization failed but
// whose batch still went through.
const PlaceholderSummary = "[Summary unavailable]"

const maxAttempts = 3

// ErrTooManyFailures reports a batch whose failure fraction exceeded the
// tolerated threshold.
var ErrTooManyFailures = errors.New("too many summarization failures")

// Package-level error kinds the retry loop dispatches on. Provider
// clients translate their own error types into these.
var (
	errRateLimited = errors.New("rate limited")
	errAPI         = errors.New("api error")
)

// completer is one LLM backend. Implementations wrap provider errors in
// errRateLimited or errAPI so the retry policy stays provider-agnostic.
type completer interface {
	complete(ctx context.Context, prompt string) (string, error)
}

// SummarizedPaper pairs a ranked paper with its generated summary.
type SummarizedPaper struct {
	Ranked  ranker.RankedPaper
	Summary string
}

// Summarizer generates short paper summaries through an LLM API.
type Summarizer struct {
	completer completer
	logger    *slog.Logger

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

// New selects the provider backend from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Summarizer, error) {
	var c completer
	switch cfg.LLMProvider {
	case "anthropic", "":
		c = newAnthropicCompleter(cfg)
	case "openai":
		c = newOpenAICompleter(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	logger.Info("summarizer ready", "provider", cfg.LLMProvider, "model", cfg.Model, "max_tokens", cfg.SummaryMaxTokens)
	return &Summarizer{completer: c, logger: logger, sleep: time.Sleep}, nil
}

// SummarizeBatch summarizes each paper independently; one failure never
// aborts the batch. Failed papers get PlaceholderSummary. If more than
// half the papers fail, the whole batch is declared failed even though
// individual results exist.
func (s *Summarizer) SummarizeBatch(ctx context.Context, papers []ranker.RankedPaper) ([]SummarizedPaper, error) {
	if len(papers) == 0 {
		return nil, nil
	}

	s.logger.Info("starting batch summarization", "papers", len(papers))

	results := make([]SummarizedPaper, 0, len(papers))
	failed := 0
	for i, rp := range papers {
		summary, err := s.Summarize(ctx, rp.Paper.Title, rp.Paper.Abstract)
		if err != nil {
			s.logger.Error("summarization failed", "paper", rp.Paper.ID, "error", err)
			failed++
			summary = PlaceholderSummary
		} else {
			s.logger.Info("summarized paper", "n", i+1, "of", len(papers), "paper", rp.Paper.ID)
		}
		results = append(results, SummarizedPaper{Ranked: rp, Summary: summary})
	}

	rate := float64(failed) / float64(len(papers))
	if rate > 0.5 {
		return nil, fmt.Errorf("%w: %d/%d (%.0f%%)", ErrTooManyFailures, failed, len(papers), rate*100)
	}
	if failed > 0 {
		s.logger.Warn("batch completed with failures", "failed", failed, "total", len(papers))
	}
	return results, nil
}

// Summarize generates one summary, retrying with kind-specific backoff: a
// rate limit waits 60s times the attempt number, a generic API error
// waits a fixed 5s, and anything else is retried until attempts run out.
func (s *Summarizer) Summarize(ctx context.Context, title, abstract string) (string, error) {
	prompt := buildPrompt(title, abstract)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		text, err := s.completer.complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		switch {
		case errors.Is(err, errRateLimited):
			wait := time.Duration(attempt+1) * 60 * time.Second
			s.logger.Warn("rate limited, backing off", "wait", wait, "attempt", attempt+1, "max", maxAttempts)
			s.sleep(wait)
		case errors.Is(err, errAPI):
			s.logger.Warn("api error, retrying", "error", err, "attempt", attempt+1, "max", maxAttempts)
			s.sleep(5 * time.Second)
		default:
			s.logger.Error("unexpected summarization error", "error", err)
			if attempt == maxAttempts-1 {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("summary failed after %d attempts: %w", maxAttempts, lastErr)
}

func buildPrompt(title, abstract string) string {
	return fmt.Sprintf(`You are summarizing an academic paper for busy AI/ML practitioners and technical architects.

Paper title: %s

Abstract: %s

Provide a 2-3 sentence summary that:
1. Explains the main contribution or finding
2. Highlights novel techniques or approaches
3. Notes practical applications or implications for engineers

Keep it concise, accessible, and focused on what makes this paper relevant.`, title, abstract)
}
