package ranker

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/user/arxiv-digest/internal/arxiv"
)

// RankedPaper pairs a paper with its relevance score and the configured
// keywords that matched it, in configuration order. Never persisted.
type RankedPaper struct {
	Paper           arxiv.Paper
	Score           float64
	MatchedKeywords []string
}

// Ranker scores and filters papers against interest keywords. The mode is
// fixed at construction: with keywords configured it scores and strictly
// filters; without, it sorts chronologically.
type Ranker struct {
	keywords    []string
	hasKeywords bool
	logger      *slog.Logger
}

func New(keywords []string, logger *slog.Logger) *Ranker {
	r := &Ranker{keywords: keywords, hasKeywords: len(keywords) > 0, logger: logger}
	if r.hasKeywords {
		logger.Info("ranking enabled", "keywords", strings.Join(keywords, ", "))
	} else {
		logger.Info("no interest keywords configured, using chronological order")
	}
	return r
}

// Rank returns papers sorted by score descending. When keywords are
// configured, papers matching none of them are dropped entirely; an empty
// result means "no digest this round", not an error. Ties keep input
// order. Deterministic for a given input and configuration.
func (r *Ranker) Rank(papers []arxiv.Paper) ([]RankedPaper, error) {
	if len(papers) == 0 {
		return nil, nil
	}

	ranked := make([]RankedPaper, 0, len(papers))
	for _, p := range papers {
		score, matched := r.score(p)
		ranked = append(ranked, RankedPaper{Paper: p, Score: score, MatchedKeywords: matched})
	}

	if r.hasKeywords {
		total := len(ranked)
		kept := ranked[:0]
		for _, rp := range ranked {
			if len(rp.MatchedKeywords) > 0 {
				kept = append(kept, rp)
			}
		}
		ranked = kept
		if dropped := total - len(ranked); dropped > 0 {
			r.logger.Info("filtered papers with no keyword matches", "dropped", dropped, "kept", len(ranked))
		}
		if len(ranked) == 0 {
			r.logger.Warn("no papers matched any keywords", "total", total)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked, nil
}

// score computes the relevance score for one paper. With keywords: a
// title match is worth 3 points, an abstract match 1 point, each keyword
// counted once with the title taking precedence. Without keywords the
// publication time in epoch seconds is the score, so newer sorts first.
func (r *Ranker) score(p arxiv.Paper) (float64, []string) {
	if !r.hasKeywords {
		return float64(p.Published.Unix()), nil
	}

	title := strings.ToLower(p.Title)
	abstract := strings.ToLower(p.Abstract)

	var score float64
	var matched []string
	for _, kw := range r.keywords {
		lower := strings.ToLower(kw)
		switch {
		case strings.Contains(title, lower):
			score += 3
			matched = append(matched, kw)
		case strings.Contains(abstract, lower):
			score += 1
			matched = append(matched, kw)
		}
	}
	return score, matched
}

// Chronological is the degraded fallback used by the orchestrator when
// ranking fails: newest first, no keyword matches attached.
func Chronological(papers []arxiv.Paper) []RankedPaper {
	ranked := make([]RankedPaper, 0, len(papers))
	for _, p := range papers {
		ranked = append(ranked, RankedPaper{Paper: p, Score: float64(p.Published.Unix())})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}
