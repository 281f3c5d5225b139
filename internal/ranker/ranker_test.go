package ranker

import (
	"log/slog"
	"testing"
	"time"

	"github.com/user/arxiv-digest/internal/arxiv"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func paper(id, title, abstract string, published time.Time) arxiv.Paper {
	return arxiv.Paper{
		ID:        id,
		Title:     title,
		Abstract:  abstract,
		Published: published,
		URL:       "http://arxiv.org/abs/" + id,
	}
}

func TestRankKeywordScoring(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p1 := paper("1", "A Transformer for Everything", "nothing here", base)
	p2 := paper("2", "Plain Title", "we use a transformer stack", base)
	p3 := paper("3", "Unrelated", "totally unrelated abstract", base)

	r := New([]string{"transformer"}, testLogger())
	ranked, err := r.Rank([]arxiv.Paper{p2, p3, p1})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	if len(ranked) != 2 {
		t.Fatalf("Expected 2 ranked papers, got %d", len(ranked))
	}
	if ranked[0].Paper.ID != "1" || ranked[0].Score != 3 {
		t.Errorf("Expected title match first with score 3, got %s score %v", ranked[0].Paper.ID, ranked[0].Score)
	}
	if ranked[1].Paper.ID != "2" || ranked[1].Score != 1 {
		t.Errorf("Expected abstract match second with score 1, got %s score %v", ranked[1].Paper.ID, ranked[1].Score)
	}
	for _, rp := range ranked {
		if rp.Paper.ID == "3" {
			t.Error("Paper with no matches must be filtered out")
		}
	}
}

func TestRankStrictFilterInvariant(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	papers := []arxiv.Paper{
		paper("1", "diffusion models at scale", "image synthesis", base),
		paper("2", "nothing relevant", "still nothing", base),
		paper("3", "agents everywhere", "multi-agent diffusion planning", base),
	}

	r := New([]string{"diffusion", "agent"}, testLogger())
	ranked, err := r.Rank(papers)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	for _, rp := range ranked {
		if len(rp.MatchedKeywords) == 0 {
			t.Errorf("Paper %s returned with empty matched keywords", rp.Paper.ID)
		}
	}
}

func TestRankKeywordCountedOnce(t *testing.T) {
	p := paper("1", "transformer transformer transformer", "transformer again and again", time.Now().UTC())

	r := New([]string{"transformer"}, testLogger())
	ranked, err := r.Rank([]arxiv.Paper{p})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("Expected 1 ranked paper, got %d", len(ranked))
	}
	if ranked[0].Score != 3 {
		t.Errorf("Repeated occurrences must count once, got score %v", ranked[0].Score)
	}
	if len(ranked[0].MatchedKeywords) != 1 {
		t.Errorf("Expected 1 matched keyword, got %d", len(ranked[0].MatchedKeywords))
	}
}

func TestRankMatchedKeywordsFollowConfigOrder(t *testing.T) {
	p := paper("1", "retrieval for agents", "agents that do retrieval", time.Now().UTC())

	r := New([]string{"agent", "retrieval"}, testLogger())
	ranked, err := r.Rank([]arxiv.Paper{p})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	got := ranked[0].MatchedKeywords
	if len(got) != 2 || got[0] != "agent" || got[1] != "retrieval" {
		t.Errorf("Expected matched keywords in config order, got %v", got)
	}
}

func TestRankAllFilteredIsNotAnError(t *testing.T) {
	p := paper("1", "nothing", "nothing", time.Now().UTC())

	r := New([]string{"quantum"}, testLogger())
	ranked, err := r.Rank([]arxiv.Paper{p})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(ranked) != 0 {
		t.Errorf("Expected empty result, got %d papers", len(ranked))
	}
}

func TestRankNoKeywordsChronological(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	papers := []arxiv.Paper{
		paper("old", "old", "old", base),
		paper("new", "new", "new", base.Add(48*time.Hour)),
		paper("mid", "mid", "mid", base.Add(24*time.Hour)),
	}

	r := New(nil, testLogger())
	ranked, err := r.Rank(papers)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	if len(ranked) != 3 {
		t.Fatalf("Chronological mode must not filter, got %d of 3", len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Paper.Published.After(ranked[i-1].Paper.Published) {
			t.Errorf("Order not non-increasing by publication time at index %d", i)
		}
	}
	for _, rp := range ranked {
		if len(rp.MatchedKeywords) != 0 {
			t.Errorf("Chronological mode must not attach keywords, got %v", rp.MatchedKeywords)
		}
	}
}

func TestRankTiesKeepInputOrder(t *testing.T) {
	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	papers := []arxiv.Paper{
		paper("a", "graph learning", "x", ts),
		paper("b", "graph networks", "y", ts),
	}

	r := New([]string{"graph"}, testLogger())
	ranked, err := r.Rank(papers)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if ranked[0].Paper.ID != "a" || ranked[1].Paper.ID != "b" {
		t.Errorf("Equal scores must keep input order, got %s then %s", ranked[0].Paper.ID, ranked[1].Paper.ID)
	}
}

func TestChronologicalFallback(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	papers := []arxiv.Paper{
		paper("old", "old", "old", base),
		paper("new", "new", "new", base.Add(time.Hour)),
	}

	ranked := Chronological(papers)
	if len(ranked) != 2 {
		t.Fatalf("Expected 2 papers, got %d", len(ranked))
	}
	if ranked[0].Paper.ID != "new" {
		t.Errorf("Expected newest first, got %s", ranked[0].Paper.ID)
	}
	for _, rp := range ranked {
		if len(rp.MatchedKeywords) != 0 {
			t.Error("Fallback must have empty matched keyword lists")
		}
	}
}
