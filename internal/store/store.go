package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/user/arxiv-digest/internal/arxiv"
)

// Run kinds and statuses recorded in the audit log.
const (
	RunIngest = "ingest"
	RunDigest = "digest"

	StatusSuccess   = "success"
	StatusError     = "error"
	StatusNoPapers  = "no_papers"
	StatusNoMatches = "no_matches"
)

// ErrLocked reports lock contention on the database file. Concurrent runs
// mean the external scheduler is misconfigured, so callers treat this as
// fatal rather than retrying.
var ErrLocked = errors.New("database locked, another run may be active")

// Store persists the pending staging table, the processed history, and
// the run audit log in a single sqlite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema idempotently.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("store opened", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pending_papers (
		arxiv_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		abstract TEXT NOT NULL,
		categories TEXT NOT NULL,
		published_at TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		arxiv_url TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS processed_papers (
		arxiv_id TEXT PRIMARY KEY,
		title TEXT,
		processed_at TEXT NOT NULL,
		digest_at TEXT NOT NULL,
		included_in_digest INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_kind TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		papers_count INTEGER,
		status TEXT NOT NULL,
		error_message TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AddPending stages papers with insert-or-ignore semantics keyed by the
// arXiv identifier and returns the number of rows actually inserted.
func (s *Store) AddPending(papers []arxiv.Paper, fetchedAt time.Time) (int, error) {
	if len(papers) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, classify(err)
	}

	added := 0
	fetched := fetchedAt.UTC().Format(time.RFC3339)
	for _, p := range papers {
		res, err := tx.Exec(`
			INSERT OR IGNORE INTO pending_papers
			(arxiv_id, title, abstract, categories, published_at, fetched_at, arxiv_url)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Title, p.Abstract, strings.Join(p.Categories, ","),
			p.Published.UTC().Format(time.RFC3339), fetched, p.URL,
		)
		if err != nil {
			tx.Rollback()
			return 0, classify(err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classify(err)
	}

	s.logger.Info("staged papers", "added", added, "skipped", len(papers)-added)
	return added, nil
}

// PendingPapers returns the whole staging table, newest first.
func (s *Store) PendingPapers() ([]arxiv.Paper, error) {
	rows, err := s.db.Query(`
		SELECT arxiv_id, title, abstract, categories, published_at, arxiv_url
		FROM pending_papers ORDER BY published_at DESC`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var papers []arxiv.Paper
	for rows.Next() {
		var p arxiv.Paper
		var categories, published string
		if err := rows.Scan(&p.ID, &p.Title, &p.Abstract, &categories, &published, &p.URL); err != nil {
			return nil, err
		}
		if categories != "" {
			p.Categories = strings.Split(categories, ",")
		}
		p.Published, err = time.Parse(time.RFC3339, published)
		if err != nil {
			return nil, fmt.Errorf("parse published_at for %s: %w", p.ID, err)
		}
		p.Published = p.Published.UTC()
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// IsPendingOrProcessed is the dedup guard checked per paper before it is
// considered new.
func (s *Store) IsPendingOrProcessed(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM pending_papers WHERE arxiv_id = ?`, id).Scan(&one)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, classify(err)
	}

	err = s.db.QueryRow(`SELECT 1 FROM processed_papers WHERE arxiv_id = ?`, id).Scan(&one)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, classify(err)
	}
	return false, nil
}

// MarkProcessed upserts one history row per paper. The inclusion flag is
// set for papers whose id appears in includedIDs (they made the digest
// email rather than being discarded).
func (s *Store) MarkProcessed(papers []arxiv.Paper, digestAt time.Time, includedIDs []string) error {
	included := make(map[string]bool, len(includedIDs))
	for _, id := range includedIDs {
		included[id] = true
	}

	tx, err := s.db.Begin()
	if err != nil {
		return classify(err)
	}

	processedAt := time.Now().UTC().Format(time.RFC3339)
	digest := digestAt.UTC().Format(time.RFC3339)
	for _, p := range papers {
		flag := 0
		if included[p.ID] {
			flag = 1
		}
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO processed_papers
			(arxiv_id, title, processed_at, digest_at, included_in_digest)
			VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Title, processedAt, digest, flag,
		); err != nil {
			tx.Rollback()
			return classify(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}

	s.logger.Info("marked papers processed", "count", len(papers), "included", len(includedIDs))
	return nil
}

// ClearPending empties the staging table.
func (s *Store) ClearPending() error {
	if _, err := s.db.Exec(`DELETE FROM pending_papers`); err != nil {
		return classify(err)
	}
	s.logger.Info("cleared pending papers")
	return nil
}

// LastSuccessfulIngestTime returns the timestamp of the most recent
// successful ingest run. The zero time means no ingest has succeeded yet
// and the next fetch runs without a lower bound.
func (s *Store) LastSuccessfulIngestTime() (time.Time, error) {
	var raw string
	err := s.db.QueryRow(`
		SELECT timestamp FROM runs
		WHERE run_kind = ? AND status = ?
		ORDER BY timestamp DESC LIMIT 1`,
		RunIngest, StatusSuccess,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, classify(err)
	}

	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run timestamp: %w", err)
	}
	return ts.UTC(), nil
}

// LogRun appends one audit record. Called exactly once per run attempt,
// success or failure.
func (s *Store) LogRun(kind string, count int, status, message string) error {
	var msg any
	if message != "" {
		msg = message
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (run_kind, timestamp, papers_count, status, error_message)
		VALUES (?, ?, ?, ?, ?)`,
		kind, time.Now().UTC().Format(time.RFC3339), count, status, msg,
	)
	if err != nil {
		return classify(err)
	}
	s.logger.Debug("logged run", "kind", kind, "status", status, "papers", count)
	return nil
}

// classify maps lock contention to ErrLocked and passes everything else
// through.
func classify(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		if serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", ErrLocked, err)
		}
	}
	if strings.Contains(err.Error(), "database is locked") {
		return fmt.Errorf("%w: %v", ErrLocked, err)
	}
	return err
}
