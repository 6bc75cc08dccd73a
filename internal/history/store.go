package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/guarzo/ctgap/internal/model"
)

// Run is one recorded scan.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Criteria   model.Criteria
	Cards      int
	Matches    int
	Cancelled  bool
}

// Entry is a match as first seen by a run.
type Entry struct {
	RunID     string
	FirstSeen time.Time
	Match     model.Match
}

// Store is a SQLite log of scan runs and the matches they announced.
// A match is identified by its cheapest listing id and language.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	runs := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		criteria TEXT NOT NULL,
		cards INTEGER NOT NULL DEFAULT 0,
		matches INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := s.db.Exec(runs); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	matches := `
	CREATE TABLE IF NOT EXISTS matches (
		listing_id INTEGER NOT NULL,
		language TEXT NOT NULL,
		run_id TEXT NOT NULL,
		card_id INTEGER NOT NULL,
		card_name TEXT NOT NULL,
		expansion_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		reference_url TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		price1 REAL NOT NULL,
		price2 REAL NOT NULL,
		gap_abs REAL NOT NULL,
		gap_pct REAL NOT NULL,
		first_seen DATETIME NOT NULL,
		PRIMARY KEY (listing_id, language)
	);
	CREATE INDEX IF NOT EXISTS idx_matches_first_seen ON matches(first_seen);
	`
	if _, err := s.db.Exec(matches); err != nil {
		return fmt.Errorf("failed to create matches table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records the start of a scan and returns its id.
func (s *Store) StartRun(c model.Criteria) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode criteria: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.Exec(
		`INSERT INTO runs (id, started_at, criteria) VALUES (?, ?, ?)`,
		id, time.Now().UTC(), string(raw),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// FinishRun stores the outcome of a run.
func (s *Store) FinishRun(id string, cards, matches int, cancelled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, cards = ?, matches = ?, cancelled = ? WHERE id = ?`,
		time.Now().UTC(), cards, matches, cancelled, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// Seen reports whether a match for this listing and language was recorded.
func (s *Store) Seen(listingID int64, language string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM matches WHERE listing_id = ? AND language = ?`,
		listingID, language,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check seen match: %w", err)
	}
	return count > 0, nil
}

// Record stores m under runID. It returns false when the same listing and
// language was already recorded; the earlier row is kept.
func (s *Store) Record(runID string, m model.Match) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO matches (
			listing_id, language, run_id, card_id, card_name, expansion_id, label,
			reference_url, image_url, price1, price2, gap_abs, gap_pct, first_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.CheapestListingID, m.Language, runID, m.CardID, m.CardName, m.ExpansionID, m.Label,
		m.ReferenceURL, m.ImageURL, m.CheapestPrice, m.SecondPrice, m.GapAbs, m.GapPct, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to record match: %w", err)
	}
	if n == 0 {
		log.Debug().Int64("listing_id", m.CheapestListingID).Str("language", m.Language).Msg("match already recorded")
	}
	return n > 0, nil
}

// Recent returns up to limit matches, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT run_id, first_seen, listing_id, language, card_id, card_name, expansion_id,
			label, reference_url, image_url, price1, price2, gap_abs, gap_pct
		FROM matches ORDER BY first_seen DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		m := &e.Match
		if err := rows.Scan(&e.RunID, &e.FirstSeen, &m.CheapestListingID, &m.Language, &m.CardID,
			&m.CardName, &m.ExpansionID, &m.Label, &m.ReferenceURL, &m.ImageURL,
			&m.CheapestPrice, &m.SecondPrice, &m.GapAbs, &m.GapPct); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, criteria, cards, matches, cancelled
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullTime
			criteria string
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &criteria, &r.Cards, &r.Matches, &r.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		if err := json.Unmarshal([]byte(criteria), &r.Criteria); err != nil {
			return nil, fmt.Errorf("failed to decode criteria of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
