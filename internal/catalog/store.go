package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/guarzo/ctgap/internal/concurrent"
	"github.com/guarzo/ctgap/internal/model"
)

const (
	ExpansionsFile = "expansions.json"
	ExcludedFile   = "excluded_expansions.json"
	BlueprintsDir  = "blueprints"
)

// ErrCatalogMissing is returned when an expansion has no readable card file.
var ErrCatalogMissing = errors.New("catalog missing")

// Store reads and writes the local JSON catalog of one game under
// <dataDir>/<game>/.
type Store struct {
	dir  string
	game Game
	mu   sync.Mutex

	fetchConfig concurrent.Config
}

func NewStore(dataDir string, game Game) *Store {
	return &Store{
		dir:  filepath.Join(dataDir, game.Key),
		game: game,
		fetchConfig: concurrent.Config{
			Workers:    3,
			MaxRetries: 2,
			Backoff:    time.Second,
			Retry:      retryableExport,
		},
	}
}

// Dir is the game directory holding the catalog files.
func (s *Store) Dir() string {
	return s.dir
}

// Game returns the game this store serves.
func (s *Store) Game() Game {
	return s.game
}

func (s *Store) cardsPath(expansionID int) string {
	return filepath.Join(s.dir, BlueprintsDir, strconv.Itoa(expansionID)+".json")
}

// Cards returns the catalog of one expansion in file order. A missing,
// unreadable or empty file yields an error wrapping ErrCatalogMissing.
func (s *Store) Cards(expansionID int) ([]model.Card, error) {
	var cards []model.Card
	if err := readJSON(s.cardsPath(expansionID), &cards); err != nil {
		return nil, fmt.Errorf("expansion %d: %w: %v", expansionID, ErrCatalogMissing, err)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("expansion %d: %w: no cards", expansionID, ErrCatalogMissing)
	}
	return cards, nil
}

// SaveCards replaces the catalog file of one expansion.
func (s *Store) SaveCards(expansionID int, cards []model.Card) error {
	return s.writeJSON(s.cardsPath(expansionID), cards)
}

// Expansions returns the saved expansion list.
func (s *Store) Expansions() ([]model.Expansion, error) {
	var exps []model.Expansion
	if err := readJSON(filepath.Join(s.dir, ExpansionsFile), &exps); err != nil {
		return nil, fmt.Errorf("expansions: %w: %v", ErrCatalogMissing, err)
	}
	return exps, nil
}

// SaveExpansions replaces the saved expansion list.
func (s *Store) SaveExpansions(exps []model.Expansion) error {
	return s.writeJSON(filepath.Join(s.dir, ExpansionsFile), exps)
}

// Excluded returns the codes of expansions hidden from "all" scans.
// A missing file means nothing is excluded.
func (s *Store) Excluded() ([]string, error) {
	var codes []string
	err := readJSON(filepath.Join(s.dir, ExcludedFile), &codes)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("excluded expansions: %w", err)
	}
	return codes, nil
}

// SetExcluded toggles the exclusion of one expansion code.
func (s *Store) SetExcluded(code string, excluded bool) error {
	codes, err := s.Excluded()
	if err != nil {
		return err
	}

	set := make(map[string]struct{}, len(codes)+1)
	for _, c := range codes {
		set[c] = struct{}{}
	}
	if excluded {
		set[code] = struct{}{}
	} else {
		delete(set, code)
	}

	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return s.writeJSON(filepath.Join(s.dir, ExcludedFile), out)
}

// Selectable returns the saved expansions that are not excluded, in saved order.
func (s *Store) Selectable() ([]model.Expansion, error) {
	exps, err := s.Expansions()
	if err != nil {
		return nil, err
	}
	excluded, err := s.Excluded()
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(excluded))
	for _, c := range excluded {
		skip[c] = true
	}

	out := make([]model.Expansion, 0, len(exps))
	for _, e := range exps {
		if !skip[e.Code] {
			out = append(out, e)
		}
	}
	return out, nil
}

// ResolveCodes maps expansion codes (or numeric ids) to expansion ids.
func (s *Store) ResolveCodes(codes []string) ([]int, error) {
	exps, err := s.Expansions()
	if err != nil {
		exps = nil
	}
	byCode := make(map[string]int, len(exps))
	for _, e := range exps {
		byCode[e.Code] = e.ID
	}

	ids := make([]int, 0, len(codes))
	for _, c := range codes {
		if id, ok := byCode[c]; ok {
			ids = append(ids, id)
			continue
		}
		if id, err := strconv.Atoi(c); err == nil && id > 0 {
			ids = append(ids, id)
			continue
		}
		return nil, fmt.Errorf("unknown expansion %q", c)
	}
	return ids, nil
}

// CountCards returns how many cards of the given expansions have a rarity
// accepted by the criteria. Missing catalogs count as zero.
func (s *Store) CountCards(c model.Criteria) int {
	total := 0
	for _, id := range c.ExpansionIDs {
		cards, err := s.Cards(id)
		if err != nil {
			continue
		}
		for _, card := range cards {
			if c.AcceptsRarity(card.Rarity) {
				total++
			}
		}
	}
	return total
}

func readJSON(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path atomically via a temp file in the same directory.
func (s *Store) writeJSON(path string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
