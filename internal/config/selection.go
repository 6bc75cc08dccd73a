package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/guarzo/ctgap/internal/model"
)

const SelectionFileName = "saved_state.json"

// Selection is the last set of scan choices, reused by watch mode and as
// defaults for the scan commands.
type Selection struct {
	Languages  []string `json:"languages"`
	Rarities   []string `json:"rarities"`
	Expansions []string `json:"expansions,omitempty"`
	MinPrice   float64  `json:"min_price,omitempty"`
	MaxPrice   float64  `json:"max_price,omitempty"`
	MinGap     float64  `json:"min_gap,omitempty"`
	HubOnly    bool     `json:"hub_only,omitempty"`
}

func selectionPath(dataDir, game string) string {
	return filepath.Join(dataDir, game, SelectionFileName)
}

// LoadSelection returns the saved selection of a game, or an empty one when
// nothing was saved yet.
func LoadSelection(dataDir, game string) (Selection, error) {
	sel := Selection{Languages: []string{}, Rarities: []string{}}
	data, err := os.ReadFile(selectionPath(dataDir, game))
	if errors.Is(err, os.ErrNotExist) {
		return sel, nil
	}
	if err != nil {
		return sel, fmt.Errorf("read selection: %w", err)
	}
	if err := json.Unmarshal(data, &sel); err != nil {
		return sel, fmt.Errorf("parse selection: %w", err)
	}
	return sel, nil
}

// SaveSelection persists the selection of a game.
func SaveSelection(dataDir, game string, sel Selection) error {
	path := selectionPath(dataDir, game)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create selection dir: %w", err)
	}
	data, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Criteria turns a selection into scan criteria over the given expansion ids.
func (s Selection) Criteria(expansionIDs []int) model.Criteria {
	return model.Criteria{
		ExpansionIDs: expansionIDs,
		Languages:    s.Languages,
		Rarities:     s.Rarities,
		MinPrice:     s.MinPrice,
		MaxPrice:     s.MaxPrice,
		MinGap:       s.MinGap,
		HubOnly:      s.HubOnly,
	}
}
