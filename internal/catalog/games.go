package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Game describes how one game's data is laid out on the marketplace.
type Game struct {
	Key              string
	ID               int
	Name             string
	LanguageProperty string
	RarityProperty   string

	// CardCategoryID restricts blueprint exports to single cards.
	// Zero keeps every category.
	CardCategoryID int
}

// Games is the table of supported games keyed by short name.
var Games = map[string]Game{
	"onepiece": {
		Key:              "onepiece",
		ID:               15,
		Name:             "One Piece",
		LanguageProperty: "onepiece_language",
		RarityProperty:   "onepiece_rarity",
		CardCategoryID:   192,
	},
	"pokemon": {
		Key:              "pokemon",
		ID:               5,
		Name:             "Pokémon",
		LanguageProperty: "pokemon_language",
		RarityProperty:   "pokemon_rarity",
	},
	"magic": {
		Key:              "magic",
		ID:               1,
		Name:             "Magic",
		LanguageProperty: "mtg_language",
		RarityProperty:   "mtg_rarity",
	},
}

// LookupGame returns the game registered under key.
func LookupGame(key string) (Game, error) {
	g, ok := Games[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		known := make([]string, 0, len(Games))
		for k := range Games {
			known = append(known, k)
		}
		sort.Strings(known)
		return Game{}, fmt.Errorf("unknown game %q (known: %s)", key, strings.Join(known, ", "))
	}
	return g, nil
}
