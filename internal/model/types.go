package model

import "strconv"

// Expansion is a card set as listed by the marketplace.
type Expansion struct {
	ID     int    `json:"id"`
	GameID int    `json:"game_id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
}

// Card is a blueprint record from the local catalog. Immutable during a scan.
type Card struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Rarity          string `json:"rarity"`
	CollectorNumber string `json:"collector_number,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	CardURL         string `json:"card_url,omitempty"`
}

// Listing is a single marketplace product for a blueprint.
// Language is lowercase; empty when the product carries no language property.
type Listing struct {
	ID          int64  `json:"id"`
	BlueprintID int    `json:"blueprint_id"`
	PriceCents  int    `json:"price_cents"`
	Condition   string `json:"condition"`
	Language    string `json:"language"`
	HubEligible bool   `json:"can_sell_via_hub"`
}

// ListingsByCard mirrors the marketplace payload: stringified blueprint id
// to the listings for that blueprint.
type ListingsByCard map[string][]Listing

// For returns the listings stored under the given blueprint id.
func (l ListingsByCard) For(cardID int) ([]Listing, bool) {
	if l == nil {
		return nil, false
	}
	listings, ok := l[strconv.Itoa(cardID)]
	return listings, ok
}

// LanguageSignal is the price gap between the two cheapest eligible
// listings of one card in one language. Price fields are rounded to cents.
type LanguageSignal struct {
	Language          string  `json:"language"`
	CheapestPrice     float64 `json:"price1"`
	SecondPrice       float64 `json:"price2"`
	GapAbs            float64 `json:"diff_abs"`
	GapPct            float64 `json:"diff_pct"`
	ReferenceURL      string  `json:"url"`
	CheapestListingID int64   `json:"product_id"`
}

// Criteria is the immutable configuration of one scan.
type Criteria struct {
	ExpansionIDs []int    `json:"expansion_ids" validate:"required,min=1,dive,gt=0"`
	Languages    []string `json:"languages" validate:"required,min=1,dive,required"`
	Rarities     []string `json:"rarities" validate:"required,min=1,dive,required"`
	MinPrice     float64  `json:"min_price" validate:"gte=0"`
	MaxPrice     float64  `json:"max_price" validate:"gtefield=MinPrice"`
	MinGap       float64  `json:"min_gap" validate:"gte=0"`
	HubOnly      bool     `json:"hub_only"`
}

// AcceptsRarity reports whether a card rarity is part of the selection.
// Rarity labels are matched exactly.
func (c Criteria) AcceptsRarity(rarity string) bool {
	for _, r := range c.Rarities {
		if r == rarity {
			return true
		}
	}
	return false
}

// Match is an opportunity that passed every threshold.
type Match struct {
	Label             string  `json:"label"`
	CardID            int     `json:"card_id"`
	CardName          string  `json:"card_name"`
	ExpansionID       int     `json:"expansion_id"`
	Language          string  `json:"language"`
	ImageURL          string  `json:"image_url,omitempty"`
	ReferenceURL      string  `json:"reference_url"`
	CheapestPrice     float64 `json:"cheapest_price"`
	SecondPrice       float64 `json:"second_price"`
	GapPct            float64 `json:"gap_pct"`
	GapAbs            float64 `json:"gap_abs"`
	CheapestListingID int64   `json:"cheapest_listing_id"`
}

// EventKind distinguishes match events from progress-only ticks.
type EventKind int

const (
	EventProgress EventKind = iota
	EventMatch
)

func (k EventKind) String() string {
	switch k {
	case EventMatch:
		return "match"
	case EventProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Event is the unit a scan emits. Match is nil for progress ticks.
type Event struct {
	Kind          EventKind
	Match         *Match
	CardsAnalyzed int
}

// IsMatch reports whether the event carries an opportunity.
func (e Event) IsMatch() bool {
	return e.Kind == EventMatch && e.Match != nil
}
