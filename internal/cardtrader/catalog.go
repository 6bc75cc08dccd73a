package cardtrader

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/guarzo/ctgap/internal/model"
)

// Blueprint is a catalog entry from the blueprint export endpoint.
type Blueprint struct {
	ID              int            `json:"id"`
	Name            string         `json:"name"`
	CategoryID      int            `json:"category_id"`
	ExpansionID     int            `json:"expansion_id"`
	FixedProperties map[string]any `json:"fixed_properties"`
	Image           *struct {
		URL string `json:"url"`
	} `json:"image"`
	CardMarketIDs []int `json:"card_market_ids"`
}

// Expansions lists every expansion of the given game.
func (c *Client) Expansions(ctx context.Context, gameID int) ([]model.Expansion, error) {
	var raw []model.Expansion
	if err := c.getJSON(ctx, "/expansions", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]model.Expansion, 0, len(raw))
	for _, e := range raw {
		if e.GameID != gameID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ExportBlueprints returns every blueprint of an expansion.
func (c *Client) ExportBlueprints(ctx context.Context, expansionID int) ([]Blueprint, error) {
	if expansionID <= 0 {
		return nil, fmt.Errorf("cardtrader: invalid expansion id %d", expansionID)
	}
	q := url.Values{}
	q.Set("expansion_id", strconv.Itoa(expansionID))

	var out []Blueprint
	if err := c.getJSON(ctx, "/blueprints/export", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CardURL is the public page of a blueprint.
func CardURL(blueprintID int) string {
	return fmt.Sprintf("%s/cards/%d", SiteURL, blueprintID)
}
