package cardtrader

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/guarzo/ctgap/internal/model"
)

const (
	ConditionNearMint = "Near Mint"

	listingsPageSize = 100
	listingsSortBy   = "price_asc"
)

type rawProduct struct {
	ID             int64          `json:"id"`
	BlueprintID    int            `json:"blueprint_id"`
	PriceCents     *int           `json:"price_cents"`
	PropertiesHash map[string]any `json:"properties_hash"`
	User           *struct {
		CanSellViaHub bool `json:"can_sell_via_hub"`
	} `json:"user"`
}

// FetchListings returns the Near Mint marketplace listings for one blueprint,
// cheapest first, keyed by stringified blueprint id as the API returns them.
// Products without a price are dropped.
func (c *Client) FetchListings(ctx context.Context, blueprintID int) (model.ListingsByCard, error) {
	if blueprintID <= 0 {
		return nil, fmt.Errorf("cardtrader: invalid blueprint id %d", blueprintID)
	}

	q := url.Values{}
	q.Set("blueprint_id", strconv.Itoa(blueprintID))
	q.Set("properties[condition]", ConditionNearMint)
	q.Set("per_page", strconv.Itoa(listingsPageSize))
	q.Set("sort_by", listingsSortBy)

	var raw map[string][]rawProduct
	if err := c.getJSON(ctx, "/marketplace/products", q, &raw); err != nil {
		return nil, err
	}

	out := make(model.ListingsByCard, len(raw))
	for key, products := range raw {
		id, _ := strconv.Atoi(key)
		listings := make([]model.Listing, 0, len(products))
		for _, p := range products {
			if p.PriceCents == nil {
				continue
			}
			l := model.Listing{
				ID:          p.ID,
				BlueprintID: p.BlueprintID,
				PriceCents:  *p.PriceCents,
				Condition:   stringProp(p.PropertiesHash, "condition"),
				Language:    strings.ToLower(languageOf(p.PropertiesHash, c.langProp)),
			}
			if l.BlueprintID == 0 {
				l.BlueprintID = id
			}
			if p.User != nil {
				l.HubEligible = p.User.CanSellViaHub
			}
			listings = append(listings, l)
		}
		out[key] = listings
	}
	return out, nil
}

// languageOf reads the game's language property. When it is missing the
// first "*_language" key in sorted order is used instead.
func languageOf(props map[string]any, key string) string {
	if key != "" {
		if v := stringProp(props, key); v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		if strings.HasSuffix(k, "_language") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := stringProp(props, k); v != "" {
			return v
		}
	}
	return ""
}

func stringProp(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	s, _ := props[key].(string)
	return s
}
