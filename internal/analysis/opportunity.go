package analysis

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/guarzo/ctgap/internal/cardtrader"
	"github.com/guarzo/ctgap/internal/model"
)

// Policy constants. Neither has a configuration path.
var (
	// NoHubSurcharge is added to listings that cannot ship through the hub,
	// approximating the extra cost of a separate purchase.
	NoHubSurcharge = decimal.NewFromInt(3)
)

// MinGapPct is the percentage gap a signal must strictly exceed to count
// as a mispricing rather than noise.
const MinGapPct = 25.0

type candidate struct {
	price   decimal.Decimal
	listing model.Listing
}

// EffectivePrice is the listing price in currency units, plus the surcharge
// when the seller cannot ship through the hub.
func EffectivePrice(l model.Listing) decimal.Decimal {
	price := decimal.New(int64(l.PriceCents), -2)
	if !l.HubEligible {
		price = price.Add(NoHubSurcharge)
	}
	return price
}

// Analyze groups the Near Mint listings of cardID by language and returns,
// for every accepted language with at least two eligible listings, the gap
// between its two cheapest effective prices. Signals come back in the order
// their language was first seen. Equal prices keep response order, so the
// earliest such listing is reported as cheapest.
func Analyze(listings model.ListingsByCard, cardID int, languages []string, hubOnly bool) []model.LanguageSignal {
	products, ok := listings.For(cardID)
	if !ok || len(products) == 0 {
		return nil
	}

	accepted := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		accepted[strings.ToLower(l)] = struct{}{}
	}

	var order []string
	buckets := make(map[string][]candidate)
	for _, p := range products {
		if p.Condition != cardtrader.ConditionNearMint {
			continue
		}
		if hubOnly && !p.HubEligible {
			continue
		}
		lang := strings.ToLower(p.Language)
		if _, ok := accepted[lang]; !ok {
			continue
		}
		if _, seen := buckets[lang]; !seen {
			order = append(order, lang)
		}
		buckets[lang] = append(buckets[lang], candidate{price: EffectivePrice(p), listing: p})
	}

	var signals []model.LanguageSignal
	for _, lang := range order {
		if sig, ok := signalFor(lang, cardID, buckets[lang]); ok {
			signals = append(signals, sig)
		}
	}
	return signals
}

func signalFor(lang string, cardID int, bucket []candidate) (model.LanguageSignal, bool) {
	if len(bucket) < 2 {
		return model.LanguageSignal{}, false
	}

	ranked := make([]candidate, len(bucket))
	copy(ranked, bucket)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].price.LessThan(ranked[j].price)
	})

	p1, p2 := ranked[0].price, ranked[1].price
	gap := p2.Sub(p1)
	pct := decimal.Zero
	if !p1.IsZero() {
		pct = gap.Div(p1).Mul(decimal.NewFromInt(100))
	}

	return model.LanguageSignal{
		Language:          lang,
		CheapestPrice:     round2(p1),
		SecondPrice:       round2(p2),
		GapAbs:            round2(gap),
		GapPct:            round2(pct),
		ReferenceURL:      cardtrader.CardURL(cardID),
		CheapestListingID: ranked[0].listing.ID,
	}, true
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// Passes applies the scan thresholds to a signal: cheapest at or above the
// minimum price, second cheapest at or below the maximum, absolute gap at
// least the minimum gap, and a percentage gap strictly above MinGapPct.
func Passes(sig model.LanguageSignal, c model.Criteria) bool {
	return sig.CheapestPrice >= c.MinPrice &&
		sig.SecondPrice <= c.MaxPrice &&
		sig.GapAbs >= c.MinGap &&
		sig.GapPct > MinGapPct
}
