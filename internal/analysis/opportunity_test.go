package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/ctgap/internal/model"
	"github.com/guarzo/ctgap/internal/testutil"
)

const cardID = 4242

func listing(id int64, cents int, lang string, hub bool) model.Listing {
	return testutil.Listing(id, cardID, cents, lang, hub)
}

func TestAnalyze_TwoListingScenario(t *testing.T) {
	payload := testutil.Payload(cardID,
		listing(1, 1000, "en", true),
		listing(2, 2000, "en", true),
	)

	signals := Analyze(payload, cardID, []string{"en"}, false)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, "en", sig.Language)
	assert.Equal(t, 10.00, sig.CheapestPrice)
	assert.Equal(t, 20.00, sig.SecondPrice)
	assert.Equal(t, 10.00, sig.GapAbs)
	assert.Equal(t, 100.0, sig.GapPct)
	assert.Equal(t, int64(1), sig.CheapestListingID)
	assert.Equal(t, "https://www.cardtrader.com/cards/4242", sig.ReferenceURL)
}

func TestAnalyze_NoHubSurcharge(t *testing.T) {
	payload := testutil.Payload(cardID,
		listing(1, 700, "en", false),
		listing(2, 2000, "en", true),
	)

	signals := Analyze(payload, cardID, []string{"en"}, false)
	require.Len(t, signals, 1)
	assert.Equal(t, 10.00, signals[0].CheapestPrice)
	assert.Equal(t, int64(1), signals[0].CheapestListingID)

	assert.Equal(t, "10", EffectivePrice(listing(3, 700, "en", false)).String())
	assert.Equal(t, "7", EffectivePrice(listing(3, 700, "en", true)).String())
}

func TestAnalyze_SurchargeChangesRanking(t *testing.T) {
	// 8.00 + 3.00 surcharge ranks behind a 10.00 hub listing
	payload := testutil.Payload(cardID,
		listing(1, 800, "jp", false),
		listing(2, 1000, "jp", true),
		listing(3, 1500, "jp", true),
	)

	signals := Analyze(payload, cardID, []string{"jp"}, false)
	require.Len(t, signals, 1)
	assert.Equal(t, int64(2), signals[0].CheapestListingID)
	assert.Equal(t, 10.00, signals[0].CheapestPrice)
	assert.Equal(t, 11.00, signals[0].SecondPrice)
	assert.Equal(t, 1.00, signals[0].GapAbs)
	assert.Equal(t, 10.0, signals[0].GapPct)
}

func TestAnalyze_HubOnlyExcludesNonHub(t *testing.T) {
	payload := testutil.Payload(cardID,
		listing(1, 100, "en", false),
		listing(2, 1000, "en", true),
		listing(3, 1200, "en", true),
		listing(4, 200, "fr", false),
		listing(5, 300, "fr", true),
	)

	signals := Analyze(payload, cardID, []string{"en", "fr"}, true)
	require.Len(t, signals, 1, "fr keeps only one hub listing")
	assert.Equal(t, "en", signals[0].Language)
	assert.Equal(t, int64(2), signals[0].CheapestListingID)
	assert.Equal(t, 10.00, signals[0].CheapestPrice)
	assert.Equal(t, 12.00, signals[0].SecondPrice)
}

func TestAnalyze_ZeroCheapestPrice(t *testing.T) {
	payload := testutil.Payload(cardID,
		listing(1, 0, "en", true),
		listing(2, 500, "en", true),
	)

	signals := Analyze(payload, cardID, []string{"en"}, false)
	require.Len(t, signals, 1)
	assert.Equal(t, 0.0, signals[0].CheapestPrice)
	assert.Equal(t, 5.00, signals[0].GapAbs)
	assert.Equal(t, 0.0, signals[0].GapPct)
}

func TestAnalyze_Rounding(t *testing.T) {
	payload := testutil.Payload(cardID,
		listing(1, 1234, "en", true),
		listing(2, 1999, "en", false),
	)

	signals := Analyze(payload, cardID, []string{"en"}, false)
	require.Len(t, signals, 1)
	assert.Equal(t, 12.34, signals[0].CheapestPrice)
	assert.Equal(t, 22.99, signals[0].SecondPrice)
	assert.Equal(t, 10.65, signals[0].GapAbs)
	assert.Equal(t, 86.3, signals[0].GapPct)
}

func TestAnalyze_TieKeepsResponseOrder(t *testing.T) {
	payload := testutil.Payload(cardID,
		listing(9, 1500, "en", true),
		listing(5, 1000, "en", true),
		listing(6, 1000, "en", true),
	)

	signals := Analyze(payload, cardID, []string{"en"}, false)
	require.Len(t, signals, 1)
	assert.Equal(t, int64(5), signals[0].CheapestListingID)
	assert.Equal(t, 0.0, signals[0].GapAbs)
	assert.Equal(t, 0.0, signals[0].GapPct)
}

func TestAnalyze_FiltersAndOrder(t *testing.T) {
	played := listing(7, 100, "en", true)
	played.Condition = "Played"

	payload := testutil.Payload(cardID,
		listing(1, 900, "JP", true),
		played,
		listing(2, 1000, "en", true),
		listing(3, 1100, "jp", true),
		listing(4, 1200, "de", true),
		listing(5, 1300, "de", true),
		listing(6, 1300, "en", true),
		listing(8, 4000, "kr", true),
	)

	signals := Analyze(payload, cardID, []string{"EN", "jp", "kr"}, false)
	require.Len(t, signals, 2)

	assert.Equal(t, "jp", signals[0].Language, "first encountered language first")
	assert.Equal(t, 9.00, signals[0].CheapestPrice)
	assert.Equal(t, 11.00, signals[0].SecondPrice)

	assert.Equal(t, "en", signals[1].Language)
	assert.Equal(t, int64(2), signals[1].CheapestListingID, "played listing is not eligible")
	assert.Equal(t, 13.00, signals[1].SecondPrice)
}

func TestAnalyze_EmptyInputs(t *testing.T) {
	tests := []struct {
		name     string
		listings model.ListingsByCard
	}{
		{name: "nil payload", listings: nil},
		{name: "empty payload", listings: model.ListingsByCard{}},
		{name: "other card only", listings: testutil.Payload(cardID+1, listing(1, 100, "en", true), listing(2, 200, "en", true))},
		{name: "single listing", listings: testutil.Payload(cardID, listing(1, 100, "en", true))},
		{name: "no accepted language", listings: testutil.Payload(cardID, listing(1, 100, "fr", true), listing(2, 200, "fr", true))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Analyze(tt.listings, cardID, []string{"en"}, false))
		})
	}
}

func TestAnalyze_Properties(t *testing.T) {
	factory := testutil.NewTestDataFactory(7)
	langs := []string{"en", "jp", "fr", "kr", "zh-cn"}

	for i := 0; i < 50; i++ {
		payload := testutil.Payload(cardID, factory.GenerateTestListings(cardID, 30)...)

		first := Analyze(payload, cardID, langs, false)
		second := Analyze(payload, cardID, langs, false)
		assert.Equal(t, first, second, "analysis must be deterministic")

		for _, sig := range first {
			assert.LessOrEqual(t, sig.CheapestPrice, sig.SecondPrice)
			assert.GreaterOrEqual(t, sig.GapAbs, 0.0)
		}

		hubOnly := Analyze(payload, cardID, langs, true)
		nonHub := make(map[int64]bool)
		listings, _ := payload.For(cardID)
		for _, l := range listings {
			if !l.HubEligible {
				nonHub[l.ID] = true
			}
		}
		for _, sig := range hubOnly {
			assert.False(t, nonHub[sig.CheapestListingID], "hub-only signal reported a non-hub listing")
		}
	}
}

func TestPasses(t *testing.T) {
	sig := model.LanguageSignal{CheapestPrice: 10, SecondPrice: 20, GapAbs: 10, GapPct: 100}
	base := model.Criteria{MinPrice: 0, MaxPrice: 1000, MinGap: 1}

	tests := []struct {
		name   string
		sig    model.LanguageSignal
		mutate func(c *model.Criteria)
		want   bool
	}{
		{name: "passes", sig: sig, want: true},
		{name: "second above max", sig: sig, mutate: func(c *model.Criteria) { c.MaxPrice = 15 }, want: false},
		{name: "second equals max", sig: sig, mutate: func(c *model.Criteria) { c.MaxPrice = 20 }, want: true},
		{name: "cheapest below min", sig: sig, mutate: func(c *model.Criteria) { c.MinPrice = 10.01 }, want: false},
		{name: "cheapest equals min", sig: sig, mutate: func(c *model.Criteria) { c.MinPrice = 10 }, want: true},
		{name: "gap below min", sig: sig, mutate: func(c *model.Criteria) { c.MinGap = 10.5 }, want: false},
		{name: "pct at floor", sig: model.LanguageSignal{CheapestPrice: 10, SecondPrice: 12.5, GapAbs: 2.5, GapPct: 25}, want: false},
		{name: "pct above floor", sig: model.LanguageSignal{CheapestPrice: 10, SecondPrice: 12.51, GapAbs: 2.51, GapPct: 25.1}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			assert.Equal(t, tt.want, Passes(tt.sig, c))
		})
	}
}

func TestLanguageName(t *testing.T) {
	tests := map[string]string{
		"en":    "English",
		"jp":    "Japanese",
		"fr":    "French",
		"kr":    "Korean",
		"zh-cn": "Chinese",
		"ZH-CN": "Chinese",
		"de":    "DE",
		"pt-br": "PT-BR",
	}
	for code, want := range tests {
		assert.Equal(t, want, LanguageName(code), code)
	}
	assert.Equal(t, "Monkey D. Luffy (Japanese)", Label("Monkey D. Luffy", "jp"))
}
