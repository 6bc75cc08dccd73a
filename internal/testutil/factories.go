package testutil

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/guarzo/ctgap/internal/model"
)

// Listing builds a listing for blueprint cardID.
func Listing(id int64, cardID, priceCents int, lang string, hub bool) model.Listing {
	return model.Listing{
		ID:          id,
		BlueprintID: cardID,
		PriceCents:  priceCents,
		Condition:   "Near Mint",
		Language:    lang,
		HubEligible: hub,
	}
}

// Payload wraps listings the way the marketplace keys them.
func Payload(cardID int, listings ...model.Listing) model.ListingsByCard {
	return model.ListingsByCard{strconv.Itoa(cardID): listings}
}

// TestDataFactory provides methods for generating dynamic test data
type TestDataFactory struct {
	rand   *rand.Rand
	nextID int64
}

// NewTestDataFactory creates a new test data factory with a seeded random generator
func NewTestDataFactory(seed int64) *TestDataFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TestDataFactory{
		rand:   rand.New(rand.NewSource(seed)),
		nextID: 1,
	}
}

// GenerateTestToken generates a random test token
func (f *TestDataFactory) GenerateTestToken() string {
	return fmt.Sprintf("test-token-%d", f.rand.Int63())
}

// GenerateTestPrice generates a random price in cents
func (f *TestDataFactory) GenerateTestPrice() int {
	return f.rand.Intn(20000) + 10 // Between 0.10 and 200.10
}

// GenerateTestLanguage picks one of the marketplace language codes.
func (f *TestDataFactory) GenerateTestLanguage() string {
	langs := []string{"en", "jp", "fr", "kr", "zh-cn"}
	return langs[f.rand.Intn(len(langs))]
}

// GenerateTestCard generates a catalog card with a unique id.
func (f *TestDataFactory) GenerateTestCard(rarity string) model.Card {
	names := []string{"Test Luffy", "Test Zoro", "Test Nami", "Test Shanks", "Test Ace"}
	id := int(f.nextID)
	f.nextID++
	return model.Card{
		ID:     id,
		Name:   names[f.rand.Intn(len(names))],
		Rarity: rarity,
	}
}

// GenerateTestListings generates n Near Mint listings for cardID with random
// languages, prices and hub flags.
func (f *TestDataFactory) GenerateTestListings(cardID, n int) []model.Listing {
	out := make([]model.Listing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Listing(f.nextID, cardID, f.GenerateTestPrice(), f.GenerateTestLanguage(), f.rand.Intn(2) == 0))
		f.nextID++
	}
	return out
}
