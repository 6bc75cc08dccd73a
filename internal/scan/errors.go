package scan

import (
	"context"
	"errors"

	"github.com/guarzo/ctgap/internal/cardtrader"
	"github.com/guarzo/ctgap/internal/catalog"
)

var (
	// ErrScanInProgress is returned when a Scanner is asked to start a scan
	// while another one is still running on it.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrInvalidCriteria wraps validation failures of the scan criteria.
	ErrInvalidCriteria = errors.New("invalid scan criteria")
)

// Error kinds reported by Classify.
const (
	KindAuth           = "auth"
	KindRateLimited    = "rate_limited"
	KindMalformed      = "malformed_response"
	KindCatalogMissing = "catalog_missing"
	KindCancelled      = "cancelled"
	KindTransport      = "transport"
)

// Classify maps an error from a collaborator to its recovery class. Every
// class except cancellation is recovered by skipping the card or expansion.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case cardtrader.IsAuth(err):
		return KindAuth
	case errors.Is(err, cardtrader.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, cardtrader.ErrMalformedResponse):
		return KindMalformed
	case errors.Is(err, catalog.ErrCatalogMissing):
		return KindCatalogMissing
	default:
		return KindTransport
	}
}
