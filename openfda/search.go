package openfda

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/farmavigil/farmavigil-api/logging"
	"github.com/farmavigil/farmavigil-api/openfda/entities"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTerm lowercases a free-text term, trims it and strips diacritics
// ("Paracétamol" becomes "paracetamol"); openFDA product names are unaccented.
func NormalizeTerm(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, term)
	if err != nil {
		return term
	}
	return folded
}

// SearchQueries returns the query formulations tried for a term, in order.
func SearchQueries(term string) []string {
	return []string{
		"patient.drug.medicinalproduct:" + term,
		"patient.drug.medicinalproduct:" + term + "*",
		"patient.drug.drugindication:" + term,
		`patient.drug.medicinalproduct:"` + term + `"`,
	}
}

// SearchEvents tries each formulation from SearchQueries and returns the first non-empty
// result set; results are never merged across formulations. An empty term yields an
// empty list without a request. An error is returned only when every formulation failed.
func (c *Client) SearchEvents(ctx context.Context, term string, limit int) ([]entities.Event, error) {
	term = NormalizeTerm(term)
	if term == "" {
		return []entities.Event{}, nil
	}

	var lastErr error
	answered := false

	for _, search := range SearchQueries(term) {
		query := url.Values{}
		query.Set("search", search)
		query.Set("limit", strconv.Itoa(limit))

		events, err := fetch[entities.Event](ctx, c, "search", eventPath, query)
		switch {
		case errors.Is(err, ErrNoResults):
			answered = true
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.Warn("Search formulation failed", "search", search, "error", err)
			lastErr = err
			continue
		}

		answered = true
		if len(events) > 0 {
			return events, nil
		}
	}

	if !answered && lastErr != nil {
		return nil, lastErr
	}
	return []entities.Event{}, nil
}
