// Package classify assigns prediction markets to a topical category using an
// ordered chain of named rules over the market's title, slug, category and
// tag labels. Every function in this package is pure and safe for
// concurrent use.
package classify

import (
	"strings"

	"github.com/polybets/polybet/internal/domain"
)

// Decision is the outcome of classifying a market: the category and the name
// of the rule that produced it.
type Decision struct {
	Category string `json:"category"`
	Rule     string `json:"rule"`
}

// Fallback rule names.
const (
	RuleFallbackCategory      = "fallback.category"
	RuleFallbackTag           = "fallback.tag"
	RuleFallbackSlug          = "fallback.slug_guess"
	RuleFallbackUncategorized = "fallback.uncategorized"
)

// Resolve returns the category of m. It never returns an empty string.
func Resolve(m domain.RawMarket) string {
	return Explain(m).Category
}

// Explain classifies m and reports which rule decided the category.
func Explain(m domain.RawMarket) Decision {
	f := newFields(m)
	for _, r := range Rules {
		if r.match(f) {
			return Decision{Category: r.Category, Rule: r.Name}
		}
	}
	return fallback(m, f)
}

func fallback(m domain.RawMarket, f fields) Decision {
	var d Decision
	switch {
	case strings.TrimSpace(m.Category) != "":
		d = Decision{Category: strings.TrimSpace(m.Category), Rule: RuleFallbackCategory}
	case len(f.tags) > 0 && strings.TrimSpace(f.tags[0]) != "":
		d = Decision{Category: strings.TrimSpace(f.tags[0]), Rule: RuleFallbackTag}
	default:
		if guess := InferFromSlug(m.Slug); guess != "" {
			d = Decision{Category: guess, Rule: RuleFallbackSlug}
		} else {
			d = Decision{Category: domain.CategoryUncategorized, Rule: RuleFallbackUncategorized}
		}
	}
	d.Category = strings.ReplaceAll(d.Category, "-", " ")
	if strings.TrimSpace(d.Category) == "" {
		// A category made only of hyphens collapses to blanks.
		d = Decision{Category: domain.CategoryUncategorized, Rule: RuleFallbackUncategorized}
	}
	return d
}

// InferFromSlug guesses a category from a slug alone. It returns "" when
// nothing in the slug is recognised.
func InferFromSlug(slug string) string {
	if slug == "" {
		return ""
	}
	if HasCryptoAsset(slug) {
		return domain.CategoryCrypto
	}
	s := strings.ToLower(slug)
	switch {
	case containsAny(s, slugPoliticsWords):
		return domain.CategoryPolitics
	case containsAny(s, slugEconomyWords):
		return domain.CategoryEconomy
	case HasAnySlugToken(s, SportsSlugTokens):
		return domain.CategorySports
	}
	return ""
}
