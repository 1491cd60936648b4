package classify

import (
	"strings"

	"github.com/polybets/polybet/internal/domain"
)

// fields is the normalised view of a market the rules evaluate.
type fields struct {
	title     string
	slug      string
	category  string
	tags      []string
	lowerTags []string
}

func newFields(m domain.RawMarket) fields {
	tags := m.TagLabels()
	lower := make([]string, len(tags))
	for i, t := range tags {
		lower[i] = strings.ToLower(t)
	}
	return fields{
		title:     m.DisplayTitle(),
		slug:      m.Slug,
		category:  m.Category,
		tags:      tags,
		lowerTags: lower,
	}
}

func (f fields) anyTagContains(words ...string) bool {
	for _, t := range f.lowerTags {
		if containsAny(t, words) {
			return true
		}
	}
	return false
}

// Rule is a named predicate that assigns Category when it holds.
type Rule struct {
	Name     string
	Category string
	match    func(fields) bool
}

// Rules is the ordered rule chain. The first rule that holds decides the
// category; rules of one category are contiguous so the category order is
// crypto, tech, politics, sports.
var Rules = []Rule{
	{"crypto.tag_label", domain.CategoryCrypto, cryptoTagLabel},
	{"crypto.category_asset", domain.CategoryCrypto, cryptoCategoryAsset},
	{"crypto.tag_asset", domain.CategoryCrypto, cryptoTagAsset},
	{"crypto.title_or_slug_asset", domain.CategoryCrypto, cryptoTitleOrSlugAsset},
	{"crypto.up_or_down", domain.CategoryCrypto, cryptoUpOrDown},

	{"tech.tag_label", domain.CategoryTech, techTagLabel},
	{"tech.finance_tag_asset", domain.CategoryTech, techFinanceTagAsset},
	{"tech.asset", domain.CategoryTech, techAsset},

	{"politics.title_cue", domain.CategoryPolitics, politicsTitleCue},
	{"politics.slug", domain.CategoryPolitics, politicsSlug},
	{"politics.category", domain.CategoryPolitics, politicsCategory},
	{"politics.tag_label", domain.CategoryPolitics, politicsTagLabel},

	{"sports.tag_label", domain.CategorySports, sportsTagLabel},
	{"sports.spread_cue", domain.CategorySports, sportsSpreadCue},
	{"sports.games_category", domain.CategorySports, sportsGamesCategory},
	{"sports.team_win", domain.CategorySports, sportsTeamWin},
	{"sports.slug_league", domain.CategorySports, sportsSlugLeague},
	{"sports.title_league", domain.CategorySports, sportsTitleLeague},
}

func cryptoTagLabel(f fields) bool { return f.anyTagContains("crypto") }

func cryptoCategoryAsset(f fields) bool { return HasCryptoAsset(f.category) }

func cryptoTagAsset(f fields) bool {
	for _, t := range f.tags {
		if HasCryptoAsset(t) {
			return true
		}
	}
	return false
}

func cryptoTitleOrSlugAsset(f fields) bool {
	return HasCryptoAsset(f.title) || HasCryptoAsset(f.slug)
}

func cryptoUpOrDown(f fields) bool {
	return upOrDownRe.MatchString(f.title) && HasCryptoAsset(f.title)
}

func techTagLabel(f fields) bool { return f.anyTagContains("tech") }

func techHasAsset(f fields) bool {
	if hasTechAsset(f.title, false) || hasTechAsset(f.slug, true) || hasTechAsset(f.category, false) {
		return true
	}
	for _, t := range f.tags {
		if hasTechAsset(t, false) {
			return true
		}
	}
	return false
}

func techFinanceTagAsset(f fields) bool {
	return f.anyTagContains(financeTagWords...) && techHasAsset(f)
}

func techAsset(f fields) bool { return techHasAsset(f) }

func politicsTitleCue(f fields) bool { return politicsCueRe.MatchString(f.title) }

func politicsSlug(f fields) bool {
	return containsAny(strings.ToLower(f.slug), []string{"election", "vote"})
}

func politicsCategory(f fields) bool {
	return strings.Contains(strings.ToLower(f.category), "election") || politicRe.MatchString(f.category)
}

func politicsTagLabel(f fields) bool { return f.anyTagContains("election", "politic") }

func sportsTagLabel(f fields) bool { return f.anyTagContains("sports") }

func sportsSpreadCue(f fields) bool {
	return spreadCueRe.MatchString(f.title) && HasAnySlugToken(f.slug, SportsSlugTokens)
}

func sportsGamesCategory(f fields) bool {
	return strings.ToLower(f.category) == "games" && hasMatchCue(f.title)
}

func sportsTeamWin(f fields) bool {
	return teamWinRe.MatchString(f.title) && hasMatchCue(f.title) && !politicsCueRe.MatchString(f.title)
}

func sportsSlugLeague(f fields) bool { return HasAnySlugToken(f.slug, SportsSlugTokens) }

func sportsTitleLeague(f fields) bool {
	if !hasMatchCue(f.title) {
		return false
	}
	for _, w := range titleLeagueWords {
		if hasWholeWord(f.title, w) {
			return true
		}
	}
	return false
}
