package sports

import (
	"regexp"
	"strings"

	"github.com/polybets/polybet/internal/domain"
)

var (
	clubSuffixRe   = wordsRe(clubSuffixes, false)
	nicknameRe     = regexp.MustCompile(`(?i)(?:^|\s)(?:` + alternation(americanNicknames) + `)$`)
	americanWordRe = wordsRe(americanLeagues, true)
	americanEvtRe  = wordsRe(americanTitleEvents, true)
	betTypeRe      = regexp.MustCompile(`(?i)(?:\bO/U\b|\btotals?\b|\bdraw\b|\bBTTS\b|\bboth teams to score\b)`)
)

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

func wordsRe(words []string, fold bool) *regexp.Regexp {
	flags := ""
	if fold {
		flags = "(?i)"
	}
	return regexp.MustCompile(flags + `\b(?:` + alternation(words) + `)\b`)
}

func hasSlugToken(slug, token string) bool {
	return strings.Contains("-"+strings.ToLower(slug)+"-", "-"+token+"-")
}

func hasSlugPrefix(slug, prefix string) bool {
	s := strings.ToLower(slug)
	return s == prefix || strings.HasPrefix(s, prefix+"-")
}

// hasSoccerSlug reports whether slug starts with a soccer competition prefix.
func hasSoccerSlug(slug string) bool {
	for _, c := range soccerPrefixes {
		if hasSlugPrefix(slug, c.prefix) {
			return true
		}
	}
	return false
}

// IsAmericanLeagueMarket reports whether a market belongs to the NFL, NBA,
// MLB or NHL: by slug token, by league or championship name in the title, or
// by a "vs." title between two franchise nicknames without club suffixes.
func IsAmericanLeagueMarket(title, slug string) bool {
	for _, l := range americanLeagues {
		if hasSlugToken(slug, l) {
			return true
		}
	}
	if americanWordRe.MatchString(title) || americanEvtRe.MatchString(title) {
		return true
	}
	m := ParseMatchup(title)
	if m == nil || clubSuffixRe.MatchString(m.TeamA) || clubSuffixRe.MatchString(m.TeamB) {
		return false
	}
	return nicknameRe.MatchString(m.TeamA) && nicknameRe.MatchString(m.TeamB)
}

// IsSoccerMarket reports whether a market is a soccer fixture. A soccer
// competition slug prefix, a soccer tag, or a "vs." title carrying a club
// suffix or a soccer bet type all qualify, unless the market shows North
// American league indicators.
func IsSoccerMarket(title, slug string, tags []string) bool {
	if IsAmericanLeagueMarket(title, slug) {
		return false
	}
	if hasSoccerSlug(slug) {
		return true
	}
	for _, t := range tags {
		lower := strings.ToLower(t)
		for _, w := range soccerTagWords {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	if m := ParseMatchup(title); m != nil {
		if clubSuffixRe.MatchString(m.TeamA) || clubSuffixRe.MatchString(m.TeamB) {
			return true
		}
		if betTypeRe.MatchString(title) {
			return true
		}
	}
	if w := ParseSingleTeamWin(title); w != nil && clubSuffixRe.MatchString(w.Team) {
		return true
	}
	return false
}

// CompetitionCandidates returns the competition codes consistent with the
// slug prefix, followed by codes named in the title. Ambiguous prefixes
// yield every plausible code; the list is empty when nothing is recognised.
func CompetitionCandidates(slug, title string) []string {
	out := []string{}
	seen := make(map[string]bool)
	add := func(code string) {
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	for _, c := range soccerPrefixes {
		if hasSlugPrefix(slug, c.prefix) {
			for _, code := range c.codes {
				add(code)
			}
		}
	}
	lower := strings.ToLower(title)
	for _, tc := range titleCompetitions {
		if strings.Contains(lower, tc.phrase) {
			add(tc.code)
		}
	}
	return out
}

// Kind returns the sport kind of a market.
func Kind(title, slug string, tags []string) domain.SportKind {
	switch {
	case IsAmericanLeagueMarket(title, slug):
		return domain.SportKindAmerican
	case IsSoccerMarket(title, slug, tags):
		return domain.SportKindSoccer
	default:
		return domain.SportKindOther
	}
}

// Analyze builds the fixture data of a sports market.
func Analyze(title, slug string, tags []string) *domain.SportsInfo {
	info := &domain.SportsInfo{
		Kind:         Kind(title, slug, tags),
		Matchup:      ParseMatchup(title),
		Competitions: []string{},
	}
	if info.Matchup == nil {
		info.SingleTeam = ParseSingleTeamWin(title)
	}
	if info.Kind == domain.SportKindSoccer {
		info.Competitions = CompetitionCandidates(slug, title)
	}
	return info
}
