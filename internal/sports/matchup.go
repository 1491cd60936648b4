// Package sports extracts fixture structure from sports market titles and
// slugs: two-team matchups, single-team "will X win" markets, the soccer
// versus North American league gate and competition code candidates.
//
// All functions are pure and safe for concurrent use.
package sports

import (
	"regexp"
	"strings"

	"github.com/polybets/polybet/internal/domain"
)

var (
	vsRe         = regexp.MustCompile(`(?i)^(.+?)\s+vs(?:\.\s*|\s+)(.+)$`)
	singleWinRe  = regexp.MustCompile(`^(?i:will)\s+(.+?)\s+win\b(?:\s+on\s+(\d{4}-\d{2}-\d{2})\b)?`)
	leadingWill  = regexp.MustCompile(`(?i)^will\s+`)
	trailingDraw = regexp.MustCompile(`(?i)\s+(?:end\s+in\s+a\s+draw|draw)\s*$`)
)

// ParseMatchup extracts the two teams of a "<A> vs. <B>" title. Trailing
// qualifiers introduced by a colon or parenthesis are dropped. It returns nil
// when the title has no vs separator.
func ParseMatchup(title string) *domain.Matchup {
	m := vsRe.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return nil
	}
	a := cleanTeamA(m[1])
	b := cleanTeamB(m[2])
	if a == "" || b == "" {
		return nil
	}
	return &domain.Matchup{TeamA: a, TeamB: b}
}

func cleanTeamA(s string) string {
	// "Serie A: Torino vs. Cagliari" keeps only what follows the colon.
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	s = leadingWill.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.TrimSpace(s)
}

func cleanTeamB(s string) string {
	s = stripQualifier(s)
	s = strings.TrimRight(s, "?! ")
	s = trailingDraw.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripQualifier cuts s at the first colon or opening parenthesis.
func stripQualifier(s string) string {
	if i := strings.IndexAny(s, ":("); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// ParseSingleTeamWin extracts the team and optional ISO date from
// "Will <Team> win[ on YYYY-MM-DD]?" titles. Anything after the date is
// ignored. It returns nil when the title lacks the "Will … win" shape or
// names two teams.
func ParseSingleTeamWin(title string) *domain.SingleTeamWin {
	m := singleWinRe.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return nil
	}
	team := strings.TrimSpace(m[1])
	if team == "" || vsRe.MatchString(team) {
		return nil
	}
	out := &domain.SingleTeamWin{Team: team}
	if m[2] != "" {
		d := m[2]
		out.Date = &d
	}
	return out
}
