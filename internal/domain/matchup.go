package domain

// SportKind distinguishes soccer fixtures from North American league games.
type SportKind string

const (
	SportKindSoccer   SportKind = "soccer"
	SportKindAmerican SportKind = "american"
	SportKindOther    SportKind = "other"
)

// Matchup is a two-team fixture parsed from a market title.
type Matchup struct {
	TeamA string `json:"teamA"`
	TeamB string `json:"teamB"`
}

// SingleTeamWin is a "will X win" market. Date is nil when the title does
// not name a day.
type SingleTeamWin struct {
	Team string  `json:"team"`
	Date *string `json:"date"`
}

// SportsInfo is the structured fixture data attached to a sports market.
type SportsInfo struct {
	Kind         SportKind      `json:"kind"`
	Matchup      *Matchup       `json:"matchup,omitempty"`
	SingleTeam   *SingleTeamWin `json:"singleTeam,omitempty"`
	Competitions []string       `json:"competitions"`
}
