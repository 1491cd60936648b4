package sports

import (
	"reflect"
	"slices"
	"testing"

	"github.com/polybets/polybet/internal/domain"
)

func TestParseMatchup(t *testing.T) {
	tests := []struct {
		title string
		want  *domain.Matchup
	}{
		{"Cowboys vs. Commanders", &domain.Matchup{TeamA: "Cowboys", TeamB: "Commanders"}},
		{"Manchester United FC vs. Newcastle United FC: O/U 1.5", &domain.Matchup{TeamA: "Manchester United FC", TeamB: "Newcastle United FC"}},
		{"Will Al Hazem SC win on 2025-12-25?", nil},
		{"Team A vs. Team B (International Friendly)", &domain.Matchup{TeamA: "Team A", TeamB: "Team B"}},
		{"Lakers VS Celtics", &domain.Matchup{TeamA: "Lakers", TeamB: "Celtics"}},
		{"Serie A: Torino vs. Cagliari", &domain.Matchup{TeamA: "Torino", TeamB: "Cagliari"}},
		{"Will Coventry City FC vs. Swansea City AFC end in a draw?", &domain.Matchup{TeamA: "Coventry City FC", TeamB: "Swansea City AFC"}},
		{"Arsenal v Chelsea", nil},
		{"", nil},
		{"vs. Commanders", nil},
		{"Team A vs.Team B", &domain.Matchup{TeamA: "Team A", TeamB: "Team B"}},
		{"Lakers vsCeltics", nil},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := ParseMatchup(tt.title)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseMatchup(%q) = %+v, want %+v", tt.title, got, tt.want)
			}
		})
	}
}

func TestParseSingleTeamWin(t *testing.T) {
	date := func(s string) *string { return &s }
	tests := []struct {
		title string
		want  *domain.SingleTeamWin
	}{
		{"Will Nottingham Forest FC win on 2025-12-27?", &domain.SingleTeamWin{Team: "Nottingham Forest FC", Date: date("2025-12-27")}},
		{"Will Nottm Forest win?", &domain.SingleTeamWin{Team: "Nottm Forest"}},
		{"Will Manchester United FC win on 2025-12-26? O/U 1.5", &domain.SingleTeamWin{Team: "Manchester United FC", Date: date("2025-12-26")}},
		{"Will Al Hazem SC win on 2025-12-25?", &domain.SingleTeamWin{Team: "Al Hazem SC", Date: date("2025-12-25")}},
		{"Will Winnipeg Jets win on Friday?", &domain.SingleTeamWin{Team: "Winnipeg Jets"}},
		{"Cowboys vs. Commanders", nil},
		{"Who will win the league?", nil},
		{"Will Lakers vs. Celtics win?", nil},
		{"Will Edwin Win win?", &domain.SingleTeamWin{Team: "Edwin Win"}},
		{"Will Arsenal WIN?", nil},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := ParseSingleTeamWin(tt.title)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSingleTeamWin(%q) = %+v, want %+v", tt.title, got, tt.want)
			}
		})
	}
}

func TestCompetitionCandidates(t *testing.T) {
	tests := []struct {
		title, slug string
		want        []string
	}{
		{"Torino vs. Cagliari", "sea-tor-cag-2025-12-27-cag", []string{"SA"}},
		{"Real Madrid vs. Valencia", "la-liga-rma-val-2025-12-20", []string{"PD"}},
		{"PSG vs. Lyon", "ligue-1-psg-lyo-2025-12-18", []string{"FL1"}},
		{"Bayern vs. Dortmund", "bundesliga-fcb-bvb-2025-12-19", []string{"BL1"}},
		{"Who wins the group?", "uefa-group-a-winner", []string{"CL", "EL", "EC"}},
		{"Flamengo vs. Palmeiras", "serie-a-fla-pal-2026-05-01", []string{"SA", "BSA"}},
		{"Premier League: Arsenal vs. Chelsea", "arsenal-chelsea", []string{"PL"}},
		{"Dallas Cowboys vs. Washington Commanders", "nfl-dal-was-2025-12-25", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			got := CompetitionCandidates(tt.slug, tt.title)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CompetitionCandidates(%q, %q) = %v, want %v", tt.slug, tt.title, got, tt.want)
			}
		})
	}
}

func TestSoccerAndAmericanGates(t *testing.T) {
	tests := []struct {
		title, slug    string
		tags           []string
		soccer, americ bool
	}{
		{"Manchester United FC vs. Newcastle United FC: O/U 1.5", "epl-mun-new-2025-12-26-total-1pt5", nil, true, false},
		{"Dallas Cowboys vs. Washington Commanders", "nfl-dal-was-2025-12-25", nil, false, true},
		{"Torino vs. Cagliari", "sea-tor-cag-2025-12-27-cag", nil, true, false},
		{"Real Madrid vs. Valencia", "la-liga-rma-val-2025-12-20", nil, true, false},
		{"PSG vs. Lyon", "ligue-1-psg-lyo-2025-12-18", nil, true, false},
		{"Bayern vs. Dortmund", "bundesliga-fcb-bvb-2025-12-19", nil, true, false},
		{"Cowboys vs. Commanders", "", nil, false, true},
		{"Lakers vs. Celtics: O/U 220.5", "", nil, false, true},
		{"Rangers vs. Celtic", "", []string{"Soccer"}, true, false},
		{"Will Al Hazem SC win on 2025-12-25?", "", nil, true, false},
		{"Who wins the Super Bowl?", "super-bowl-champion", nil, false, true},
		{"Will it rain in London?", "london-rain", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			soccer := IsSoccerMarket(tt.title, tt.slug, tt.tags)
			american := IsAmericanLeagueMarket(tt.title, tt.slug)
			if soccer != tt.soccer {
				t.Errorf("IsSoccerMarket = %v, want %v", soccer, tt.soccer)
			}
			if american != tt.americ {
				t.Errorf("IsAmericanLeagueMarket = %v, want %v", american, tt.americ)
			}
			if soccer && american {
				t.Errorf("both gates true for %q / %q", tt.title, tt.slug)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	info := Analyze("Manchester United FC vs. Newcastle United FC: O/U 1.5", "epl-mun-new-2025-12-26-total-1pt5", nil)
	if info.Kind != domain.SportKindSoccer {
		t.Fatalf("Kind = %s, want soccer", info.Kind)
	}
	if info.Matchup == nil || info.Matchup.TeamB != "Newcastle United FC" {
		t.Fatalf("Matchup = %+v", info.Matchup)
	}
	if info.SingleTeam != nil {
		t.Errorf("SingleTeam = %+v, want nil", info.SingleTeam)
	}
	if !slices.Contains(info.Competitions, "PL") {
		t.Errorf("Competitions = %v, want PL", info.Competitions)
	}

	single := Analyze("Will Nottm Forest win?", "epl-nfo-2025-12-27", nil)
	if single.Matchup != nil || single.SingleTeam == nil || single.SingleTeam.Team != "Nottm Forest" {
		t.Errorf("single team analysis = %+v", single)
	}

	american := Analyze("Dallas Cowboys vs. Washington Commanders", "nfl-dal-was-2025-12-25", nil)
	if american.Kind != domain.SportKindAmerican || len(american.Competitions) != 0 {
		t.Errorf("american analysis = %+v", american)
	}
}

func TestIdempotent(t *testing.T) {
	title, slug := "Will Manchester United FC win on 2025-12-26? O/U 1.5", "epl-mun-2025-12-26"
	first := Analyze(title, slug, nil)
	for i := 0; i < 3; i++ {
		if got := Analyze(title, slug, nil); !reflect.DeepEqual(got, first) {
			t.Fatalf("Analyze() changed between calls: %+v vs %+v", got, first)
		}
	}
}
