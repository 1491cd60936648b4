package sports

// competition maps a slug prefix to the competition codes it may denote.
// Codes follow the football-data.org identifiers.
type competition struct {
	prefix string
	codes  []string
}

// soccerPrefixes is ordered: longer prefixes that share a head with a
// shorter one come first.
var soccerPrefixes = []competition{
	{"premier-league", []string{"PL"}},
	{"epl", []string{"PL"}},
	{"serie-a", []string{"SA", "BSA"}},
	{"sea", []string{"SA"}},
	{"la-liga", []string{"PD"}},
	{"bundesliga", []string{"BL1"}},
	{"ligue-1", []string{"FL1"}},
	{"fl1", []string{"FL1"}},
	{"eredivisie", []string{"DED"}},
	{"primeira-liga", []string{"PPL"}},
	{"elc", []string{"ELC"}},
	{"efl", []string{"ELC"}},
	{"champions-league", []string{"CL"}},
	{"ucl", []string{"CL"}},
	{"europa-league", []string{"EL"}},
	{"uel", []string{"EL"}},
	{"uefa", []string{"CL", "EL", "EC"}},
	{"world-cup", []string{"WC"}},
	{"fifa", []string{"WC"}},
	{"libertadores", []string{"CLI"}},
	{"mls", nil},
	{"afcon", nil},
	{"soccer", nil},
}

// titleCompetitions are competition names that may appear in a title.
var titleCompetitions = []struct {
	phrase string
	code   string
}{
	{"premier league", "PL"},
	{"serie a", "SA"},
	{"la liga", "PD"},
	{"primera division", "PD"},
	{"bundesliga", "BL1"},
	{"ligue 1", "FL1"},
	{"eredivisie", "DED"},
	{"primeira liga", "PPL"},
	{"efl championship", "ELC"},
	{"champions league", "CL"},
	{"europa league", "EL"},
	{"world cup", "WC"},
	{"copa libertadores", "CLI"},
	{"brasileirao", "BSA"},
}

var americanLeagues = []string{"nfl", "nba", "mlb", "nhl"}

// soccerTagWords mark soccer when found in a tag label.
var soccerTagWords = []string{
	"soccer", "premier league", "la liga", "serie a", "bundesliga",
	"ligue 1", "champions league", "eredivisie", "epl", "mls",
}

// clubSuffixes are whole-word club designators used by soccer teams.
var clubSuffixes = []string{
	"FC", "SC", "AFC", "CF", "AC", "SS", "SSC", "CD", "UD", "RCD",
	"FK", "SK", "BK", "IF", "AS", "OGC", "VfB", "VfL", "TSG", "SV", "BSC",
}

// americanNicknames are franchise nicknames across the four North American
// leagues. Multi-word nicknames are listed whole.
var americanNicknames = []string{
	// NFL
	"Cardinals", "Falcons", "Ravens", "Bills", "Panthers", "Bears", "Bengals", "Browns",
	"Cowboys", "Broncos", "Lions", "Packers", "Texans", "Colts", "Jaguars", "Chiefs",
	"Raiders", "Chargers", "Rams", "Dolphins", "Vikings", "Patriots", "Saints", "Giants",
	"Jets", "Eagles", "Steelers", "49ers", "Seahawks", "Buccaneers", "Titans", "Commanders",
	// NBA
	"Hawks", "Celtics", "Nets", "Hornets", "Bulls", "Cavaliers", "Mavericks", "Nuggets",
	"Pistons", "Warriors", "Rockets", "Pacers", "Clippers", "Lakers", "Grizzlies", "Heat",
	"Bucks", "Timberwolves", "Pelicans", "Knicks", "Thunder", "Magic", "76ers", "Suns",
	"Trail Blazers", "Kings", "Spurs", "Raptors", "Jazz", "Wizards",
	// MLB
	"Diamondbacks", "Braves", "Orioles", "Red Sox", "Cubs", "White Sox", "Reds", "Guardians",
	"Rockies", "Tigers", "Astros", "Royals", "Angels", "Dodgers", "Marlins", "Brewers",
	"Twins", "Mets", "Yankees", "Athletics", "Phillies", "Pirates", "Padres", "Mariners",
	"Rays", "Rangers", "Blue Jays", "Nationals",
	// NHL
	"Ducks", "Bruins", "Sabres", "Flames", "Hurricanes", "Blackhawks", "Avalanche",
	"Blue Jackets", "Stars", "Red Wings", "Oilers", "Kings", "Wild", "Canadiens",
	"Predators", "Devils", "Islanders", "Senators", "Flyers", "Penguins", "Sharks",
	"Kraken", "Blues", "Lightning", "Maple Leafs", "Canucks", "Golden Knights",
	"Capitals", "Jets", "Mammoth",
}

// americanTitleEvents name North American championship events.
var americanTitleEvents = []string{"Super Bowl", "Stanley Cup", "World Series", "NBA Finals"}
