package classify

import "regexp"

var (
	cryptoTickers  = []string{"BTC", "ETH", "SOL", "XRP"}
	cryptoKeywords = []string{"bitcoin", "ethereum", "solana", "ripple"}

	techTickers  = []string{"NFLX", "AAPL", "MSFT", "GOOGL", "AMZN", "META", "NVDA", "TSLA"}
	techKeywords = []string{
		"netflix", "apple", "microsoft", "google", "alphabet",
		"amazon", "meta", "facebook", "nvidia", "tesla",
	}

	financeTagWords  = []string{"stocks", "markets", "finance"}
	titleLeagueWords = []string{"nfl", "nba", "mlb", "nhl"}

	// SportsSlugTokens are hyphen-delimited slug segments that mark a sports
	// market. The tail after "sea" lists the soccer competition prefixes the
	// sports parser recognises.
	SportsSlugTokens = []string{
		"nfl", "nba", "mlb", "nhl",
		"epl", "premier-league", "ucl", "champions-league",
		"fifa", "uefa", "afcon", "world-cup", "f1", "soccer", "sea",
		"elc", "efl", "la-liga", "bundesliga", "ligue-1", "serie-a",
		"eredivisie", "mls", "uel", "europa-league",
	}

	slugPoliticsWords = []string{"election", "president", "vote"}
	slugEconomyWords  = []string{"gdp", "inflation", "rate", "fed"}
)

var (
	upOrDownRe  = regexp.MustCompile(`(?i)up\s*or\s*down`)
	spreadCueRe = regexp.MustCompile(`(?i)^(spread|handicap)\s*:`)
	politicRe   = regexp.MustCompile(`(?i)\bpolitic\w*\b`)
	teamWinRe   = regexp.MustCompile(`^Will\s+[A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+){0,3}\s+win\b`)

	politicsCueRe = regexp.MustCompile(`(?i)\b(?:election|president|vote|primary|poll|campaign)\b`)

	matchCueRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bwin\b`),
		regexp.MustCompile(`(?i)\bvs\b`),
		regexp.MustCompile(`(?i)(^|[\s(])v([\s).]|$)`),
		regexp.MustCompile(`(?i)\bagainst\b`),
		regexp.MustCompile(`(?i)\bmatch\b`),
		regexp.MustCompile(`(?i)\bfinal\b`),
		regexp.MustCompile(`(?i)\bscore\b`),
		regexp.MustCompile(`(?i)\bpenalt(?:y|ies)\b`),
		regexp.MustCompile(`(?i)\bgoal(?:s)?\b`),
		regexp.MustCompile(`(?i)\btournament\b`),
		regexp.MustCompile(`(?i)\bleague\b`),
		regexp.MustCompile(`(?i)\bcup\b`),
	}

	wholeWordRes = compileWholeWord(cryptoTickers, techTickers, titleLeagueWords)
)

func compileWholeWord(groups ...[]string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp)
	for _, g := range groups {
		for _, tok := range g {
			out[tok] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(tok) + `\b`)
		}
	}
	return out
}
