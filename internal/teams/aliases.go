package teams

// DefaultAliases returns the built-in abbreviation -> full-name table.
//
// Several abbreviations are overloaded across eras (CHA was both the
// Hornets and the Bobcats; NYN/NJN both point at the Nets lineage).
// The table is flat and holds one mapping per token, so an overloaded
// token carries only its most recent assignment. Pre-modern-era games
// may be misattributed as a result; era-scoped resolution is a known
// gap.
func DefaultAliases() map[string]string {
	return map[string]string{
		"ATL": "Atlanta Hawks",
		"BOS": "Boston Celtics",
		"BRK": "Brooklyn Nets",
		"BKN": "Brooklyn Nets",
		"CHI": "Chicago Bulls",
		"CHO": "Charlotte Hornets",
		"CLE": "Cleveland Cavaliers",
		"DAL": "Dallas Mavericks",
		"DEN": "Denver Nuggets",
		"DET": "Detroit Pistons",
		"GSW": "Golden State Warriors",
		"HOU": "Houston Rockets",
		"IND": "Indiana Pacers",
		"LAC": "LA Clippers",
		"LAL": "Los Angeles Lakers",
		"MEM": "Memphis Grizzlies",
		"MIA": "Miami Heat",
		"MIL": "Milwaukee Bucks",
		"MIN": "Minnesota Timberwolves",
		"NOP": "New Orleans Pelicans",
		"NYK": "New York Knicks",
		"NYN": "New Jersey Nets",
		"OKC": "Oklahoma City Thunder",
		"ORL": "Orlando Magic",
		"PHI": "Philadelphia 76ers",
		"PHO": "Phoenix Suns",
		"PHX": "Phoenix Suns",
		"POR": "Portland Trail Blazers",
		"SAC": "Sacramento Kings",
		"SAS": "San Antonio Spurs",
		"TOR": "Toronto Raptors",
		"UTA": "Utah Jazz",
		"WAS": "Washington Wizards",

		// Historical franchises
		"CHA": "Charlotte Bobcats",
		"NJN": "New Jersey Nets",
		"NOH": "New Orleans Hornets",
		"SEA": "Seattle SuperSonics",
		"VAN": "Vancouver Grizzlies",
		"KCK": "Kansas City Kings",
		"SDC": "San Diego Clippers",
		"CHS": "Chicago Stags",
		"STB": "St. Louis Bombers",
		"PRO": "Providence Steamrollers",
		"PIT": "Pittsburgh Ironmen",
		"DTF": "Detroit Falcons",
		"WSC": "Washington Capitols",
		"TRH": "Toronto Huskies",
	}
}
