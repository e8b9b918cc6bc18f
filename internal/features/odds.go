package features

import (
	"database/sql"

	"nbaml_v3/pipeline/internal/models"
)

// AmericanOddsToProb converts an American price to implied win
// probability. Positive price p: 100/(p+100). Negative price p:
// |p|/(|p|+100). A zero price is treated as missing.
func AmericanOddsToProb(price float64) float64 {
	if price > 0 {
		return 100 / (price + 100)
	}
	if price < 0 {
		return -price / (-price + 100)
	}
	return DefaultMLProb
}

// ImpliedProb converts a stored moneyline string to implied
// probability. Missing or invalid prices yield the neutral prior 0.5
// exactly, never an error.
func ImpliedProb(s sql.NullString) float64 {
	price, ok := models.MoneylinePrice(s)
	if !ok {
		return DefaultMLProb
	}
	return AmericanOddsToProb(price)
}
