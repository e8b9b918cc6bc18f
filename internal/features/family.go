// Package features converts joined game rows into fixed-order numeric
// feature vectors for training and inference.
package features

import (
	"fmt"

	"nbaml_v3/pipeline/internal/join"
)

// Feature defaults applied when a raw input is missing. Values are
// never propagated as NaN into the classifier.
const (
	FormWindow = 10

	DefaultForm     = 0.5
	DefaultSpread   = 0.0
	DefaultTotal    = 220.0
	DefaultMLProb   = 0.5
	DefaultRestDays = 2.0
	DefaultElo      = 1500.0
)

// Family is a named training configuration: data scope, join mode and
// season-normalization parameters. Each family owns its own fixed
// feature order; training and inference must agree on it.
type Family struct {
	Name string

	// JoinMode controls whether games without odds are imputed
	// (outer) or excluded (inner).
	JoinMode join.Mode

	// Seasons restricts the family to an explicit season list when
	// non-nil. ExcludedSeasons removes seasons regardless.
	Seasons         []int
	ExcludedSeasons []int

	// Season normalization: (season - SeasonBase) / SeasonRange.
	SeasonBase  float64
	SeasonRange float64

	// IncludeHasOdds appends the odds-availability indicator bit.
	// Only meaningful for outer-join families; inner-join families
	// never see odds-less rows.
	IncludeHasOdds bool
}

const (
	// FamilyGlobal trains on all odds-covered history with imputation
	// for games missing lines. It is the fallback family for serving.
	FamilyGlobal = "global"
	// FamilyRecency trains only on recent seasons, odds-complete rows.
	FamilyRecency = "recency"
)

var registry = map[string]Family{
	FamilyGlobal: {
		Name:            FamilyGlobal,
		JoinMode:        join.ModeOuter,
		ExcludedSeasons: []int{2016, 2017, 2018, 2024}, // no odds coverage
		SeasonBase:      2010,
		SeasonRange:     15,
		IncludeHasOdds:  true,
	},
	FamilyRecency: {
		Name:        FamilyRecency,
		JoinMode:    join.ModeInner,
		Seasons:     []int{2019, 2020, 2021, 2022, 2023},
		SeasonBase:  2019,
		SeasonRange: 4,
	},
}

// ByName returns the family configuration for a name.
func ByName(name string) (Family, error) {
	f, ok := registry[name]
	if !ok {
		return Family{}, fmt.Errorf("unknown model family %q", name)
	}
	return f, nil
}

// Names lists all registered family names.
func Names() []string {
	return []string{FamilyGlobal, FamilyRecency}
}

// FeatureOrder returns the family's fixed, ordered feature schema.
func (f Family) FeatureOrder() []string {
	order := []string{
		"elo_diff",
		"elo_diff_norm",
		"home_last10_wins",
		"away_last10_wins",
		"spread_num",
		"over_under",
		"ml_home_prob",
		"ml_away_prob",
		"rest_days_home",
		"rest_days_away",
		"season_norm",
	}
	if f.IncludeHasOdds {
		order = append(order, "has_odds")
	}
	return order
}

// SeasonNorm maps a season year into the family's numeric range.
// Out-of-range values are valid and propagate unclamped.
func (f Family) SeasonNorm(season int) float64 {
	return (float64(season) - f.SeasonBase) / f.SeasonRange
}

// AllowsSeason reports whether the family trains on the given season.
func (f Family) AllowsSeason(season int) bool {
	for _, s := range f.ExcludedSeasons {
		if s == season {
			return false
		}
	}
	if f.Seasons == nil {
		return true
	}
	for _, s := range f.Seasons {
		if s == season {
			return true
		}
	}
	return false
}

// VectorFrom assembles a feature vector in the given schema order from
// named values. A missing name fails fast instead of silently shifting
// positions; unknown extra names are ignored.
func VectorFrom(order []string, named map[string]float64) ([]float64, error) {
	vec := make([]float64, len(order))
	for i, name := range order {
		v, ok := named[name]
		if !ok {
			return nil, fmt.Errorf("missing feature %q (schema has %d features)", name, len(order))
		}
		vec[i] = v
	}
	return vec, nil
}

// VectorFromNamed assembles a vector in the family's own schema order.
func (f Family) VectorFromNamed(named map[string]float64) ([]float64, error) {
	vec, err := VectorFrom(f.FeatureOrder(), named)
	if err != nil {
		return nil, fmt.Errorf("family %q: %w", f.Name, err)
	}
	return vec, nil
}
