// Package teams resolves raw team tokens (abbreviations, full names,
// historical franchise names) to canonical team identities.
package teams

import "strings"

// Resolver maps raw team tokens to canonical full names.
// Lookups are O(1) against a prebuilt table; unknown tokens fall back
// to the normalized form of the input so downstream joins degrade to
// literal-string matching instead of erroring.
type Resolver struct {
	aliases map[string]string
}

// NewResolver builds a resolver from an alias -> canonical-name table.
// Alias keys are upper-cased and canonical values are normalized, so
// resolving a canonical name returns itself (idempotence).
func NewResolver(aliases map[string]string) *Resolver {
	r := &Resolver{aliases: make(map[string]string, len(aliases)*2)}
	for alias, canonical := range aliases {
		canon := Normalize(canonical)
		r.aliases[strings.ToUpper(strings.TrimSpace(alias))] = canon
		// A canonical name is its own alias.
		r.aliases[strings.ToUpper(canon)] = canon
	}
	return r
}

// NewDefaultResolver builds a resolver over the built-in NBA alias table.
func NewDefaultResolver() *Resolver {
	return NewResolver(DefaultAliases())
}

// Resolve maps a raw token to its canonical identity. Total: unknown
// tokens resolve to Normalize(raw).
func (r *Resolver) Resolve(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if canonical, ok := r.aliases[key]; ok {
		return canonical
	}
	return Normalize(raw)
}

// Known reports whether the token has an explicit alias mapping.
func (r *Resolver) Known(raw string) bool {
	_, ok := r.aliases[strings.ToUpper(strings.TrimSpace(raw))]
	return ok
}

// Len returns the number of alias entries loaded.
func (r *Resolver) Len() int {
	return len(r.aliases)
}

// Normalize trims and case-folds a team name. Used as the join key
// when no alias mapping exists.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
