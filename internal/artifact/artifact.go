// Package artifact persists and selects trained model artifacts.
// An artifact is an immutable (scaler, classifier) pair tagged with
// explicit metadata; later artifacts supersede earlier ones of the
// same family without overwriting them.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nbaml_v3/pipeline/internal/ml"
)

// ErrNoArtifacts is returned when selection finds nothing for a
// family (and, from Select, nothing for the fallback either).
var ErrNoArtifacts = errors.New("no artifact found")

// Metadata identifies an artifact. It is stored alongside the payload
// as an explicit record; selection queries it rather than parsing
// file names.
type Metadata struct {
	ID           string    `json:"id"`
	Family       string    `json:"family"`
	CreatedAt    time.Time `json:"created_at"`
	FeatureOrder []string  `json:"feature_order"`
}

// Artifact is an immutable trained (scaler, classifier) pair.
type Artifact struct {
	Metadata Metadata           `json:"metadata"`
	Scaler   *ml.StandardScaler `json:"scaler"`
	Model    *ml.GBT            `json:"model"`
}

// Store is the persistence collaborator for artifacts. "Most recent"
// is resolvable by the total order (CreatedAt, ID).
type Store interface {
	// Save persists a new artifact. Artifacts are never mutated or
	// overwritten; saving an existing ID is an error.
	Save(ctx context.Context, a *Artifact) error
	// Latest returns the most recent artifact for a family, or
	// ErrNoArtifacts.
	Latest(ctx context.Context, family string) (*Artifact, error)
	// List returns metadata for all stored artifacts.
	List(ctx context.Context) ([]Metadata, error)
}

// Select resolves the artifact to serve for a family: the latest of
// that family, falling back to the default family when the requested
// one has no lineage. Only a fully empty store is unresolvable.
func Select(ctx context.Context, store Store, family, fallback string) (*Artifact, error) {
	a, err := store.Latest(ctx, family)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNoArtifacts) {
		return nil, err
	}
	if family == fallback {
		return nil, fmt.Errorf("family %q: %w", family, ErrNoArtifacts)
	}
	a, err = store.Latest(ctx, fallback)
	if err != nil {
		return nil, fmt.Errorf("family %q (fallback %q): %w", family, fallback, err)
	}
	return a, nil
}

// newer reports whether a supersedes b under the (CreatedAt, ID)
// total order.
func newer(a, b Metadata) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
