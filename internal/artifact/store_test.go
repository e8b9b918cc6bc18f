package artifact

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbaml_v3/pipeline/internal/ml"
)

func testArtifact(family string, createdAt time.Time) *Artifact {
	return &Artifact{
		Metadata: Metadata{
			ID:           uuid.NewString(),
			Family:       family,
			CreatedAt:    createdAt,
			FeatureOrder: []string{"elo_diff", "spread_num"},
		},
		Scaler: &ml.StandardScaler{Mean: []float64{0, 0}, Std: []float64{1, 1}},
		Model:  ml.NewGBT(ml.DefaultGBTConfig()),
	}
}

func TestFSStore_LatestPicksNewest(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	a1 := testArtifact("global", base)
	a2 := testArtifact("global", base.Add(time.Hour))
	a3 := testArtifact("global", base.Add(2*time.Hour))

	// Save out of chronological order; Latest must go by metadata.
	require.NoError(t, store.Save(ctx, a2))
	require.NoError(t, store.Save(ctx, a3))
	require.NoError(t, store.Save(ctx, a1))

	got, err := store.Latest(ctx, "global")
	require.NoError(t, err)
	assert.Equal(t, a3.Metadata.ID, got.Metadata.ID)
	assert.Equal(t, []string{"elo_diff", "spread_num"}, got.Metadata.FeatureOrder)
}

func TestFSStore_LatestTiesBreakOnID(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	a := testArtifact("global", at)
	b := testArtifact("global", at)
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))

	want := a.Metadata.ID
	if b.Metadata.ID > want {
		want = b.Metadata.ID
	}
	got, err := store.Latest(ctx, "global")
	require.NoError(t, err)
	assert.Equal(t, want, got.Metadata.ID)
}

func TestFSStore_EmptyAndMissingFamily(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Latest(ctx, "global")
	assert.ErrorIs(t, err, ErrNoArtifacts)

	require.NoError(t, store.Save(ctx, testArtifact("global", time.Now())))
	_, err = store.Latest(ctx, "recency")
	assert.ErrorIs(t, err, ErrNoArtifacts)
}

func TestFSStore_SaveRejectsDuplicateID(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	a := testArtifact("global", time.Now())
	require.NoError(t, store.Save(ctx, a))
	assert.Error(t, store.Save(ctx, a))
}

func TestSelect_FallsBackToDefaultFamily(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	global := testArtifact("global", time.Now())
	require.NoError(t, store.Save(ctx, global))

	// Family without lineage serves the fallback's latest.
	got, err := Select(ctx, store, "recency", "global")
	require.NoError(t, err)
	assert.Equal(t, global.Metadata.ID, got.Metadata.ID)

	// Fully empty store is unresolvable.
	empty, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	_, err = Select(ctx, empty, "recency", "global")
	assert.ErrorIs(t, err, ErrNoArtifacts)
}

func TestSelect_PrefersOwnFamily(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	global := testArtifact("global", time.Now().Add(time.Hour))
	recency := testArtifact("recency", time.Now())
	require.NoError(t, store.Save(ctx, global))
	require.NoError(t, store.Save(ctx, recency))

	got, err := Select(ctx, store, "recency", "global")
	require.NoError(t, err)
	assert.Equal(t, recency.Metadata.ID, got.Metadata.ID, "newer fallback must not shadow own family")
}
