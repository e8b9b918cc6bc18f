package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FSStore keeps each artifact as one JSON document (metadata plus
// payload) under a directory. Selection decodes metadata only.
type FSStore struct {
	dir string
}

// NewFSStore opens (creating if needed) a directory-backed store.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// metadataOnly decodes just the metadata section of a stored document.
type metadataOnly struct {
	Metadata Metadata `json:"metadata"`
}

func (s *FSStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save persists a new artifact document.
func (s *FSStore) Save(ctx context.Context, a *Artifact) error {
	if a.Metadata.ID == "" {
		return fmt.Errorf("artifact has no id")
	}
	if a.Metadata.Family == "" {
		return fmt.Errorf("artifact has no family")
	}

	path := s.path(a.Metadata.ID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("artifact %s already exists", a.Metadata.ID)
	}

	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	// Write-then-rename so a crash never leaves a partial artifact.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize artifact: %w", err)
	}

	log.Info().
		Str("id", a.Metadata.ID).
		Str("family", a.Metadata.Family).
		Time("created_at", a.Metadata.CreatedAt).
		Msg("Artifact saved")

	return nil
}

// Latest returns the most recent artifact for a family by the
// (CreatedAt, ID) total order.
func (s *FSStore) Latest(ctx context.Context, family string) (*Artifact, error) {
	metas, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var best *Metadata
	for i := range metas {
		if metas[i].Family != family {
			continue
		}
		if best == nil || newer(metas[i], *best) {
			best = &metas[i]
		}
	}
	if best == nil {
		return nil, ErrNoArtifacts
	}

	raw, err := os.ReadFile(s.path(best.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", best.ID, err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", best.ID, err)
	}
	return &a, nil
}

// List returns metadata for every stored artifact.
func (s *FSStore) List(ctx context.Context) ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	var metas []Metadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		var m metadataOnly
		if err := json.Unmarshal(raw, &m); err != nil {
			log.Warn().Str("file", e.Name()).Err(err).Msg("Skipping unreadable artifact")
			continue
		}
		metas = append(metas, m.Metadata)
	}
	return metas, nil
}
