package evaldb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Melvud/ChessAnalysis-sub000/internal/shard"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
)

// ManifestKey is the store key of the database manifest.
const ManifestKey = "manifest"

// Manifest describes a built evaluation database.
type Manifest struct {
	Version     int       `json:"version"`
	TotalShards int       `json:"total_shards"`
	Strategy    string    `json:"strategy"`
	RecordCount int64     `json:"record_count"`
	ShardCount  int       `json:"shard_count"` // non-empty shards
	BuiltAt     time.Time `json:"built_at"`
	Source      string    `json:"source,omitempty"`
	Codec       string    `json:"codec"`
}

// Validate checks that the manifest can be used for lookups.
func (m *Manifest) Validate() error {
	if m.TotalShards < 1 {
		return fmt.Errorf("evaldb: manifest has %d shards", m.TotalShards)
	}
	if _, err := shard.ByName(m.Strategy); err != nil {
		return fmt.Errorf("evaldb: manifest: %w", err)
	}
	return nil
}

// WriteManifest stores m under ManifestKey.
func WriteManifest(ctx context.Context, st store.Store, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := st.Put(ctx, ManifestKey, data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads and validates the manifest stored in st.
func ReadManifest(ctx context.Context, st store.Store) (*Manifest, error) {
	data, err := st.Get(ctx, ManifestKey)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
