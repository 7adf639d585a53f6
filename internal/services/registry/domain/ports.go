package domain

import (
	"context"
	"time"
)

// RegistryPort is what the scheduler and the binaries call
type RegistryPort interface {
	// Upsert inserts scenes; ids already present are left untouched
	Upsert(ctx context.Context, scenes []Scene) (UpsertStats, error)

	// Select returns scenes matching c ordered by AcquiredAt then ID
	Select(ctx context.Context, c Criteria) ([]Scene, error)
}

// IngesterPort runs discovery, identification and upsert
type IngesterPort interface {
	Ingest(ctx context.Context, req IngestRequest) (IngestStats, error)
}

// StorageRepo is the SQL side of the registry
type StorageRepo interface {
	// InsertScenes inserts with ON CONFLICT DO NOTHING and returns how many rows were new
	InsertScenes(ctx context.Context, scenes []Scene, ingestedAt time.Time) (int, error)

	// Candidates runs the attribute, time and bounding-box prefilter
	Candidates(ctx context.Context, c Criteria) ([]Scene, error)

	// CountScenes returns the registry size
	CountScenes(ctx context.Context) (int, error)
}

// Finder lists candidate product paths
type Finder func(ctx context.Context, req IngestRequest) ([]string, error)

// Identifier turns a product path into a scene with footprint
type Identifier func(path string) (Scene, error)
