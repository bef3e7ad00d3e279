package ragModel

import "context"

// Registry owns project and asset bookkeeping. GetOrCreateProject is idempotent and safe
// under concurrent callers: exactly one project exists per external id afterwards.
type Registry interface {
	GetOrCreateProject(ctx context.Context, projectId string) (Project, error)
	// CreateAsset registers an asset, returning the stored record if the name is already taken.
	CreateAsset(ctx context.Context, asset Asset) (Asset, error)
	FindAsset(ctx context.Context, projectId, assetName string) (Asset, error)
	ListAssets(ctx context.Context, projectId string) ([]Asset, error)
}

type ChunkStore interface {
	// InsertManyChunks writes all chunks or none and returns how many were written. The check that
	// no asset in the batch already has chunks is made atomically with the write; a lost race
	// fails with ErrAssetAlreadyProcessed.
	InsertManyChunks(ctx context.Context, chunks []Chunk) (int, error)
	// ListChunks returns chunks ordered by asset then chunk order. An empty assetId lists the whole project.
	ListChunks(ctx context.Context, projectId, assetId string) ([]Chunk, error)
	CountChunks(ctx context.Context, projectId, assetId string) (int, error)
	// GetChunks skips ids that do not exist.
	GetChunks(ctx context.Context, projectId string, ids []string) ([]Chunk, error)
	// DeleteChunks removes one asset's chunks, or the whole project's when assetId is empty.
	DeleteChunks(ctx context.Context, projectId, assetId string) (int, error)
}

// ContentSource reads the raw text behind an asset.
type ContentSource interface {
	Read(ctx context.Context, asset Asset) (string, error)
}
