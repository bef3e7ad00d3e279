package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/google/uuid"
)

// InMemoryRegistryStore serves the registry and chunk store from process memory under one lock.
type InMemoryRegistryStore struct {
	mu       sync.RWMutex
	projects map[string]ragModel.Project
	assets   map[string]map[string]ragModel.Asset // projectId -> name -> asset
	chunks   map[string][]ragModel.Chunk          // projectId -> chunks in insertion order
}

var _ ragModel.Registry = (*InMemoryRegistryStore)(nil)
var _ ragModel.ChunkStore = (*InMemoryRegistryStore)(nil)

func InitInMemoryRegistryStore() *InMemoryRegistryStore {
	return &InMemoryRegistryStore{
		projects: make(map[string]ragModel.Project),
		assets:   make(map[string]map[string]ragModel.Asset),
		chunks:   make(map[string][]ragModel.Chunk),
	}
}

func (s *InMemoryRegistryStore) GetOrCreateProject(ctx context.Context, projectId string) (ragModel.Project, error) {
	if err := ragModel.ValidateProjectId(projectId); err != nil {
		return ragModel.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.projects[projectId]; ok {
		return p, nil
	}
	p := ragModel.Project{Id: uuid.NewString(), ProjectId: projectId, CreatedAt: time.Now().UTC()}
	s.projects[projectId] = p
	inMemLogger.FromContext(ctx).Info("project created", "projectId", projectId, "id", p.Id)
	return p, nil
}

func (s *InMemoryRegistryStore) CreateAsset(_ context.Context, asset ragModel.Asset) (ragModel.Asset, error) {
	asset = withAssetDefaults(asset)
	if err := ragModel.ValidateAsset(asset); err != nil {
		return ragModel.Asset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.assets[asset.ProjectId]
	if !ok {
		byName = make(map[string]ragModel.Asset)
		s.assets[asset.ProjectId] = byName
	}
	if existing, ok := byName[asset.AssetName]; ok {
		return existing, nil
	}
	asset.AssetConfig = maps.Clone(asset.AssetConfig)
	byName[asset.AssetName] = asset
	return asset, nil
}

func (s *InMemoryRegistryStore) FindAsset(_ context.Context, projectId, assetName string) (ragModel.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[projectId][assetName]
	if !ok {
		return ragModel.Asset{}, ragModel.NewError(ragModel.ErrSourceNotFound, "find asset",
			"asset %q not found in project %q", assetName, projectId)
	}
	return a, nil
}

func (s *InMemoryRegistryStore) ListAssets(_ context.Context, projectId string) ([]ragModel.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ragModel.Asset, 0, len(s.assets[projectId]))
	for _, a := range s.assets[projectId] {
		out = append(out, a)
	}
	sortAssets(out)
	return out, nil
}

func (s *InMemoryRegistryStore) InsertManyChunks(_ context.Context, chunks []ragModel.Chunk) (int, error) {
	for _, c := range chunks {
		if err := validateChunk(c); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range batchAssets(chunks) {
		if n := s.countLocked(ref.projectId, ref.assetId); n > 0 {
			return 0, alreadyProcessed(ref.assetId, n)
		}
	}
	for _, c := range chunks {
		c.ChunkMetadata = maps.Clone(c.ChunkMetadata)
		s.chunks[c.ProjectId] = append(s.chunks[c.ProjectId], c)
	}
	return len(chunks), nil
}

func (s *InMemoryRegistryStore) ListChunks(_ context.Context, projectId, assetId string) ([]ragModel.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ragModel.Chunk
	for _, c := range s.chunks[projectId] {
		if assetId == "" || c.AssetId == assetId {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AssetId != out[j].AssetId {
			return out[i].AssetId < out[j].AssetId
		}
		return out[i].ChunkOrder < out[j].ChunkOrder
	})
	return out, nil
}

func (s *InMemoryRegistryStore) CountChunks(_ context.Context, projectId, assetId string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(projectId, assetId), nil
}

func (s *InMemoryRegistryStore) countLocked(projectId, assetId string) int {
	n := 0
	for _, c := range s.chunks[projectId] {
		if assetId == "" || c.AssetId == assetId {
			n++
		}
	}
	return n
}

func (s *InMemoryRegistryStore) GetChunks(_ context.Context, projectId string, ids []string) ([]ragModel.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byId := make(map[string]ragModel.Chunk, len(s.chunks[projectId]))
	for _, c := range s.chunks[projectId] {
		byId[c.Id] = c
	}
	out := make([]ragModel.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byId[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *InMemoryRegistryStore) DeleteChunks(_ context.Context, projectId, assetId string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if assetId == "" {
		n := len(s.chunks[projectId])
		delete(s.chunks, projectId)
		return n, nil
	}
	kept := s.chunks[projectId][:0]
	for _, c := range s.chunks[projectId] {
		if c.AssetId != assetId {
			kept = append(kept, c)
		}
	}
	n := len(s.chunks[projectId]) - len(kept)
	s.chunks[projectId] = kept
	return n, nil
}
