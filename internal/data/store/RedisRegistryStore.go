package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/akolanti/GoRAG/internal/data/redisStore"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRegistryStore keeps projects, assets and chunks as JSON values:
//
//	project:{pid}              project record, created with SETNX
//	asset:{pid}:{name}         asset record, created with SETNX
//	assets:{pid}               set of asset names
//	chunk:{pid}:{chunkId}      chunk record
//	chunks:{pid}:{assetId}     list of chunk ids in insertion order
//	chunkassets:{pid}          set of asset ids that have chunks
type RedisRegistryStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

var _ ragModel.Registry = (*RedisRegistryStore)(nil)
var _ ragModel.ChunkStore = (*RedisRegistryStore)(nil)

func NewRedisRegistryStore(s *redisStore.Store) *RedisRegistryStore {
	return &RedisRegistryStore{store: s, logger: logger_i.NewLogger("RegistryStore")}
}

func projectKey(pid string) string            { return "project:" + pid }
func assetKey(pid, name string) string        { return "asset:" + pid + ":" + name }
func assetIndexKey(pid string) string         { return "assets:" + pid }
func chunkKey(pid, chunkId string) string     { return "chunk:" + pid + ":" + chunkId }
func chunkListKey(pid, assetId string) string { return "chunks:" + pid + ":" + assetId }
func chunkAssetsKey(pid string) string        { return "chunkassets:" + pid }

func (s *RedisRegistryStore) GetOrCreateProject(ctx context.Context, projectId string) (ragModel.Project, error) {
	const op = "get or create project"
	if err := ragModel.ValidateProjectId(projectId); err != nil {
		return ragModel.Project{}, err
	}

	candidate := ragModel.Project{Id: uuid.NewString(), ProjectId: projectId, CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(candidate)
	if err != nil {
		return ragModel.Project{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	created, err := s.store.SetNX(ctx, projectKey(projectId), data)
	if err != nil {
		return ragModel.Project{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	if created {
		s.logger.FromContext(ctx).Info("project created", "projectId", projectId, "id", candidate.Id)
		return candidate, nil
	}

	var existing ragModel.Project
	if err := s.getJSON(ctx, projectKey(projectId), &existing); err != nil {
		return ragModel.Project{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	return existing, nil
}

func (s *RedisRegistryStore) CreateAsset(ctx context.Context, asset ragModel.Asset) (ragModel.Asset, error) {
	const op = "create asset"
	asset = withAssetDefaults(asset)
	if err := ragModel.ValidateAsset(asset); err != nil {
		return ragModel.Asset{}, err
	}
	data, err := json.Marshal(asset)
	if err != nil {
		return ragModel.Asset{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}

	key := assetKey(asset.ProjectId, asset.AssetName)
	created, err := s.store.SetNX(ctx, key, data)
	if err != nil {
		return ragModel.Asset{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	// the index add is idempotent, so repeating it for an existing asset repairs a missed add
	if err := s.store.SetAdd(ctx, assetIndexKey(asset.ProjectId), asset.AssetName); err != nil {
		return ragModel.Asset{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	if created {
		return asset, nil
	}

	var existing ragModel.Asset
	if err := s.getJSON(ctx, key, &existing); err != nil {
		return ragModel.Asset{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	return existing, nil
}

func (s *RedisRegistryStore) FindAsset(ctx context.Context, projectId, assetName string) (ragModel.Asset, error) {
	const op = "find asset"
	var asset ragModel.Asset
	err := s.getJSON(ctx, assetKey(projectId, assetName), &asset)
	if s.store.IsNil(err) {
		return asset, ragModel.NewError(ragModel.ErrSourceNotFound, op, "asset %q not found in project %q", assetName, projectId)
	}
	if err != nil {
		return asset, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	return asset, nil
}

func (s *RedisRegistryStore) ListAssets(ctx context.Context, projectId string) ([]ragModel.Asset, error) {
	const op = "list assets"
	names, err := s.store.SetMembers(ctx, assetIndexKey(projectId))
	if err != nil {
		return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = assetKey(projectId, n)
	}
	values, err := s.store.MGet(ctx, keys...)
	if err != nil {
		return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}

	assets := make([]ragModel.Asset, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a ragModel.Asset
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		assets = append(assets, a)
	}
	sortAssets(assets)
	return assets, nil
}

// InsertManyChunks writes every chunk in one MULTI/EXEC block, watching each asset's chunk list
// so two runs for the same asset cannot both commit.
func (s *RedisRegistryStore) InsertManyChunks(ctx context.Context, chunks []ragModel.Chunk) (int, error) {
	const op = "insert chunks"
	if len(chunks) == 0 {
		return 0, nil
	}
	encoded := make([][]byte, len(chunks))
	for i, c := range chunks {
		if err := validateChunk(c); err != nil {
			return 0, err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		encoded[i] = data
	}

	refs := batchAssets(chunks)
	watched := make([]string, len(refs))
	for i, ref := range refs {
		watched[i] = chunkListKey(ref.projectId, ref.assetId)
	}

	err := s.store.Watch(ctx, func(tx *redis.Tx) error {
		for i, key := range watched {
			existing, err := tx.LLen(ctx, key).Result()
			if err != nil {
				return ragModel.Wrap(ragModel.ErrPersistence, op, err)
			}
			if existing > 0 {
				return alreadyProcessed(refs[i].assetId, int(existing))
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, c := range chunks {
				pipe.Set(ctx, chunkKey(c.ProjectId, c.Id), encoded[i], 0)
				pipe.RPush(ctx, chunkListKey(c.ProjectId, c.AssetId), c.Id)
				pipe.SAdd(ctx, chunkAssetsKey(c.ProjectId), c.AssetId)
			}
			return nil
		})
		return err
	}, watched...)
	switch {
	case err == nil:
	case s.store.IsTxFailed(err):
		return 0, ragModel.Wrap(ragModel.ErrAssetAlreadyProcessed, op, err)
	case ragModel.KindOf(err) != nil:
		return 0, err
	default:
		return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	s.logger.FromContext(ctx).Debug("chunks inserted", "projectId", chunks[0].ProjectId, "count", len(chunks))
	return len(chunks), nil
}

func (s *RedisRegistryStore) ListChunks(ctx context.Context, projectId, assetId string) ([]ragModel.Chunk, error) {
	const op = "list chunks"
	assetIds, err := s.chunkAssets(ctx, projectId, assetId)
	if err != nil {
		return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}

	var out []ragModel.Chunk
	for _, aid := range assetIds {
		ids, err := s.store.ListGetAll(ctx, chunkListKey(projectId, aid))
		if err != nil {
			return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		chunks, err := s.GetChunks(ctx, projectId, ids)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].ChunkOrder < chunks[j].ChunkOrder })
		out = append(out, chunks...)
	}
	return out, nil
}

func (s *RedisRegistryStore) CountChunks(ctx context.Context, projectId, assetId string) (int, error) {
	assetIds, err := s.chunkAssets(ctx, projectId, assetId)
	if err != nil {
		return 0, ragModel.Wrap(ragModel.ErrPersistence, "count chunks", err)
	}
	total := 0
	for _, aid := range assetIds {
		n, err := s.store.ListLen(ctx, chunkListKey(projectId, aid))
		if err != nil {
			return 0, ragModel.Wrap(ragModel.ErrPersistence, "count chunks", err)
		}
		total += int(n)
	}
	return total, nil
}

func (s *RedisRegistryStore) GetChunks(ctx context.Context, projectId string, ids []string) ([]ragModel.Chunk, error) {
	const op = "get chunks"
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = chunkKey(projectId, id)
	}
	values, err := s.store.MGet(ctx, keys...)
	if err != nil {
		return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	chunks := make([]ragModel.Chunk, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var c ragModel.Chunk
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (s *RedisRegistryStore) DeleteChunks(ctx context.Context, projectId, assetId string) (int, error) {
	const op = "delete chunks"
	assetIds, err := s.chunkAssets(ctx, projectId, assetId)
	if err != nil {
		return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}

	var chunkKeys, indexKeys []string
	for _, aid := range assetIds {
		ids, err := s.store.ListGetAll(ctx, chunkListKey(projectId, aid))
		if err != nil {
			return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		for _, id := range ids {
			chunkKeys = append(chunkKeys, chunkKey(projectId, id))
		}
		indexKeys = append(indexKeys, chunkListKey(projectId, aid))
	}

	deleted, err := s.store.Del(ctx, chunkKeys...)
	if err != nil {
		return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	if _, err := s.store.Del(ctx, indexKeys...); err != nil {
		return int(deleted), ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	if assetId == "" {
		_, err = s.store.Del(ctx, chunkAssetsKey(projectId))
	} else {
		err = s.store.SetRemove(ctx, chunkAssetsKey(projectId), assetId)
	}
	if err != nil {
		return int(deleted), ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	s.logger.FromContext(ctx).Info("chunks deleted", "projectId", projectId, "assetId", assetId, "count", deleted)
	return int(deleted), nil
}

func (s *RedisRegistryStore) chunkAssets(ctx context.Context, projectId, assetId string) ([]string, error) {
	if assetId != "" {
		return []string{assetId}, nil
	}
	ids, err := s.store.SetMembers(ctx, chunkAssetsKey(projectId))
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisRegistryStore) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}
