package qdrantDB

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakePoint struct {
	id      string
	payload map[string]*qdrant.Value
}

// fakeQdrant keeps points per collection and scores them from a fixed table so tests control ranking.
type fakeQdrant struct {
	collections map[string]*qdrant.VectorParams
	points      map[string][]fakePoint
	scores      map[string]float32
	infoCalls   int
	lastLimit   uint64
	queries     int
	queryErr    error
}

func newFake() *fakeQdrant {
	return &fakeQdrant{
		collections: map[string]*qdrant.VectorParams{},
		points:      map[string][]fakePoint{},
		scores:      map[string]float32{},
	}
}

func (f *fakeQdrant) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	if _, ok := f.collections[req.CollectionName]; ok {
		return status.Error(codes.AlreadyExists, "exists")
	}
	f.collections[req.CollectionName] = req.GetVectorsConfig().GetParams()
	return nil
}

func (f *fakeQdrant) GetCollectionInfo(_ context.Context, name string) (*qdrant.CollectionInfo, error) {
	f.infoCalls++
	params, ok := f.collections[name]
	if !ok {
		return nil, status.Error(codes.NotFound, "Collection `"+name+"` doesn't exist!")
	}
	return &qdrant.CollectionInfo{
		Config: &qdrant.CollectionConfig{
			Params: &qdrant.CollectionParams{VectorsConfig: qdrant.NewVectorsConfig(params)},
		},
	}, nil
}

func (f *fakeQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	if _, ok := f.collections[req.CollectionName]; !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	for _, p := range req.Points {
		id := p.GetId().GetUuid()
		replaced := false
		for i, existing := range f.points[req.CollectionName] {
			if existing.id == id {
				f.points[req.CollectionName][i].payload = p.Payload
				replaced = true
			}
		}
		if !replaced {
			f.points[req.CollectionName] = append(f.points[req.CollectionName], fakePoint{id: id, payload: p.Payload})
		}
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if _, ok := f.collections[req.CollectionName]; !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	f.lastLimit = req.GetLimit()
	f.queries++
	var out []*qdrant.ScoredPoint
	// reverse insertion order so the store has to restore it for ties
	pts := f.points[req.CollectionName]
	for i := len(pts) - 1; i >= 0; i-- {
		score := f.scores[pts[i].id]
		if req.ScoreThreshold != nil && score < req.GetScoreThreshold() {
			continue
		}
		out = append(out, &qdrant.ScoredPoint{Id: qdrant.NewID(pts[i].id), Payload: pts[i].payload, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if uint64(len(out)) > f.lastLimit {
		out = out[:f.lastLimit]
	}
	return out, nil
}

func (f *fakeQdrant) Get(_ context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error) {
	if _, ok := f.collections[req.CollectionName]; !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	var out []*qdrant.RetrievedPoint
	for _, id := range req.GetIds() {
		for _, p := range f.points[req.CollectionName] {
			if p.id == id.GetUuid() {
				out = append(out, &qdrant.RetrievedPoint{Id: qdrant.NewID(p.id), Payload: p.payload})
			}
		}
	}
	return out, nil
}

func (f *fakeQdrant) Delete(_ context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	if _, ok := f.collections[req.CollectionName]; !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	for _, id := range req.GetPoints().GetPoints().GetIds() {
		kept := f.points[req.CollectionName][:0]
		for _, p := range f.points[req.CollectionName] {
			if p.id != id.GetUuid() {
				kept = append(kept, p)
			}
		}
		f.points[req.CollectionName] = kept
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) DeleteCollection(_ context.Context, name string) error {
	delete(f.collections, name)
	delete(f.points, name)
	return nil
}

func (f *fakeQdrant) Close() error { return nil }

const (
	idA = "6f1c0f3e-2a5b-4c1d-9d4e-000000000001"
	idB = "6f1c0f3e-2a5b-4c1d-9d4e-000000000002"
	idC = "6f1c0f3e-2a5b-4c1d-9d4e-000000000003"
	idD = "6f1c0f3e-2a5b-4c1d-9d4e-000000000004"
	idE = "6f1c0f3e-2a5b-4c1d-9d4e-000000000005"
	idF = "6f1c0f3e-2a5b-4c1d-9d4e-000000000006"
)

func TestEnsureCollection_CreatesOnceAndChecksSize(t *testing.T) {
	fake := newFake()
	store := newStore(fake)
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, "p1", 3, ragModel.DistanceCosine))
	assert.Contains(t, fake.collections, "project_p1")
	assert.Equal(t, uint64(3), fake.collections["project_p1"].GetSize())
	assert.Equal(t, qdrant.Distance_Cosine, fake.collections["project_p1"].GetDistance())

	require.NoError(t, store.EnsureCollection(ctx, "p1", 3, ragModel.DistanceCosine))
	err := store.EnsureCollection(ctx, "p1", 8, ragModel.DistanceCosine)
	assert.True(t, errors.Is(err, ragModel.ErrDimensionMismatch))
}

func TestEnsureCollection_ReadsExistingDimension(t *testing.T) {
	fake := newFake()
	fake.collections["project_p1"] = &qdrant.VectorParams{Size: 4, Distance: qdrant.Distance_Dot}
	store := newStore(fake)

	err := store.EnsureCollection(context.Background(), "p1", 3, ragModel.DistanceDot)
	assert.True(t, errors.Is(err, ragModel.ErrDimensionMismatch))

	require.NoError(t, store.EnsureCollection(context.Background(), "p1", 4, ragModel.DistanceDot))
	assert.Equal(t, 1, fake.infoCalls, "collection info should be cached")
}

func TestUpsertAndQuery(t *testing.T) {
	fake := newFake()
	store := newStore(fake)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "p1", 2, ragModel.DistanceCosine))

	records := []ragModel.VectorRecord{
		{ChunkId: idA, Vector: []float32{1, 0}, Metadata: map[string]any{"asset_id": "a1", "chunk_order": 1}},
		{ChunkId: idB, Vector: []float32{1, 0}, Metadata: map[string]any{"asset_id": "a1", "chunk_order": 2}},
		{ChunkId: idC, Vector: []float32{0, 1}, Metadata: map[string]any{"asset_id": "a1", "chunk_order": 3, "weird": []int{1}}},
	}
	require.NoError(t, store.Upsert(ctx, "p1", records))
	fake.scores = map[string]float32{idA: 0.9, idB: 0.9, idC: 0.1}

	hits, err := store.Query(ctx, "p1", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, idA, hits[0].ChunkId, "ties keep insertion order")
	assert.Equal(t, idB, hits[1].ChunkId)
	assert.Equal(t, uint64(4), fake.lastLimit)
	assert.Equal(t, int64(1), hits[0].Metadata["chunk_order"])
	assert.Equal(t, "a1", hits[0].Metadata["asset_id"])
	assert.NotContains(t, hits[0].Metadata, keyInsertSeq)

	all, err := store.Query(ctx, "p1", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "[1]", all[2].Metadata["weird"])
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	fake := newFake()
	store := newStore(fake)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "p1", 2, ragModel.DistanceCosine))

	err := store.Upsert(ctx, "p1", []ragModel.VectorRecord{{ChunkId: idA, Vector: []float32{1, 2, 3}}})
	assert.True(t, errors.Is(err, ragModel.ErrDimensionMismatch))
	assert.Empty(t, fake.points["project_p1"])

	_, err = store.Query(ctx, "p1", []float32{1}, 1)
	assert.True(t, errors.Is(err, ragModel.ErrDimensionMismatch))
}

func TestQuery_MissingCollection(t *testing.T) {
	store := newStore(newFake())
	_, err := store.Query(context.Background(), "ghost", []float32{1}, 1)
	assert.True(t, errors.Is(err, ragModel.ErrCollectionNotFound))
	assert.Equal(t, 404, ragModel.HTTPStatus(err))
}

func TestQuery_BackendErrorIsOpaque(t *testing.T) {
	fake := newFake()
	store := newStore(fake)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "p1", 1, ragModel.DistanceCosine))

	fake.queryErr = status.Error(codes.Unavailable, "connection refused")
	_, err := store.Query(ctx, "p1", []float32{1}, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ragModel.ErrVectorSearch))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, codes.Unknown, status.Code(err), "grpc status must not leak to callers")
}

func TestDeleteCollection(t *testing.T) {
	fake := newFake()
	store := newStore(fake)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "p1", 1, ragModel.DistanceCosine))

	require.NoError(t, store.DeleteCollection(ctx, "p1"))
	assert.NotContains(t, fake.collections, "project_p1")
	require.NoError(t, store.DeleteCollection(ctx, "p1"))

	_, err := store.Query(ctx, "p1", []float32{1}, 1)
	assert.True(t, errors.Is(err, ragModel.ErrCollectionNotFound))
}

func TestQuery_TieGroupWiderThanOverfetch(t *testing.T) {
	fake := newFake()
	store := newStore(fake)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "p1", 1, ragModel.DistanceCosine))

	for _, id := range []string{idA, idB, idC, idD, idE, idF} {
		require.NoError(t, store.Upsert(ctx, "p1", []ragModel.VectorRecord{{ChunkId: id, Vector: []float32{1}}}))
	}
	fake.scores = map[string]float32{idA: 0.5, idB: 0.5, idC: 0.5, idD: 0.5, idE: 0.5, idF: 0.9}

	hits, err := store.Query(ctx, "p1", []float32{1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, idF, hits[0].ChunkId)
	assert.Equal(t, idA, hits[1].ChunkId, "earliest insert wins the tie even past the first page")
	assert.Greater(t, fake.queries, 1)

	one, err := store.Query(ctx, "p1", []float32{1}, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, idF, one[0].ChunkId)
}

func TestQuery_ReupsertKeepsInsertionOrder(t *testing.T) {
	fake := newFake()
	store := newStore(fake)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "p1", 2, ragModel.DistanceDot))

	require.NoError(t, store.Upsert(ctx, "p1", []ragModel.VectorRecord{{ChunkId: idA, Vector: []float32{1, 0}}}))
	require.NoError(t, store.Upsert(ctx, "p1", []ragModel.VectorRecord{{ChunkId: idB, Vector: []float32{1, 0}}}))
	require.NoError(t, store.Upsert(ctx, "p1", []ragModel.VectorRecord{{ChunkId: idA, Vector: []float32{1, 0}, Metadata: map[string]any{"v": 2}}}))
	fake.scores = map[string]float32{idA: 1, idB: 1}

	hits, err := store.Query(ctx, "p1", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, idA, hits[0].ChunkId, "re-upsert must not move a point behind later inserts")
	assert.Equal(t, idB, hits[1].ChunkId)
	assert.Equal(t, int64(2), hits[0].Metadata["v"], "payload is replaced")
}

func TestDelete_Points(t *testing.T) {
	fake := newFake()
	store := newStore(fake)
	ctx := context.Background()
	require.NoError(t, store.Delete(ctx, "ghost", []string{idA}), "missing collection is a no-op")
	require.NoError(t, store.EnsureCollection(ctx, "p1", 1, ragModel.DistanceCosine))
	require.NoError(t, store.Upsert(ctx, "p1", []ragModel.VectorRecord{
		{ChunkId: idA, Vector: []float32{1}}, {ChunkId: idB, Vector: []float32{1}},
	}))

	require.NoError(t, store.Delete(ctx, "p1", []string{idA}))
	hits, err := store.Query(ctx, "p1", []float32{1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, idB, hits[0].ChunkId)
}
