package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/types"
)

func record(id string, vec ...float32) types.ChunkRecord {
	return types.ChunkRecord{
		ID:       id,
		Text:     "text " + id,
		Metadata: map[string]any{types.MetaPage: float64(1)},
		Vector:   vec,
	}
}

func ids(results []types.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Record.ID
	}
	return out
}

type failingPersister struct {
	saves int
}

func (p *failingPersister) Load(context.Context) ([]types.ChunkRecord, error) { return nil, nil }

func (p *failingPersister) Save(context.Context, []types.ChunkRecord) error {
	p.saves++
	return errors.New("disk full")
}

type memPersister struct {
	mu      sync.Mutex
	records []types.ChunkRecord
	loadErr error
}

func (p *memPersister) Load(context.Context) ([]types.ChunkRecord, error) {
	return p.records, p.loadErr
}

func (p *memPersister) Save(_ context.Context, records []types.ChunkRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = records
	return nil
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestSearch_RanksByScore(t *testing.T) {
	s := NewVectorStore(nil, nil)
	require.NoError(t, s.Add([]types.ChunkRecord{
		record("a", 1, 0),
		record("b", 0, 1),
		record("c", 1, 1),
	}))

	results, err := s.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(results))
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	s := NewVectorStore(nil, nil)
	require.NoError(t, s.Add([]types.ChunkRecord{
		record("first", 1, 0),
		record("other", 0, 1),
		record("second", 2, 0),
		record("third", 3, 0),
	}))

	results, err := s.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ids(results))
}

func TestSearch_EdgeCases(t *testing.T) {
	s := NewVectorStore(nil, nil)

	results, err := s.Search([]float32{1, 2}, 4)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.Add([]types.ChunkRecord{record("a", 1, 2)}))

	results, err = s.Search([]float32{1, 2}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search([]float32{1, 2}, -3)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search([]float32{1, 2}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = s.Search([]float32{1, 2, 3}, 1)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestAdd_DimensionMismatch(t *testing.T) {
	s := NewVectorStore(nil, nil)
	require.NoError(t, s.Add([]types.ChunkRecord{record("a", 1, 2, 3)}))
	assert.Equal(t, 3, s.Dimension())

	err := s.Add([]types.ChunkRecord{record("b", 1, 2)})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	assert.Equal(t, 1, s.Len())

	// an inconsistent batch is rejected as a whole
	fresh := NewVectorStore(nil, nil)
	err = fresh.Add([]types.ChunkRecord{record("x", 1, 2), record("y", 1)})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	assert.Equal(t, 0, fresh.Len())
	assert.Equal(t, 0, fresh.Dimension())
}

func TestAdd_CopiesInput(t *testing.T) {
	s := NewVectorStore(nil, nil)
	r := record("a", 1, 0)
	require.NoError(t, s.Add([]types.ChunkRecord{r}))

	r.Vector[0] = -1
	r.Metadata[types.MetaPage] = float64(99)

	stored := s.Records()[0]
	assert.Equal(t, []float32{1, 0}, stored.Vector)
	assert.Equal(t, float64(1), stored.Metadata[types.MetaPage])
}

func TestCommit_FailedPersistLeavesStoreUnchanged(t *testing.T) {
	p := &failingPersister{}
	s := NewVectorStore(p, nil)

	err := s.Commit(context.Background(), []types.ChunkRecord{record("a", 1, 0)})
	require.Error(t, err)
	assert.Equal(t, 1, p.saves)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Dimension())
}

func TestCommit_Concurrent(t *testing.T) {
	p := &memPersister{}
	s := NewVectorStore(p, nil)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Commit(context.Background(), []types.ChunkRecord{
				record(fmt.Sprintf("%d-a", i), 1, float32(i)),
				record(fmt.Sprintf("%d-b", i), float32(i), 1),
			}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 40, s.Len())
	assert.Len(t, p.records, 40)
}

func TestOpen_LoadsPersisted(t *testing.T) {
	p := &memPersister{records: []types.ChunkRecord{record("a", 1, 0), record("b", 0, 1)}}

	s, err := Open(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Dimension())
}

type quarantiningPersister struct {
	memPersister
	moved int
}

func (p *quarantiningPersister) Quarantine(context.Context) (string, error) {
	p.moved++
	p.records = nil
	return "aside", nil
}

func TestOpen_CorruptIsQuarantined(t *testing.T) {
	ctx := context.Background()
	p := &quarantiningPersister{memPersister: memPersister{
		records: []types.ChunkRecord{record("old-a", 1, 0), record("old-b", 0, 1)},
		loadErr: fmt.Errorf("bad json: %w", types.ErrCorruptStore),
	}}

	s, err := Open(ctx, p, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, p.moved)

	require.NoError(t, s.Commit(ctx, []types.ChunkRecord{record("new", 1, 1)}))
	require.Len(t, p.records, 1)
	assert.Equal(t, "new", p.records[0].ID)
}

func TestOpen_CorruptWithoutQuarantineKeepsData(t *testing.T) {
	ctx := context.Background()
	persisted := []types.ChunkRecord{record("old-a", 1, 0), record("old-b", 0, 1)}
	p := &memPersister{records: persisted, loadErr: fmt.Errorf("bad row: %w", types.ErrCorruptStore)}

	s, err := Open(ctx, p, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	err = s.Commit(ctx, []types.ChunkRecord{record("new", 1, 1)})
	assert.ErrorIs(t, err, types.ErrCorruptStore)
	assert.ErrorIs(t, s.Persist(ctx), types.ErrCorruptStore)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, persisted, p.records)
}

func TestOpen_InconsistentRecordsAreQuarantined(t *testing.T) {
	ctx := context.Background()
	broken := []types.ChunkRecord{record("a", 1, 0), record("b")}

	p := &quarantiningPersister{memPersister: memPersister{records: broken}}
	s, err := Open(ctx, p, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, p.moved)

	plain := &memPersister{records: broken}
	s, err = Open(ctx, plain, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Commit(ctx, []types.ChunkRecord{record("new", 1, 1)}), types.ErrCorruptStore)
	assert.Len(t, plain.records, 2)
}

func TestOpen_PropagatesIOError(t *testing.T) {
	p := &memPersister{loadErr: errors.New("permission denied")}

	_, err := Open(context.Background(), p, nil)
	assert.Error(t, err)
}

func TestSearch_ResultsAreCopies(t *testing.T) {
	s := NewVectorStore(nil, nil)
	require.NoError(t, s.Add([]types.ChunkRecord{record("a", 1, 0)}))

	res, err := s.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	res[0].Record.Vector[0] = -1
	res[0].Record.Metadata[types.MetaPage] = "changed"

	all := s.Records()
	all[0].Vector[1] = 9
	all[0].Metadata["extra"] = true

	again, err := s.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, again[0].Record.Vector)
	assert.Equal(t, map[string]any{types.MetaPage: float64(1)}, again[0].Record.Metadata)
	assert.InDelta(t, 1.0, again[0].Score, 1e-9)
}
