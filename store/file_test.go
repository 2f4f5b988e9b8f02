package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/types"
)

func TestFilePersister_MissingFileIsEmpty(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "vector_store.json"))

	records, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFilePersister_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vector_store.json")
	p := NewFilePersister(path)
	ctx := context.Background()

	want := []types.ChunkRecord{record("a", 1, 0.5), record("b", -1, 2)}
	require.NoError(t, p.Save(ctx, want))

	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFilePersister_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector_store.json")
	p := NewFilePersister(path)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"a","text":"x","vector":[1,2]`), 0o644))
	_, err := p.Load(ctx)
	assert.ErrorIs(t, err, types.ErrCorruptStore)

	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"a","vector":[1,2]},{"id":"b","vector":[1]}]`), 0o644))
	_, err = p.Load(ctx)
	assert.ErrorIs(t, err, types.ErrCorruptStore)
}

func TestOpen_QuarantinesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vector_store.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	s, err := Open(context.Background(), NewFilePersister(path), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "vector_store.json.corrupt-"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "not json", string(data))
}

func TestCommit_PersistsThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector_store.json")
	ctx := context.Background()

	s, err := Open(ctx, NewFilePersister(path), nil)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, []types.ChunkRecord{record("a", 1, 0)}))
	require.NoError(t, s.Commit(ctx, []types.ChunkRecord{record("b", 0, 1)}))

	reopened, err := Open(ctx, NewFilePersister(path), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())

	results, err := reopened.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(results))
}
