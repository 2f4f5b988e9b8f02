package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.ServerAddr)
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.ChunkOverlap)
	assert.Equal(t, DefaultTopK, cfg.TopK)
	assert.Equal(t, 0.3, cfg.TranslateTemperature)
	assert.Less(t, cfg.TranslateTemperature, cfg.ChatTemperature)
	assert.Equal(t, filepath.Join(cfg.DataDir, "uploads"), cfg.UploadDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "chats"), cfg.ChatsDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "vector_store.json"), cfg.StorePath)
	assert.Empty(t, cfg.ArchiveDir, "archive dir is only derived when watching")
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docchat.yaml")
	content := `
chunk_size: 500
chunk_overlap: 50
top_k: 6
watch_dir: /tmp/inbox
watch_settle: 2s
llm:
  provider: ollama
  url: http://localhost:11434
  model: llama3
  timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("TOP_K", "8")
	t.Setenv("DATA_DIR", dir)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 8, cfg.TopK)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2*time.Second, cfg.WatchSettle)
	assert.Equal(t, filepath.Join(dir, "archive"), cfg.ArchiveDir)
	assert.Equal(t, filepath.Join(dir, "bad"), cfg.BadDir)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model, "untouched sections keep defaults")
}

func TestLoad_OverlapMustBeSmallerThanSize(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChunkOverlap")
}

func TestLoad_PostgresNeedsDSN(t *testing.T) {
	t.Setenv("CORPUS_BACKEND", "postgres")

	_, err := Load("")
	require.Error(t, err)

	t.Setenv("PG_DSN", "postgres://localhost/docchat")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.CorpusBackend)
}

func TestLoad_MalformedNumber(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "large")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_SIZE")
}

func TestLoad_UnknownProvider(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "cohere")

	_, err := Load("")
	assert.Error(t, err)
}
