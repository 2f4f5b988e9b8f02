// Package service turns documents on disk into searchable corpus records.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docchat/loader"
	"docchat/model"
	"docchat/store"
	"docchat/types"
)

const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageStore   = "store"
)

// Ingester runs extract, chunk, embed and commit for one document. Nothing reaches the store unless
// every step succeeds.
type Ingester struct {
	logger    *slog.Logger
	extractor loader.Extractor
	chunker   *loader.Chunker
	embedder  model.Embedder
	store     *store.VectorStore
}

func New(extractor loader.Extractor, chunker *loader.Chunker, embedder model.Embedder, st *store.VectorStore, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		logger:    logger.With("component", "ingest"),
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     st,
	}
}

func (i *Ingester) Ingest(ctx context.Context, path string) (types.IngestReport, error) {
	start := time.Now()
	source := filepath.Base(path)
	fail := func(stage string, err error) (types.IngestReport, error) {
		i.logger.Error("ingestion failed", "file", source, "stage", stage, "error", err)
		return types.IngestReport{}, &types.IngestionError{Path: path, Stage: stage, Err: err}
	}

	pages, err := i.extractor.Extract(ctx, path)
	if err != nil {
		return fail(StageExtract, err)
	}

	var (
		texts []string
		metas []map[string]any
	)
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		for n, c := range i.chunker.Split(p.Text) {
			texts = append(texts, c)
			metas = append(metas, map[string]any{
				types.MetaPage:   p.Number(),
				types.MetaSource: source,
				types.MetaChunk:  n,
			})
		}
	}
	if len(texts) == 0 {
		return fail(StageChunk, types.ErrEmptyDocument)
	}

	vectors, err := i.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fail(StageEmbed, err)
	}
	if len(vectors) != len(texts) {
		return fail(StageEmbed, fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(texts)))
	}

	records := make([]types.ChunkRecord, len(texts))
	for n := range texts {
		records[n] = types.ChunkRecord{
			ID:       uuid.NewString(),
			Text:     texts[n],
			Metadata: metas[n],
			Vector:   vectors[n],
		}
	}
	if err := i.store.Commit(ctx, records); err != nil {
		return fail(StageStore, err)
	}

	report := types.IngestReport{
		Filename:  source,
		Pages:     len(pages),
		Chunks:    len(records),
		Dimension: len(vectors[0]),
		Took:      time.Since(start),
	}
	i.logger.Info("document ingested",
		"file", source,
		"pages", report.Pages,
		"chunks", report.Chunks,
		"took", report.Took,
	)
	return report, nil
}
