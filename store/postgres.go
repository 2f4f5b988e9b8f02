package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"docchat/types"
)

const (
	insertBatchSize = 500
	corpusTable     = "corpus_chunks"
)

// PostgresPersister mirrors the corpus into a pgvector table. Search still runs in memory; the table
// is the durable copy and is replaced as a whole on every save.
type PostgresPersister struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresPersister(ctx context.Context, connStr string, logger *slog.Logger) (*PostgresPersister, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresPersister{
		pool:   pool,
		logger: logger.With("component", "postgres"),
	}, nil
}

func (p *PostgresPersister) Init(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS corpus_chunks (
		seq BIGINT PRIMARY KEY,
		id TEXT NOT NULL,
		text TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		embedding vector NOT NULL
	);
	`
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create corpus table: %w", err)
	}
	return nil
}

func (p *PostgresPersister) Load(ctx context.Context) ([]types.ChunkRecord, error) {
	rows, err := p.pool.Query(ctx, "SELECT id, text, metadata, embedding FROM corpus_chunks ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	defer rows.Close()

	var records []types.ChunkRecord
	for rows.Next() {
		var (
			r         types.ChunkRecord
			embedding pgvector.Vector
		)
		if err := rows.Scan(&r.ID, &r.Text, &r.Metadata, &embedding); err != nil {
			return nil, fmt.Errorf("scan corpus row %d: %w: %v", len(records), types.ErrCorruptStore, err)
		}
		r.Vector = embedding.Slice()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	if err := checkDimensions(records); err != nil {
		return nil, err
	}
	return records, nil
}

// Save truncates the table and inserts every record inside one transaction, so a failed save leaves
// the previous corpus in place.
func (p *PostgresPersister) Save(ctx context.Context, records []types.ChunkRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE corpus_chunks"); err != nil {
		return fmt.Errorf("truncate corpus: %w", err)
	}

	const query = `INSERT INTO corpus_chunks (seq, id, text, metadata, embedding) VALUES ($1, $2, $3, $4, $5)`
	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))

		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			r := records[i]
			metadata := r.Metadata
			if metadata == nil {
				metadata = map[string]any{}
			}
			batch.Queue(query, i, r.ID, r.Text, metadata, pgvector.NewVector(r.Vector))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert corpus rows %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	p.logger.Debug("corpus saved", "records", len(records))
	return nil
}

// Quarantine renames the corpus table (and its primary key index) to corpus_chunks_corrupt_<unix>
// and creates a fresh empty table in its place.
func (p *PostgresPersister) Quarantine(ctx context.Context) (string, error) {
	moved := fmt.Sprintf("%s_corrupt_%d", corpusTable, time.Now().Unix())

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
			pgx.Identifier{corpusTable}.Sanitize(), pgx.Identifier{moved}.Sanitize()),
		fmt.Sprintf("ALTER INDEX IF EXISTS %s RENAME TO %s",
			pgx.Identifier{corpusTable + "_pkey"}.Sanitize(), pgx.Identifier{moved + "_pkey"}.Sanitize()),
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return "", fmt.Errorf("move corpus table: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	if err := p.Init(ctx); err != nil {
		return "", err
	}
	p.logger.Warn("corpus table quarantined", "table", moved)
	return moved, nil
}

func (p *PostgresPersister) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}
