// Package store holds the document corpus: chunk records with embeddings, exact cosine search over
// them, and the backends that persist the whole corpus.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"

	"docchat/types"
)

// Persister saves and restores the complete ordered record sequence.
type Persister interface {
	Load(ctx context.Context) ([]types.ChunkRecord, error)
	Save(ctx context.Context, records []types.ChunkRecord) error
}

// Quarantiner is implemented by backends that can move unreadable data out of the way. It returns
// where the data went.
type Quarantiner interface {
	Quarantine(ctx context.Context) (string, error)
}

// VectorStore is the process-wide corpus. Search runs against an immutable snapshot under a read
// lock; commits are serialized by writeMu and swap in a new snapshot only after it has been persisted.
type VectorStore struct {
	mu      sync.RWMutex
	records []types.ChunkRecord
	dim     int

	writeMu   sync.Mutex
	persister Persister
	logger    *slog.Logger
	// readOnly is set when unreadable data could not be moved aside. Saving would overwrite it.
	readOnly error
}

func NewVectorStore(persister Persister, logger *slog.Logger) *VectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorStore{
		persister: persister,
		logger:    logger.With("component", "vectorstore"),
	}
}

// Open loads the persisted corpus. A corrupt corpus does not stop the process: the store starts empty
// and the unreadable data is quarantined. Backends that cannot quarantine keep their data, and the
// store refuses to save over it.
func Open(ctx context.Context, persister Persister, logger *slog.Logger) (*VectorStore, error) {
	s := NewVectorStore(persister, logger)
	if persister == nil {
		return s, nil
	}

	records, err := persister.Load(ctx)
	if err != nil && !errors.Is(err, types.ErrCorruptStore) {
		return nil, err
	}
	if err == nil {
		if err = s.Add(records); err == nil {
			s.logger.Info("corpus loaded", "records", len(records), "dimension", s.Dimension())
			return s, nil
		}
		err = fmt.Errorf("inconsistent corpus: %w: %v", types.ErrCorruptStore, err)
	}

	s = NewVectorStore(persister, logger)
	s.logger.Error("corpus is unreadable, starting empty", "error", err)
	q, ok := persister.(Quarantiner)
	if !ok {
		s.readOnly = err
		s.logger.Warn("corpus cannot be moved aside, saving is disabled")
		return s, nil
	}
	moved, qerr := q.Quarantine(ctx)
	if qerr != nil {
		return nil, fmt.Errorf("quarantine corrupt corpus: %w", qerr)
	}
	s.logger.Warn("corrupt corpus moved aside", "location", moved)
	return s, nil
}

func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimension is 0 until the first record is added.
func (s *VectorStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Records returns a deep copy of the current record sequence in insertion order.
func (s *VectorStore) Records() []types.ChunkRecord {
	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()

	out := make([]types.ChunkRecord, len(records))
	for i, r := range records {
		out[i] = cloneRecord(r)
	}
	return out
}

// Add appends records without persisting them.
func (s *VectorStore) Add(records []types.ChunkRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, dim, err := s.extend(records)
	if err != nil {
		return err
	}
	s.swap(next, dim)
	return nil
}

// Commit appends records and persists the resulting corpus as one step. If persisting fails the
// store is left exactly as it was.
func (s *VectorStore) Commit(ctx context.Context, records []types.ChunkRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.readOnly != nil {
		return fmt.Errorf("persist corpus: %w", s.readOnly)
	}
	next, dim, err := s.extend(records)
	if err != nil {
		return err
	}
	if s.persister != nil {
		if err := s.persister.Save(ctx, next); err != nil {
			return fmt.Errorf("persist corpus: %w", err)
		}
	}
	s.swap(next, dim)
	s.logger.Debug("commit", "added", len(records), "total", len(next))
	return nil
}

// Persist writes the current corpus through the backend.
func (s *VectorStore) Persist(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.persister == nil {
		return nil
	}
	if s.readOnly != nil {
		return fmt.Errorf("persist corpus: %w", s.readOnly)
	}
	return s.persister.Save(ctx, s.Records())
}

// extend builds the next snapshot. Callers hold writeMu, so reading s.records without mu is safe.
func (s *VectorStore) extend(records []types.ChunkRecord) ([]types.ChunkRecord, int, error) {
	dim := s.dim
	for i, r := range records {
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) == 0 || len(r.Vector) != dim {
			return nil, 0, fmt.Errorf("record %d has %d dimensions, store has %d: %w",
				i, len(r.Vector), dim, types.ErrDimensionMismatch)
		}
	}

	next := make([]types.ChunkRecord, len(s.records), len(s.records)+len(records))
	copy(next, s.records)
	for _, r := range records {
		next = append(next, cloneRecord(r))
	}
	return next, dim, nil
}

// Stored records are never shared with callers in either direction.
func cloneRecord(r types.ChunkRecord) types.ChunkRecord {
	return types.ChunkRecord{
		ID:       r.ID,
		Text:     r.Text,
		Metadata: maps.Clone(r.Metadata),
		Vector:   slices.Clone(r.Vector),
	}
}

func (s *VectorStore) swap(records []types.ChunkRecord, dim int) {
	s.mu.Lock()
	s.records = records
	s.dim = dim
	s.mu.Unlock()
}

// Search returns the k records most similar to query by cosine similarity, best first. Equal scores
// keep insertion order.
func (s *VectorStore) Search(query []float32, k int) ([]types.SearchResult, error) {
	s.mu.RLock()
	records, dim := s.records, s.dim
	s.mu.RUnlock()

	if k <= 0 || len(records) == 0 {
		return []types.SearchResult{}, nil
	}
	if len(query) != dim {
		return nil, fmt.Errorf("query has %d dimensions, store has %d: %w", len(query), dim, types.ErrDimensionMismatch)
	}

	results := make([]types.SearchResult, len(records))
	for i, r := range records {
		results[i] = types.SearchResult{Record: r, Score: CosineSimilarity(query, r.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	for i := range results {
		results[i].Record = cloneRecord(results[i].Record)
	}
	return results, nil
}
