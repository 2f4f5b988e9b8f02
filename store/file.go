package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"docchat/types"
)

// FilePersister keeps the corpus as a single JSON array on disk.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Path() string { return p.path }

// Load returns no records when the file does not exist yet.
func (p *FilePersister) Load(ctx context.Context) ([]types.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", p.path, err)
	}

	var records []types.ChunkRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", p.path, types.ErrCorruptStore, err)
	}
	if err := checkDimensions(records); err != nil {
		return nil, fmt.Errorf("%s: %w", p.path, err)
	}
	return records, nil
}

// Save replaces the file atomically: the corpus is written to a temporary file in the same
// directory, synced, and renamed over the old one.
func (p *FilePersister) Save(ctx context.Context, records []types.ChunkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []types.ChunkRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	return WriteFileAtomic(p.path, data)
}

// Quarantine renames the current file to <path>.corrupt-<unix> and returns the new name.
func (p *FilePersister) Quarantine(context.Context) (string, error) {
	moved := fmt.Sprintf("%s.corrupt-%d", p.path, time.Now().Unix())
	if err := os.Rename(p.path, moved); err != nil {
		return "", err
	}
	return moved, nil
}

// WriteFileAtomic replaces path with data so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(name)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func checkDimensions(records []types.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Vector)
	for i, r := range records {
		if len(r.Vector) == 0 || len(r.Vector) != dim {
			return fmt.Errorf("record %d has %d dimensions, expected %d: %w", i, len(r.Vector), dim, types.ErrCorruptStore)
		}
	}
	return nil
}
