package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docchat/loader"
	"docchat/types"
)

type DocumentIngester interface {
	Ingest(ctx context.Context, path string) (types.IngestReport, error)
}

type WatchConfig struct {
	Dir        string
	ArchiveDir string
	BadDir     string
	// A file is picked up once it has not changed for Settle.
	Settle time.Duration
}

// Watcher ingests documents dropped into a directory and files them under the archive or bad
// directory afterwards.
type Watcher struct {
	cfg      WatchConfig
	ingester DocumentIngester
	logger   *slog.Logger

	mu         sync.Mutex
	lastSeen   map[string]time.Time
	processing map[string]bool
}

func NewWatcher(cfg WatchConfig, ingester DocumentIngester, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{cfg.Dir, cfg.ArchiveDir, cfg.BadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Watcher{
		cfg:        cfg,
		ingester:   ingester,
		logger:     logger.With("component", "watcher", "dir", cfg.Dir),
		lastSeen:   make(map[string]time.Time),
		processing: make(map[string]bool),
	}, nil
}

// Run blocks until ctx is cancelled. Files already in the directory are treated as new.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info("start monitoring folder", "settle", w.cfg.Settle)

	if err := w.scan(time.Now()); err != nil {
		w.logger.Warn("initial scan failed", "error", err)
	}

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.process(ctx, fileChan)
	}()
	defer func() {
		close(fileChan)
		wg.Wait()
		w.logger.Info("file watcher stopped")
	}()

	ticker := time.NewTicker(max(w.cfg.Settle/5, 100*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev, time.Now())
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case now := <-ticker.C:
			for _, path := range w.ready(now) {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event, now time.Time) {
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return
		}
		w.track(ev.Name, now)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.forget(ev.Name)
	}
}

func (w *Watcher) scan(now time.Time) error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.track(filepath.Join(w.cfg.Dir, e.Name()), now)
		}
	}
	return nil
}

// track records a change to path. Hidden files are ignored.
func (w *Watcher) track(path string, now time.Time) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.processing[path] {
		return
	}
	if _, ok := w.lastSeen[path]; !ok {
		w.logger.Info("new file detected", "file", filepath.Base(path))
	}
	w.lastSeen[path] = now
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.processing[path] {
		delete(w.lastSeen, path)
	}
}

// ready returns the files unchanged for at least the settle time and marks them as processing.
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for path, seen := range w.lastSeen {
		if w.processing[path] || now.Sub(seen) < w.cfg.Settle {
			continue
		}
		w.processing[path] = true
		out = append(out, path)
	}
	return out
}

func (w *Watcher) done(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.processing, path)
	delete(w.lastSeen, path)
}

func (w *Watcher) process(ctx context.Context, fileChan <-chan string) {
	for path := range fileChan {
		if ctx.Err() != nil {
			w.done(path)
			continue
		}
		w.handleFile(ctx, path)
		w.done(path)
	}
}

func (w *Watcher) handleFile(ctx context.Context, path string) {
	name := filepath.Base(path)

	failed := !loader.Supported(name)
	if failed {
		w.logger.Warn("unsupported file", "file", name)
	} else if _, err := w.ingester.Ingest(ctx, path); err != nil {
		if errors.Is(err, context.Canceled) {
			w.logger.Info("ingestion interrupted, leaving file in place", "file", name)
			return
		}
		failed = true
	}

	dest, err := MoveToArchive(path, w.cfg.ArchiveDir, w.cfg.BadDir, failed, time.Now())
	if err != nil {
		w.logger.Error("move file", "file", name, "error", err)
		return
	}
	w.logger.Info("file archived", "file", name, "dest", dest, "failed", failed)
}

// MoveToArchive moves path into <archiveDir|badDir>/<YYYY-MM-DD>/. A name already taken there gets
// a _1, _2, ... suffix before the extension.
func MoveToArchive(path, archiveDir, badDir string, failed bool, now time.Time) (string, error) {
	root := archiveDir
	if failed {
		root = badDir
	}
	destDir := filepath.Join(root, now.Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", destDir, err)
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	dest := filepath.Join(destDir, base)
	for n := 1; ; n++ {
		if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
			break
		}
		dest = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}

	if err := os.Rename(path, dest); err == nil {
		return dest, nil
	}
	// rename fails across filesystems
	if err := copyFile(path, dest); err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove %s: %w", path, err)
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}
