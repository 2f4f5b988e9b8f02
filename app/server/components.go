package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"docchat/app/agent"
	"docchat/chatstore"
	"docchat/config"
	"docchat/loader"
	"docchat/loader/service"
	"docchat/model"
	"docchat/store"
)

// Components is the object graph shared by the HTTP server and the CLI commands.
type Components struct {
	Config     *config.Config
	Store      *store.VectorStore
	Sessions   *chatstore.Store
	Extractor  loader.Extractor
	Ingester   *service.Ingester
	Engine     *agent.Engine
	Translator *agent.Translator

	logger  *slog.Logger
	closers []func() error
}

func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Components{Config: cfg, logger: logger}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	persister, err := c.persister(ctx)
	if err != nil {
		return nil, err
	}
	c.Store, err = store.Open(ctx, persister, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open corpus: %w", err)
	}

	c.Sessions, err = chatstore.New(cfg.ChatsDir, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	embedder, err := model.NewEmbedder(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	llm, err := model.NewLLM(cfg.LLM, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	chunker, err := loader.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Extractor = loader.NewExtractor(loader.PDFOptions{
		CropTop:    cfg.PDFCropTop,
		CropBottom: cfg.PDFCropBottom,
	}, logger)

	var tokens agent.TokenCounter
	if counter, err := agent.NewTokenCounter(cfg.LLM.Model); err != nil {
		logger.Warn("token counting disabled", "error", err)
	} else {
		tokens = counter
	}

	c.Ingester = service.New(c.Extractor, chunker, embedder, c.Store, logger)
	c.Engine = agent.NewEngine(c.Store, embedder, llm, agent.EngineOptions{
		TopK:        cfg.TopK,
		Temperature: cfg.ChatTemperature,
		Tokens:      tokens,
	}, logger)
	c.Translator = agent.NewTranslator(c.Extractor, llm, agent.TranslatorOptions{
		Temperature: cfg.TranslateTemperature,
		Concurrency: cfg.TranslateConcurrency,
	}, logger)
	return c, nil
}

func (c *Components) persister(ctx context.Context) (store.Persister, error) {
	switch c.Config.CorpusBackend {
	case "postgres":
		pg, err := store.NewPostgresPersister(ctx, c.Config.PostgresDSN, c.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pg.Init(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		c.closers = append(c.closers, pg.Close)
		c.logger.Info("corpus backend", "backend", "postgres")
		return pg, nil
	default:
		c.logger.Info("corpus backend", "backend", "file", "path", c.Config.StorePath)
		return store.NewFilePersister(c.Config.StorePath), nil
	}
}

// Watcher returns the inbox watcher, or nil when no watch directory is configured.
func (c *Components) Watcher() (*service.Watcher, error) {
	if c.Config.WatchDir == "" {
		return nil, nil
	}
	return service.NewWatcher(service.WatchConfig{
		Dir:        c.Config.WatchDir,
		ArchiveDir: c.Config.ArchiveDir,
		BadDir:     c.Config.BadDir,
		Settle:     c.Config.WatchSettle,
	}, c.Ingester, c.logger)
}

func (c *Components) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	c.closers = nil
	return errors.Join(errs...)
}
