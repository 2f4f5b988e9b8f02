package api

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"docchat/loader"
	"docchat/types"
)

type DocumentIngester interface {
	Ingest(ctx context.Context, path string) (types.IngestReport, error)
}

type UploadHandler struct {
	uploadDir string
	ingester  DocumentIngester
	logger    *slog.Logger
}

func NewUploadHandler(uploadDir string, ingester DocumentIngester, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{
		uploadDir: uploadDir,
		ingester:  ingester,
		logger:    logger.With("component", "upload"),
	}
}

// HandleUpload stores the multipart file under a timestamped name and ingests it before responding.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := formFile(c, "pdf", "file")
	if err != nil {
		return ErrBadRequest("no file uploaded")
	}

	base := filepath.Base(file.Filename)
	if !loader.Supported(base) {
		return ErrBadRequest(fmt.Sprintf("unsupported file type %q", filepath.Ext(base)))
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), base)
	path := filepath.Join(h.uploadDir, name)
	if err := c.SaveFile(file, path); err != nil {
		return err
	}
	h.logger.Info("file saved", "path", path, "size", file.Size)

	report, err := h.ingester.Ingest(c.UserContext(), path)
	if err != nil {
		os.Remove(path)
		h.logger.Error("upload ingestion failed", "file", name, "error", err)
		return ErrInternal("Failed to process PDF")
	}

	return c.JSON(types.UploadResponse{
		Message:  "PDF processed successfully",
		Filename: name,
		Pages:    report.Pages,
		Chunks:   report.Chunks,
	})
}

func formFile(c *fiber.Ctx, fields ...string) (*multipart.FileHeader, error) {
	var lastErr error
	for _, field := range fields {
		file, err := c.FormFile(field)
		if err == nil {
			return file, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
