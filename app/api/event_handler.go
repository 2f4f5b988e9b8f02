package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"docchat/app/agent"
	"docchat/types"
)

// Messages sent to the client in error events.
const (
	msgInvalidRequest   = "Invalid request"
	msgUnknownEvent     = "Unknown event"
	msgChatFailed       = "Failed to generate response"
	msgSaveFailed       = "Failed to save message"
	msgNoFile           = "No file specified for translation"
	msgFileNotFound     = "File not found for translation"
	msgTranslateFailed  = "Translation failed"
	msgTranslationStart = "Translation started..."
)

type Answerer interface {
	Answer(ctx context.Context, question string, history []types.HistoryTurn) (string, error)
}

type DocumentTranslator interface {
	Translate(ctx context.Context, language, path string, progress agent.ProgressFunc) ([]string, error)
}

// Emitter sends one event to the client. Implementations must be safe for concurrent use.
type Emitter interface {
	Emit(event string, data any) error
}

// EventHandler serves the chat and translation events of the realtime channel.
type EventHandler struct {
	answerer   Answerer
	translator DocumentTranslator
	sessions   SessionStore
	uploadDir  string
	logger     *slog.Logger
}

func NewEventHandler(answerer Answerer, translator DocumentTranslator, sessions SessionStore, uploadDir string, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		answerer:   answerer,
		translator: translator,
		sessions:   sessions,
		uploadDir:  uploadDir,
		logger:     logger.With("component", "events"),
	}
}

// Dispatch handles one inbound frame. Failures are reported to the client as error events; the
// returned error only signals that the client could not be written to.
func (h *EventHandler) Dispatch(ctx context.Context, env types.Envelope, out Emitter) error {
	switch env.Event {
	case types.EventChatMessage:
		var params types.ChatParams
		if err := decode(env.Data, &params); err != nil {
			h.logger.Warn("bad chat payload", "error", err)
			return emitError(out, msgInvalidRequest)
		}
		return h.handleChat(ctx, params, out)
	case types.EventTranslateDocument:
		var params types.TranslateParams
		if err := json.Unmarshal(env.Data, &params); err != nil {
			return emitError(out, msgInvalidRequest)
		}
		return h.handleTranslate(ctx, params, out)
	default:
		h.logger.Warn("unknown event", "event", env.Event)
		return emitError(out, msgUnknownEvent)
	}
}

func (h *EventHandler) handleChat(ctx context.Context, params types.ChatParams, out Emitter) error {
	if params.SessionID != "" {
		msg := types.Message{Role: types.RoleUser, Content: params.Message}
		if _, err := h.sessions.Append(ctx, params.SessionID, msg); err != nil {
			h.logger.Error("save user message", "session", params.SessionID, "error", err)
			return emitError(out, msgSaveFailed)
		}
	}

	answer, err := h.answerer.Answer(ctx, params.Message, params.History)
	if err != nil {
		h.logger.Error("chat failed", "error", err)
		return emitError(out, msgChatFailed)
	}

	var saveErr error
	if params.SessionID != "" {
		msg := types.Message{Role: types.RoleAI, Content: answer}
		if _, saveErr = h.sessions.Append(ctx, params.SessionID, msg); saveErr != nil {
			h.logger.Error("save ai message", "session", params.SessionID, "error", saveErr)
		}
	}

	if err := out.Emit(types.EventAIResponse, answer); err != nil {
		return err
	}
	if saveErr != nil {
		return emitError(out, msgSaveFailed)
	}
	return nil
}

func (h *EventHandler) handleTranslate(ctx context.Context, params types.TranslateParams, out Emitter) error {
	if strings.TrimSpace(params.Filename) == "" {
		return emitError(out, msgNoFile)
	}
	if errs := params.Validate(); len(errs) > 0 {
		return emitError(out, msgInvalidRequest)
	}

	path, err := ResolveUpload(h.uploadDir, params.Filename)
	if err != nil {
		h.logger.Warn("translation file rejected", "filename", params.Filename, "error", err)
		return emitError(out, msgFileNotFound)
	}

	if err := out.Emit(types.EventTranslationStart, types.TranslationStart{Message: msgTranslationStart}); err != nil {
		return err
	}

	progress := func(done, total int) {
		if err := out.Emit(types.EventTranslationProgress, types.TranslationProgress{Done: done, Total: total}); err != nil {
			h.logger.Debug("progress not delivered", "error", err)
		}
	}
	pages, err := h.translator.Translate(ctx, params.Language, path, progress)
	if err != nil {
		h.logger.Error("translation failed", "file", params.Filename, "error", err)
		return emitError(out, msgTranslateFailed)
	}
	return out.Emit(types.EventTranslationComplete, types.TranslationComplete{Pages: pages})
}

// ResolveUpload maps a client supplied file name to an existing file directly inside dir. Anything
// that is not a bare file name is rejected.
func ResolveUpload(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%q: %w", name, types.ErrInvalidInput)
	}

	path := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel != name {
		return "", fmt.Errorf("%q escapes upload dir: %w", name, types.ErrInvalidInput)
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%q: %w", name, types.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%q is not a file: %w", name, types.ErrNotFound)
	}
	return path, nil
}

func decode(data json.RawMessage, params types.Validater) error {
	if err := json.Unmarshal(data, params); err != nil {
		return err
	}
	if errs := params.Validate(); len(errs) > 0 {
		return fmt.Errorf("%v: %w", errs, types.ErrInvalidInput)
	}
	return nil
}

func emitError(out Emitter, message string) error {
	return out.Emit(types.EventError, types.ErrorPayload{Message: message})
}
