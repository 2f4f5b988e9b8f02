// Package chatstore persists chat sessions as one JSON file per session.
package chatstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"docchat/store"
	"docchat/types"
)

const (
	titleLimit  = 50
	titleEmpty  = "Empty chat"
	titleNoUser = "No messages"
	fileSuffix  = ".json"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Store keeps sessions under dir. Writers to the same session id are serialized; different ids
// proceed independently.
type Store struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is dropped from Store.locks once nobody holds or waits for it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chats dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With("component", "chatstore"),
		locks:  make(map[string]*sessionLock),
	}, nil
}

func ValidID(id string) bool {
	return validID.MatchString(id)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+fileSuffix)
}

func (s *Store) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}


// Create persists a new empty session with a time-ordered id.
func (s *Store) Create(ctx context.Context) (types.Session, error) {
	if err := ctx.Err(); err != nil {
		return types.Session{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return types.Session{}, fmt.Errorf("generate session id: %w", err)
	}

	sess := types.Session{
		ID:        id.String(),
		CreatedAt: time.Now().UTC(),
		Messages:  []types.Message{},
	}

	unlock := s.lock(sess.ID)
	defer unlock()
	if err := s.write(sess); err != nil {
		return types.Session{}, err
	}
	s.logger.Info("session created", "id", sess.ID)
	return sess, nil
}

// Get reports found=false when no session with id exists.
func (s *Store) Get(ctx context.Context, id string) (types.Session, bool, error) {
	if !ValidID(id) {
		return types.Session{}, false, fmt.Errorf("%q: %w", id, types.ErrInvalidSessionID)
	}
	if err := ctx.Err(); err != nil {
		return types.Session{}, false, err
	}
	return s.read(id)
}

// Append adds msg to the session, creating the session if it does not exist yet. The message id and
// timestamp are filled in when empty. It returns the message as stored.
func (s *Store) Append(ctx context.Context, id string, msg types.Message) (types.Message, error) {
	if !ValidID(id) {
		return types.Message{}, fmt.Errorf("%q: %w", id, types.ErrInvalidSessionID)
	}
	if errs := msg.Validate(); len(errs) > 0 {
		return types.Message{}, fmt.Errorf("message %v: %w", errs, types.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return types.Message{}, err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	unlock := s.lock(id)
	defer unlock()

	sess, found, err := s.read(id)
	if err != nil {
		return types.Message{}, err
	}
	if !found {
		s.logger.Warn("appending to unknown session, creating it", "id", id)
		sess = types.Session{ID: id, CreatedAt: msg.Timestamp}
	}
	sess.Messages = append(sess.Messages, msg)

	if err := s.write(sess); err != nil {
		return types.Message{}, err
	}
	return msg, nil
}

// List summarizes every readable session, most recently modified first. Unreadable files are logged
// and skipped.
func (s *Store) List(ctx context.Context) ([]types.SessionSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read chats dir: %w", err)
	}

	summaries := make([]types.SessionSummary, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, fileSuffix)
		if !ValidID(id) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			s.logger.Warn("skipping session", "file", name, "error", err)
			continue
		}
		sess, found, err := s.read(id)
		if err != nil || !found {
			s.logger.Warn("skipping unreadable session", "file", name, "error", err)
			continue
		}

		summaries = append(summaries, types.SessionSummary{
			ID:           sess.ID,
			Title:        Title(sess.Messages),
			Timestamp:    info.ModTime(),
			MessageCount: len(sess.Messages),
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})
	return summaries, nil
}

// Title derives a display title from the first user message.
func Title(messages []types.Message) string {
	if len(messages) == 0 {
		return titleEmpty
	}
	for _, m := range messages {
		if m.Role != types.RoleUser {
			continue
		}
		if utf8.RuneCountInString(m.Content) <= titleLimit {
			return m.Content
		}
		return string([]rune(m.Content)[:titleLimit]) + "..."
	}
	return titleNoUser
}

func (s *Store) read(id string) (types.Session, bool, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return types.Session{}, false, nil
	}
	if err != nil {
		return types.Session{}, false, &types.SessionReadError{ID: id, Err: err}
	}

	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return types.Session{}, false, &types.SessionReadError{ID: id, Err: err}
	}
	if sess.ID == "" {
		sess.ID = id
	}
	if sess.Messages == nil {
		sess.Messages = []types.Message{}
	}
	return sess, true, nil
}

func (s *Store) write(sess types.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := store.WriteFileAtomic(s.path(sess.ID), data); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}
