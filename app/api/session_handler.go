package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"docchat/types"
)

type SessionStore interface {
	Create(ctx context.Context) (types.Session, error)
	Get(ctx context.Context, id string) (types.Session, bool, error)
	Append(ctx context.Context, id string, msg types.Message) (types.Message, error)
	List(ctx context.Context) ([]types.SessionSummary, error)
}

type SessionHandler struct {
	sessions SessionStore
}

func NewSessionHandler(sessions SessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) HandleList(c *fiber.Ctx) error {
	list, err := h.sessions.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *SessionHandler) HandleCreate(c *fiber.Ctx) error {
	sess, err := h.sessions.Create(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

func (h *SessionHandler) HandleGet(c *fiber.Ctx) error {
	id := c.Params("id")
	sess, found, err := h.sessions.Get(c.UserContext(), id)
	if errors.Is(err, types.ErrInvalidSessionID) {
		return ErrInvalidID()
	}
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound(id, "chat")
	}
	return c.JSON(sess)
}
