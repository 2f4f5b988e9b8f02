package api

import (
	"github.com/gofiber/fiber/v2"
)

type Counter interface {
	Len() int
}

type CheckHandler struct {
	corpus Counter
}

func NewCheckHandler(corpus Counter) *CheckHandler {
	return &CheckHandler{corpus: corpus}
}

func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok", "chunks": h.corpus.Len()})
}
