package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postify/internal/apperr"
	"github.com/maheshrc27/postify/internal/service"
	"github.com/maheshrc27/postify/internal/workflow"
)

// ConnectionHandler exposes the connect/disconnect dialog. Every response
// carries the dialog state.
type ConnectionHandler struct {
	sessions service.SessionService
}

func NewConnectionHandler(sessions service.SessionService) *ConnectionHandler {
	return &ConnectionHandler{sessions: sessions}
}

func (h *ConnectionHandler) connection(c *fiber.Ctx) *workflow.Connection {
	return h.sessions.Connection(GetUserID(c))
}

func respondConnection(c *fiber.Ctx, snap workflow.ConnectionSnapshot, err error) error {
	if err != nil {
		return respondStateError(c, err, snap)
	}
	return c.JSON(snap)
}

func (h *ConnectionHandler) GetConnection(c *fiber.Ctx) error {
	conn := h.connection(c)
	set, connected, err := conn.Connector().Load(c.Context(), GetUserID(c), c.Params("platform"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"platform":    set.Platform,
		"connected":   connected,
		"lastUpdated": set.LastUpdated,
		"dialog":      conn.Snapshot(),
	})
}

func (h *ConnectionHandler) Select(c *fiber.Ctx) error {
	snap, err := h.connection(c).SelectPlatform(c.Context(), c.Params("platform"))
	return respondConnection(c, snap, err)
}

// focused rejects requests addressed to a platform other than the one in the dialog.
func (h *ConnectionHandler) focused(c *fiber.Ctx) (*workflow.Connection, error) {
	conn := h.connection(c)
	if snap := conn.Snapshot(); snap.Platform != strings.ToLower(c.Params("platform")) {
		return conn, apperr.Classify(apperr.KindConflict, workflow.ErrInvalidTransition)
	}
	return conn, nil
}

func (h *ConnectionHandler) Confirm(c *fiber.Ctx) error {
	conn, err := h.focused(c)
	if err != nil {
		return respondConnection(c, conn.Snapshot(), err)
	}
	snap, err := conn.ConfirmConnect()
	return respondConnection(c, snap, err)
}

func (h *ConnectionHandler) SubmitCredentials(c *fiber.Ctx) error {
	conn, err := h.focused(c)
	if err != nil {
		return respondConnection(c, conn.Snapshot(), err)
	}

	var fields map[string]string
	if err := json.Unmarshal(c.Body(), &fields); err != nil {
		return respondConnection(c, conn.Snapshot(), apperr.Validation("credentials must be an object of strings"))
	}

	snap, err := conn.SubmitCredentials(c.Context(), fields)
	return respondConnection(c, snap, err)
}

func (h *ConnectionHandler) Cancel(c *fiber.Ctx) error {
	return c.JSON(h.connection(c).Cancel())
}

func (h *ConnectionHandler) RequestDisconnect(c *fiber.Ctx) error {
	conn, err := h.focused(c)
	if err != nil {
		return respondConnection(c, conn.Snapshot(), err)
	}
	snap, err := conn.RequestDisconnect()
	return respondConnection(c, snap, err)
}

func (h *ConnectionHandler) ConfirmDisconnect(c *fiber.Ctx) error {
	conn, err := h.focused(c)
	if err != nil {
		return respondConnection(c, conn.Snapshot(), err)
	}
	snap, err := conn.ConfirmDisconnect(c.Context())
	return respondConnection(c, snap, err)
}
