package handlers

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postify/internal/apperr"
	"github.com/maheshrc27/postify/internal/platform"
	"github.com/maheshrc27/postify/internal/service"
	"github.com/maheshrc27/postify/internal/workflow"
)

type DraftHandler struct {
	sessions service.SessionService
}

func NewDraftHandler(sessions service.SessionService) *DraftHandler {
	return &DraftHandler{sessions: sessions}
}

type contentRequest struct {
	Content string `json:"content"`
}

func respondDraft(c *fiber.Ctx, snap workflow.DraftSnapshot, err error) error {
	if err != nil {
		return respondStateError(c, err, snap)
	}
	return c.JSON(snap)
}

// withDraft loads the caller's draft, creating it on first use.
func (h *DraftHandler) withDraft(c *fiber.Ctx, fn func(d *workflow.Draft) (workflow.DraftSnapshot, error)) error {
	d, err := h.sessions.Draft(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	snap, err := fn(d)
	return respondDraft(c, snap, err)
}

func (h *DraftHandler) GetDraft(c *fiber.Ctx) error {
	return h.withDraft(c, func(d *workflow.Draft) (workflow.DraftSnapshot, error) {
		return d.Snapshot(), nil
	})
}

func (h *DraftHandler) SetContent(c *fiber.Ctx) error {
	var req contentRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return respondError(c, apperr.Validation("content must be a string", "content"))
	}
	return h.withDraft(c, func(d *workflow.Draft) (workflow.DraftSnapshot, error) {
		return d.SetContent(req.Content)
	})
}

func (h *DraftHandler) TogglePlatform(c *fiber.Ctx) error {
	return h.withDraft(c, func(d *workflow.Draft) (workflow.DraftSnapshot, error) {
		return d.TogglePlatform(c.Context(), c.Params("platform"))
	})
}

func (h *DraftHandler) AttachImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return respondError(c, apperr.Validation("an image file is required", "image"))
	}
	if file.Size > platform.MaxImageSize {
		return respondError(c, apperr.New(apperr.KindPayloadTooLarge, "image exceeds 5 MB"))
	}

	f, err := file.Open()
	if err != nil {
		slog.Info(err.Error())
		return respondError(c, apperr.Validation("unable to read image", "image"))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, platform.MaxImageSize+1))
	if err != nil {
		slog.Info(err.Error())
		return respondError(c, apperr.Validation("unable to read image", "image"))
	}

	return h.withDraft(c, func(d *workflow.Draft) (workflow.DraftSnapshot, error) {
		return d.AttachImage(c.Context(), file.Filename, data)
	})
}

func (h *DraftHandler) RemoveImage(c *fiber.Ctx) error {
	return h.withDraft(c, func(d *workflow.Draft) (workflow.DraftSnapshot, error) {
		return d.RemoveImage(c.Context())
	})
}

func (h *DraftHandler) Preview(c *fiber.Ctx) error {
	return h.withDraft(c, func(d *workflow.Draft) (workflow.DraftSnapshot, error) {
		return d.Preview(c.Context())
	})
}

func (h *DraftHandler) Publish(c *fiber.Ctx) error {
	return h.withDraft(c, func(d *workflow.Draft) (workflow.DraftSnapshot, error) {
		return d.Publish(c.Context())
	})
}

func (h *DraftHandler) Reset(c *fiber.Ctx) error {
	return h.withDraft(c, func(d *workflow.Draft) (workflow.DraftSnapshot, error) {
		return d.Reset(c.Context())
	})
}
