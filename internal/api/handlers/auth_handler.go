package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	config "github.com/maheshrc27/postify/configs"
	"github.com/maheshrc27/postify/internal/service"
	"github.com/maheshrc27/postify/pkg/utils"
)

const stateCookieName = "postify_oauth_state"

type AuthHandler struct {
	s        service.AuthService
	sessions service.SessionService
	cfg      config.Config
}

func NewAuthHandler(cfg config.Config, service service.AuthService, sessions service.SessionService) *AuthHandler {
	return &AuthHandler{s: service, sessions: sessions, cfg: cfg}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	state, err := utils.GenerateRandomKey(24)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookieName,
		Value:    state,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
	})

	return c.Redirect(h.s.AuthCodeURL(state))
}

func (h *AuthHandler) LoginCallbackHandler(c *fiber.Ctx) error {
	expected := c.Cookies(stateCookieName)
	if expected == "" || c.Query("state") != expected {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid login state",
		})
	}
	c.ClearCookie(stateCookieName)

	user, err := h.s.LoginCallback(c.Context(), c.Query("code"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	token, err := h.s.IssueToken(user)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   false,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(h.cfg.SessionTTL),
	})

	return c.Redirect(h.cfg.FrontendURL, fiber.StatusTemporaryRedirect)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if userID := GetUserID(c); userID != 0 {
		h.sessions.DiscardDraft(c.Context(), userID)
	}

	c.Cookie(&fiber.Cookie{
		Name:   h.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "signed out",
	})
}
