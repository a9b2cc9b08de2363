// Package api assembles the fiber application: middleware, routes and the
// error handler.
package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	config "github.com/maheshrc27/postify/configs"
	"github.com/maheshrc27/postify/internal/api/handlers"
	"github.com/maheshrc27/postify/internal/api/middleware"
	"github.com/maheshrc27/postify/internal/apperr"
	"github.com/maheshrc27/postify/internal/metrics"
	"github.com/maheshrc27/postify/internal/platform"
	"github.com/maheshrc27/postify/internal/service"
)

// bodyLimit leaves room for multipart overhead around a maximum-size image.
const bodyLimit = platform.MaxImageSize + 1024*1024

type Services struct {
	Auth     service.AuthService
	User     service.UserService
	Sessions service.SessionService
	History  service.HistoryService
	Registry *platform.Registry
	Gatherer prometheus.Gatherer
}

func NewApp(cfg config.Config, s Services) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			slog.Error(err.Error(), "path", c.Path())
			return c.Status(apperr.StatusCode(err)).JSON(fiber.Map{"error": apperr.Message(err)})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())
	origins := cfg.FrontendURL
	if origins == "" {
		origins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if s.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(s.Gatherer)))
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	auth := handlers.NewAuthHandler(cfg, s.Auth, s.Sessions)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)
	app.Post("/logout", authMiddleware.AuthMiddleware(), auth.Logout)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	RegisterRoutes(api, s)
	return app
}

// RegisterRoutes mounts the authenticated API on r.
func RegisterRoutes(r fiber.Router, s Services) {
	user := handlers.NewUserHandler(s.User)
	r.Get("/user", user.GetUserInfo)
	r.Patch("/user", user.UpdateUserInfo)

	platforms := handlers.NewPlatformHandler(s.Registry)
	r.Get("/platforms", platforms.ListPlatforms)

	connection := handlers.NewConnectionHandler(s.Sessions)
	r.Get("/connections/:platform", connection.GetConnection)
	r.Post("/connections/:platform/select", connection.Select)
	r.Post("/connections/:platform/confirm", connection.Confirm)
	r.Post("/connections/:platform/credentials", connection.SubmitCredentials)
	r.Post("/connections/:platform/cancel", connection.Cancel)
	r.Post("/connections/:platform/disconnect", connection.RequestDisconnect)
	r.Post("/connections/:platform/disconnect/confirm", connection.ConfirmDisconnect)

	draft := handlers.NewDraftHandler(s.Sessions)
	r.Get("/draft", draft.GetDraft)
	r.Put("/draft/content", draft.SetContent)
	r.Post("/draft/platforms/:platform", draft.TogglePlatform)
	r.Post("/draft/image", draft.AttachImage)
	r.Delete("/draft/image", draft.RemoveImage)
	r.Post("/draft/preview", draft.Preview)
	r.Post("/draft/publish", draft.Publish)
	r.Delete("/draft", draft.Reset)

	history := handlers.NewHistoryHandler(s.History)
	r.Get("/posts/history", history.ListHistory)
}
