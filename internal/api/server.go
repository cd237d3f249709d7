package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"github.com/pynezz/heimdall/internal/config"
	"github.com/pynezz/heimdall/internal/database"
	"github.com/pynezz/heimdall/internal/fswatcher"
	"github.com/pynezz/heimdall/internal/logstore"
	"github.com/pynezz/heimdall/internal/middleware"
	"github.com/pynezz/heimdall/internal/rules"
	"github.com/pynezz/heimdall/internal/scanner"
	"github.com/pynezz/heimdall/internal/util"
)

// Deps collects everything the API surface operates on. History and Alerts
// are optional; the matching endpoints degrade when they are nil.
type Deps struct {
	Config  *config.Cfg
	Rules   *rules.Repository
	Logs    *logstore.Store
	Scanner *scanner.Scanner
	History *database.History
	Alerts  *fswatcher.Feed
}

// NewServer initializes a new API server with the provided configuration.
func NewServer(deps Deps) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Network.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Network.WriteTimeout) * time.Second,
	})

	util.PrintInfo(fmt.Sprintf(
		"Server configured with read timeout: %ds, write timeout: %ds",
		cfg.Network.ReadTimeout, cfg.Network.WriteTimeout))

	// Middleware
	app.Use(logger.New()) // Log every request

	secretKey := ""
	if cfg.API.Secret != "" {
		secretKey = middleware.DeriveSecretKey(cfg.API.Secret)
		util.PrintInfo("API authentication enabled")
	} else {
		util.PrintWarning("API authentication disabled: no secret configured")
	}
	app.Use(middleware.AuthMiddleware(secretKey))

	setupRoutes(app, deps)

	return app
}

func setupRoutes(app *fiber.App, deps Deps) {
	h := &handlers{deps: deps}

	app.Get("/", h.index)
	app.Get("/health", h.health)

	v1 := app.Group("/api/v1")

	v1.Post("/scan", h.scan)
	v1.Post("/scan/all", h.scanAll)

	v1.Get("/rules", h.listRules)
	v1.Post("/rules", h.saveRule)
	v1.Get("/rules/export", h.exportRules)
	v1.Post("/rules/import", h.importRules)
	v1.Post("/rules/import/sigma", h.importSigmaRule)
	v1.Post("/rules/test", h.testRule)
	v1.Post("/rules/validate", h.validateRule)
	v1.Get("/rules/:id", h.getRule)
	v1.Delete("/rules/:id", h.deleteRule)

	v1.Get("/logs", h.listLogs)
	v1.Post("/logs/import", h.importLogs)
	v1.Put("/logs/:name/format", h.setLogFormat)
	v1.Delete("/logs/:name", h.deleteLog)

	v1.Get("/fields", h.suggestFields)
	v1.Get("/history", h.history)
	v1.Get("/history/:id/alerts", h.historyAlerts)

	if deps.Alerts != nil {
		app.Get("/ws/alerts", websocket.New(h.alertStream))
	}
}

// alertStream pushes live alert notifications to a websocket client until it
// disconnects.
func (h *handlers) alertStream(c *websocket.Conn) {
	ch, cancel := h.deps.Alerts.Subscribe()
	defer cancel()

	for msg := range ch {
		if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
}
