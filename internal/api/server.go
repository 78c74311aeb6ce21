// Package api exposes the ledger over HTTP.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"

	"github.com/jask/jaskledger/internal/logger"
	"github.com/jask/jaskledger/internal/service"
)

const requestIDKey = "requestid"

// Options tune the HTTP server.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DateLayout   string
}

// New builds the fiber app serving the ledger under /api.
func New(svc *service.Services, log zerolog.Logger, opts Options) *fiber.App {
	if opts.DateLayout == "" {
		opts.DateLayout = time.DateOnly
	}
	app := fiber.New(fiber.Config{
		AppName:               "jaskledger",
		ErrorHandler:          errorHandler,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{ContextKey: requestIDKey}))
	app.Use(requestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	h := &handlers{svc: svc, dateLayout: opts.DateLayout}
	api := app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api.Get("/accounts", h.listAccounts)
	api.Post("/accounts", h.createAccount)
	api.Get("/accounts/:id", h.getAccount)
	api.Delete("/accounts/:id", h.deleteAccount)

	api.Get("/accounts/:id/rules", h.accountRules)
	api.Post("/accounts/:id/rules", h.createAccountRule)
	api.Get("/accounts/:id/rules/preview", h.preview)
	api.Post("/accounts/:id/rules/apply", h.apply)
	api.Post("/accounts/:id/rules/resolve", h.resolve)
	api.Post("/accounts/:id/rules/:ruleID/activate", h.activate)
	api.Post("/accounts/:id/rules/:ruleID/deactivate", h.deactivate)

	api.Get("/accounts/:id/transactions", h.listTransactions)
	api.Post("/accounts/:id/transactions", h.addTransaction)
	api.Put("/transactions/:id", h.editTransaction)
	api.Delete("/transactions/:id", h.deleteTransaction)

	api.Get("/budgets", h.listBudgets)
	api.Get("/accounts/:id/budgets", h.listBudgets)
	api.Post("/accounts/:id/budgets", h.createBudget)
	api.Put("/budgets/:id", h.updateBudget)
	api.Delete("/budgets/:id", h.deleteBudget)

	api.Get("/accounts/:id/import-settings", h.importSettings)
	api.Put("/accounts/:id/import-settings", h.saveImportSettings)
	api.Post("/accounts/:id/import", h.importStatement)

	api.Get("/categories", h.listCategories)
	api.Post("/categories", h.createCategory)
	api.Delete("/categories/:id", h.deleteCategory)

	api.Get("/rules", h.listRules)
	api.Post("/rules", h.createRule)
	api.Put("/rules/:id", h.updateRule)
	api.Delete("/rules/:id", h.deleteRule)

	api.Get("/backup", h.backup)
	api.Post("/restore", h.restore)
	return app
}

// requestLogger attaches a request-scoped logger to the user context and logs each request.
func requestLogger(base zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		id, _ := c.Locals(requestIDKey).(string)
		log := base.With().Str("request_id", id).Logger()
		c.SetUserContext(logger.WithContext(c.UserContext(), log))

		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		ev := log.Info()
		if status >= fiber.StatusInternalServerError {
			ev = log.Error()
		} else if status >= fiber.StatusBadRequest {
			ev = log.Warn()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return nil
	}
}
