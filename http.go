package insurance

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// APIVersion is reported by the health endpoint
const APIVersion = "1.0.0"

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// RouteGuard adapts the Authorizer and the role gate to fiber handlers
type RouteGuard struct {
	authorizer   *Authorizer
	Logger       Logger
	ErrorHandler fiber.ErrorHandler
}

// NewRouteGuard returns a guard writing failures with the JSON error handler
func NewRouteGuard(authorizer *Authorizer, logger Logger) *RouteGuard {
	if logger == nil {
		logger = defLogger{}
	}
	return &RouteGuard{
		authorizer:   authorizer,
		Logger:       logger,
		ErrorHandler: NewErrorHandler(logger),
	}
}

// Protected authenticates the Authorization header and stores the
// principal for the rest of the chain
func (g *RouteGuard) Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := g.authorizer.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			g.Logger.Debug("request rejected by authorizer", "path", c.Path(), "code", TextCode(err))
			return g.ErrorHandler(c, err)
		}
		SetPrincipal(c, principal)
		return c.Next()
	}
}

// Roles only lets principals holding one of allowed through. It must run
// after Protected; a missing principal counts as an authentication failure.
func (g *RouteGuard) Roles(allowed ...Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := GetPrincipal(c)
		if !ok {
			return g.ErrorHandler(c, ErrMissingToken)
		}
		if err := RequireRole(principal, allowed...); err != nil {
			return g.ErrorHandler(c, err)
		}
		return c.Next()
	}
}

// NewErrorHandler renders errors as ErrorResponse using the error's HTTP code
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return func(c *fiber.Ctx, err error) error {
		status, body := errorResponse(err)

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"error", err,
			)
		} else {
			logger.Debug("request rejected",
				"path", c.Path(),
				"status", status,
				"details", print.MaybePrettyJSON(body),
			)
		}

		return c.Status(status).JSON(body)
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		msg := fiberErr.Message
		if fiberErr.Code == http.StatusNotFound {
			msg = "Endpoint not found"
		}
		return fiberErr.Code, ErrorResponse{Error: msg}
	}

	var rich *goerrors.Error
	if !errors.As(err, &rich) {
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"}
	}

	status := HTTPStatus(rich)
	body := ErrorResponse{
		Error: rich.Message,
		Code:  rich.TextCode,
	}

	if fields, ok := rich.Metadata["fields"].(map[string]any); ok {
		body.Details = fields
	} else if len(rich.Metadata) > 0 && status < http.StatusInternalServerError {
		body.Details = rich.Metadata
	}

	return status, body
}

// AppConfig holds the transport level settings of the fiber app
type AppConfig struct {
	CORSOrigins string
	Logger      Logger
}

// NewApp creates a fiber app with CORS, panic recovery, the health route
// and the JSON error handler installed
func NewApp(cfg AppConfig) *fiber.App {
	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               "insurance",
		DisableStartupMessage: true,
		ErrorHandler:          NewErrorHandler(cfg.Logger),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Healthcare Insurance API is running",
			"version": APIVersion,
			"status":  "healthy",
		})
	})

	return app
}
