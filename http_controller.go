package insurance

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ClaimExporter renders claims into a downloadable document
type ClaimExporter interface {
	ContentType() string
	FileExtension() string
	WriteClaims(ctx context.Context, w io.Writer, claims []*Claim) error
}

// ControllerRoutes holds the mount points of each resource group
type ControllerRoutes struct {
	Auth     string
	Users    string
	Policies string
	Claims   string
}

// HTTPController exposes the managers as JSON endpoints
type HTTPController struct {
	Logger        Logger
	Routes        *ControllerRoutes
	Accounts      *AccountManager
	Authenticator *Authenticator
	Policies      *PolicyManager
	Claims        *ClaimManager
	Guard         *RouteGuard
	Exporter      ClaimExporter
	now           Clock
}

// ControllerOption configures the controller
type ControllerOption func(*HTTPController) *HTTPController

// WithControllerLogger sets the logger
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *HTTPController) *HTTPController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithServices wires the managers behind the routes
func WithServices(accounts *AccountManager, auth *Authenticator, policies *PolicyManager, claims *ClaimManager) ControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Accounts = accounts
		c.Authenticator = auth
		c.Policies = policies
		c.Claims = claims
		return c
	}
}

// WithRouteGuard sets the authentication and role middleware
func WithRouteGuard(guard *RouteGuard) ControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Guard = guard
		return c
	}
}

// WithClaimExporter enables the claims export route
func WithClaimExporter(exporter ClaimExporter) ControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Exporter = exporter
		return c
	}
}

// WithControllerClock overrides the clock used to stamp export file names
func WithControllerClock(clock Clock) ControllerOption {
	return func(c *HTTPController) *HTTPController {
		if clock != nil {
			c.now = clock
		}
		return c
	}
}

// NewHTTPController builds the controller. It panics when a manager or
// the route guard is missing.
func NewHTTPController(opts ...ControllerOption) *HTTPController {
	c := &HTTPController{
		Logger: defLogger{},
		Routes: &ControllerRoutes{
			Auth:     "/api/auth",
			Users:    "/api/users",
			Policies: "/api/policies",
			Claims:   "/api/claims",
		},
		now: time.Now,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Accounts == nil || c.Authenticator == nil || c.Policies == nil || c.Claims == nil {
		panic("Missing services in insurance controller...")
	}

	if c.Guard == nil {
		panic("Missing RouteGuard in insurance controller...")
	}

	return c
}

// RegisterRoutes mounts every endpoint on app
func RegisterRoutes(app fiber.Router, opts ...ControllerOption) *HTTPController {
	c := NewHTTPController(opts...)

	protected := c.Guard.Protected()
	staff := c.Guard.Roles(RoleAdministrator, RoleProvider)
	admin := c.Guard.Roles(RoleAdministrator)

	auth := app.Group(c.Routes.Auth)
	auth.Post("/register", c.Register)
	auth.Post("/login", c.Login)
	auth.Get("/me", protected, c.Me)

	users := app.Group(c.Routes.Users, protected)
	users.Get("/", staff, c.ListUsers)
	users.Get("/:id", c.GetUser)
	users.Put("/:id", c.UpdateUser)
	users.Post("/:id/deactivate", admin, c.DeactivateUser)
	users.Post("/:id/activate", admin, c.ActivateUser)

	policies := app.Group(c.Routes.Policies, protected)
	policies.Post("/", staff, c.CreatePolicy)
	policies.Get("/", c.ListPolicies)
	policies.Get("/programs", staff, c.PolicyPrograms)
	policies.Get("/:id", c.GetPolicy)
	policies.Put("/:id", staff, c.UpdatePolicy)
	policies.Patch("/:id/status", admin, c.UpdatePolicyStatus)

	claims := app.Group(c.Routes.Claims, protected)
	claims.Post("/", c.SubmitClaim)
	claims.Get("/", c.ListClaims)
	if c.Exporter != nil {
		claims.Get("/export", staff, c.ExportClaims)
	}
	claims.Get("/:id", c.GetClaim)
	claims.Post("/:id/review", staff, c.ReviewClaim)
	claims.Patch("/:id/status", admin, c.UpdateClaimStatus)

	return c
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type statusRequest struct {
	Status *string `json:"status"`
}

func (h *HTTPController) Register(c *fiber.Ctx) error {
	var payload AccountInput
	if err := bindJSON(c, &payload); err != nil {
		return err
	}

	account, err := h.Accounts.CreateAccount(c.UserContext(), payload)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    account,
	})
}

func (h *HTTPController) Login(c *fiber.Ctx) error {
	var payload LoginRequest
	if err := bindJSON(c, &payload); err != nil {
		return NewValidationError("Email and password are required")
	}

	token, principal, err := h.Authenticator.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user":    principal,
	})
}

func (h *HTTPController) Me(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": principal})
}

func (h *HTTPController) ListUsers(c *fiber.Ctx) error {
	users, err := h.Accounts.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": users, "count": len(users)})
}

func (h *HTTPController) GetUser(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, ErrUserNotFound)
	if err != nil {
		return err
	}

	if principal.Role == RolePatient && principal.ID != id {
		return Forbidden("You can only view your own profile")
	}

	account, err := h.Accounts.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": account})
}

func (h *HTTPController) UpdateUser(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, ErrUserNotFound)
	if err != nil {
		return err
	}

	var patch AccountPatch
	if err := bindJSON(c, &patch); err != nil {
		return err
	}

	account, err := h.Accounts.Update(c.UserContext(), id, patch, principal)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    account,
	})
}

func (h *HTTPController) DeactivateUser(c *fiber.Ctx) error {
	return h.setActive(c, false, "User deactivated successfully")
}

func (h *HTTPController) ActivateUser(c *fiber.Ctx) error {
	return h.setActive(c, true, "User activated successfully")
}

func (h *HTTPController) setActive(c *fiber.Ctx, active bool, message string) error {
	id, err := pathID(c, ErrUserNotFound)
	if err != nil {
		return err
	}

	account, err := h.Accounts.SetActive(c.UserContext(), id, active)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": message, "user": account})
}

func (h *HTTPController) CreatePolicy(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	var payload PolicyInput
	if err := bindJSON(c, &payload); err != nil {
		return err
	}

	policy, err := h.Policies.Create(c.UserContext(), payload, principal.ID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Policy created successfully",
		"policy":  policy,
	})
}

// ListPolicies returns the caller's own policies for patients. Staff see
// every policy and may filter by user_id and payer_program.
func (h *HTTPController) ListPolicies(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	var filter PolicyFilter
	if principal.Role == RolePatient {
		filter.UserID = principal.ID
	} else {
		if raw := c.Query("user_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return NewValidationError("Invalid user_id")
			}
			filter.UserID = id
		}
		filter.PayerProgram = PayerProgram(c.Query("payer_program"))
	}

	policies, err := h.Policies.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"policies": policies, "count": len(policies)})
}

func (h *HTTPController) PolicyPrograms(c *fiber.Ctx) error {
	stats, err := h.Policies.ProgramStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (h *HTTPController) GetPolicy(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, ErrPolicyNotFound)
	if err != nil {
		return err
	}

	policy, err := h.Policies.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	if principal.Role == RolePatient && policy.UserID != principal.ID {
		return Forbidden("You can only view your own policies")
	}

	return c.JSON(fiber.Map{"policy": policy})
}

func (h *HTTPController) UpdatePolicy(c *fiber.Ctx) error {
	id, err := pathID(c, ErrPolicyNotFound)
	if err != nil {
		return err
	}

	var patch PolicyPatch
	if err := bindJSON(c, &patch); err != nil {
		return err
	}

	policy, err := h.Policies.Update(c.UserContext(), id, patch)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "Policy updated successfully",
		"policy":  policy,
	})
}

func (h *HTTPController) UpdatePolicyStatus(c *fiber.Ctx) error {
	id, err := pathID(c, ErrPolicyNotFound)
	if err != nil {
		return err
	}

	status, err := bindStatus(c)
	if err != nil {
		return err
	}

	policy, err := h.Policies.UpdateStatus(c.UserContext(), id, PolicyStatus(status))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "Policy status updated successfully",
		"policy":  policy,
	})
}

func (h *HTTPController) SubmitClaim(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	var payload ClaimInput
	if err := bindJSON(c, &payload); err != nil {
		return err
	}

	claim, err := h.Claims.Create(c.UserContext(), payload, principal.ID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Claim submitted successfully",
		"claim":   claim,
	})
}

func (h *HTTPController) ListClaims(c *fiber.Ctx) error {
	claims, err := h.visibleClaims(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"claims": claims, "count": len(claims)})
}

func (h *HTTPController) visibleClaims(c *fiber.Ctx) ([]*Claim, error) {
	principal, err := requirePrincipal(c)
	if err != nil {
		return nil, err
	}
	if principal.Role == RolePatient {
		return h.Claims.ListByUser(c.UserContext(), principal.ID)
	}
	return h.Claims.ListAll(c.UserContext())
}

// ExportClaims streams every claim as a spreadsheet attachment
func (h *HTTPController) ExportClaims(c *fiber.Ctx) error {
	claims, err := h.Claims.ListAll(c.UserContext())
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("claims-%s%s", h.now().UTC().Format("20060102-150405"), h.Exporter.FileExtension())
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, h.Exporter.ContentType())

	if err := h.Exporter.WriteClaims(c.UserContext(), c, claims); err != nil {
		h.Logger.Error("claims export failed", "error", err)
		return err
	}
	return nil
}

func (h *HTTPController) GetClaim(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, ErrClaimNotFound)
	if err != nil {
		return err
	}

	claim, err := h.Claims.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	if principal.Role == RolePatient && claim.UserID != principal.ID {
		return Forbidden("You can only view your own claims")
	}

	return c.JSON(fiber.Map{"claim": claim})
}

func (h *HTTPController) ReviewClaim(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, ErrClaimNotFound)
	if err != nil {
		return err
	}

	var decision ReviewDecision
	if err := bindJSON(c, &decision); err != nil {
		return err
	}
	if decision.Status == "" {
		return NewValidationError("Status is required for review")
	}

	claim, err := h.Claims.Review(c.UserContext(), id, decision, principal.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "Claim reviewed successfully",
		"claim":   claim,
	})
}

func (h *HTTPController) UpdateClaimStatus(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, ErrClaimNotFound)
	if err != nil {
		return err
	}

	status, err := bindStatus(c)
	if err != nil {
		return err
	}

	claim, err := h.Claims.UpdateStatus(c.UserContext(), id, ClaimStatus(status), ActorFromPrincipal(principal))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "Claim status updated successfully",
		"claim":   claim,
	})
}

func requirePrincipal(c *fiber.Ctx) (Principal, error) {
	principal, ok := GetPrincipal(c)
	if !ok {
		return Principal{}, ErrMissingToken
	}
	return principal, nil
}

// pathID parses the :id parameter. Unparseable ids can never match a record
// so they are reported as notFound.
func pathID(c *fiber.Ctx, notFound error) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, notFound
	}
	return id, nil
}

func bindJSON(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return NewValidationError("No data provided")
	}
	if err := c.BodyParser(out); err != nil {
		return NewValidationError("Invalid request body").WithMetadata(map[string]any{
			"cause": err.Error(),
		})
	}
	return nil
}

func bindStatus(c *fiber.Ctx) (string, error) {
	var payload statusRequest
	if err := bindJSON(c, &payload); err != nil {
		return "", NewValidationError("Status is required")
	}
	if payload.Status == nil || *payload.Status == "" {
		return "", NewValidationError("Status is required")
	}
	return *payload.Status, nil
}
