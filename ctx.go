package insurance

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// PrincipalLocalsKey is the fiber locals key holding the request principal
const PrincipalLocalsKey = "principal"

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the principal in the context
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalCtxKey).(Principal)
	return p, ok
}

// SetPrincipal stores p in the fiber locals and in the user context so
// downstream services can read it from either
func SetPrincipal(c *fiber.Ctx, p Principal) {
	c.Locals(PrincipalLocalsKey, p)
	c.SetUserContext(WithPrincipal(c.UserContext(), p))
}

// GetPrincipal extracts the principal set by the Protected middleware
func GetPrincipal(c *fiber.Ctx) (Principal, bool) {
	raw := c.Locals(PrincipalLocalsKey)
	if raw == nil {
		return Principal{}, false
	}
	p, ok := raw.(Principal)
	return p, ok
}
