package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/egov/grievance-service/internal/config"
	"github.com/egov/grievance-service/internal/domain"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

const (
	actorKey = "auth_actor"

	HeaderUserID   = "X-USER-ID"
	HeaderUserRole = "X-USER-ROLE"
)

// Middleware turns already-verified caller credentials into a domain.Actor.
// In header mode the gateway forwards X-USER-ID and X-USER-ROLE; in jwt mode the
// caller presents an HS256 bearer token with sub and role claims.
type Middleware struct {
	mode   config.AuthMode
	tokens *TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(mode config.AuthMode, tokens *TokenManager) *Middleware {
	return &Middleware{mode: mode, tokens: tokens}
}

// Handle enforces identification for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	var (
		actor domain.Actor
		err   error
	)
	if m.mode == config.AuthModeJWT {
		actor, err = m.fromBearer(c)
	} else {
		actor, err = fromHeaders(c)
	}
	if err != nil {
		return err
	}

	c.Locals(actorKey, actor)
	return c.Next()
}

// fromHeaders copies the header values. c.Get aliases the request buffer that
// fasthttp reuses, and the actor outlives the request.
func fromHeaders(c *fiber.Ctx) (domain.Actor, error) {
	id := strings.TrimSpace(utils.CopyString(c.Get(HeaderUserID)))
	rawRole := utils.CopyString(c.Get(HeaderUserRole))
	if id == "" || strings.TrimSpace(rawRole) == "" {
		return domain.Actor{}, apperrors.NewUnauthorized("missing caller identity headers")
	}
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.Actor{}, apperrors.NewUnauthorized("unknown caller role")
	}
	return domain.Actor{ID: id, Role: role}, nil
}

func (m *Middleware) fromBearer(c *fiber.Ctx) (domain.Actor, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return domain.Actor{}, apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return domain.Actor{}, apperrors.NewUnauthorized("invalid authorization header")
	}

	actor, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return domain.Actor{}, apperrors.NewUnauthorized("invalid token")
	}
	return actor, nil
}

// ActorFromContext retrieves the identified caller.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}

// MustActor is ActorFromContext for handlers mounted behind Handle.
func MustActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("caller not identified")
	}
	return actor, nil
}
