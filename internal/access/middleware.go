package access

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ticketline/backend/internal/auth"
	"github.com/ticketline/backend/internal/permission"
	"github.com/ticketline/backend/pkg/response"
)

// Guard builds the authorization middleware chain.
type Guard struct {
	repo     *Repository
	authRepo *auth.Repository
	jwt      *auth.JWTService
	logger   *zap.Logger
}

// NewGuard creates an access guard.
func NewGuard(repo *Repository, authRepo *auth.Repository, jwt *auth.JWTService, logger *zap.Logger) *Guard {
	return &Guard{repo: repo, authRepo: authRepo, jwt: jwt, logger: logger}
}

// Authenticate extracts the principal from the Authorization header:
// "Token <key>" for team API tokens, "Bearer <jwt>" for session users.
// A session that fails validation is denied without raising detail.
func (g *Guard) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}

		switch parts[0] {
		case "Token":
			tok, err := g.authRepo.GetAPIToken(c.Request.Context(), parts[1])
			if err != nil {
				g.logger.Error("token lookup", zap.Error(err))
				response.Internal(c, "authentication failed")
				c.Abort()
				return
			}
			if tok == nil {
				response.Unauthorized(c, "invalid or inactive token")
				c.Abort()
				return
			}
			c.Set(ContextPrincipal, Principal{Token: tok})
		case "Bearer":
			claims, err := g.jwt.Validate(parts[1])
			if err != nil {
				response.Unauthorized(c, "invalid or expired session")
				c.Abort()
				return
			}
			u, err := g.authRepo.GetUserByID(c.Request.Context(), claims.UserID)
			if err != nil {
				g.logger.Error("user lookup", zap.Error(err))
				response.Internal(c, "authentication failed")
				c.Abort()
				return
			}
			if u == nil || !u.IsActive {
				response.Unauthorized(c, "invalid or expired session")
				c.Abort()
				return
			}
			c.Set(ContextPrincipal, Principal{User: u})
		default:
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		c.Next()
	}
}

// requiredCapability picks the capability for the request: write for unsafe
// methods, read otherwise. An empty capability means scope membership is
// enough.
func requiredCapability(method string, read, write permission.Capability) permission.Capability {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return read
	default:
		return write
	}
}

// Organizer resolves the :organizer route segment and checks the
// principal's organizer-level capability set. Unknown or inaccessible
// organizers yield a uniform 404.
func (g *Guard) Organizer(read, write permission.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		org, err := g.repo.OrganizerBySlug(c.Request.Context(), c.Param("organizer"))
		if err != nil {
			g.logger.Error("organizer lookup", zap.Error(err))
			response.Internal(c, "scope resolution failed")
			c.Abort()
			return
		}
		if org == nil {
			response.NotFound(c, "organizer not found")
			c.Abort()
			return
		}

		p := GetPrincipal(c)
		teams, err := g.repo.OrganizerTeams(c.Request.Context(), org.ID, p)
		if err != nil {
			g.logger.Error("organizer teams", zap.Error(err))
			response.Internal(c, "scope resolution failed")
			c.Abort()
			return
		}
		if len(teams) == 0 {
			response.NotFound(c, "organizer not found")
			c.Abort()
			return
		}

		permset := permission.FromTeams(teams)
		if need := requiredCapability(c.Request.Method, read, write); need != "" && !permset.Has(need) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}

		c.Set(ContextOrganizer, org)
		c.Set(ContextPermSet, permset)
		c.Next()
	}
}

// Event resolves the :organizer/:event route segments and checks the
// principal's event-level capability set. A missing event and an event the
// principal cannot see are indistinguishable.
func (g *Guard) Event(read, write permission.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		org, err := g.repo.OrganizerBySlug(ctx, c.Param("organizer"))
		if err != nil {
			g.logger.Error("organizer lookup", zap.Error(err))
			response.Internal(c, "scope resolution failed")
			c.Abort()
			return
		}
		if org == nil {
			response.NotFound(c, "event not found")
			c.Abort()
			return
		}

		event, err := g.repo.EventBySlug(ctx, org.ID, c.Param("event"))
		if err != nil {
			g.logger.Error("event lookup", zap.Error(err))
			response.Internal(c, "scope resolution failed")
			c.Abort()
			return
		}
		if event == nil {
			response.NotFound(c, "event not found")
			c.Abort()
			return
		}

		p := GetPrincipal(c)
		teams, err := g.repo.EventTeams(ctx, org.ID, event.ID, p)
		if err != nil {
			g.logger.Error("event teams", zap.Error(err))
			response.Internal(c, "scope resolution failed")
			c.Abort()
			return
		}
		if len(teams) == 0 {
			response.NotFound(c, "event not found")
			c.Abort()
			return
		}

		permset := permission.FromTeams(teams)
		if need := requiredCapability(c.Request.Method, read, write); need != "" && !permset.Has(need) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}

		c.Set(ContextOrganizer, org)
		c.Set(ContextEvent, event)
		c.Set(ContextPermSet, permset)
		c.Next()
	}
}
