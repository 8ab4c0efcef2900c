// Package access implements the request authorization layer: principal
// extraction, organizer/event scope resolution and capability checks.
//
// A principal is either a team API token (service access) or a session user
// (JWT). A route scoped by :organizer resolves organizer-level permissions;
// a route scoped by :organizer and :event resolves event-level permissions.
// Denials are opaque: the response never reveals which permission was
// missing, and an inaccessible scope is indistinguishable from a missing
// one.
package access

import (
	"github.com/gin-gonic/gin"

	"github.com/ticketline/backend/internal/models"
	"github.com/ticketline/backend/internal/permission"
)

// Context keys set by the access middleware.
const (
	ContextPrincipal = "access_principal"
	ContextOrganizer = "access_organizer"
	ContextEvent     = "access_event"
	ContextPermSet   = "access_permset"
)

// Principal is the authenticated caller: exactly one of User or Token is set.
type Principal struct {
	User  *models.User
	Token *models.TeamAPIToken
}

// GetPrincipal returns the authenticated principal from the gin context.
func GetPrincipal(c *gin.Context) Principal {
	return c.MustGet(ContextPrincipal).(Principal)
}

// GetOrganizer returns the resolved organizer scope from the gin context.
func GetOrganizer(c *gin.Context) *models.Organizer {
	return c.MustGet(ContextOrganizer).(*models.Organizer)
}

// GetEvent returns the resolved event scope from the gin context.
func GetEvent(c *gin.Context) *models.Event {
	return c.MustGet(ContextEvent).(*models.Event)
}

// GetPermissionSet returns the effective capability set at the resolved scope.
func GetPermissionSet(c *gin.Context) permission.Set {
	return c.MustGet(ContextPermSet).(permission.Set)
}
