package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Roles assigned by the session collaborator. The core trusts the supplied
// identity and checks only the role.
const (
	RoleMember  = "member"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

const (
	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"

	identityKey = "identity"
)

// Identity is the authenticated caller, as supplied by the session layer
// sitting in front of this service.
type Identity struct {
	UserID string
	Role   string
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// IdentityMiddleware extracts the authenticated identity from trusted
// headers. Requests without an identity are rejected; credential
// verification happened upstream.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing identity",
			})
			return
		}

		role := c.GetHeader(userRoleHeader)
		if role == "" {
			role = RoleMember
		}

		c.Set(identityKey, Identity{UserID: userID, Role: role})
		c.Next()
	}
}

// IdentityFrom returns the identity stored by IdentityMiddleware.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
