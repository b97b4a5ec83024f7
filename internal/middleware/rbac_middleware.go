package middleware

import (
	"net/http"
	"strings"

	"go-hrms/internal/rbac"
	"go-hrms/internal/shared/apperror"
	"go-hrms/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// Authorizer is satisfied by rbac.Service.
type Authorizer interface {
	Can(role rbac.Role, resource, action string) bool
}

// RBACAuthorize passes when the caller's role holds any of the listed
// actions on resource.
func RBACAuthorize(authz Authorizer, resource string, actions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := rbac.ParseRole(c.GetString("role"))
		if err != nil {
			abortWith(c, http.StatusUnauthorized, apperror.CodeUnauthorized, "Missing auth context")
			return
		}

		for _, action := range actions {
			if authz.Can(role, resource, action) {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, apperror.CodeForbidden,
			"You do not have permission to access this resource",
			gin.H{"required": resource + ":" + strings.Join(actions, "|")},
		)
		c.Abort()
	}
}
