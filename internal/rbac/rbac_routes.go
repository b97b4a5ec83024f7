package rbac

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts /rbac behind authn; enforce additionally requires
// the adminOnly guard.
func RegisterRoutes(r *gin.RouterGroup, handler *Handler, authn, adminOnly gin.HandlerFunc) {
	group := r.Group("/rbac")
	group.Use(authn)
	{
		group.GET("/me", handler.Me)
		group.POST("/enforce", adminOnly, handler.Enforce)
	}
}
