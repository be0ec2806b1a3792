package api

import (
	"SocialSync/tools/security"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 挂载交互 REST 路由（统一走鉴权中间件）。
func RegisterRoutes(r *gin.Engine, h *Handler, jwtOpts security.Options) {
	g := r.Group("/api", AuthMiddleware(jwtOpts))

	g.POST("/posts/:id/like", h.LikePost)
	g.DELETE("/posts/:id/like", h.UnlikePost)
	g.POST("/posts/:id/bookmark", h.BookmarkPost)
	g.DELETE("/posts/:id/bookmark", h.UnbookmarkPost)
	g.POST("/posts/:id/comments", h.AddComment)

	g.POST("/users/:id/follow", h.FollowUser)
	g.DELETE("/users/:id/follow", h.UnfollowUser)

	g.DELETE("/comments/:id", h.RemoveComment)
	g.POST("/comments/:id/like", h.ToggleCommentLike)

	g.POST("/notifications/read", h.MarkNotificationsRead)
	g.GET("/notifications/unread", h.UnreadNotifications)

	g.POST("/chat/messages", h.SendChatMessage)
}
