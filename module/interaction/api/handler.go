package api

import (
	"net/http"

	"SocialSync/module/interaction/store"
	"SocialSync/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler 交互 REST 入口。返回统一信封 {success, code?, message?, data?}。
// 冲突/缺失不走 5xx：客户端按 code 把 Conflict 归为良性空操作。
type Handler struct {
	st *store.Publishing
}

func NewHandler(st *store.Publishing) *Handler {
	return &Handler{st: st}
}

func okEnvelope(data any) gin.H {
	h := gin.H{"success": true}
	if data != nil {
		h["data"] = data
	}
	return h
}

func failEnvelope(err error) gin.H {
	code := errs.ServerInternalError
	msg := "internal error"
	if ce, ok := errs.Unwrap(err).(*errs.CodeError); ok {
		code = ce.Code
		msg = ce.Msg
	}
	return gin.H{"success": false, "code": code, "message": msg}
}

func statusFor(err error) int {
	switch {
	case errs.ErrConflict.Is(err):
		return http.StatusOK // 良性冲突不报 4xx/5xx
	case errs.ErrRecordNotFound.Is(err):
		return http.StatusNotFound
	case errs.ErrTokenInvalid.Is(err):
		return http.StatusUnauthorized
	case errs.ErrArgs.Is(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) reply(c *gin.Context, data any, err error) {
	if err != nil {
		c.JSON(statusFor(err), failEnvelope(err))
		return
	}
	c.JSON(http.StatusOK, okEnvelope(data))
}

// ===== 点赞 =====

func (h *Handler) LikePost(c *gin.Context) {
	err := h.st.Like(c.Request.Context(), currentUser(c), c.Param("id"), originSession(c))
	h.reply(c, nil, err)
}

func (h *Handler) UnlikePost(c *gin.Context) {
	err := h.st.Unlike(c.Request.Context(), currentUser(c), c.Param("id"), originSession(c))
	h.reply(c, nil, err)
}

// ===== 收藏 =====

func (h *Handler) BookmarkPost(c *gin.Context) {
	err := h.st.Bookmark(c.Request.Context(), currentUser(c), c.Param("id"), originSession(c))
	h.reply(c, nil, err)
}

func (h *Handler) UnbookmarkPost(c *gin.Context) {
	err := h.st.Unbookmark(c.Request.Context(), currentUser(c), c.Param("id"), originSession(c))
	h.reply(c, nil, err)
}

// ===== 关注 =====

func (h *Handler) FollowUser(c *gin.Context) {
	target := c.Param("id")
	if target == currentUser(c) {
		h.reply(c, nil, errs.ErrArgs.WrapMsg("cannot follow self"))
		return
	}
	err := h.st.Follow(c.Request.Context(), currentUser(c), target, originSession(c))
	h.reply(c, nil, err)
}

func (h *Handler) UnfollowUser(c *gin.Context) {
	err := h.st.Unfollow(c.Request.Context(), currentUser(c), c.Param("id"), originSession(c))
	h.reply(c, nil, err)
}

// ===== 评论 =====

type commentReq struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) AddComment(c *gin.Context) {
	var req commentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reply(c, nil, errs.ErrArgs.WrapMsg("content required"))
		return
	}
	cm, err := h.st.AddComment(c.Request.Context(), currentUser(c), c.Param("id"), req.Content, originSession(c))
	if err != nil {
		h.reply(c, nil, err)
		return
	}
	h.reply(c, gin.H{"comment_id": cm.ID}, nil)
}

func (h *Handler) RemoveComment(c *gin.Context) {
	err := h.st.RemoveComment(c.Request.Context(), currentUser(c), c.Param("id"), originSession(c))
	h.reply(c, nil, err)
}

func (h *Handler) ToggleCommentLike(c *gin.Context) {
	present, err := h.st.ToggleCommentLike(c.Request.Context(), currentUser(c), c.Param("id"), originSession(c))
	if err != nil {
		h.reply(c, nil, err)
		return
	}
	h.reply(c, gin.H{"liked": present}, nil)
}

// ===== 通知 =====

type markReadReq struct {
	Ids []string `json:"ids"` // 空数组 = 全量已读
}

func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	var req markReadReq
	_ = c.ShouldBindJSON(&req)
	n, err := h.st.MarkNotificationsRead(c.Request.Context(), currentUser(c), req.Ids...)
	if err != nil {
		h.reply(c, nil, err)
		return
	}
	h.reply(c, gin.H{"marked": n}, nil)
}

// UnreadNotifications 是断线客户端的兜底拉取口。
func (h *Handler) UnreadNotifications(c *gin.Context) {
	list, err := h.st.UnreadNotifications(c.Request.Context(), currentUser(c))
	if err != nil {
		h.reply(c, nil, err)
		return
	}
	h.reply(c, gin.H{"notifications": list, "count": len(list)}, nil)
}

// ===== 私聊 =====

type chatReq struct {
	To      string `json:"to" binding:"required"`
	Preview string `json:"preview"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reply(c, nil, errs.ErrArgs.WrapMsg("to required"))
		return
	}
	err := h.st.SendChatMessage(c.Request.Context(), currentUser(c), req.To, req.Preview, originSession(c))
	h.reply(c, nil, err)
}
