package store

import (
	"context"

	"SocialSync/module/interaction/model"
)

// Store 交互存储的权威边界。
// 所有读写以文档存储的单文档原子性兜底唯一约束：
// CreateEdge 重复 -> errs.ErrConflict；DeleteEdge 不存在 -> errs.ErrRecordNotFound。
type Store interface {
	CreateEdge(ctx context.Context, subject, object string, kind model.EdgeKind) (*model.InteractionEdge, error)
	DeleteEdge(ctx context.Context, subject, object string, kind model.EdgeKind) error
	EdgeExists(ctx context.Context, subject, object string, kind model.EdgeKind) (bool, error)

	// Followers / Following 围绕 follow 边的两个方向。
	Followers(ctx context.Context, userID string) ([]string, error)
	Following(ctx context.Context, userID string) ([]string, error)

	AddComment(ctx context.Context, c *model.Comment) error
	RemoveComment(ctx context.Context, commentID, actor string) (*model.Comment, error)
	// CommentAuthors 返回某帖子下所有评论者（去重），派发层用来聚出线程参与者。
	CommentAuthors(ctx context.Context, postID string) ([]string, error)

	// OwnerOf 查询帖子/评论的归属用户。外部文档服务在本核心内只暴露这一点。
	OwnerOf(ctx context.Context, objectID string) (string, error)

	InsertNotification(ctx context.Context, n *model.NotificationRecord) error
	MarkNotificationsRead(ctx context.Context, recipient string, ids ...string) (int64, error)
	UnreadNotifications(ctx context.Context, recipient string) ([]model.NotificationRecord, error)
}
