package model

import "time"

// NotificationKind 通知类型
type NotificationKind string

const (
	NotifyLike        NotificationKind = "like"         // 有人点赞了你的帖子
	NotifyCommentLike NotificationKind = "comment_like" // 有人点赞了你的评论
	NotifyFollow      NotificationKind = "follow"       // 有人关注了你
	NotifyComment     NotificationKind = "comment"      // 有人评论了你参与的帖子
)

// NotificationRecord 站内通知记录。
// read 只允许 false -> true 翻转一次（标记已读），不会回退。
type NotificationRecord struct {
	ID          string           `bson:"_id"`          // 雪花ID（字符串）
	RecipientID string           `bson:"recipient_id"` // 接收者用户ID
	ActorID     string           `bson:"actor_id"`     // 触发者用户ID（绝不等于接收者）
	Kind        NotificationKind `bson:"kind"`         // 通知类型
	SourceID    string           `bson:"source_id"`    // 来源实体ID（帖子/评论/用户）

	Read       bool      `bson:"read"`        // 是否已读
	CreateTime time.Time `bson:"create_time"` // 创建时间
}

// NotificationCollection 集合名
const NotificationCollection = "notification"
