package eventx

import (
	"encoding/json"
	"time"
)

// Type 领域事件类型（闭集）
type Type string

const (
	LikeAdded           Type = "LikeAdded"
	LikeRemoved         Type = "LikeRemoved"
	BookmarkAdded       Type = "BookmarkAdded"
	BookmarkRemoved     Type = "BookmarkRemoved"
	FollowAdded         Type = "FollowAdded"
	FollowRemoved       Type = "FollowRemoved"
	CommentAdded        Type = "CommentAdded"
	CommentRemoved      Type = "CommentRemoved"
	CommentLikeToggled  Type = "CommentLikeToggled"
	NotificationCreated Type = "NotificationCreated"
	PresenceChanged     Type = "PresenceChanged"
	ChatMessage         Type = "ChatMessage"
)

// Event 一次已提交变更对应的事件，发布后不可变。
// OriginSessionID 可选，派发层据此抑制对发起会话的回声；
// OriginNode 由跨节点桥接填写，抑制节点级回声。
type Event struct {
	ID              string          `json:"id"`
	Type            Type            `json:"type"`
	Payload         json.RawMessage `json:"payload"`
	ProducedAt      time.Time       `json:"produced_at"`
	OriginSessionID string          `json:"origin_session_id,omitempty"`
	OriginNode      string          `json:"origin_node,omitempty"`
}

// EdgePayload 点赞/收藏/关注类事件负载
type EdgePayload struct {
	Actor   string `json:"actor"`            // 发起者
	Object  string `json:"object"`           // 客体（帖子/评论/用户）
	Owner   string `json:"owner,omitempty"`  // 客体归属者（帖子作者等）
	Kind    string `json:"kind"`             // like / bookmark / follow
	Present bool   `json:"present"`          // 事件后该边是否存在
}

// CommentPayload 评论事件负载
type CommentPayload struct {
	Actor      string `json:"actor"`
	CommentID  string `json:"comment_id"`
	PostID     string `json:"post_id"`
	PostAuthor string `json:"post_author"`
	Present    bool   `json:"present"`
}

// PresencePayload 在线状态变化
type PresencePayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// NotificationPayload 通知创建
type NotificationPayload struct {
	NotificationID string `json:"notification_id"`
	Recipient      string `json:"recipient"`
	Actor          string `json:"actor"`
	Kind           string `json:"kind"`
	SourceID       string `json:"source_id"`
}

// ChatMessagePayload 私聊消息（本核心只关心未读计数与推送，不落消息体）
type ChatMessagePayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Preview string `json:"preview,omitempty"`
}

// OrderingKey 同一 (subject, object, kind) 元组内的事件保证有序投递；
// 跨元组不保证。无主体归属的事件按自身类型聚簇。
func (e *Event) OrderingKey() string {
	switch e.Type {
	case LikeAdded, LikeRemoved, BookmarkAdded, BookmarkRemoved,
		FollowAdded, FollowRemoved, CommentLikeToggled:
		var p EdgePayload
		if err := json.Unmarshal(e.Payload, &p); err == nil {
			return p.Actor + "|" + p.Object + "|" + p.Kind
		}
	case CommentAdded, CommentRemoved:
		var p CommentPayload
		if err := json.Unmarshal(e.Payload, &p); err == nil {
			return "comment|" + p.PostID
		}
	case PresenceChanged:
		var p PresencePayload
		if err := json.Unmarshal(e.Payload, &p); err == nil {
			return "presence|" + p.UserID
		}
	case NotificationCreated:
		var p NotificationPayload
		if err := json.Unmarshal(e.Payload, &p); err == nil {
			return "notify|" + p.Recipient
		}
	case ChatMessage:
		var p ChatMessagePayload
		if err := json.Unmarshal(e.Payload, &p); err == nil {
			return "chat|" + p.From + "|" + p.To
		}
	}
	return string(e.Type)
}

// MustPayload 编码负载，编码失败视为编程错误。
func MustPayload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
