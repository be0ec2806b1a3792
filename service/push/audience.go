package push

import (
	"context"
	"encoding/json"

	"SocialSync/service/eventx"
	"SocialSync/tools/errs"
)

// Graph 受众解析需要的关系读视图（存储层实现）。
type Graph interface {
	CommentAuthors(ctx context.Context, postID string) ([]string, error)
	Followers(ctx context.Context, userID string) ([]string, error)
	Following(ctx context.Context, userID string) ([]string, error)
}

// Audience 计算一个领域事件的受众（用户ID集合）。
// 规则：
//   - 点赞/评论点赞：客体归属者，归属者==发起者时为空（不自我通知）
//   - 收藏：无人（私有行为）
//   - 关注：被关注者
//   - 评论：帖子作者 + 线程既有评论者 - 发起者
//   - 在线状态：主体的社交邻域（关注者 ∪ 被关注者）
//   - 通知创建：接收者
//   - 私聊消息：收件人
func Audience(ctx context.Context, evt eventx.Event, st Graph) ([]string, error) {
	switch evt.Type {
	case eventx.LikeAdded, eventx.LikeRemoved, eventx.CommentLikeToggled:
		var p eventx.EdgePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad edge payload", "type", string(evt.Type))
		}
		if p.Owner == "" || p.Owner == p.Actor {
			return nil, nil
		}
		return []string{p.Owner}, nil

	case eventx.BookmarkAdded, eventx.BookmarkRemoved:
		// 收藏是私有行为，不打扰任何人
		return nil, nil

	case eventx.FollowAdded, eventx.FollowRemoved:
		var p eventx.EdgePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad edge payload", "type", string(evt.Type))
		}
		if p.Object == p.Actor {
			return nil, nil
		}
		return []string{p.Object}, nil

	case eventx.CommentAdded, eventx.CommentRemoved:
		var p eventx.CommentPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad comment payload")
		}
		authors, err := st.CommentAuthors(ctx, p.PostID)
		if err != nil {
			return nil, err
		}
		seen := map[string]struct{}{p.Actor: {}} // 发起者除外
		var out []string
		if p.PostAuthor != "" && p.PostAuthor != p.Actor {
			seen[p.PostAuthor] = struct{}{}
			out = append(out, p.PostAuthor)
		}
		for _, a := range authors {
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
		return out, nil

	case eventx.PresenceChanged:
		var p eventx.PresencePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad presence payload")
		}
		followers, err := st.Followers(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		following, err := st.Following(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(followers)+len(following))
		var out []string
		for _, u := range append(followers, following...) {
			if u == p.UserID {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
		return out, nil

	case eventx.NotificationCreated:
		var p eventx.NotificationPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad notification payload")
		}
		return []string{p.Recipient}, nil

	case eventx.ChatMessage:
		var p eventx.ChatMessagePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad chat payload")
		}
		return []string{p.To}, nil
	}
	return nil, nil
}
