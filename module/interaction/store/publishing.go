package store

import (
	"context"
	"time"

	"SocialSync/logger"
	"SocialSync/module/interaction/model"
	"SocialSync/service/eventx"
	"SocialSync/tools/errs"
	"SocialSync/tools/ids"
)

// Publishing 在权威写入之上追加 outbox 规则：
// 每次成功变更在返回前同步发布恰好一个领域事件；
// 事件无法入队时补偿回滚写入，变更不得报成功。
type Publishing struct {
	Store
	bus eventx.Bus
}

func NewPublishing(s Store, bus eventx.Bus) *Publishing {
	return &Publishing{Store: s, bus: bus}
}

// Like 点赞帖子。已点赞返回 ErrConflict（调用方决定是否当作良性空操作）。
func (p *Publishing) Like(ctx context.Context, actor, postID, originSession string) error {
	return p.addEdge(ctx, actor, postID, model.EdgeLike, eventx.LikeAdded, originSession)
}

func (p *Publishing) Unlike(ctx context.Context, actor, postID, originSession string) error {
	return p.removeEdge(ctx, actor, postID, model.EdgeLike, eventx.LikeRemoved, originSession)
}

func (p *Publishing) Bookmark(ctx context.Context, actor, postID, originSession string) error {
	return p.addEdge(ctx, actor, postID, model.EdgeBookmark, eventx.BookmarkAdded, originSession)
}

func (p *Publishing) Unbookmark(ctx context.Context, actor, postID, originSession string) error {
	return p.removeEdge(ctx, actor, postID, model.EdgeBookmark, eventx.BookmarkRemoved, originSession)
}

func (p *Publishing) Follow(ctx context.Context, actor, userID, originSession string) error {
	return p.addEdge(ctx, actor, userID, model.EdgeFollow, eventx.FollowAdded, originSession)
}

func (p *Publishing) Unfollow(ctx context.Context, actor, userID, originSession string) error {
	return p.removeEdge(ctx, actor, userID, model.EdgeFollow, eventx.FollowRemoved, originSession)
}

// ToggleCommentLike 评论点赞开关；返回切换后的状态。
func (p *Publishing) ToggleCommentLike(ctx context.Context, actor, commentID, originSession string) (bool, error) {
	owner, err := p.ownerFor(ctx, commentID, model.EdgeLike)
	if err != nil {
		return false, err
	}

	present := true
	if _, err := p.Store.CreateEdge(ctx, actor, commentID, model.EdgeLike); err != nil {
		if !errs.ErrConflict.Is(err) {
			return false, err
		}
		// 已存在 -> 撤销
		if err := p.Store.DeleteEdge(ctx, actor, commentID, model.EdgeLike); err != nil {
			return false, err
		}
		present = false
	}

	evt := eventx.Event{
		ID:              ids.GenerateString(),
		Type:            eventx.CommentLikeToggled,
		ProducedAt:      time.Now(),
		OriginSessionID: originSession,
		Payload: eventx.MustPayload(&eventx.EdgePayload{
			Actor:   actor,
			Object:  commentID,
			Owner:   owner,
			Kind:    string(model.EdgeLike),
			Present: present,
		}),
	}
	if err := p.bus.Publish(evt); err != nil {
		p.compensateEdge(ctx, actor, commentID, model.EdgeLike, present)
		return false, errs.ErrTransport.WrapMsg("publish comment like toggle")
	}
	return present, nil
}

// AddComment 发表评论并发布事件。
func (p *Publishing) AddComment(ctx context.Context, actor, postID, content, originSession string) (*model.Comment, error) {
	postAuthor, err := p.Store.OwnerOf(ctx, postID)
	if err != nil {
		return nil, err
	}
	c := &model.Comment{
		ID:         ids.GenerateString(),
		PostID:     postID,
		AuthorID:   actor,
		Content:    content,
		CreateTime: time.Now(),
	}
	if err := p.Store.AddComment(ctx, c); err != nil {
		return nil, err
	}
	evt := eventx.Event{
		ID:              ids.GenerateString(),
		Type:            eventx.CommentAdded,
		ProducedAt:      time.Now(),
		OriginSessionID: originSession,
		Payload: eventx.MustPayload(&eventx.CommentPayload{
			Actor:      actor,
			CommentID:  c.ID,
			PostID:     postID,
			PostAuthor: postAuthor,
			Present:    true,
		}),
	}
	if err := p.bus.Publish(evt); err != nil {
		if _, derr := p.Store.RemoveComment(ctx, c.ID, actor); derr != nil {
			logger.Errorf("[store] compensate comment %s: %v", c.ID, derr)
		}
		return nil, errs.ErrTransport.WrapMsg("publish comment added")
	}
	return c, nil
}

func (p *Publishing) RemoveComment(ctx context.Context, actor, commentID, originSession string) error {
	c, err := p.Store.RemoveComment(ctx, commentID, actor)
	if err != nil {
		return err
	}
	postAuthor, oerr := p.Store.OwnerOf(ctx, c.PostID)
	if oerr != nil {
		postAuthor = ""
	}
	evt := eventx.Event{
		ID:              ids.GenerateString(),
		Type:            eventx.CommentRemoved,
		ProducedAt:      time.Now(),
		OriginSessionID: originSession,
		Payload: eventx.MustPayload(&eventx.CommentPayload{
			Actor:      actor,
			CommentID:  c.ID,
			PostID:     c.PostID,
			PostAuthor: postAuthor,
			Present:    false,
		}),
	}
	if err := p.bus.Publish(evt); err != nil {
		if aerr := p.Store.AddComment(ctx, c); aerr != nil {
			logger.Errorf("[store] compensate comment remove %s: %v", c.ID, aerr)
		}
		return errs.ErrTransport.WrapMsg("publish comment removed")
	}
	return nil
}

// CreateNotification 落通知并发布 NotificationCreated。
func (p *Publishing) CreateNotification(ctx context.Context, n *model.NotificationRecord) error {
	if n.ID == "" {
		n.ID = ids.GenerateString()
	}
	if err := p.Store.InsertNotification(ctx, n); err != nil {
		return err
	}
	evt := eventx.Event{
		ID:         ids.GenerateString(),
		Type:       eventx.NotificationCreated,
		ProducedAt: time.Now(),
		Payload: eventx.MustPayload(&eventx.NotificationPayload{
			NotificationID: n.ID,
			Recipient:      n.RecipientID,
			Actor:          n.ActorID,
			Kind:           string(n.Kind),
			SourceID:       n.SourceID,
		}),
	}
	if err := p.bus.Publish(evt); err != nil {
		return errs.ErrTransport.WrapMsg("publish notification created")
	}
	return nil
}

// SendChatMessage 私聊消息本身由消息服务落库，这里只进事件流。
func (p *Publishing) SendChatMessage(ctx context.Context, from, to, preview, originSession string) error {
	evt := eventx.Event{
		ID:              ids.GenerateString(),
		Type:            eventx.ChatMessage,
		ProducedAt:      time.Now(),
		OriginSessionID: originSession,
		Payload: eventx.MustPayload(&eventx.ChatMessagePayload{
			From:    from,
			To:      to,
			Preview: preview,
		}),
	}
	if err := p.bus.Publish(evt); err != nil {
		return errs.ErrTransport.WrapMsg("publish chat message")
	}
	return nil
}

// ---------------- 内部 ----------------

func (p *Publishing) addEdge(ctx context.Context, actor, object string, kind model.EdgeKind, typ eventx.Type, originSession string) error {
	owner, err := p.ownerFor(ctx, object, kind)
	if err != nil {
		return err
	}
	if _, err := p.Store.CreateEdge(ctx, actor, object, kind); err != nil {
		return err
	}
	if err := p.publishEdge(actor, object, owner, kind, typ, true, originSession); err != nil {
		p.compensateEdge(ctx, actor, object, kind, true)
		return errs.ErrTransport.WrapMsg("publish edge event", "type", string(typ))
	}
	return nil
}

func (p *Publishing) removeEdge(ctx context.Context, actor, object string, kind model.EdgeKind, typ eventx.Type, originSession string) error {
	owner, err := p.ownerFor(ctx, object, kind)
	if err != nil {
		return err
	}
	if err := p.Store.DeleteEdge(ctx, actor, object, kind); err != nil {
		return err
	}
	if err := p.publishEdge(actor, object, owner, kind, typ, false, originSession); err != nil {
		p.compensateEdge(ctx, actor, object, kind, false)
		return errs.ErrTransport.WrapMsg("publish edge event", "type", string(typ))
	}
	return nil
}

// ownerFor 关注边的归属者就是被关注用户自身，其余按对象查。
func (p *Publishing) ownerFor(ctx context.Context, object string, kind model.EdgeKind) (string, error) {
	if kind == model.EdgeFollow {
		return object, nil
	}
	return p.Store.OwnerOf(ctx, object)
}

func (p *Publishing) publishEdge(actor, object, owner string, kind model.EdgeKind, typ eventx.Type, present bool, originSession string) error {
	return p.bus.Publish(eventx.Event{
		ID:              ids.GenerateString(),
		Type:            typ,
		ProducedAt:      time.Now(),
		OriginSessionID: originSession,
		Payload: eventx.MustPayload(&eventx.EdgePayload{
			Actor:   actor,
			Object:  object,
			Owner:   owner,
			Kind:    string(kind),
			Present: present,
		}),
	})
}

// compensateEdge 回滚一次未能发布事件的边变更。
func (p *Publishing) compensateEdge(ctx context.Context, actor, object string, kind model.EdgeKind, created bool) {
	var err error
	if created {
		err = p.Store.DeleteEdge(ctx, actor, object, kind)
	} else {
		_, err = p.Store.CreateEdge(ctx, actor, object, kind)
	}
	if err != nil {
		logger.Errorf("[store] compensate edge %s|%s|%s: %v", actor, object, kind, err)
	}
}
