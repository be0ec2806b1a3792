package push

import (
	"context"
	"encoding/json"
	"time"

	"SocialSync/logger"
	"SocialSync/module/interaction/model"
	"SocialSync/module/interaction/store"
	"SocialSync/service/eventx"
	"SocialSync/service/presence"
	"SocialSync/tools/errs"
)

// Dispatcher 事件总线的直接订阅者：
// 算受众 -> 落通知 -> 向受众的每个在线会话扇出下行帧。
// 投递是 fire-and-forget，掉线会话错过的事件由下一次 REST 拉取补平。
type Dispatcher struct {
	st     *store.Publishing
	reg    *presence.Registry
	fanout *Fanout
	cancel func()
}

func NewDispatcher(st *store.Publishing, reg *presence.Registry, fanout *Fanout) *Dispatcher {
	return &Dispatcher{st: st, reg: reg, fanout: fanout}
}

// Start 订阅总线。
func (d *Dispatcher) Start(bus eventx.Bus) {
	d.cancel = bus.Subscribe(d.Consume)
}

func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Consume 处理单个事件。总线是 at-least-once，
// 通知落库按事件身份取ID，重复投递命中 Conflict 直接跳过。
func (d *Dispatcher) Consume(evt eventx.Event) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()

	audience, err := Audience(ctx, evt, d.st)
	if err != nil {
		logger.Errorf("[dispatch] audience type=%s id=%s: %v", evt.Type, evt.ID, err)
		return
	}
	if len(audience) == 0 {
		return
	}

	d.createNotifications(ctx, evt, audience)

	frame := EncodePush(evt)
	for _, recipient := range audience {
		sessions := d.reg.SessionsFor(recipient)
		if len(sessions) == 0 {
			continue // 不在线，REST 兜底
		}
		if evt.OriginSessionID != "" {
			sessions = without(sessions, evt.OriginSessionID)
		}
		d.fanout.Broadcast(sessions, frame)
	}
}

// createNotifications 只有"新增"类交互产生站内通知；
// 撤销、在线状态、私聊、通知事件本身都不再落通知。
func (d *Dispatcher) createNotifications(ctx context.Context, evt eventx.Event, audience []string) {
	kind, actor, sourceID, ok := notifyFields(evt)
	if !ok {
		return
	}
	for _, recipient := range audience {
		if recipient == actor {
			continue
		}
		n := &model.NotificationRecord{
			// 事件ID+接收者 充当幂等键：重复投递撞 Conflict
			ID:          evt.ID + ":" + recipient,
			RecipientID: recipient,
			ActorID:     actor,
			Kind:        kind,
			SourceID:    sourceID,
			CreateTime:  evt.ProducedAt,
		}
		if err := d.st.CreateNotification(ctx, n); err != nil {
			if errs.ErrConflict.Is(err) {
				continue // 重复事件
			}
			logger.Errorf("[dispatch] create notification evt=%s recipient=%s: %v", evt.ID, recipient, err)
		}
	}
}

func notifyFields(evt eventx.Event) (kind model.NotificationKind, actor, sourceID string, ok bool) {
	switch evt.Type {
	case eventx.LikeAdded:
		var p eventx.EdgePayload
		if json.Unmarshal(evt.Payload, &p) != nil {
			return "", "", "", false
		}
		return model.NotifyLike, p.Actor, p.Object, true
	case eventx.CommentLikeToggled:
		var p eventx.EdgePayload
		if json.Unmarshal(evt.Payload, &p) != nil || !p.Present {
			return "", "", "", false
		}
		return model.NotifyCommentLike, p.Actor, p.Object, true
	case eventx.FollowAdded:
		var p eventx.EdgePayload
		if json.Unmarshal(evt.Payload, &p) != nil {
			return "", "", "", false
		}
		return model.NotifyFollow, p.Actor, p.Actor, true
	case eventx.CommentAdded:
		var p eventx.CommentPayload
		if json.Unmarshal(evt.Payload, &p) != nil {
			return "", "", "", false
		}
		return model.NotifyComment, p.Actor, p.CommentID, true
	}
	return "", "", "", false
}

func without(sessions []string, exclude string) []string {
	out := sessions[:0]
	for _, s := range sessions {
		if s != exclude {
			out = append(out, s)
		}
	}
	return out
}
