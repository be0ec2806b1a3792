package natsx

import (
	"context"
	"encoding/json"
	"time"

	"SocialSync/logger"
	"SocialSync/service/eventx"
)

const (
	// BizEvent 事件流 biz 名
	BizEvent = "social.event"
	// SubjectEvent 事件流 subject
	SubjectEvent = "social.evt.stream"
	// hdrOriginNode 事件来源节点头，用于回声抑制
	hdrOriginNode = "X-Origin-Node"
)

// Bridge 把进程内总线桥接到 NATS：
// 本地发布的事件转发到 subject，收到的远端事件注入本地总线。
// 本节点发出的事件通过 X-Origin-Node 头抑制回声。
type Bridge struct {
	nodeID string
	mgr    *Manager
	local  *eventx.MemoryBus
	seen   IdemStore // 已注入本地的远端事件，不再回流
	cancel func()
}

// NewBridge 注册路由并建立双向桥接。
func NewBridge(nodeID string, mgr *Manager, local *eventx.MemoryBus, queue string) (*Bridge, error) {
	b := &Bridge{nodeID: nodeID, mgr: mgr, local: local, seen: NewMemIdem(10 * time.Minute)}

	if err := mgr.RegisterRoute(Route{
		Biz:     BizEvent,
		Subject: SubjectEvent,
		Mode:    Core,
		Queue:   queue,
	}); err != nil {
		return nil, err
	}

	// 远端 -> 本地
	if err := mgr.Subscribe(BizEvent, func(ctx context.Context, msg Message) error {
		if msg.Header[hdrOriginNode] == nodeID {
			return nil // 本节点发出的回声
		}
		var evt eventx.Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			logger.Warnf("[bridge] bad event payload: %v", err)
			return nil
		}
		_, _ = b.seen.SeenOnce(evt.ID, 0) // 标记为远端注入，本地订阅不再回流
		return local.Publish(evt)
	}); err != nil {
		return nil, err
	}

	// 本地 -> 远端
	b.cancel = local.Subscribe(func(evt eventx.Event) {
		if seen, _ := b.seen.SeenOnce(evt.ID, 0); seen {
			return // 远端注入的事件
		}
		data, err := json.Marshal(&evt)
		if err != nil {
			logger.Errorf("[bridge] marshal event id=%s: %v", evt.ID, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		hdr := map[string]string{hdrOriginNode: nodeID}
		if err := mgr.PublishOnce(ctx, BizEvent, data, hdr, evt.ID); err != nil {
			// 发布失败不重试：断连客户端靠下一次 REST 拉取兜底
			logger.Warnf("[bridge] publish event id=%s: %v", evt.ID, err)
		}
	})

	return b, nil
}

func (b *Bridge) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}
