package kafka

import (
	"encoding/json"
	"time"

	"SocialSync/logger"
	"SocialSync/service/eventx"
	"SocialSync/service/natsx"
)

// Bridge 把进程内总线桥接到 Kafka 事件流。
// 分区键用 OrderingKey，同一互动元组保持分区内有序；
// 节点自己生产的消息靠 origin header 抑制回声。
type Bridge struct {
	nodeID string
	local  *eventx.MemoryBus
	seen   natsx.IdemStore
	cancel func()
}

func NewBridge(nodeID string, local *eventx.MemoryBus) *Bridge {
	b := &Bridge{nodeID: nodeID, local: local, seen: natsx.NewMemIdem(10 * time.Minute)}

	RegisterHandler(Cfg.Topic, func(topic string, key, value []byte) error {
		var evt eventx.Event
		if err := json.Unmarshal(value, &evt); err != nil {
			logger.Warnf("[kafka-bridge] bad event payload: %v", err)
			return nil
		}
		if evt.OriginNode == nodeID {
			return nil // 本节点的回声
		}
		_, _ = b.seen.SeenOnce(evt.ID, 0)
		return local.Publish(evt)
	})

	// 本地 -> Kafka
	b.cancel = local.Subscribe(func(evt eventx.Event) {
		if seen, _ := b.seen.SeenOnce(evt.ID, 0); seen {
			return
		}
		evt.OriginNode = nodeID
		if err := PublishEvent(evt); err != nil {
			logger.Warnf("[kafka-bridge] publish event id=%s: %v", evt.ID, err)
		}
	})

	return b
}

func (b *Bridge) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}
