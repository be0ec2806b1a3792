package kafka

import (
	"encoding/json"

	"SocialSync/logger"
	"SocialSync/service/eventx"
	"SocialSync/tools/errs"

	"github.com/Shopify/sarama"
)

// PublishEvent 把领域事件写到 Kafka。
// Key 用事件的 ordering key，保证同一 (actor, object, kind) 的事件
// 落进同一个分区，消费侧天然按序。
func PublishEvent(evt eventx.Event) error {
	if Producer == nil {
		return errs.ErrTransport.WrapMsg("kafka producer not initialized")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return errs.ErrInternal.WrapMsg("marshal event", "err", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: Cfg.Topic,
		Key:   sarama.StringEncoder(evt.OrderingKey()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("evt-id"), Value: []byte(evt.ID)},
		},
	}
	partition, offset, err := Producer.SendMessage(msg)
	if err != nil {
		return errs.ErrTransport.WrapMsg("send message", "err", err)
	}
	logger.Debugf("kafka publish topic=%s partition=%d offset=%d key=%s", Cfg.Topic, partition, offset, evt.OrderingKey())
	return nil
}
