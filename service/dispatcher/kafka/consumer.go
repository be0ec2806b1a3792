package kafka

import (
	"context"

	"SocialSync/logger"

	"github.com/Shopify/sarama"
)

// ConsumerGroupHandler 实现 sarama.ConsumerGroupHandler，
// 按 topic 分发给注册的 MessageHandler。
type ConsumerGroupHandler struct{}

func (ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h, ok := GetHandler(msg.Topic)
		if !ok {
			logger.Warnf("kafka no handler for topic %s", msg.Topic)
			session.MarkMessage(msg, "")
			continue
		}
		if err := h(msg.Topic, msg.Key, msg.Value); err != nil {
			// at-least-once：处理失败只记日志，仍然推进位点，
			// 幂等性由消费者自己保障
			logger.Errorf("kafka handle %s: %v", msg.Topic, err)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// StartConsumerGroup 拉起消费组循环，ctx 取消即退出
func StartConsumerGroup(ctx context.Context, topics []string) error {
	group, err := sarama.NewConsumerGroupFromClient(Cfg.GroupID, KafkaClient)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = group.Close()
	}()
	go func() {
		for err := range group.Errors() {
			logger.Errorf("kafka consumer group: %v", err)
		}
	}()
	for {
		if err := group.Consume(ctx, topics, ConsumerGroupHandler{}); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Errorf("kafka consume: %v", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
