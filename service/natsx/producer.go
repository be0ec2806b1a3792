package natsx

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Producer 生产端
type Producer struct {
	c *Client
}

func NewProducer(c *Client) *Producer {
	return &Producer{c: c}
}

// Publish 按 biz 路由发布
func (p *Producer) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	return p.publish(ctx, biz, data, hdr, "")
}

// PublishOnce 带 Nats-Msg-Id 去重发布（JS 端按 msgID 幂等）
func (p *Producer) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	if msgID == "" {
		return fmt.Errorf("msgID required")
	}
	return p.publish(ctx, biz, data, hdr, msgID)
}

func (p *Producer) publish(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	r, ok := p.c.route(biz)
	if !ok {
		return fmt.Errorf("route not found: %s", biz)
	}

	msg := nats.NewMsg(r.Subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Set(k, v)
	}
	if msgID != "" {
		msg.Header.Set("Nats-Msg-Id", msgID)
	}

	switch r.Mode {
	case Core:
		return p.c.nc.PublishMsg(msg)
	case JetStreamPush:
		if err := p.c.ensureJS(); err != nil {
			return err
		}
		_, err := p.c.js.PublishMsg(msg, nats.Context(ctx))
		return err
	default:
		return fmt.Errorf("unknown mode: %d", r.Mode)
	}
}
