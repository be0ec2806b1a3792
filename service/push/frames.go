package push

import (
	"encoding/json"

	"SocialSync/service/eventx"
	"SocialSync/tools/errs"
)

// 客户端帧类型。推送通道上行只用于连接生命周期，
// 领域变更一律走 REST。
const (
	FrameAuth = "auth" // 首帧：携带 JWT
	FramePing = "ping" // 心跳
	FramePong = "pong" // 心跳应答（服务端下行）
)

// ClientFrame 上行帧
type ClientFrame struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// PushFrame 下行帧：{type: DomainEvent.type, payload}
type PushFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseClientFrame 解析上行帧
func ParseClientFrame(data []byte) (*ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errs.ErrArgs.WrapMsg("bad client frame", "err", err)
	}
	if f.Type == "" {
		return nil, errs.ErrArgs.WrapMsg("client frame missing type")
	}
	return &f, nil
}

// EncodePush 把领域事件编成下行帧。
func EncodePush(evt eventx.Event) []byte {
	b, _ := json.Marshal(&PushFrame{Type: string(evt.Type), Payload: evt.Payload})
	return b
}

// EncodePong 心跳应答帧
func EncodePong() []byte {
	b, _ := json.Marshal(&PushFrame{Type: FramePong})
	return b
}
