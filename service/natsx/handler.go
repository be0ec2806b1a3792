package natsx

import "context"

// Message 消费侧看到的消息
type Message struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// HandlerFunc 业务处理函数
type HandlerFunc func(ctx context.Context, msg Message) error

// Middleware 中间件
type Middleware func(next HandlerFunc) HandlerFunc

// Chain 组装中间件（后注册的先包裹）
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
