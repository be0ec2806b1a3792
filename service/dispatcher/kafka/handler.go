package kafka

import "sync"

// MessageHandler 按 topic 注册的消费回调
type MessageHandler func(topic string, key, value []byte) error

var (
	handlerMu sync.RWMutex
	handlers  = make(map[string]MessageHandler)
)

func RegisterHandler(topic string, h MessageHandler) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	handlers[topic] = h
}

func GetHandler(topic string) (MessageHandler, bool) {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	h, ok := handlers[topic]
	return h, ok
}
