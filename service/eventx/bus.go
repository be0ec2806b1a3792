package eventx

import (
	"sync"
	"time"

	"SocialSync/logger"
	"SocialSync/tools/errs"
	"SocialSync/tools/ids"
	"SocialSync/tools/safe"
)

// Handler 订阅回调。总线对订阅者是 at-least-once，
// 回调必须幂等（按实体身份收敛，而不是按到达次数累加）。
type Handler func(Event)

// Bus 事件总线。Publish 返回 nil 即表示事件已入队成功，
// 存储层以此作为"变更成功"的边界（outbox 语义）。
type Bus interface {
	Publish(evt Event) error
	Subscribe(h Handler) (cancel func())
}

// MemoryBus 进程内总线。
// 同一 OrderingKey 的事件走同一条串行队列，保证同元组投递有序；
// 不同 key 之间并发，不做任何跨元组承诺。
type MemoryBus struct {
	mu      sync.Mutex
	nextSub int64
	subs    map[int64]Handler
	queues  map[string]chan Event
	closed  bool

	queueCap int
	inflight sync.WaitGroup
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:     make(map[int64]Handler),
		queues:   make(map[string]chan Event),
		queueCap: 1024,
	}
}

func (b *MemoryBus) Publish(evt Event) error {
	if evt.ID == "" {
		evt.ID = ids.GenerateString()
	}
	if evt.ProducedAt.IsZero() {
		evt.ProducedAt = time.Now()
	}

	key := evt.OrderingKey()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errs.ErrTransport.WrapMsg("bus closed")
	}
	q, ok := b.queues[key]
	if !ok {
		q = make(chan Event, b.queueCap)
		b.queues[key] = q
		safe.SafeGo(func() { b.drain(q) })
	}
	b.inflight.Add(1)
	b.mu.Unlock()

	q <- evt
	return nil
}

// drain 单协程消费一个 key 的队列，逐个订阅者顺序投递。
func (b *MemoryBus) drain(q chan Event) {
	for evt := range q {
		b.mu.Lock()
		hs := make([]Handler, 0, len(b.subs))
		for _, h := range b.subs {
			hs = append(hs, h)
		}
		b.mu.Unlock()

		for _, h := range hs {
			b.deliver(h, evt)
		}
		b.inflight.Done()
	}
}

func (b *MemoryBus) deliver(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[bus] subscriber panic type=%s id=%s: %v", evt.Type, evt.ID, r)
		}
	}()
	h(evt)
}

func (b *MemoryBus) Subscribe(h Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	id := b.nextSub
	b.subs[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Drain 等待当前已入队事件全部投递完成（测试用）。
func (b *MemoryBus) Drain() {
	b.inflight.Wait()
}

// Close 停止接收新事件并关闭队列。
func (b *MemoryBus) Close() {
	b.inflight.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
}
