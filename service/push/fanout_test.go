package push

import (
	"sync"
	"testing"
	"time"
)

// gateSender 投递前等待放行，可制造在途/积压状态
type gateSender struct {
	mu   sync.Mutex
	gate chan struct{}
	sids []string
	boom string // 撞上此会话ID时 panic
}

func (s *gateSender) SendToSession(sid string, _ []byte) bool {
	if s.gate != nil {
		<-s.gate
	}
	if s.boom != "" && sid == s.boom {
		panic("sender blew up")
	}
	s.mu.Lock()
	s.sids = append(s.sids, sid)
	s.mu.Unlock()
	return true
}

func (s *gateSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sids...)
}

func TestBroadcastDropsWhenQueueFull(t *testing.T) {
	sender := &gateSender{gate: make(chan struct{})}
	f := NewFanout(sender, 1, 1)
	defer f.Close()

	f.Broadcast([]string{"s1"}, []byte("x")) // 工人取走后卡在 gate
	waitUntil(t, func() bool { return len(f.jobs) == 0 }, "worker must take the first job")
	f.Broadcast([]string{"s2"}, []byte("x")) // 排进队列

	done := make(chan struct{})
	go func() {
		f.Broadcast([]string{"s3"}, []byte("x")) // 队列已满，必须立即丢弃返回
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast must not block when the queue is full")
	}

	close(sender.gate)
	waitUntil(t, func() bool { return len(sender.sent()) == 2 }, "queued frames must deliver")
	for _, sid := range sender.sent() {
		if sid == "s3" {
			t.Fatal("overflow frame must be dropped")
		}
	}
}

func TestFanoutSurvivesSenderPanic(t *testing.T) {
	sender := &gateSender{boom: "boom"}
	f := NewFanout(sender, 2, 16)
	defer f.Close()

	f.Broadcast([]string{"boom"}, []byte("x")) // 吃掉一个工人
	f.Broadcast([]string{"ok"}, []byte("x"))   // 仍须有人投递

	waitUntil(t, func() bool {
		for _, sid := range sender.sent() {
			if sid == "ok" {
				return true
			}
		}
		return false
	}, "surviving worker must keep delivering")
}
