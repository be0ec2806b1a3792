package presence

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"SocialSync/service/eventx"
)

type presenceSink struct {
	mu     sync.Mutex
	events []eventx.PresencePayload
}

func (s *presenceSink) on(evt eventx.Event) {
	if evt.Type != eventx.PresenceChanged {
		return
	}
	var p eventx.PresencePayload
	if json.Unmarshal(evt.Payload, &p) != nil {
		return
	}
	s.mu.Lock()
	s.events = append(s.events, p)
	s.mu.Unlock()
}

func (s *presenceSink) all() []eventx.PresencePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]eventx.PresencePayload(nil), s.events...)
}

func newTestRegistry(t *testing.T) (*Registry, *eventx.MemoryBus, *presenceSink) {
	t.Helper()
	bus := eventx.NewMemoryBus()
	sink := &presenceSink{}
	bus.Subscribe(sink.on)
	return NewRegistry(bus), bus, sink
}

func TestFirstSessionPublishesOnline(t *testing.T) {
	reg, bus, sink := newTestRegistry(t)

	reg.Register("alice", "s1")
	reg.Register("alice", "s2") // 第二条会话不再发事件
	bus.Drain()

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 (only first session announces)", len(events))
	}
	if events[0].UserID != "alice" || !events[0].Online {
		t.Fatalf("event = %+v", events[0])
	}
	if !reg.IsOnline("alice") {
		t.Fatal("alice should be online")
	}
	if got := len(reg.SessionsFor("alice")); got != 2 {
		t.Fatalf("sessions = %d, want 2", got)
	}
}

func TestLastSessionPublishesOffline(t *testing.T) {
	reg, bus, sink := newTestRegistry(t)

	reg.Register("alice", "s1")
	reg.Register("alice", "s2")
	reg.Unregister("s1")
	bus.Drain()
	if n := len(sink.all()); n != 1 {
		t.Fatalf("offline must wait for last session, events = %d", n)
	}

	reg.Unregister("s2")
	bus.Drain()
	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("events = %d, want online+offline", len(events))
	}
	last := events[1]
	if last.UserID != "alice" || last.Online {
		t.Fatalf("last event = %+v, want offline", last)
	}
	if reg.IsOnline("alice") {
		t.Fatal("alice should be offline")
	}
}

func TestUnregisterUnknownSessionIsNoop(t *testing.T) {
	reg, bus, sink := newTestRegistry(t)
	reg.Unregister("ghost")
	bus.Drain()
	if n := len(sink.all()); n != 0 {
		t.Fatalf("unknown session must not publish, events = %d", n)
	}
}

// 并发连抢一个用户：事件数必须精确配对（1 次 online + 1 次 offline），
// 不因交错打出多余的状态翻转。
func TestConcurrentChurnBalancedEvents(t *testing.T) {
	reg, bus, sink := newTestRegistry(t)

	const sessions = 64
	var wg sync.WaitGroup
	wg.Add(sessions)
	for i := 0; i < sessions; i++ {
		sid := fmt.Sprintf("s%d", i)
		go func() {
			defer wg.Done()
			reg.Register("alice", sid)
		}()
	}
	wg.Wait()

	wg.Add(sessions)
	for i := 0; i < sessions; i++ {
		sid := fmt.Sprintf("s%d", i)
		go func() {
			defer wg.Done()
			reg.Unregister(sid)
		}()
	}
	wg.Wait()
	bus.Drain()

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("events = %d, want exactly online+offline", len(events))
	}
	if !events[0].Online || events[1].Online {
		t.Fatalf("events out of order: %+v", events)
	}
	if reg.IsOnline("alice") {
		t.Fatal("alice should be offline after churn")
	}
}

func TestRegistryIgnoresEmptyIDs(t *testing.T) {
	reg, bus, sink := newTestRegistry(t)
	reg.Register("", "s1")
	reg.Register("alice", "")
	bus.Drain()
	if n := len(sink.all()); n != 0 {
		t.Fatalf("empty ids must be ignored, events = %d", n)
	}
}

// 用户注销干净后登记表不留残余条目，反复上下线不涨内存
func TestRegistryReleasesEmptyUsers(t *testing.T) {
	reg, bus, sink := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", n)
			for j := 0; j < 50; j++ {
				sid := fmt.Sprintf("%s-s%d", user, j)
				reg.Register(user, sid)
				reg.Unregister(sid)
			}
		}(i)
	}
	wg.Wait()
	bus.Drain()

	reg.mu.Lock()
	users, sessions := len(reg.users), len(reg.bySession)
	reg.mu.Unlock()
	if users != 0 || sessions != 0 {
		t.Fatalf("registry retains %d users / %d sessions after full churn", users, sessions)
	}

	// 摘除后再上线仍然宣告在线
	before := len(sink.all())
	reg.Register("u0", "fresh")
	bus.Drain()
	events := sink.all()
	if len(events) != before+1 || !events[len(events)-1].Online {
		t.Fatal("re-register after teardown must announce online")
	}
}
