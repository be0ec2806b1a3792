package natsx

import (
	"context"
	"testing"
	"time"
)

func TestMemIdemSeenOnce(t *testing.T) {
	store := NewMemIdem(time.Minute)

	seen, err := store.SeenOnce("k1", 0)
	if err != nil || seen {
		t.Fatalf("first sighting = (%v, %v)", seen, err)
	}
	seen, err = store.SeenOnce("k1", 0)
	if err != nil || !seen {
		t.Fatalf("second sighting = (%v, %v)", seen, err)
	}
	// 另一个 key 互不影响
	if seen, _ := store.SeenOnce("k2", 0); seen {
		t.Fatal("distinct keys must not collide")
	}
}

func TestMemIdemExpiry(t *testing.T) {
	store := NewMemIdem(time.Minute)

	if seen, _ := store.SeenOnce("k1", 10*time.Millisecond); seen {
		t.Fatal("fresh key")
	}
	time.Sleep(20 * time.Millisecond)
	if seen, _ := store.SeenOnce("k1", 10*time.Millisecond); seen {
		t.Fatal("expired key counts as new")
	}
}

func TestIdemMiddlewareSkipsDuplicates(t *testing.T) {
	store := NewMemIdem(time.Minute)

	calls := 0
	h := IdemMiddleware(store, time.Minute)(func(_ context.Context, _ Message) error {
		calls++
		return nil
	})

	msg := Message{
		Subject: "social.evt.stream",
		Data:    []byte(`{"id":"e1"}`),
		Header:  map[string]string{"Nats-Msg-Id": "e1"},
	}
	if err := h(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if err := h(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1 (duplicate skipped)", calls)
	}
}

func TestIdemMiddlewareFallsBackToContent(t *testing.T) {
	store := NewMemIdem(time.Minute)

	calls := 0
	h := IdemMiddleware(store, time.Minute)(func(_ context.Context, _ Message) error {
		calls++
		return nil
	})

	// 没有消息ID头：用 subject+内容弱去重
	msg := Message{Subject: "s", Data: []byte("same")}
	_ = h(context.Background(), msg)
	_ = h(context.Background(), msg)
	_ = h(context.Background(), Message{Subject: "s", Data: []byte("other")})

	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
}
