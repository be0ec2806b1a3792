package push

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SocialSync/module/interaction/model"
	"SocialSync/module/interaction/store"
	"SocialSync/service/eventx"
	"SocialSync/service/presence"
	"SocialSync/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var wsJwt = security.DefaultOptions([]byte("ws-test-secret"))

type wsEnv struct {
	url   string
	store *store.MemoryStore
	pub   *store.Publishing
	bus   *eventx.MemoryBus
	reg   *presence.Registry
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemoryStore()
	_ = mem.SeedPost(context.Background(), &model.Post{ID: "post1", AuthorID: "alice"})

	bus := eventx.NewMemoryBus()
	pub := store.NewPublishing(mem, bus)
	reg := presence.NewRegistry(bus)
	mgr := NewConnManager(ManagerConf{}, "node-test")
	t.Cleanup(mgr.Close)

	disp := NewDispatcher(pub, reg, NewFanout(mgr, 2, 64))
	disp.Start(bus)
	t.Cleanup(disp.Stop)

	r := gin.New()
	r.GET("/ws", NewServer(mgr, reg, wsJwt).HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &wsEnv{
		url:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		store: mem,
		pub:   pub,
		bus:   bus,
		reg:   reg,
	}
}

func dialAuthed(t *testing.T, env *wsEnv, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(env.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	token, _, err := security.Generate(wsJwt, user)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(ClientFrame{Type: FrameAuth, Token: token}); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, func() bool { return env.reg.IsOnline(user) }, "user never came online")
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) PushFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f PushFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("bad frame %q: %v", data, err)
	}
	return f
}

func TestWSAuthAndPresence(t *testing.T) {
	env := newWSEnv(t)

	conn := dialAuthed(t, env, "alice")
	if !env.reg.IsOnline("alice") {
		t.Fatal("alice should be online")
	}

	_ = conn.Close()
	waitUntil(t, func() bool { return !env.reg.IsOnline("alice") }, "alice never went offline")
}

func TestWSRejectsBadToken(t *testing.T) {
	env := newWSEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(env.url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(ClientFrame{Type: FrameAuth, Token: "garbage"}); err != nil {
		t.Fatal(err)
	}
	// 服务端直接关连接
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("bad token should close the channel")
	}
}

func TestWSRejectsNonAuthFirstFrame(t *testing.T) {
	env := newWSEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(env.url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(ClientFrame{Type: FramePing}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("first frame must be auth")
	}
}

func TestWSPingPong(t *testing.T) {
	env := newWSEnv(t)
	conn := dialAuthed(t, env, "alice")

	if err := conn.WriteJSON(ClientFrame{Type: FramePing}); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, conn); f.Type != FramePong {
		t.Fatalf("frame = %+v, want pong", f)
	}
}

// 端到端：bob 点赞 alice 的帖子，alice 的推送通道上
// 依次能看到点赞帧和随之落库的通知帧。
func TestWSReceivesDomainPush(t *testing.T) {
	env := newWSEnv(t)
	conn := dialAuthed(t, env, "alice")

	if err := env.pub.Like(context.Background(), "bob", "post1", ""); err != nil {
		t.Fatal(err)
	}

	types := map[string]bool{}
	for i := 0; i < 2; i++ {
		f := readFrame(t, conn)
		types[f.Type] = true
	}
	if !types[string(eventx.LikeAdded)] || !types[string(eventx.NotificationCreated)] {
		t.Fatalf("frames = %v", types)
	}

	unread, _ := env.store.UnreadNotifications(context.Background(), "alice")
	if len(unread) != 1 {
		t.Fatalf("unread = %d", len(unread))
	}
}
