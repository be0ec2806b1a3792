package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"SocialSync/module/interaction/model"
	"SocialSync/service/eventx"
	"SocialSync/tools/errs"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	_ = s.SeedPost(context.Background(), &model.Post{ID: "post1", AuthorID: "bob"})
	return s
}

func TestCreateEdgeConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateEdge(ctx, "alice", "post1", model.EdgeLike); err != nil {
		t.Fatalf("CreateEdge: %v", err)
	}
	_, err := s.CreateEdge(ctx, "alice", "post1", model.EdgeLike)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("duplicate edge should be conflict, got %v", err)
	}

	// 不同 kind 是另一条边，不冲突
	if _, err := s.CreateEdge(ctx, "alice", "post1", model.EdgeBookmark); err != nil {
		t.Fatalf("bookmark edge alongside like: %v", err)
	}
}

func TestDeleteEdgeNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.DeleteEdge(ctx, "alice", "post1", model.EdgeLike)
	if !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("delete absent edge should be not found, got %v", err)
	}

	if _, err := s.CreateEdge(ctx, "alice", "post1", model.EdgeLike); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEdge(ctx, "alice", "post1", model.EdgeLike); err != nil {
		t.Fatalf("delete existing edge: %v", err)
	}
	ok, _ := s.EdgeExists(ctx, "alice", "post1", model.EdgeLike)
	if ok {
		t.Fatal("edge should be gone after delete")
	}
}

func TestFollowGraph(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustEdge := func(subject, object string) {
		t.Helper()
		if _, err := s.CreateEdge(ctx, subject, object, model.EdgeFollow); err != nil {
			t.Fatalf("follow %s->%s: %v", subject, object, err)
		}
	}
	mustEdge("alice", "bob")
	mustEdge("carol", "bob")
	mustEdge("bob", "dave")

	followers, err := s.Followers(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(followers) != 2 || followers[0] != "alice" || followers[1] != "carol" {
		t.Fatalf("followers of bob = %v", followers)
	}

	following, err := s.Following(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(following) != 1 || following[0] != "dave" {
		t.Fatalf("following of bob = %v", following)
	}
}

func TestCommentAuthorsDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	add := func(id, author string) {
		t.Helper()
		if err := s.AddComment(ctx, &model.Comment{ID: id, PostID: "post1", AuthorID: author, Content: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	add("c1", "alice")
	add("c2", "alice")
	add("c3", "carol")

	authors, err := s.CommentAuthors(ctx, "post1")
	if err != nil {
		t.Fatal(err)
	}
	if len(authors) != 2 {
		t.Fatalf("authors = %v, want dedup to 2", authors)
	}
}

func TestRemoveCommentScopedToAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddComment(ctx, &model.Comment{ID: "c1", PostID: "post1", AuthorID: "alice"}); err != nil {
		t.Fatal(err)
	}
	// 别人删不掉
	if _, err := s.RemoveComment(ctx, "c1", "mallory"); !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("foreign delete should be not found, got %v", err)
	}
	if _, err := s.RemoveComment(ctx, "c1", "alice"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
}

func TestOwnerOfCommentFallsBackToAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddComment(ctx, &model.Comment{ID: "c1", PostID: "post1", AuthorID: "alice"}); err != nil {
		t.Fatal(err)
	}
	owner, err := s.OwnerOf(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if owner != "alice" {
		t.Fatalf("owner of comment = %q, want alice", owner)
	}
	if _, err := s.OwnerOf(ctx, "ghost"); !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("unknown object should be not found, got %v", err)
	}
}

func TestNotificationsMarkRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"n1", "n2", "n3"} {
		err := s.InsertNotification(ctx, &model.NotificationRecord{
			ID: id, RecipientID: "bob", ActorID: "alice", Kind: model.NotifyLike, SourceID: "post1",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	// 幂等键：重复插入撞冲突
	err := s.InsertNotification(ctx, &model.NotificationRecord{ID: "n1", RecipientID: "bob"})
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("duplicate notification should be conflict, got %v", err)
	}

	n, err := s.MarkNotificationsRead(ctx, "bob", "n1")
	if err != nil || n != 1 {
		t.Fatalf("mark one = (%d, %v)", n, err)
	}
	unread, err := s.UnreadNotifications(ctx, "bob")
	if err != nil || len(unread) != 2 {
		t.Fatalf("unread after mark one = %d, %v", len(unread), err)
	}

	n, err = s.MarkNotificationsRead(ctx, "bob")
	if err != nil || n != 2 {
		t.Fatalf("mark all = (%d, %v)", n, err)
	}
	unread, _ = s.UnreadNotifications(ctx, "bob")
	if len(unread) != 0 {
		t.Fatalf("unread after mark all = %d", len(unread))
	}
}

// ---------------- Publishing（outbox 规则）----------------

// failBus 总线故障注入
type failBus struct{}

func (failBus) Publish(eventx.Event) error      { return errs.ErrTransport.Wrap() }
func (failBus) Subscribe(eventx.Handler) func() { return func() {} }

// eventSink 收集总线事件（跨 key 的投递是并发的）
type eventSink struct {
	mu     sync.Mutex
	events []eventx.Event
}

func (s *eventSink) add(evt eventx.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *eventSink) all() []eventx.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]eventx.Event(nil), s.events...)
}

func collectEvents(t *testing.T, bus *eventx.MemoryBus) *eventSink {
	t.Helper()
	sink := &eventSink{}
	bus.Subscribe(sink.add)
	return sink
}

func TestLikePublishesEvent(t *testing.T) {
	s := newTestStore(t)
	bus := eventx.NewMemoryBus()
	pub := NewPublishing(s, bus)
	got := collectEvents(t, bus)
	ctx := context.Background()

	if err := pub.Like(ctx, "alice", "post1", "sess-1"); err != nil {
		t.Fatalf("Like: %v", err)
	}
	bus.Drain()

	events := got.all()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	evt := events[0]
	if evt.Type != eventx.LikeAdded {
		t.Fatalf("type = %s", evt.Type)
	}
	if evt.OriginSessionID != "sess-1" {
		t.Fatalf("origin session = %q", evt.OriginSessionID)
	}
	var p eventx.EdgePayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.Actor != "alice" || p.Object != "post1" || p.Owner != "bob" || !p.Present {
		t.Fatalf("payload = %+v", p)
	}
}

func TestDoubleLikeIsConflictWithoutSecondEvent(t *testing.T) {
	s := newTestStore(t)
	bus := eventx.NewMemoryBus()
	pub := NewPublishing(s, bus)
	got := collectEvents(t, bus)
	ctx := context.Background()

	if err := pub.Like(ctx, "alice", "post1", ""); err != nil {
		t.Fatal(err)
	}
	err := pub.Like(ctx, "alice", "post1", "")
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("second like should be conflict, got %v", err)
	}
	bus.Drain()
	if n := len(got.all()); n != 1 {
		t.Fatalf("conflict must not publish, events = %d", n)
	}
}

func TestPublishFailureRollsBackEdge(t *testing.T) {
	s := newTestStore(t)
	pub := NewPublishing(s, failBus{})
	ctx := context.Background()

	err := pub.Like(ctx, "alice", "post1", "")
	if !errors.Is(err, errs.ErrTransport) {
		t.Fatalf("like with dead bus should be transport error, got %v", err)
	}
	// 事件没发出去，变更不得留存
	ok, _ := s.EdgeExists(ctx, "alice", "post1", model.EdgeLike)
	if ok {
		t.Fatal("edge must be compensated away when publish fails")
	}
}

func TestPublishFailureRollsBackUnlike(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateEdge(ctx, "alice", "post1", model.EdgeLike); err != nil {
		t.Fatal(err)
	}

	pub := NewPublishing(s, failBus{})
	err := pub.Unlike(ctx, "alice", "post1", "")
	if !errors.Is(err, errs.ErrTransport) {
		t.Fatalf("unlike with dead bus should be transport error, got %v", err)
	}
	ok, _ := s.EdgeExists(ctx, "alice", "post1", model.EdgeLike)
	if !ok {
		t.Fatal("edge must be restored when publish fails")
	}
}

func TestToggleCommentLike(t *testing.T) {
	s := newTestStore(t)
	bus := eventx.NewMemoryBus()
	pub := NewPublishing(s, bus)
	ctx := context.Background()

	if err := s.AddComment(ctx, &model.Comment{ID: "c1", PostID: "post1", AuthorID: "carol"}); err != nil {
		t.Fatal(err)
	}

	on, err := pub.ToggleCommentLike(ctx, "alice", "c1", "")
	if err != nil || !on {
		t.Fatalf("first toggle = (%v, %v), want on", on, err)
	}
	on, err = pub.ToggleCommentLike(ctx, "alice", "c1", "")
	if err != nil || on {
		t.Fatalf("second toggle = (%v, %v), want off", on, err)
	}
	bus.Drain()
}

func TestAddCommentUnknownPost(t *testing.T) {
	s := newTestStore(t)
	pub := NewPublishing(s, eventx.NewMemoryBus())

	_, err := pub.AddComment(context.Background(), "alice", "ghost", "hi", "")
	if !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("comment on unknown post should be not found, got %v", err)
	}
}
