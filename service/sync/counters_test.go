package sync

import (
	"testing"
	"time"

	"SocialSync/service/eventx"
)

func notifEvent(id, notifID, recipient string) eventx.Event {
	return eventx.Event{
		ID:         id,
		Type:       eventx.NotificationCreated,
		ProducedAt: time.Now(),
		Payload: eventx.MustPayload(&eventx.NotificationPayload{
			NotificationID: notifID, Recipient: recipient, Actor: "alice", Kind: "like",
		}),
	}
}

func chatEvent(from, to string) eventx.Event {
	return eventx.Event{
		Type:    eventx.ChatMessage,
		Payload: eventx.MustPayload(&eventx.ChatMessagePayload{From: from, To: to}),
	}
}

func TestNotificationCountDedupsByRecordID(t *testing.T) {
	c := NewCounters("bob")

	c.OnEvent(notifEvent("e1", "n1", "bob"))
	c.OnEvent(notifEvent("e2", "n1", "bob")) // 同一条通知重复投递
	c.OnEvent(notifEvent("e3", "n2", "bob"))

	if got := c.UnreadNotifications(); got != 2 {
		t.Fatalf("unread = %d, want 2 (dedup by record id)", got)
	}
}

func TestNotificationCountIgnoresOtherRecipients(t *testing.T) {
	c := NewCounters("bob")
	c.OnEvent(notifEvent("e1", "n1", "carol"))
	if got := c.UnreadNotifications(); got != 0 {
		t.Fatalf("unread = %d, want 0", got)
	}
}

func TestMarkNotificationsReadResets(t *testing.T) {
	c := NewCounters("bob")
	c.OnEvent(notifEvent("e1", "n1", "bob"))
	c.MarkNotificationsRead()
	if got := c.UnreadNotifications(); got != 0 {
		t.Fatalf("unread after read = %d", got)
	}
	// 旧事件重放不会复活计数（去重集保留）
	c.OnEvent(notifEvent("e1", "n1", "bob"))
	if got := c.UnreadNotifications(); got != 0 {
		t.Fatalf("replayed event revived counter: %d", got)
	}
}

func TestNotificationFocusSuppressesCounting(t *testing.T) {
	c := NewCounters("bob")
	c.SetNotificationFocus(true)
	c.OnEvent(notifEvent("e1", "n1", "bob"))
	if got := c.UnreadNotifications(); got != 0 {
		t.Fatalf("focused view must not accumulate, got %d", got)
	}
	c.SetNotificationFocus(false)
	c.OnEvent(notifEvent("e2", "n2", "bob"))
	if got := c.UnreadNotifications(); got != 1 {
		t.Fatalf("unfocused accumulates, got %d", got)
	}
}

func TestPeerUnreadPerPeer(t *testing.T) {
	c := NewCounters("bob")

	c.OnEvent(chatEvent("alice", "bob"))
	c.OnEvent(chatEvent("alice", "bob"))
	c.OnEvent(chatEvent("carol", "bob"))
	c.OnEvent(chatEvent("alice", "carol")) // 不是发给 bob 的

	if got := c.PeerUnread("alice"); got != 2 {
		t.Fatalf("alice unread = %d, want 2", got)
	}
	if got := c.PeerUnread("carol"); got != 1 {
		t.Fatalf("carol unread = %d, want 1", got)
	}

	c.MarkPeerRead("alice")
	if got := c.PeerUnread("alice"); got != 0 {
		t.Fatalf("alice unread after read = %d", got)
	}
	if got := c.PeerUnread("carol"); got != 1 {
		t.Fatal("per-peer read must not touch other peers")
	}
}

func TestPeerFocusSuppressesAndClears(t *testing.T) {
	c := NewCounters("bob")
	c.OnEvent(chatEvent("alice", "bob"))
	c.SetPeerFocus("alice", true)
	if got := c.PeerUnread("alice"); got != 0 {
		t.Fatalf("focus clears unread, got %d", got)
	}
	c.OnEvent(chatEvent("alice", "bob"))
	if got := c.PeerUnread("alice"); got != 0 {
		t.Fatalf("focused peer must not accumulate, got %d", got)
	}
	c.SetPeerFocus("alice", false)
	c.OnEvent(chatEvent("alice", "bob"))
	if got := c.PeerUnread("alice"); got != 1 {
		t.Fatalf("after blur accumulates, got %d", got)
	}
}
