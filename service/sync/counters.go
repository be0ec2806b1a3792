package sync

import (
	"encoding/json"
	stdsync "sync"

	"SocialSync/service/eventx"
)

// Counters 派生计数：未读通知数、按对端的未读私聊数。
// 由事件流增量维护，不全量重算。
// 通知计数以记录ID去重，重复投递不重复累加；
// 私聊消息在本设计里没有稳定ID，接受 at-least-once 下的少量多计
// （已知取舍，复位靠显式已读）。
type Counters struct {
	mu     stdsync.Mutex
	userID string

	seen        map[string]struct{} // 已计入的通知记录ID
	unreadNotif int
	peerUnread  map[string]int

	notifFocused bool
	peerFocused  map[string]bool

	cancel func()
}

func NewCounters(userID string) *Counters {
	return &Counters{
		userID:      userID,
		seen:        make(map[string]struct{}),
		peerUnread:  make(map[string]int),
		peerFocused: make(map[string]bool),
	}
}

// Start 订阅总线。
func (c *Counters) Start(bus eventx.Bus) {
	c.cancel = bus.Subscribe(c.OnEvent)
}

func (c *Counters) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Counters) OnEvent(evt eventx.Event) {
	switch evt.Type {
	case eventx.NotificationCreated:
		var p eventx.NotificationPayload
		if json.Unmarshal(evt.Payload, &p) != nil || p.Recipient != c.userID {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, dup := c.seen[p.NotificationID]; dup {
			return // 重复投递
		}
		c.seen[p.NotificationID] = struct{}{}
		if !c.notifFocused {
			c.unreadNotif++
		}

	case eventx.ChatMessage:
		var p eventx.ChatMessagePayload
		if json.Unmarshal(evt.Payload, &p) != nil || p.To != c.userID {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.peerFocused[p.From] {
			c.peerUnread[p.From]++
		}
	}
}

// UnreadNotifications 当前未读通知数
func (c *Counters) UnreadNotifications() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unreadNotif
}

// PeerUnread 某对端的未读私聊数
func (c *Counters) PeerUnread(peer string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerUnread[peer]
}

// MarkNotificationsRead 全量已读：复位为零（去重集保留，旧事件重放不会复活计数）。
func (c *Counters) MarkNotificationsRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unreadNotif = 0
}

// MarkPeerRead 对单个对端已读
func (c *Counters) MarkPeerRead(peer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.peerUnread, peer)
}

// SetNotificationFocus 通知视图聚焦中则不累加（看着列表时没有"未读"）。
func (c *Counters) SetNotificationFocus(focused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifFocused = focused
	if focused {
		c.unreadNotif = 0
	}
}

// SetPeerFocus 与某对端的会话窗口聚焦状态
func (c *Counters) SetPeerFocus(peer string, focused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if focused {
		c.peerFocused[peer] = true
		delete(c.peerUnread, peer)
	} else {
		delete(c.peerFocused, peer)
	}
}
