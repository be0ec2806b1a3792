package presence

import (
	"sync"
	"time"

	"SocialSync/logger"
	"SocialSync/service/eventx"
	"SocialSync/tools/ids"
)

// Entry 一条在线会话
type Entry struct {
	UserID      string
	SessionID   string
	ConnectedAt time.Time
}

// Registry 在线登记表：用户 <-> 传输会话。
// 状态只在这里持有，其他组件一律现查不缓存。
// 同一用户的上下线变迁经 per-user 锁串行化，
// 并发 register/unregister 不会打出错序的在线/离线事件。
type Registry struct {
	mu        sync.Mutex
	users     map[string]*userSessions
	bySession map[string]string // sessionID -> userID

	bus    eventx.Bus
	mirror *Mirror // 可选：跨节点镜像
	clock  func() time.Time
}

type userSessions struct {
	mu       sync.Mutex
	sessions map[string]Entry
	dead     bool // 最后一条会话注销后置位，条目随即从登记表摘除
}

func NewRegistry(bus eventx.Bus) *Registry {
	return &Registry{
		users:     make(map[string]*userSessions),
		bySession: make(map[string]string),
		bus:       bus,
		clock:     time.Now,
	}
}

// WithMirror 挂接 Redis 镜像（可为 nil）
func (r *Registry) WithMirror(m *Mirror) *Registry {
	r.mirror = m
	return r
}

// Register 登记会话；该用户首条会话上线时发布 PresenceChanged{online:true}。
func (r *Registry) Register(userID, sessionID string) {
	if userID == "" || sessionID == "" {
		return
	}
	now := r.clock()

	for {
		r.mu.Lock()
		u := r.users[userID]
		if u == nil {
			u = &userSessions{sessions: make(map[string]Entry)}
			r.users[userID] = u
		}
		r.bySession[sessionID] = userID
		r.mu.Unlock()

		u.mu.Lock()
		if u.dead {
			// 撞上了正在摘除的空条目，重取
			u.mu.Unlock()
			continue
		}
		wasEmpty := len(u.sessions) == 0
		u.sessions[sessionID] = Entry{UserID: userID, SessionID: sessionID, ConnectedAt: now}
		if wasEmpty {
			r.publishPresence(userID, true)
		}
		u.mu.Unlock()
		break
	}

	if r.mirror != nil {
		r.mirror.Online(userID, sessionID)
	}
}

// Unregister 注销会话；该用户会话数归零时发布 PresenceChanged{online:false}。
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	userID, ok := r.bySession[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.bySession, sessionID)
	u := r.users[userID]
	r.mu.Unlock()

	if u == nil {
		return
	}
	emptied := false
	u.mu.Lock()
	if _, ok := u.sessions[sessionID]; ok {
		delete(u.sessions, sessionID)
		if len(u.sessions) == 0 {
			u.dead = true
			emptied = true
			r.publishPresence(userID, false)
		}
	}
	u.mu.Unlock()

	if emptied {
		r.mu.Lock()
		if r.users[userID] == u {
			delete(r.users, userID)
		}
		r.mu.Unlock()
	}

	if r.mirror != nil {
		r.mirror.Offline(userID, sessionID)
	}
}

// SessionsFor 返回用户当前全部会话ID。
func (r *Registry) SessionsFor(userID string) []string {
	r.mu.Lock()
	u := r.users[userID]
	r.mu.Unlock()
	if u == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.sessions))
	for sid := range u.sessions {
		out = append(out, sid)
	}
	return out
}

// IsOnline 本节点视角的在线判断。
func (r *Registry) IsOnline(userID string) bool {
	return len(r.SessionsFor(userID)) > 0
}

func (r *Registry) publishPresence(userID string, online bool) {
	evt := eventx.Event{
		ID:         ids.GenerateString(),
		Type:       eventx.PresenceChanged,
		ProducedAt: r.clock(),
		Payload: eventx.MustPayload(&eventx.PresencePayload{
			UserID: userID,
			Online: online,
		}),
	}
	if err := r.bus.Publish(evt); err != nil {
		logger.Errorf("[presence] publish presence user=%s online=%v: %v", userID, online, err)
	}
}
