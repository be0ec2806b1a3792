package push

import (
	"errors"
	"net"
	"sync"
	"time"

	"SocialSync/logger"
	"SocialSync/tools/safe"

	"github.com/gorilla/websocket"
)

// ===== 配置 =====

type ManagerConf struct {
	AuthTTL     time.Duration    // 已授权连接的 TTL（如 2h）
	SweepEvery  time.Duration    // 清理周期（如 30s）
	MaxPerUser  int              // 每用户最大连接数（<=0 不限制）
	EvictOldest bool             // 超限时是否淘汰最老连接（否则 Add 直接报错）
	SendQueue   int              // 每连接发送队列长度
	Clock       func() time.Time // 可注入时钟（单测用）；nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
	if c.AuthTTL <= 0 {
		c.AuthTTL = 2 * time.Hour
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
}

// ===== 数据结构 =====

// Session 一条已认证的推送通道连接。
// Send 是每连接独立发送队列，由单写协程消费。
type Session struct {
	ID     string
	UserID string

	Conn   *websocket.Conn
	Remote net.Addr
	Send   chan []byte
	done   chan struct{} // 移除时关闭；Send 永不 close，避免并发投递撞上已关通道

	CreatedAt time.Time
	ExpireAt  time.Time // 到期时间（过期由 sweeper 清理）
	Heartbeat time.Time // 最近心跳时间
}

type ConnManager struct {
	mu        sync.RWMutex
	bySession map[string]*Session            // 主索引：sessionID -> session
	byUser    map[string]map[string]*Session // 辅助索引：userID -> (sessionID -> session)

	conf     ManagerConf
	stopOnce sync.Once
	stopCh   chan struct{}
	nodeID   string
}

// ===== 构造/关闭 =====

func NewConnManager(conf ManagerConf, nodeID string) *ConnManager {
	conf.norm()
	m := &ConnManager{
		bySession: make(map[string]*Session),
		byUser:    make(map[string]map[string]*Session),
		conf:      conf,
		nodeID:    nodeID,
		stopCh:    make(chan struct{}),
	}
	safe.SafeGo(m.sweeper)
	return m
}

func (m *ConnManager) NodeID() string {
	return m.nodeID
}

func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.bySession {
		close(s.done)
		closeQuiet(s.Conn)
	}
	m.bySession = map[string]*Session{}
	m.byUser = map[string]map[string]*Session{}
}

// Add 登记一条已认证连接。超过 MaxPerUser 时按配置淘汰最老或报错。
func (m *ConnManager) Add(userID, sessionID string, conn *websocket.Conn) (*Session, error) {
	if userID == "" || sessionID == "" || conn == nil {
		return nil, errors.New("user/sessionID/conn empty")
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bySession[sessionID]; exists {
		return nil, errors.New("sessionID exists")
	}
	if m.conf.MaxPerUser > 0 {
		if err := m.ensureRoomForUserLocked(userID); err != nil {
			return nil, err
		}
	}

	s := &Session{
		ID:        sessionID,
		UserID:    userID,
		Conn:      conn,
		Remote:    conn.RemoteAddr(),
		Send:      make(chan []byte, m.conf.SendQueue),
		done:      make(chan struct{}),
		CreatedAt: now,
		ExpireAt:  now.Add(m.conf.AuthTTL),
		Heartbeat: now,
	}
	m.bySession[sessionID] = s
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]*Session)
	}
	m.byUser[userID][sessionID] = s
	return s, nil
}

// Remove 关闭并移除指定会话
func (m *ConnManager) Remove(sessionID string) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	s, ok := m.bySession[sessionID]
	if ok {
		delete(m.bySession, sessionID)
		if mm := m.byUser[s.UserID]; mm != nil {
			delete(mm, sessionID)
			if len(mm) == 0 {
				delete(m.byUser, s.UserID)
			}
		}
	}
	m.mu.Unlock()

	if ok {
		close(s.done)
		closeQuiet(s.Conn)
	}
}

// Heartbeat 刷新某条连接的心跳与到期时间
func (m *ConnManager) Heartbeat(sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID empty")
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.bySession[sessionID]
	if !ok {
		return errors.New("sessionID not found")
	}
	s.Heartbeat = now
	s.ExpireAt = now.Add(m.conf.AuthTTL)
	return nil
}

// AttachPongHandler 绑定 gorilla/websocket 的 PongHandler，自动心跳续期
func (m *ConnManager) AttachPongHandler(conn *websocket.Conn, sessionID string) {
	if conn == nil || sessionID == "" {
		return
	}
	conn.SetPongHandler(func(appData string) error {
		_ = m.Heartbeat(sessionID) // 忽略错误：连接可能刚好被清理
		return nil
	})
}

// SendToSession 向指定会话投递（非阻塞；队列满即丢，fire-and-forget）。
func (m *ConnManager) SendToSession(sessionID string, payload []byte) bool {
	m.mu.RLock()
	s, ok := m.bySession[sessionID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case s.Send <- payload:
		return true
	default:
		// 慢客户端：丢帧，靠下一次 REST 拉取兜底
		logger.Warnf("[conn] send queue full, drop frame session=%s user=%s", s.ID, s.UserID)
		return false
	}
}

// BroadcastUser 向某用户本节点所有会话投递
func (m *ConnManager) BroadcastUser(userID string, payload []byte) {
	m.mu.RLock()
	mm := m.byUser[userID]
	sids := make([]string, 0, len(mm))
	for sid := range mm {
		sids = append(sids, sid)
	}
	m.mu.RUnlock()
	for _, sid := range sids {
		m.SendToSession(sid, payload)
	}
}

// WriteLoop 单写协程：消费 Send 队列，周期性 ping。
// 会话被移除（done 关闭）或写失败即退出。
func (m *ConnManager) WriteLoop(s *Session) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.Send:
			if err := writeMessage(s.Conn, websocket.TextMessage, payload, 5); err != nil {
				logger.Infof("[conn] write err session=%s: %v", s.ID, err)
				return
			}
		case <-ticker.C:
			if err := writeMessage(s.Conn, websocket.PingMessage, nil, 5); err != nil {
				return
			}
		case <-m.stopCh:
			return
		}
	}
}

// ===== 清理协程 =====

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

func (m *ConnManager) sweepOnce(now time.Time) {
	var expired []string
	m.mu.RLock()
	for sid, s := range m.bySession {
		if now.After(s.ExpireAt) {
			expired = append(expired, sid)
		}
	}
	m.mu.RUnlock()

	for _, sid := range expired {
		logger.Infof("[conn] sweep expired session=%s", sid)
		m.Remove(sid)
	}
}

// ===== 最大连接数/挤下线 =====

// 需要在持锁状态下调用
func (m *ConnManager) ensureRoomForUserLocked(userID string) error {
	mm := m.byUser[userID]
	if len(mm) < m.conf.MaxPerUser {
		return nil
	}
	if !m.conf.EvictOldest {
		return errors.New("exceeds MaxPerUser")
	}

	// 选择最老的一条淘汰（CreatedAt 更早）
	var oldest *Session
	for _, s := range mm {
		if oldest == nil || s.CreatedAt.Before(oldest.CreatedAt) {
			oldest = s
		}
	}
	if oldest != nil {
		delete(mm, oldest.ID)
		delete(m.bySession, oldest.ID)
		close(oldest.done)
		go closeQuiet(oldest.Conn) // 解锁后关闭
	}
	return nil
}

// ===== 工具函数 =====

func writeMessage(conn *websocket.Conn, mt int, data []byte, deadlineSec int) error {
	if conn == nil {
		return errors.New("nil conn")
	}
	if err := conn.SetWriteDeadline(time.Now().Add(time.Duration(deadlineSec) * time.Second)); err != nil {
		return err
	}
	return conn.WriteMessage(mt, data)
}

func closeQuiet(c *websocket.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
