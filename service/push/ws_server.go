package push

import (
	"net"
	"net/http"
	"time"

	"SocialSync/logger"
	"SocialSync/service/presence"
	"SocialSync/tools/ids"
	"SocialSync/tools/safe"
	"SocialSync/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(r *http.Request) bool { return true }}

const authDeadline = 10 * time.Second

// Server 推送通道入口：升级、鉴权首帧、登记在线、读循环。
type Server struct {
	mgr     *ConnManager
	reg     *presence.Registry
	jwtOpts security.Options
}

func NewServer(mgr *ConnManager, reg *presence.Registry, jwtOpts security.Options) *Server {
	return &Server{mgr: mgr, reg: reg, jwtOpts: jwtOpts}
}

// HandleWS ===== WebSocket 处理 =====
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	// ---- 鉴权首帧：限时等待 auth ----
	userID, aerr := s.awaitAuth(ws)
	if aerr != nil {
		logger.Infof("[HandleWS] auth failed: %v", aerr)
		_ = ws.Close()
		return
	}

	sessionID := ids.GenerateString()
	sess, err := s.mgr.Add(userID, sessionID, ws)
	if err != nil {
		logger.Infof("[HandleWS] register conn user=%s: %v", userID, err)
		_ = ws.Close()
		return
	}
	s.mgr.AttachPongHandler(ws, sessionID)
	safe.SafeGo(func() { s.mgr.WriteLoop(sess) })

	// 在线登记（首会话会发布 PresenceChanged）
	s.reg.Register(userID, sessionID)
	logger.Infof("[HandleWS] online user=%s session=%s remote=%v", userID, sessionID, sess.Remote)

	// ---- 读循环：只读，不写；出错即退出（写协程收尾） ----
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed session=%s err=%v", sessionID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout session=%s err=%v", sessionID, rerr)
			} else {
				logger.Infof("[WS] read err session=%s err=%v", sessionID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseClientFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[WS] ParseClientFrame err session=%s err=%v sample=%q", sessionID, perr, sample)
			continue
		}

		// 上行只处理生命周期帧，领域变更一律走 REST
		switch frame.Type {
		case FramePing:
			_ = s.mgr.Heartbeat(sessionID)
			s.mgr.SendToSession(sessionID, EncodePong())
		default:
			logger.Infof("[WS] unexpected frame type=%s session=%s", frame.Type, sessionID)
		}
	}

	// ---- 退出阶段：下线登记、移除连接 ----
	s.reg.Unregister(sessionID)
	s.mgr.Remove(sessionID)
	logger.Infof("[HandleWS] offline user=%s session=%s", userID, sessionID)
}

// awaitAuth 等待并校验 auth 首帧，返回用户ID。
func (s *Server) awaitAuth(ws *websocket.Conn) (string, error) {
	if err := ws.SetReadDeadline(time.Now().Add(authDeadline)); err != nil {
		return "", err
	}
	defer func() { _ = ws.SetReadDeadline(time.Time{}) }()

	_, data, err := ws.ReadMessage()
	if err != nil {
		return "", err
	}
	frame, err := ParseClientFrame(data)
	if err != nil {
		return "", err
	}
	if frame.Type != FrameAuth || frame.Token == "" {
		return "", errFirstFrame
	}
	return security.Verify(s.jwtOpts, frame.Token)
}

var errFirstFrame = &firstFrameError{}

type firstFrameError struct{}

func (*firstFrameError) Error() string { return "first frame must be auth" }
