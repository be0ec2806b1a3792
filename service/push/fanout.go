package push

import (
	"SocialSync/logger"
	"SocialSync/tools/safe"
)

// Sender 会话投递出口（ConnManager 实现；单测注入假实现）。
type Sender interface {
	SendToSession(sessionID string, payload []byte) bool
}

type fanoutJob struct {
	sessions []string
	payload  []byte
}

// Fanout 扇出工作池：一份负载投到多个会话。
type Fanout struct {
	sender Sender
	jobs   chan fanoutJob
}

func NewFanout(sender Sender, workers, queue int) *Fanout {
	f := &Fanout{sender: sender, jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		safe.SafeGo(func() {
			for job := range f.jobs {
				for _, sid := range job.sessions {
					f.sender.SendToSession(sid, job.payload)
				}
			}
		})
	}
	return f
}

// Broadcast 非阻塞投递：队列满即丢整批，绝不反压总线。
func (f *Fanout) Broadcast(sessions []string, payload []byte) {
	if len(sessions) == 0 || len(payload) == 0 {
		return
	}
	select {
	case f.jobs <- fanoutJob{sessions: sessions, payload: payload}:
	default:
		logger.Warnf("[fanout] queue full, drop broadcast sessions=%d", len(sessions))
	}
}

func (f *Fanout) Close() {
	close(f.jobs)
}
