package sync

import (
	"context"
	"encoding/json"
	stdsync "sync"

	"SocialSync/logger"
	"SocialSync/service/eventx"
	"SocialSync/tools/ids"
	"SocialSync/tools/safe"
)

// EntityKey 客户端视角的一条交互状态：我(subject)对某客体的某类边。
type EntityKey struct {
	Subject string
	Object  string
	Kind    string
}

// State 每实体状态机
type State int

const (
	StateIdle State = iota
	StatePending
	StateReconciling
)

// Outcome 权威变更请求的结局
type Outcome int

const (
	OutcomeConfirmed Outcome = iota // 服务端确认
	OutcomeConflict                 // 边已存在（对创建意图是良性空操作）
	OutcomeNotFound                 // 边不存在/实体缺失（可恢复失败，回滚）
	OutcomeTransport                // REST 不可达（回滚，等下次拉取兜底）
)

// Mutator 权威变更出口（REST 客户端实现；单测注入假实现或手工 Resolve）。
type Mutator interface {
	Mutate(ctx context.Context, key EntityKey, desired bool, requestID string) Outcome
}

// FailureHandler 失败上抛：引擎把所有变更失败收敛成一条 UI 可见消息。
type FailureHandler func(key EntityKey, requestID string, msg string)

type entityState struct {
	server     bool // 最近确认的服务端值
	optimistic bool // 用户意图值
	pendingReq string
	queued     *bool          // 在途期间的后续操作（排队，不并发发第二个）
	buffered   []eventx.Event // 在途期间到达的推送，按到达序缓存
	phase      State
}

type pendingReq struct {
	key     EntityKey
	desired bool
}

// Engine 客户端对账引擎。
// 不变式：pendingReq 为空时 optimistic == server。
// 推送在 Pending 期间缓存，在请求落定后按先后重放；
// 重放值等于刚确认的服务端值则丢弃（已体现），否则作为外部新变化应用。
type Engine struct {
	mu      stdsync.Mutex
	userID  string
	states  map[EntityKey]*entityState
	byReq   map[string]pendingReq
	mutator Mutator
	onFail  FailureHandler
	cancel  func()
}

func NewEngine(userID string, mutator Mutator) *Engine {
	e := &Engine{
		userID:  userID,
		states:  make(map[EntityKey]*entityState),
		byReq:   make(map[string]pendingReq),
		mutator: mutator,
	}
	e.onFail = func(key EntityKey, requestID string, msg string) {
		logger.Warnf("[sync] mutation failed key=%v req=%s: %s", key, requestID, msg)
	}
	return e
}

// OnFailure 替换失败回调（UI 层挂接）。
func (e *Engine) OnFailure(h FailureHandler) {
	if h != nil {
		e.onFail = h
	}
}

// Start 订阅总线上的推送事件。
func (e *Engine) Start(bus eventx.Bus) {
	e.cancel = bus.Subscribe(e.OnPush)
}

func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// Apply 用户操作入口：乐观翻转立即生效，再发权威变更。
// 在途期间的后续操作排在当前请求之后（不并发第二个变更）。
// 返回请求ID；排队时返回空串。
func (e *Engine) Apply(ctx context.Context, key EntityKey, desired bool) string {
	e.mu.Lock()
	st := e.ensureLocked(key)

	if st.pendingReq != "" {
		// 排队：最新意图覆盖旧排队值，UI 先行
		d := desired
		st.queued = &d
		st.optimistic = desired
		e.mu.Unlock()
		return ""
	}

	st.optimistic = desired
	st.phase = StatePending
	req := ids.GenerateString()
	st.pendingReq = req
	e.byReq[req] = pendingReq{key: key, desired: desired}
	e.mu.Unlock()

	if e.mutator != nil {
		safe.SafeGo(func() {
			out := e.mutator.Mutate(ctx, key, desired, req)
			e.Resolve(req, out)
		})
	}
	return req
}

// Resolve 权威响应落定。重放缓存推送、必要时发出排队的后续请求。
func (e *Engine) Resolve(requestID string, outcome Outcome) {
	e.mu.Lock()

	pr, ok := e.byReq[requestID]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.byReq, requestID)
	st := e.states[pr.key]
	if st == nil || st.pendingReq != requestID {
		e.mu.Unlock()
		return
	}

	st.pendingReq = ""
	st.phase = StateReconciling

	var failMsg string
	switch outcome {
	case OutcomeConfirmed:
		st.server = pr.desired
	case OutcomeConflict:
		if pr.desired {
			// 早已存在：预期状态本来就对，良性空操作，不报错
			st.server = true
			st.optimistic = true
		} else {
			failMsg = "conflict"
		}
	case OutcomeNotFound:
		failMsg = "not found"
	case OutcomeTransport:
		failMsg = "transport failure"
	}
	if failMsg != "" {
		// 回滚乐观翻转，排队的后续操作一并作废（前提已失效）
		st.optimistic = st.server
		st.queued = nil
	}

	// 重放：与刚确认的值一致则丢弃，否则作为外部新变化应用
	for _, evt := range st.buffered {
		implied, ok := impliedValue(evt, pr.key)
		if !ok {
			continue
		}
		if implied == st.server {
			continue
		}
		st.server = implied
		st.optimistic = implied
	}
	st.buffered = nil

	// 排队的后续操作
	var (
		nextReq     string
		nextDesired bool
	)
	if st.queued != nil {
		q := *st.queued
		st.queued = nil
		if q != st.server {
			st.optimistic = q
			st.phase = StatePending
			nextReq = ids.GenerateString()
			nextDesired = q
			st.pendingReq = nextReq
			e.byReq[nextReq] = pendingReq{key: pr.key, desired: q}
		} else {
			st.optimistic = st.server
		}
	}
	if st.pendingReq == "" {
		st.phase = StateIdle
		st.optimistic = st.server
	}

	key := pr.key
	e.mu.Unlock()

	if failMsg != "" {
		e.onFail(key, requestID, failMsg)
	}
	if nextReq != "" && e.mutator != nil {
		safe.SafeGo(func() {
			out := e.mutator.Mutate(context.Background(), key, nextDesired, nextReq)
			e.Resolve(nextReq, out)
		})
	}
}

// OnPush 推送事件到达：Idle 直接应用，Pending 缓存待重放。
// 应用/缓存的判定在锁内一次完成，不给同实体的两次对账留交错窗口。
func (e *Engine) OnPush(evt eventx.Event) {
	key, _, ok := eventEntity(evt, e.userID)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.ensureLocked(key)
	if st.pendingReq != "" {
		st.buffered = append(st.buffered, evt)
		return
	}
	implied, ok := impliedValue(evt, key)
	if !ok {
		return
	}
	st.server = implied
	st.optimistic = implied
}

// Value 当前 UI 应显示的值（乐观值）。
func (e *Engine) Value(key EntityKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st := e.states[key]; st != nil {
		return st.optimistic
	}
	return false
}

// Snapshot 返回 (serverValue, optimisticValue, 状态)。
func (e *Engine) Snapshot(key EntityKey) (server, optimistic bool, phase State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.states[key]
	if st == nil {
		return false, false, StateIdle
	}
	return st.server, st.optimistic, st.phase
}

func (e *Engine) ensureLocked(key EntityKey) *entityState {
	st := e.states[key]
	if st == nil {
		st = &entityState{phase: StateIdle}
		e.states[key] = st
	}
	return st
}

// ---------------- 事件语义 ----------------

// eventEntity 判断事件是否落在"本用户的某条边"上。
// 只有 subject==本用户 的边事件驱动本状态机；
// 他人的交互走计数/列表刷新，不碰布尔边状态。
func eventEntity(evt eventx.Event, userID string) (EntityKey, bool, bool) {
	switch evt.Type {
	case eventx.LikeAdded, eventx.LikeRemoved,
		eventx.BookmarkAdded, eventx.BookmarkRemoved,
		eventx.FollowAdded, eventx.FollowRemoved,
		eventx.CommentLikeToggled:
		var p eventx.EdgePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return EntityKey{}, false, false
		}
		if p.Actor != userID {
			return EntityKey{}, false, false
		}
		return EntityKey{Subject: p.Actor, Object: p.Object, Kind: p.Kind}, p.Present, true
	}
	return EntityKey{}, false, false
}

// impliedValue 事件对该实体隐含的最终值。
func impliedValue(evt eventx.Event, key EntityKey) (bool, bool) {
	k, present, ok := eventEntity(evt, key.Subject)
	if !ok || k != key {
		return false, false
	}
	return present, true
}
