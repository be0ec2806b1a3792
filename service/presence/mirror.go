package presence

import (
	"context"
	"time"

	"SocialSync/logger"

	"github.com/redis/go-redis/v9"
)

// Mirror 把本节点的会话登记镜像到 Redis，
// 其他网关节点不持有 socket 也能回答"某用户是否在线"。
// 镜像只是投影，权威仍在 Registry。
type Mirror struct {
	rdb    *redis.Client
	nodeID string
	ttl    time.Duration
}

// presence key: im:presence:<user>，值为 gateway 节点ID
func presenceKey(user string) string { return "im:presence:" + user }

// 会话索引：im:psessions:<user>，ZSET member=sessionID score=expireAtUnix
func sessionKey(user string) string { return "im:psessions:" + user }

// 下线：移除会话成员，顺带清掉过期成员；没有活跃会话 -> 删 presence 键。
// KEYS[1]=session zset  KEYS[2]=presence key
// ARGV[1]=sessionID  ARGV[2]=nowUnix
const luaOffline = `
local z = KEYS[1]
local pk = KEYS[2]
redis.call("ZREM", z, ARGV[1])
local victims = redis.call("ZRANGEBYSCORE", z, "-inf", ARGV[2])
for _, v in ipairs(victims) do
  redis.call("ZREM", z, v)
end
local cnt = redis.call("ZCOUNT", z, tonumber(ARGV[2]) + 1, "+inf")
if cnt == 0 then
  redis.call("DEL", z)
  redis.call("DEL", pk)
end
return cnt
`

// 在线判断：清过期，再数活跃
// KEYS[1]=session zset  ARGV[1]=nowUnix
const luaIsOnline = `
local z = KEYS[1]
local victims = redis.call("ZRANGEBYSCORE", z, "-inf", ARGV[1])
for _, v in ipairs(victims) do
  redis.call("ZREM", z, v)
end
return redis.call("ZCOUNT", z, tonumber(ARGV[1]) + 1, "+inf")
`

func NewMirror(rdb *redis.Client, nodeID string, ttl time.Duration) *Mirror {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Mirror{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

// Online 写入会话并续租 presence 键。失败只记日志：镜像丢失由 TTL 自愈。
func (m *Mirror) Online(userID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	expireAt := time.Now().Add(m.ttl).Unix()
	pipe := m.rdb.Pipeline()
	pipe.ZAdd(ctx, sessionKey(userID), redis.Z{Score: float64(expireAt), Member: sessionID})
	pipe.Expire(ctx, sessionKey(userID), m.ttl*2)
	pipe.Set(ctx, presenceKey(userID), m.nodeID, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnf("[presence] mirror online user=%s: %v", userID, err)
	}
}

// Offline 移除会话；该用户无活跃会话则清 presence 键。
func (m *Mirror) Offline(userID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := time.Now().Unix()
	err := m.rdb.Eval(ctx, luaOffline,
		[]string{sessionKey(userID), presenceKey(userID)},
		sessionID, now).Err()
	if err != nil && err != redis.Nil {
		logger.Warnf("[presence] mirror offline user=%s: %v", userID, err)
	}
}

// Lookup 跨节点在线判断：返回持有该用户连接的节点ID。
func (m *Mirror) Lookup(ctx context.Context, userID string) (nodeID string, online bool, err error) {
	val, err := m.rdb.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// ActiveSessions 活跃会话数（顺带清过期成员）。
func (m *Mirror) ActiveSessions(ctx context.Context, userID string) (int64, error) {
	n, err := m.rdb.Eval(ctx, luaIsOnline, []string{sessionKey(userID)}, time.Now().Unix()).Int64()
	if err != nil && err != redis.Nil {
		return 0, err
	}
	return n, nil
}
