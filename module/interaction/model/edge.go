package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EdgeKind 交互边类型
type EdgeKind string

const (
	EdgeLike     EdgeKind = "like"     // 点赞（主体=用户，客体=帖子或评论）
	EdgeBookmark EdgeKind = "bookmark" // 收藏（主体=用户，客体=帖子）
	EdgeFollow   EdgeKind = "follow"   // 关注（主体=用户，客体=用户）
)

// InteractionEdge 表示一次用户交互产生的有向边。
// 在 MongoDB 中以 subject_id + object_id + kind 作为唯一索引；
// 创建即生效，撤销即删除，从不原地修改。
type InteractionEdge struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"` // MongoDB 主键
	SubjectID string             `bson:"subject_id"`    // 发起方用户ID
	ObjectID  string             `bson:"object_id"`     // 客体ID（帖子/评论/用户）
	Kind      EdgeKind           `bson:"kind"`          // 边类型

	CreateTime time.Time `bson:"create_time"` // 创建时间
}

// EdgeCollection 集合名
const EdgeCollection = "interaction_edge"
