package model

import "time"

// Comment 帖子评论。
// 评论线程的"既有评论者"集合在派发时按 post_id 去重聚合，
// 不单独维护缓存（见派发层）。
type Comment struct {
	ID       string `bson:"_id"`       // 雪花ID（字符串）
	PostID   string `bson:"post_id"`   // 所属帖子ID
	AuthorID string `bson:"author_id"` // 评论者用户ID
	Content  string `bson:"content"`   // 评论内容

	CreateTime time.Time `bson:"create_time"` // 发表时间
}

// Post 帖子在本核心中只保留归属关系；正文/媒体等由外部文档服务负责。
type Post struct {
	ID       string `bson:"_id"`       // 帖子ID
	AuthorID string `bson:"author_id"` // 作者用户ID
}

const (
	CommentCollection = "comment"
	PostCollection    = "post"
)
