package store

import (
	"context"
	"time"

	"SocialSync/module/interaction/model"
	"SocialSync/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore 基于 MongoDB 的权威实现。
type MongoStore struct {
	db *mongo.Database
}

// Config represents the MongoDB configuration.
type Config struct {
	Uri         string
	Database    string
	MaxPoolSize int
	MaxRetry    int
}

// NewMongoStore 建连、建索引。
func NewMongoStore(ctx context.Context, cfg *Config) (*MongoStore, error) {
	if cfg.Uri == "" {
		return nil, errs.ErrArgs.WrapMsg("mongo uri is required")
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 100
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}

	opts := options.Client().ApplyURI(cfg.Uri).SetMaxPoolSize(uint64(cfg.MaxPoolSize))

	var (
		cli *mongo.Client
		err error
	)
	for i := 0; i < cfg.MaxRetry; i++ {
		cli, err = connectMongo(ctx, opts)
		if err == nil {
			break
		}
		time.Sleep(time.Second / 2)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "failed to connect to MongoDB", "uri", cfg.Uri)
	}

	s := &MongoStore{db: cli.Database(cfg.Database)}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func connectMongo(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return cli, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	// 唯一约束是 Conflict 语义的根基
	_, err := s.edges().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "subject_id", Value: 1},
			{Key: "object_id", Value: 1},
			{Key: "kind", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errs.WrapMsg(err, "create edge unique index")
	}
	_, err = s.comments().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "post_id", Value: 1}},
	})
	if err != nil {
		return errs.WrapMsg(err, "create comment post index")
	}
	_, err = s.notifications().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "recipient_id", Value: 1},
			{Key: "read", Value: 1},
		},
	})
	return errs.WrapMsg(err, "create notification index")
}

func (s *MongoStore) edges() *mongo.Collection   { return s.db.Collection(model.EdgeCollection) }
func (s *MongoStore) comments() *mongo.Collection { return s.db.Collection(model.CommentCollection) }
func (s *MongoStore) posts() *mongo.Collection    { return s.db.Collection(model.PostCollection) }
func (s *MongoStore) notifications() *mongo.Collection {
	return s.db.Collection(model.NotificationCollection)
}

func (s *MongoStore) CreateEdge(ctx context.Context, subject, object string, kind model.EdgeKind) (*model.InteractionEdge, error) {
	edge := &model.InteractionEdge{
		SubjectID:  subject,
		ObjectID:   object,
		Kind:       kind,
		CreateTime: time.Now(),
	}
	if _, err := s.edges().InsertOne(ctx, edge); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errs.ErrConflict.WrapMsg("edge exists", "subject", subject, "object", object, "kind", string(kind))
		}
		return nil, errs.WrapMsg(err, "insert edge")
	}
	return edge, nil
}

func (s *MongoStore) DeleteEdge(ctx context.Context, subject, object string, kind model.EdgeKind) error {
	res, err := s.edges().DeleteOne(ctx, bson.M{
		"subject_id": subject,
		"object_id":  object,
		"kind":       kind,
	})
	if err != nil {
		return errs.WrapMsg(err, "delete edge")
	}
	if res.DeletedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("edge absent", "subject", subject, "object", object, "kind", string(kind))
	}
	return nil
}

func (s *MongoStore) EdgeExists(ctx context.Context, subject, object string, kind model.EdgeKind) (bool, error) {
	n, err := s.edges().CountDocuments(ctx, bson.M{
		"subject_id": subject,
		"object_id":  object,
		"kind":       kind,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, errs.WrapMsg(err, "count edge")
	}
	return n > 0, nil
}

func (s *MongoStore) Followers(ctx context.Context, userID string) ([]string, error) {
	return s.distinctEdge(ctx, bson.M{"object_id": userID, "kind": model.EdgeFollow}, "subject_id")
}

func (s *MongoStore) Following(ctx context.Context, userID string) ([]string, error) {
	return s.distinctEdge(ctx, bson.M{"subject_id": userID, "kind": model.EdgeFollow}, "object_id")
}

func (s *MongoStore) distinctEdge(ctx context.Context, filter bson.M, field string) ([]string, error) {
	vals, err := s.edges().Distinct(ctx, field, filter)
	if err != nil {
		return nil, errs.WrapMsg(err, "distinct edge", "field", field)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if sv, ok := v.(string); ok {
			out = append(out, sv)
		}
	}
	return out, nil
}

func (s *MongoStore) AddComment(ctx context.Context, c *model.Comment) error {
	if c.CreateTime.IsZero() {
		c.CreateTime = time.Now()
	}
	if _, err := s.comments().InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.ErrConflict.WrapMsg("comment exists", "id", c.ID)
		}
		return errs.WrapMsg(err, "insert comment")
	}
	return nil
}

func (s *MongoStore) RemoveComment(ctx context.Context, commentID, actor string) (*model.Comment, error) {
	var c model.Comment
	err := s.comments().FindOneAndDelete(ctx, bson.M{"_id": commentID, "author_id": actor}).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrRecordNotFound.WrapMsg("comment absent", "id", commentID)
		}
		return nil, errs.WrapMsg(err, "delete comment")
	}
	return &c, nil
}

func (s *MongoStore) CommentAuthors(ctx context.Context, postID string) ([]string, error) {
	vals, err := s.comments().Distinct(ctx, "author_id", bson.M{"post_id": postID})
	if err != nil {
		return nil, errs.WrapMsg(err, "distinct comment authors", "post", postID)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if sv, ok := v.(string); ok {
			out = append(out, sv)
		}
	}
	return out, nil
}

func (s *MongoStore) OwnerOf(ctx context.Context, objectID string) (string, error) {
	var p model.Post
	err := s.posts().FindOne(ctx, bson.M{"_id": objectID}).Decode(&p)
	if err == nil {
		return p.AuthorID, nil
	}
	if err != mongo.ErrNoDocuments {
		return "", errs.WrapMsg(err, "find post owner", "id", objectID)
	}
	// 不是帖子就按评论查
	var c model.Comment
	err = s.comments().FindOne(ctx, bson.M{"_id": objectID}).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", errs.ErrRecordNotFound.WrapMsg("object absent", "id", objectID)
		}
		return "", errs.WrapMsg(err, "find comment owner", "id", objectID)
	}
	return c.AuthorID, nil
}

func (s *MongoStore) InsertNotification(ctx context.Context, n *model.NotificationRecord) error {
	if n.CreateTime.IsZero() {
		n.CreateTime = time.Now()
	}
	if _, err := s.notifications().InsertOne(ctx, n); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.ErrConflict.WrapMsg("notification exists", "id", n.ID)
		}
		return errs.WrapMsg(err, "insert notification")
	}
	return nil
}

func (s *MongoStore) MarkNotificationsRead(ctx context.Context, recipient string, ids ...string) (int64, error) {
	filter := bson.M{"recipient_id": recipient, "read": false}
	if len(ids) > 0 {
		filter["_id"] = bson.M{"$in": ids}
	}
	// read 只允许 false -> true，过滤条件已固定方向
	res, err := s.notifications().UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, errs.WrapMsg(err, "mark notifications read", "recipient", recipient)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) UnreadNotifications(ctx context.Context, recipient string) ([]model.NotificationRecord, error) {
	cur, err := s.notifications().Find(ctx,
		bson.M{"recipient_id": recipient, "read": false},
		options.Find().SetSort(bson.D{{Key: "create_time", Value: -1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "find unread notifications", "recipient", recipient)
	}
	defer cur.Close(ctx)
	var out []model.NotificationRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode unread notifications")
	}
	return out, nil
}

// SeedPost 写入帖子归属（供外部帖子服务同步/测试注入）。
func (s *MongoStore) SeedPost(ctx context.Context, p *model.Post) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.posts().ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts)
	return errs.WrapMsg(err, "seed post", "id", p.ID)
}
