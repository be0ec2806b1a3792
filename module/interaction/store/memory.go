package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"SocialSync/module/interaction/model"
	"SocialSync/tools/errs"
)

// MemoryStore 内存实现，语义与 MongoStore 对齐（单测/本地跑不起 Mongo 时用）。
type MemoryStore struct {
	mu            sync.Mutex
	edges         map[string]*model.InteractionEdge // subject|object|kind -> edge
	comments      map[string]*model.Comment         // commentID -> comment
	notifications map[string]*model.NotificationRecord
	owners        map[string]string // objectID -> ownerID（帖子归属）
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		edges:         make(map[string]*model.InteractionEdge),
		comments:      make(map[string]*model.Comment),
		notifications: make(map[string]*model.NotificationRecord),
		owners:        make(map[string]string),
	}
}

func edgeKey(subject, object string, kind model.EdgeKind) string {
	return subject + "|" + object + "|" + string(kind)
}

func (s *MemoryStore) CreateEdge(_ context.Context, subject, object string, kind model.EdgeKind) (*model.InteractionEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := edgeKey(subject, object, kind)
	if _, ok := s.edges[k]; ok {
		return nil, errs.ErrConflict.WrapMsg("edge exists", "subject", subject, "object", object, "kind", string(kind))
	}
	edge := &model.InteractionEdge{
		SubjectID:  subject,
		ObjectID:   object,
		Kind:       kind,
		CreateTime: time.Now(),
	}
	s.edges[k] = edge
	return edge, nil
}

func (s *MemoryStore) DeleteEdge(_ context.Context, subject, object string, kind model.EdgeKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := edgeKey(subject, object, kind)
	if _, ok := s.edges[k]; !ok {
		return errs.ErrRecordNotFound.WrapMsg("edge absent", "subject", subject, "object", object, "kind", string(kind))
	}
	delete(s.edges, k)
	return nil
}

func (s *MemoryStore) EdgeExists(_ context.Context, subject, object string, kind model.EdgeKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[edgeKey(subject, object, kind)]
	return ok, nil
}

func (s *MemoryStore) Followers(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.edges {
		if e.Kind == model.EdgeFollow && e.ObjectID == userID {
			out = append(out, e.SubjectID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Following(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.edges {
		if e.Kind == model.EdgeFollow && e.SubjectID == userID {
			out = append(out, e.ObjectID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) AddComment(_ context.Context, c *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[c.ID]; ok {
		return errs.ErrConflict.WrapMsg("comment exists", "id", c.ID)
	}
	if c.CreateTime.IsZero() {
		c.CreateTime = time.Now()
	}
	cp := *c
	s.comments[c.ID] = &cp
	return nil
}

func (s *MemoryStore) RemoveComment(_ context.Context, commentID, actor string) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok || c.AuthorID != actor {
		return nil, errs.ErrRecordNotFound.WrapMsg("comment absent", "id", commentID)
	}
	delete(s.comments, commentID)
	return c, nil
}

func (s *MemoryStore) CommentAuthors(_ context.Context, postID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, c := range s.comments {
		if c.PostID != postID {
			continue
		}
		if _, ok := seen[c.AuthorID]; ok {
			continue
		}
		seen[c.AuthorID] = struct{}{}
		out = append(out, c.AuthorID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) OwnerOf(_ context.Context, objectID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.owners[objectID]; ok {
		return owner, nil
	}
	if c, ok := s.comments[objectID]; ok {
		return c.AuthorID, nil
	}
	return "", errs.ErrRecordNotFound.WrapMsg("object absent", "id", objectID)
}

func (s *MemoryStore) InsertNotification(_ context.Context, n *model.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return errs.ErrConflict.WrapMsg("notification exists", "id", n.ID)
	}
	if n.CreateTime.IsZero() {
		n.CreateTime = time.Now()
	}
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *MemoryStore) MarkNotificationsRead(_ context.Context, recipient string, ids ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scoped := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		scoped[id] = struct{}{}
	}
	var n int64
	for _, rec := range s.notifications {
		if rec.RecipientID != recipient || rec.Read {
			continue
		}
		if len(scoped) > 0 {
			if _, ok := scoped[rec.ID]; !ok {
				continue
			}
		}
		rec.Read = true
		n++
	}
	return n, nil
}

func (s *MemoryStore) UnreadNotifications(_ context.Context, recipient string) ([]model.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.NotificationRecord
	for _, rec := range s.notifications {
		if rec.RecipientID == recipient && !rec.Read {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateTime.After(out[j].CreateTime) })
	return out, nil
}

// SeedPost 注入帖子归属
func (s *MemoryStore) SeedPost(_ context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[p.ID] = p.AuthorID
	return nil
}
