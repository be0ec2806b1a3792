package sync

import (
	"context"

	"SocialSync/module/interaction/model"
	"SocialSync/module/interaction/store"
	"SocialSync/tools/errs"
)

// StoreMutator 直连存储的变更出口（同进程内嵌客户端/集成测试用）。
type StoreMutator struct {
	St      *store.Publishing
	Session string // 本客户端的会话ID，用于回声抑制
}

func (m *StoreMutator) Mutate(ctx context.Context, key EntityKey, desired bool, _ string) Outcome {
	var err error
	switch model.EdgeKind(key.Kind) {
	case model.EdgeLike:
		if desired {
			err = m.St.Like(ctx, key.Subject, key.Object, m.Session)
		} else {
			err = m.St.Unlike(ctx, key.Subject, key.Object, m.Session)
		}
	case model.EdgeBookmark:
		if desired {
			err = m.St.Bookmark(ctx, key.Subject, key.Object, m.Session)
		} else {
			err = m.St.Unbookmark(ctx, key.Subject, key.Object, m.Session)
		}
	case model.EdgeFollow:
		if desired {
			err = m.St.Follow(ctx, key.Subject, key.Object, m.Session)
		} else {
			err = m.St.Unfollow(ctx, key.Subject, key.Object, m.Session)
		}
	default:
		return OutcomeNotFound
	}
	return OutcomeFromError(err)
}

// OutcomeFromError 错误码 -> 结局映射。
func OutcomeFromError(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeConfirmed
	case errs.ErrConflict.Is(err):
		return OutcomeConflict
	case errs.ErrRecordNotFound.Is(err):
		return OutcomeNotFound
	default:
		return OutcomeTransport
	}
}
