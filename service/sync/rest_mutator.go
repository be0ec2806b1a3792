package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"SocialSync/logger"
	"SocialSync/module/interaction/model"
	"SocialSync/tools/errs"
)

// RestMutator 走 REST 的权威变更出口。
// 非 2xx 或 success=false 视为失败；失败按 code 归类到结局。
type RestMutator struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type restEnvelope struct {
	Success bool   `json:"success"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (m *RestMutator) Mutate(ctx context.Context, key EntityKey, desired bool, requestID string) Outcome {
	url, ok := m.endpoint(key)
	if !ok {
		return OutcomeNotFound
	}
	method := http.MethodPost
	if !desired {
		method = http.MethodDelete
	}

	cli := m.Client
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return OutcomeTransport
	}
	req.Header.Set("Authorization", "Bearer "+m.Token)
	req.Header.Set("X-Request-Id", requestID)

	resp, err := cli.Do(req)
	if err != nil {
		logger.Warnf("[sync] rest mutate %s %s: %v", method, url, err)
		return OutcomeTransport
	}
	defer resp.Body.Close()

	var env restEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return OutcomeTransport
	}
	if env.Success {
		return OutcomeConfirmed
	}
	switch env.Code {
	case errs.DuplicateKeyError:
		return OutcomeConflict
	case errs.RecordNotFoundError:
		return OutcomeNotFound
	default:
		return OutcomeTransport
	}
}

func (m *RestMutator) endpoint(key EntityKey) (string, bool) {
	switch model.EdgeKind(key.Kind) {
	case model.EdgeLike:
		return fmt.Sprintf("%s/api/posts/%s/like", m.BaseURL, key.Object), true
	case model.EdgeBookmark:
		return fmt.Sprintf("%s/api/posts/%s/bookmark", m.BaseURL, key.Object), true
	case model.EdgeFollow:
		return fmt.Sprintf("%s/api/users/%s/follow", m.BaseURL, key.Object), true
	}
	return "", false
}
