package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func restServer(t *testing.T, status int, body string, lastReq *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lastReq != nil {
			lastReq.Store(r.Method + " " + r.URL.Path + " " + r.Header.Get("Authorization") + " " + r.Header.Get("X-Request-Id"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRestMutatorConfirmed(t *testing.T) {
	var last atomic.Value
	srv := restServer(t, http.StatusOK, `{"success":true}`, &last)

	m := &RestMutator{BaseURL: srv.URL, Token: "tok"}
	out := m.Mutate(context.Background(), likeKey(), true, "req-1")
	if out != OutcomeConfirmed {
		t.Fatalf("outcome = %v", out)
	}
	got, _ := last.Load().(string)
	want := "POST /api/posts/post1/like Bearer tok req-1"
	if got != want {
		t.Fatalf("request = %q, want %q", got, want)
	}
}

func TestRestMutatorDeleteOnRevoke(t *testing.T) {
	var last atomic.Value
	srv := restServer(t, http.StatusOK, `{"success":true}`, &last)

	m := &RestMutator{BaseURL: srv.URL, Token: "tok"}
	if out := m.Mutate(context.Background(), EntityKey{Subject: "alice", Object: "bob", Kind: "follow"}, false, "req-2"); out != OutcomeConfirmed {
		t.Fatalf("outcome = %v", out)
	}
	got, _ := last.Load().(string)
	if got != "DELETE /api/users/bob/follow Bearer tok req-2" {
		t.Fatalf("request = %q", got)
	}
}

func TestRestMutatorMapsEnvelopeCodes(t *testing.T) {
	cases := []struct {
		body string
		want Outcome
	}{
		{`{"success":false,"code":50201,"message":"record already exists"}`, OutcomeConflict},
		{`{"success":false,"code":50101,"message":"record not found"}`, OutcomeNotFound},
		{`{"success":false,"code":50000,"message":"internal"}`, OutcomeTransport},
	}
	for _, tc := range cases {
		srv := restServer(t, http.StatusOK, tc.body, nil)
		m := &RestMutator{BaseURL: srv.URL}
		if out := m.Mutate(context.Background(), likeKey(), true, "r"); out != tc.want {
			t.Fatalf("body %s -> %v, want %v", tc.body, out, tc.want)
		}
	}
}

func TestRestMutatorUnreachableIsTransport(t *testing.T) {
	m := &RestMutator{BaseURL: "http://127.0.0.1:1"} // 没有监听者
	if out := m.Mutate(context.Background(), likeKey(), true, "r"); out != OutcomeTransport {
		t.Fatalf("outcome = %v", out)
	}
}

func TestRestMutatorUnknownKind(t *testing.T) {
	m := &RestMutator{BaseURL: "http://unused"}
	if out := m.Mutate(context.Background(), EntityKey{Kind: "wat"}, true, "r"); out != OutcomeNotFound {
		t.Fatalf("outcome = %v", out)
	}
}
