package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/bookstore-backend/pkg/redis"
)

const checkoutRoute = "/api/v1/checkout"

func newRedisStore(t *testing.T) (*pkgredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return pkgredis.NewFromRaw(raw), mr
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

// checkoutCall describes one POST to the checkout route.
type checkoutCall struct {
	key  string
	body string
	user string
}

func (c checkoutCall) serve(h http.Handler) *httptest.ResponseRecorder {
	req := requestWithPattern(http.MethodPost, checkoutRoute, checkoutRoute, strings.NewReader(c.body))
	if c.key != "" {
		req.Header.Set(IdempotencyKeyHeader, c.key)
	}
	if c.user != "" {
		req = req.WithContext(WithUserID(req.Context(), c.user))
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", resp.Body.String(), err)
	}
	return payload.Error.Code
}

// finishHookStore runs beforeFinish just ahead of the write that records the
// finished response, which is where a late duplicate can slip in.
type finishHookStore struct {
	*pkgredis.Client
	beforeFinish func()
	dels         int
}

func (s *finishHookStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.beforeFinish != nil {
		hook := s.beforeFinish
		s.beforeFinish = nil
		hook()
	}
	return s.Client.Set(ctx, key, value, ttl)
}

func (s *finishHookStore) Del(ctx context.Context, keys ...string) error {
	s.dels++
	return s.Client.Del(ctx, keys...)
}

func TestRequiresIdempotency(t *testing.T) {
	cases := map[string]struct {
		method, pattern string
		want            bool
	}{
		"checkout":             {http.MethodPost, checkoutRoute, true},
		"subscription link":    {http.MethodPost, "/api/v1/checkout/create-subscription-link", true},
		"direct purchase":      {http.MethodPost, "/api/v1/book-designs/{id}/purchase", true},
		"order retry":          {http.MethodPost, "/api/v1/orders/{orderId}/retry-payment", true},
		"subscription retry":   {http.MethodPost, "/api/v1/subscriptions/{subscriptionId}/retry-payment", true},
		"order retry raw path": {http.MethodPost, "/api/v1/orders/8c1f/retry-payment", true},
		"order read":           {http.MethodGet, "/api/v1/orders/{orderId}", false},
		"cart add":             {http.MethodPost, "/api/v1/cart/items", false},
		"empty":                {http.MethodPost, "", false},
	}
	for name, tc := range cases {
		if got := requiresIdempotency(tc.method, tc.pattern); got != tc.want {
			t.Fatalf("%s: got %v, want %v", name, got, tc.want)
		}
	}
}

func TestIdempotencyRequiresKey(t *testing.T) {
	store, _ := newRedisStore(t)
	reached := false
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	resp := checkoutCall{body: `{"foo":"bar"}`}.serve(h)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if reached {
		t.Fatal("handler ran without a key")
	}
}

func TestIdempotencyIgnoresOtherRoutes(t *testing.T) {
	store, mr := newRedisStore(t)
	calls := 0
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for range 2 {
		h.ServeHTTP(httptest.NewRecorder(), requestWithPattern(http.MethodGet, "/api/v1/cart", "/api/v1/cart", nil))
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	store, mr := newRedisStore(t)
	calls := 0
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	call := checkoutCall{key: "abc", body: `{"foo":"bar"}`}

	first := call.serve(h)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	if first.Header().Get(ReplayedHeader) != "" {
		t.Fatal("first response must not be marked replayed")
	}

	replay := call.serve(h)
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" || replay.Header().Get(ReplayedHeader) != "true" {
		t.Fatalf("unexpected replay headers %v", replay.Header())
	}
	if replay.Body.String() != `{"ok":true}` {
		t.Fatalf("unexpected replay body %q", replay.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one key, got %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl != time.Hour {
		t.Fatalf("finished record ttl = %s, want 1h", ttl)
	}
}

func TestIdempotencyFinishedRecordReplacesReservationInPlace(t *testing.T) {
	client, _ := newRedisStore(t)
	store := &finishHookStore{Client: client}
	calls := 0
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	call := checkoutCall{key: "late-dup", body: `{}`}

	var duplicate *httptest.ResponseRecorder
	store.beforeFinish = func() { duplicate = call.serve(h) }

	if first := call.serve(h); first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	if duplicate == nil {
		t.Fatal("duplicate request was not sent")
	}
	if duplicate.Code != http.StatusConflict || !strings.Contains(duplicate.Body.String(), "still in progress") {
		t.Fatalf("duplicate must see the reservation, got %d %s", duplicate.Code, duplicate.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times for one key", calls)
	}
	if store.dels != 0 {
		t.Fatalf("a successful request must not drop its reservation, saw %d deletes", store.dels)
	}
	if replay := call.serve(h); replay.Header().Get(ReplayedHeader) != "true" {
		t.Fatalf("expected replay after finish, got %d", replay.Code)
	}
}

func TestIdempotencyForgetsServerErrors(t *testing.T) {
	store, mr := newRedisStore(t)
	calls := 0
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	call := checkoutCall{key: "retry-me", body: `{}`}

	if code := call.serve(h).Code; code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("a failed attempt must release its reservation, found %v", keys)
	}
	if code := call.serve(h).Code; code != http.StatusCreated {
		t.Fatalf("expected 201 on retry, got %d", code)
	}
	if calls != 2 || len(mr.Keys()) != 1 {
		t.Fatalf("calls=%d keys=%v", calls, mr.Keys())
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	store, _ := newRedisStore(t)
	calls := 0
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	checkoutCall{key: "shared", body: `{}`, user: "user-a"}.serve(h)
	checkoutCall{key: "shared", body: `{}`, user: "user-b"}.serve(h)
	if calls != 2 {
		t.Fatalf("same key under two users must run twice, ran %d", calls)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	store, _ := newRedisStore(t)
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	checkoutCall{key: "xyz", body: `{"foo":"bar"}`}.serve(h)
	resp := checkoutCall{key: "xyz", body: `{"foo":"diff"}`}.serve(h)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("error code = %q", code)
	}
}

func TestIdempotencyRejectsDuplicateInFlight(t *testing.T) {
	store, mr := newRedisStore(t)
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run while the key is reserved")
	}))

	key := store.IdempotencyKey("|POST|"+checkoutRoute, "busy")
	if err := mr.Set(key, encodeRecord(replayRecord{Fingerprint: fingerprintOf([]byte(`{}`))})); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	resp := checkoutCall{key: "busy", body: `{}`}.serve(h)
	if resp.Code != http.StatusConflict || !strings.Contains(resp.Body.String(), "still in progress") {
		t.Fatalf("expected in-progress conflict, got %d %s", resp.Code, resp.Body.String())
	}
}
