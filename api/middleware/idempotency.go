package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/bookstore-backend/api/responses"
	"github.com/angelmondragon/bookstore-backend/api/validators"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/bookstore-backend/pkg/redis"
)

const (
	// IdempotencyKeyHeader carries the client-generated key for purchase requests.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from the replay store.
	ReplayedHeader = "Idempotent-Replayed"

	// MaxIdempotencyKeyLen bounds the client key; longer keys are truncated.
	MaxIdempotencyKeyLen = 128

	reservationTTL = time.Minute
)

// Routes that create payment links. A pattern matches when it starts with
// prefix and ends with suffix.
var replayedRoutes = []struct{ prefix, suffix string }{
	{"/api/v1/checkout", "/api/v1/checkout"},
	{"/api/v1/checkout/create-subscription-link", "/create-subscription-link"},
	{"/api/v1/book-designs/", "/purchase"},
	{"/api/v1/orders/", "/retry-payment"},
	{"/api/v1/subscriptions/", "/retry-payment"},
}

func requiresIdempotency(method, pattern string) bool {
	if method != http.MethodPost || pattern == "" {
		return false
	}
	for _, rt := range replayedRoutes {
		if strings.HasPrefix(pattern, rt.prefix) && strings.HasSuffix(pattern, rt.suffix) {
			return true
		}
	}
	return false
}

// replayRecord is stored twice per key: first as a reservation with Done
// false while the handler runs, then overwritten by the finished response.
type replayRecord struct {
	Done        bool   `json:"done"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes purchase requests safe to repeat. The first request with
// a key runs; repeats with the same body receive the stored response and a
// repeat with a different body is rejected. 5xx responses are forgotten so
// the client can retry under the same key.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || ttl <= 0 || !requiresIdempotency(r.Method, routePattern(r)) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := validators.HeaderToken(r, IdempotencyKeyHeader, MaxIdempotencyKeyLen)
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)
			fingerprint := fingerprintOf(body)

			reserved, err := store.SetNX(ctx, key, encodeRecord(replayRecord{Fingerprint: fingerprint}), reservationTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, dependencyErr(err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayExisting(ctx, w, store, key, fingerprint, logg)
				return
			}

			rec := &recorder{ResponseWriter: w, capture: true}
			next.ServeHTTP(rec, r)

			// The response is already on the wire; bookkeeping below must not
			// be cut short by a client disconnect.
			bg := context.WithoutCancel(ctx)
			if rec.Status() >= http.StatusInternalServerError {
				if err := store.Del(bg, key); err != nil {
					logFailure(bg, logg, "idempotency.release_failed", err)
				}
				return
			}
			// Overwrite the reservation in place so the key is never absent
			// between the handler finishing and the replay record landing.
			done := replayRecord{
				Done:        true,
				Fingerprint: fingerprint,
				Status:      rec.Status(),
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			if err := store.Set(bg, key, encodeRecord(done), ttl); err != nil {
				logFailure(bg, logg, "idempotency.store_failed", err)
			}
		})
	}
}

func replayExisting(ctx context.Context, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The holder finished with a 5xx between our SETNX and GET.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, dependencyErr(err, "read idempotency record"))
		return
	}

	var stored replayRecord
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case !stored.Done:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress").
			WithDetails(map[string]any{"retryable": true}))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func encodeRecord(rec replayRecord) string {
	// replayRecord has no types json cannot encode
	out, _ := json.Marshal(rec)
	return string(out)
}

func dependencyErr(err error, msg string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg).WithDetails(map[string]any{"dependency": "redis"})
}

func logFailure(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}
