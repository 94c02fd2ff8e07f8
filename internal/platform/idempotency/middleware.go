package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/httpx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	anonymousCaller   = "anonymous"
)

var defaultMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// guard holds the resolved middleware settings.
type guard struct {
	store    Store
	header   string
	ttl      time.Duration
	methods  map[string]bool
	now      func() time.Time
	logger   *zap.Logger
	optional bool
}

// MiddlewareOption customises the guard.
type MiddlewareOption func(*guard)

// WithHeader overrides the header carrying the key.
func WithHeader(name string) MiddlewareOption {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithTTL sets how long completed responses stay replayable.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithMethods restricts the guarded HTTP methods. Unknown or empty input keeps the defaults.
func WithMethods(methods ...string) MiddlewareOption {
	return func(g *guard) {
		set := make(map[string]bool, len(methods))
		for _, method := range methods {
			if method = strings.ToUpper(strings.TrimSpace(method)); method != "" {
				set[method] = true
			}
		}
		if len(set) > 0 {
			g.methods = set
		}
	}
}

func WithLogger(logger *zap.Logger) MiddlewareOption {
	return func(g *guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithKeyOptional lets requests without the header pass through unguarded.
// Clients that send a key still get replay protection.
func WithKeyOptional() MiddlewareOption {
	return func(g *guard) { g.optional = true }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) MiddlewareOption {
	return func(g *guard) {
		if clock != nil {
			g.now = clock
		}
	}
}

// Middleware replays the first completed response for a repeated (caller, key) pair. A key reused
// with a different request is rejected with 409, as is a key whose first request is still running.
// 5xx responses are never stored so the client may retry with the same key.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	g := &guard{
		store:  store,
		header: defaultHeaderName,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	WithMethods(defaultMethods...)(g)
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(next, w, r)
		})
	}
}

func (g *guard) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(g.header))
	switch {
	case !g.methods[r.Method]:
		next.ServeHTTP(w, r)
		return
	case key == "" && g.optional:
		next.ServeHTTP(w, r)
		return
	case key == "":
		writeError(ctx, w, http.StatusBadRequest, "idempotency_key_required", "missing idempotency key header")
		return
	}

	body, err := readAndReplayBody(r)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "idempotency_read_body_failed", "unable to read request body")
		return
	}
	caller := extractRequester(ctx)
	scoped := scopedKey(key, caller)
	fingerprint := requestFingerprint(r, body, caller)
	log := g.logger.With(zap.String("key", key), zap.String("caller", caller))

	reservation, err := g.store.Reserve(ctx, scoped, fingerprint, g.now().UTC(), g.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		writeError(ctx, w, http.StatusConflict, "idempotency_key_conflict", "idempotency key already used for a different request")
		return
	case err != nil:
		log.Error("idempotency reserve failed", zap.Error(err))
		writeError(ctx, w, http.StatusServiceUnavailable, "idempotency_store_error", "unable to process idempotency key")
		return
	}

	switch reservation.State {
	case ReservationStateNew:
	case ReservationStateCompleted:
		replay(w, reservation.Record)
		return
	case ReservationStatePending:
		writeError(ctx, w, http.StatusConflict, "idempotency_in_progress", "another request is processing this idempotency key")
		return
	default:
		writeError(ctx, w, http.StatusInternalServerError, "idempotency_unknown_state", "unexpected idempotency state")
		return
	}

	buf := &bufferedWriter{header: make(http.Header)}
	next.ServeHTTP(buf, r)

	if buf.statusCode() >= http.StatusInternalServerError {
		g.release(ctx, log, scoped, fingerprint)
		buf.flushTo(w, log)
		return
	}
	if err := g.store.SaveResponse(ctx, scoped, fingerprint, buf.response(), g.now().UTC(), g.ttl); err != nil {
		log.Error("idempotency persist failed", zap.Error(err))
		g.release(ctx, log, scoped, fingerprint)
		writeError(ctx, w, http.StatusInternalServerError, "idempotency_store_error", "unable to persist idempotency state")
		return
	}
	buf.flushTo(w, log)
}

func (g *guard) release(ctx context.Context, log *zap.Logger, scoped, fingerprint string) {
	if err := g.store.Release(ctx, scoped, fingerprint); err != nil {
		log.Warn("idempotency release failed", zap.Error(err))
	}
}

// readAndReplayBody drains the body and puts an identical reader back on the request.
func readAndReplayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	closeErr := r.Body.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// requestFingerprint binds a key to the request target, content type, caller and payload.
func requestFingerprint(r *http.Request, body []byte, caller string) string {
	bodyHash := ""
	if len(body) > 0 {
		bodyHash = sha256Hex(body)
	}
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Host,
		r.Header.Get("Content-Type"),
		caller,
		bodyHash,
	}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

func extractRequester(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.UID != "" {
		return identity.UID
	}
	return anonymousCaller
}

// scopedKey namespaces the client key by caller so two users cannot collide.
func scopedKey(key, caller string) string {
	if caller = strings.TrimSpace(caller); caller == "" {
		caller = anonymousCaller
	}
	if key = strings.TrimSpace(key); key == "" {
		return caller
	}
	return key + "|" + caller
}

func replay(w http.ResponseWriter, record Record) {
	dst := w.Header()
	for name := range dst {
		delete(dst, name)
	}
	for name, values := range headersFromRecord(record.ResponseHeaders) {
		dst[name] = values
	}
	dst.Set(replayHeaderName, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

// bufferedWriter holds the downstream response until the guard decides whether to store it.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 && status > 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(data []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(data)
}

func (b *bufferedWriter) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedWriter) response() Response {
	var body []byte
	if b.body.Len() > 0 {
		body = append([]byte(nil), b.body.Bytes()...)
	}
	return Response{Status: b.statusCode(), Headers: b.header.Clone(), Body: body}
}

func (b *bufferedWriter) flushTo(w http.ResponseWriter, log *zap.Logger) {
	dst := w.Header()
	for name := range dst {
		delete(dst, name)
	}
	for name, values := range b.header {
		dst[name] = append([]string(nil), values...)
	}
	w.WriteHeader(b.statusCode())
	if b.body.Len() == 0 {
		return
	}
	if _, err := w.Write(b.body.Bytes()); err != nil {
		log.Warn("idempotency flush failed", zap.Error(err))
	}
}
