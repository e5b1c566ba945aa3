package idempotency

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*Record)}
}

func (s *memoryStore) Acquire(_ context.Context, record *Record) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := record.UserID + "|" + record.Key
	if existing, ok := s.records[k]; ok {
		cp := *existing
		return &cp, false, nil
	}
	now := time.Now().UTC()
	stored := *record
	stored.LockedAt = &now
	s.records[k] = &stored
	cp := stored
	return &cp, true, nil
}

func (s *memoryStore) byID(id string) (string, *Record) {
	for k, r := range s.records {
		if r.ID == id {
			return k, r
		}
	}
	return "", nil
}

func (s *memoryStore) Relock(_ context.Context, id string, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, r := s.byID(id)
	if r == nil || r.IsCompleted() || r.LockedAt == nil || !r.LockedAt.Before(staleBefore) {
		return false, nil
	}
	now := time.Now().UTC()
	r.LockedAt = &now
	return true, nil
}

func (s *memoryStore) Complete(_ context.Context, id string, statusCode int, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, r := s.byID(id)
	now := time.Now().UTC()
	r.StatusCode = statusCode
	r.ContentType = contentType
	r.Body = append([]byte(nil), body...)
	r.CompletedAt = &now
	r.LockedAt = nil
	return nil
}

func (s *memoryStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, r := s.byID(id); r != nil && !r.IsCompleted() {
		delete(s.records, k)
	}
	return nil
}

type fixture struct {
	store  *memoryStore
	calls  int
	status int
	router *gin.Engine
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{store: newMemoryStore(), status: http.StatusCreated}

	config := DefaultConfig(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	config.UserIDExtractor = func(c *gin.Context) string { return c.GetHeader("X-User-ID") }

	f.router = gin.New()
	f.router.Use(Middleware(config))
	f.router.POST("/items/:id/counts", func(c *gin.Context) {
		f.calls++
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(f.status, gin.H{"call": f.calls, "echo": string(body)})
	})
	f.router.GET("/items/:id/counts", func(c *gin.Context) {
		f.calls++
		c.JSON(http.StatusOK, gin.H{"call": f.calls})
	})
	return f
}

func (f *fixture) post(key, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/items/item-1/counts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_ReplaysCompletedResponse(t *testing.T) {
	f := newFixture()

	first := f.post("count-abc", "u1", `{"stage":1,"quantity":3}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.post("count-abc", "u1", `{"stage":1,"quantity":3}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Equal(t, 1, f.calls)
}

func TestMiddleware_BodyIsForwarded(t *testing.T) {
	f := newFixture()

	rec := f.post("count-abc", "u1", `{"stage":2}`)

	assert.Contains(t, rec.Body.String(), `{\"stage\":2}`)
}

func TestMiddleware_ParameterMismatch(t *testing.T) {
	f := newFixture()
	f.post("count-abc", "u1", `{"stage":1,"quantity":3}`)

	rec := f.post("count-abc", "u1", `{"stage":1,"quantity":4}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "IDEMPOTENCY_PARAMETER_MISMATCH")
	assert.Equal(t, 1, f.calls)
}

func TestMiddleware_KeysAreScopedPerUser(t *testing.T) {
	f := newFixture()
	f.post("count-abc", "u1", `{}`)

	rec := f.post("count-abc", "u2", `{}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderReplayed))
	assert.Equal(t, 2, f.calls)
}

func TestMiddleware_PassThrough(t *testing.T) {
	f := newFixture()

	f.post("", "u1", `{}`)
	f.post("", "u1", `{}`)
	assert.Equal(t, 2, f.calls)

	req := httptest.NewRequest(http.MethodGet, "/items/item-1/counts", nil)
	req.Header.Set(HeaderIdempotencyKey, "count-abc")
	f.router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 3, f.calls)
	assert.Empty(t, f.store.records)
}

func TestMiddleware_InvalidKey(t *testing.T) {
	f := newFixture()

	rec := f.post("not a key!", "u1", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "IDEMPOTENCY_KEY_INVALID")
	assert.Zero(t, f.calls)
}

func TestMiddleware_ServerErrorsAreNotCached(t *testing.T) {
	f := newFixture()
	f.status = http.StatusBadGateway

	rec := f.post("count-abc", "u1", `{}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, f.store.records)

	f.status = http.StatusCreated
	rec = f.post("count-abc", "u1", `{}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, f.calls)
}

func TestMiddleware_InFlightKeyConflicts(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()
	f.store.records["u1|count-abc"] = &Record{
		ID:          "r1",
		Key:         "count-abc",
		UserID:      "u1",
		Fingerprint: Fingerprint(http.MethodPost, "/items/item-1/counts", []byte(`{}`)),
		LockedAt:    &now,
	}

	rec := f.post("count-abc", "u1", `{}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "IDEMPOTENCY_CONCURRENT_REQUEST")
	assert.Zero(t, f.calls)
}

func TestMiddleware_StaleLockIsTakenOver(t *testing.T) {
	f := newFixture()
	stale := time.Now().UTC().Add(-time.Hour)
	f.store.records["u1|count-abc"] = &Record{
		ID:          "r1",
		Key:         "count-abc",
		UserID:      "u1",
		Fingerprint: Fingerprint(http.MethodPost, "/items/item-1/counts", []byte(`{}`)),
		LockedAt:    &stale,
	}

	rec := f.post("count-abc", "u1", `{}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, f.calls)
	assert.True(t, f.store.records["u1|count-abc"].IsCompleted())
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint("POST", "/a", []byte("x"))

	assert.Equal(t, base, Fingerprint("post", "/a", []byte("x")))
	assert.NotEqual(t, base, Fingerprint("POST", "/b", []byte("x")))
	assert.NotEqual(t, base, Fingerprint("POST", "/a", []byte("y")))
}
