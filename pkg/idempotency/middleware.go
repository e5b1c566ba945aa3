package idempotency

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms-platform/stockcount-service/pkg/errors"
	"github.com/wms-platform/stockcount-service/pkg/metrics"
	"github.com/wms-platform/stockcount-service/pkg/middleware"
)

// HeaderReplayed marks a response served from the idempotency store
const HeaderReplayed = "Idempotent-Replayed"

// Config holds configuration for the idempotency middleware
type Config struct {
	Store   Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// UserIDExtractor scopes keys per caller
	UserIDExtractor func(*gin.Context) string

	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration
	MaxResponseSize int
}

// DefaultConfig returns a configuration scoping keys by the caller's user ID
func DefaultConfig(store Store, logger *slog.Logger) *Config {
	return &Config{
		Store:           store,
		Logger:          logger,
		UserIDExtractor: middleware.GetUserID,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
	}
}

// responseWriter captures the response body for storage
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware replays the stored response of a mutating request when the same
// Idempotency-Key is sent again. Requests without the header pass through.
func Middleware(config *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMutatingMethod(c.Request.Method) {
			c.Next()
			return
		}

		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if err := ValidateKey(key, config.MaxKeyLength); err != nil {
			middleware.AbortWithAppError(c, errors.NewAppError("IDEMPOTENCY_KEY_INVALID", err.Error(), http.StatusBadRequest))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			if body, err = io.ReadAll(c.Request.Body); err != nil {
				middleware.AbortWithAppError(c, errors.ErrBadRequest("failed to read request body"))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		h := &handler{config: config, c: c}
		h.process(key, Fingerprint(c.Request.Method, c.Request.URL.Path, body))
	}
}

type handler struct {
	config *Config
	c      *gin.Context
}

func (h *handler) process(key, fingerprint string) {
	c := h.c
	ctx := c.Request.Context()
	now := time.Now().UTC()

	var userID string
	if h.config.UserIDExtractor != nil {
		userID = h.config.UserIDExtractor(c)
	}

	record, created, err := h.config.Store.Acquire(ctx, &Record{
		ID:          uuid.New().String(),
		Key:         key,
		UserID:      userID,
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(h.config.RetentionPeriod),
	})
	if err != nil {
		h.config.Logger.Error("Failed to acquire idempotency key", "error", err, "key", key)
		h.record("storage_error")
		middleware.AbortWithAppError(c, errors.ErrServiceUnavailable("idempotency storage"))
		return
	}

	if !created {
		if record.Fingerprint != fingerprint {
			h.config.Logger.Warn("Idempotency key reused with different parameters", "key", key, "path", c.Request.URL.Path)
			h.record("mismatch")
			middleware.AbortWithAppError(c, errors.NewAppError("IDEMPOTENCY_PARAMETER_MISMATCH",
				"request parameters differ from the original request with this idempotency key", http.StatusUnprocessableEntity))
			return
		}

		if record.IsCompleted() {
			h.record("hit")
			c.Header(HeaderReplayed, "true")
			c.Data(record.StatusCode, record.ContentType, record.Body)
			c.Abort()
			return
		}

		if !h.takeOver(record) {
			return
		}
	}

	h.record("miss")
	writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
	c.Writer = writer

	c.Next()

	// the client may have gone away; the outcome must still be stored
	storeCtx := context.WithoutCancel(ctx)
	status := writer.Status()
	if status >= http.StatusInternalServerError || writer.body.Len() > h.config.MaxResponseSize {
		if err := h.config.Store.Release(storeCtx, record.ID); err != nil {
			h.config.Logger.Error("Failed to release idempotency key", "error", err, "key", key)
		}
		return
	}
	if err := h.config.Store.Complete(storeCtx, record.ID, status, writer.Header().Get("Content-Type"), writer.body.Bytes()); err != nil {
		h.config.Logger.Error("Failed to store idempotent response", "error", err, "key", key)
		h.record("storage_error")
	}
}

// takeOver resumes a record left locked by a request that never completed.
// It aborts the request and returns false while the original is still in flight.
func (h *handler) takeOver(record *Record) bool {
	c := h.c
	concurrent := func() bool {
		h.record("concurrent")
		middleware.AbortWithAppError(c, errors.NewAppError("IDEMPOTENCY_CONCURRENT_REQUEST",
			"a request with this idempotency key is currently being processed", http.StatusConflict).AsRetryable())
		return false
	}

	staleBefore := time.Now().UTC().Add(-h.config.LockTimeout)
	if record.IsLocked() && record.LockedAt.After(staleBefore) {
		return concurrent()
	}

	ok, err := h.config.Store.Relock(c.Request.Context(), record.ID, staleBefore)
	if err != nil {
		h.config.Logger.Error("Failed to relock idempotency key", "error", err, "key", record.Key)
		h.record("storage_error")
		middleware.AbortWithAppError(c, errors.ErrServiceUnavailable("idempotency storage"))
		return false
	}
	if !ok {
		return concurrent()
	}
	h.config.Logger.Info("Resuming stale idempotency key", "key", record.Key)
	return true
}

func (h *handler) record(outcome string) {
	if h.config.Metrics != nil {
		h.config.Metrics.RecordIdempotency(h.c.Request.Method, h.c.FullPath(), outcome)
	}
}

func isMutatingMethod(method string) bool {
	return method == http.MethodPost ||
		method == http.MethodPut ||
		method == http.MethodPatch ||
		method == http.MethodDelete
}
