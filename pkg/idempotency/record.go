package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	// HeaderIdempotencyKey is the HTTP header carrying the client key
	HeaderIdempotencyKey = "Idempotency-Key"

	// DefaultMaxKeyLength is the maximum length of an idempotency key
	DefaultMaxKeyLength = 255

	// DefaultLockTimeout is the age after which an in-flight lock is considered stale
	DefaultLockTimeout = 2 * time.Minute

	// DefaultRetentionPeriod is how long completed responses are replayed
	DefaultRetentionPeriod = 24 * time.Hour

	// DefaultMaxResponseSize is the largest response body that is cached (1MB)
	DefaultMaxResponseSize = 1 * 1024 * 1024
)

var (
	// ErrKeyInvalid indicates that the idempotency key format is invalid
	ErrKeyInvalid = errors.New("invalid idempotency key format")

	// ErrKeyTooLong indicates that the idempotency key exceeds the maximum length
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length")
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Record is a stored idempotency key with the response of the first request
// that used it
type Record struct {
	ID          string     `bson:"_id"`
	Key         string     `bson:"key"`
	UserID      string     `bson:"userId"`
	Method      string     `bson:"method"`
	Path        string     `bson:"path"`
	Fingerprint string     `bson:"fingerprint"`
	LockedAt    *time.Time `bson:"lockedAt,omitempty"`

	StatusCode  int        `bson:"statusCode,omitempty"`
	Body        []byte     `bson:"body,omitempty"`
	ContentType string     `bson:"contentType,omitempty"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// IsCompleted returns true once a response has been stored
func (r *Record) IsCompleted() bool {
	return r.CompletedAt != nil
}

// IsLocked returns true while the first request is still being processed
func (r *Record) IsLocked() bool {
	return r.LockedAt != nil && r.CompletedAt == nil
}

// Store persists idempotency records. Acquire must be atomic: concurrent
// callers with the same (userId, key) get the same record and exactly one of
// them sees created == true.
type Store interface {
	Acquire(ctx context.Context, record *Record) (existing *Record, created bool, err error)
	Relock(ctx context.Context, id string, staleBefore time.Time) (bool, error)
	Complete(ctx context.Context, id string, statusCode int, contentType string, body []byte) error
	Release(ctx context.Context, id string) error
}

// ValidateKey checks an idempotency key against the allowed format
func ValidateKey(key string, maxLength int) error {
	if len(key) > maxLength {
		return ErrKeyTooLong
	}
	if !keyPattern.MatchString(key) {
		return ErrKeyInvalid
	}
	return nil
}

// Fingerprint hashes the request method, path and body so that a key reused
// for a different request is detected
func Fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
