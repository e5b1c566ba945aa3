package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/errors"
	"github.com/wms-platform/stockcount-service/pkg/logging"
	"github.com/wms-platform/stockcount-service/pkg/metrics"
	"github.com/wms-platform/stockcount-service/pkg/resilience"
)

const (
	tracerName          = "github.com/wms-platform/stockcount-service/internal/application"
	defaultLockTTL      = 10 * time.Second
	defaultBatchSize    = 100
	auditRecordTimeout  = 5 * time.Second
	conflictMaxAttempts = 3
)

// Dependencies are the collaborators shared by the application services
type Dependencies struct {
	Inventories domain.InventoryRepository
	Items       domain.ItemRepository
	Counts      domain.CountLedger
	Serials     domain.SerialRepository
	Events      domain.EventStore
	Tx          domain.Transactor
	Locker      domain.Locker
	Audit       domain.AuditRecorder
	Policy      domain.AuditPolicy
	Metrics     *metrics.Metrics
	Logger      *logging.Logger

	LockTTL   time.Duration
	BatchSize int
}

func (d Dependencies) withDefaults() Dependencies {
	if d.LockTTL <= 0 {
		d.LockTTL = defaultLockTTL
	}
	if d.BatchSize <= 0 {
		d.BatchSize = defaultBatchSize
	}
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(metrics.DefaultConfig("stockcount-service"))
	}
	return d
}

func inventoryLockKey(id string) string { return "stockcount:inventory:" + id }

func itemLockKey(id string) string { return "stockcount:item:" + id }

func serialLockKey(inventoryID, serialNumber string) string {
	return fmt.Sprintf("stockcount:serial:%s:%s", inventoryID, serialNumber)
}

// lockManager acquires locks in the order given and releases them in reverse
type lockManager struct {
	locker  domain.Locker
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *logging.Logger
}

func (l *lockManager) withLocks(ctx context.Context, scope string, keys []string, fn func(ctx context.Context) error) error {
	return l.withLocksFor(ctx, scope, keys, l.ttl, fn)
}

// withLocksFor is withLocks with an explicit lease, for critical sections
// that wait on remote calls
func (l *lockManager) withLocksFor(ctx context.Context, scope string, keys []string, ttl time.Duration, fn func(ctx context.Context) error) error {
	unlocks := make([]domain.Unlock, 0, len(keys))
	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		for i := len(unlocks) - 1; i >= 0; i-- {
			if err := unlocks[i](releaseCtx); err != nil {
				l.logger.WithError(err).Warn("Failed to release lock", "key", keys[i])
			}
		}
	}()

	for _, key := range keys {
		start := time.Now()
		unlock, err := l.locker.Lock(ctx, key, ttl)
		l.metrics.RecordLockWait(scope, err == nil, time.Since(start))
		if err != nil {
			return err
		}
		unlocks = append(unlocks, unlock)
	}
	return fn(ctx)
}

// conflictRetry repeats an operation that lost an optimistic version check
var conflictRetry = &resilience.RetryConfig{
	MaxAttempts:   conflictMaxAttempts,
	InitialDelay:  20 * time.Millisecond,
	MaxDelay:      200 * time.Millisecond,
	BackoffFactor: 2,
	RetryableErrors: func(err error) bool {
		return stderrors.Is(err, domain.ErrConcurrentModification)
	},
}

// auditTrail records audit entries without letting failures reach the caller
type auditTrail struct {
	recorder domain.AuditRecorder
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

func (a *auditTrail) record(ctx context.Context, entry domain.AuditEntry) {
	a.logger.Audit(ctx, entry.Action, entry.EntityType, entry.EntityID, entry.Actor, entry.Metadata)
	if a.recorder == nil {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditRecordTimeout)
	defer cancel()

	if err := a.recorder.Record(recordCtx, entry); err != nil {
		a.metrics.RecordAuditLogFailure()
		a.logger.WithContext(ctx).WithError(err).Warn("Failed to write audit log entry",
			"action", entry.Action,
			"entityType", entry.EntityType,
			"entityId", entry.EntityID,
		)
	}
}

// serviceBase bundles what every service needs
type serviceBase struct {
	deps   Dependencies
	locks  *lockManager
	audit  *auditTrail
	tracer trace.Tracer
	logger *logging.Logger
}

func newServiceBase(deps Dependencies, component string) serviceBase {
	deps = deps.withDefaults()
	logger := deps.Logger.WithComponent(component)
	return serviceBase{
		deps: deps,
		locks: &lockManager{
			locker:  deps.Locker,
			ttl:     deps.LockTTL,
			metrics: deps.Metrics,
			logger:  logger,
		},
		audit: &auditTrail{
			recorder: deps.Audit,
			metrics:  deps.Metrics,
			logger:   logger,
		},
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// persist runs the writes of one logical operation in a single transaction
func (b *serviceBase) persist(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.deps.Tx.WithTransaction(ctx, fn); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = defaultBatchSize
	}
	var batches [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

func failureFromError(id string, err error) ItemFailureDTO {
	var ruleErr *domain.RuleError
	if stderrors.As(err, &ruleErr) {
		return ItemFailureDTO{ID: id, Code: ruleErr.Code, Message: ruleErr.Message}
	}
	if stderrors.Is(err, domain.ErrLockNotAcquired) {
		return ItemFailureDTO{ID: id, Code: CodeLockNotAcquired, Message: err.Error()}
	}
	return ItemFailureDTO{ID: id, Code: errors.CodeInternalError, Message: err.Error()}
}
