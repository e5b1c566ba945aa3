package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialItem_ApplyScan(t *testing.T) {
	now := time.Now()

	t.Run("mismatch then superseded by later stage at expected location", func(t *testing.T) {
		s, err := NewExpectedSerial("inv-1", "SN-001", "p1", "A")
		require.NoError(t, err)

		changed, err := s.ApplyScan(StageSecond, "B", "alice", now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, DiscrepancyLocationMismatch, s.Discrepancy)
		assert.Equal(t, "A", s.ExpectedLocationID)
		assert.Equal(t, "B", s.FoundLocationID)

		changed, err = s.ApplyScan(StageThird, "A", "bob", now.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "A", s.FoundLocationID)
		assert.Equal(t, 3, s.FoundStage)
		assert.Equal(t, DiscrepancyNone, s.Discrepancy)
	})

	t.Run("same stage same location is a no-op", func(t *testing.T) {
		s, _ := NewExpectedSerial("inv-1", "SN-002", "p1", "A")
		_, _ = s.ApplyScan(StageFirst, "A", "alice", now)
		updated := s.UpdatedAt

		changed, err := s.ApplyScan(StageFirst, "A", "bob", now.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, "alice", s.ScannedBy)
		assert.Equal(t, updated, s.UpdatedAt)
	})

	t.Run("older stage reading is ignored", func(t *testing.T) {
		s, _ := NewExpectedSerial("inv-1", "SN-003", "p1", "A")
		_, _ = s.ApplyScan(StageThird, "A", "alice", now)

		changed, err := s.ApplyScan(StageSecond, "B", "bob", now)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, "A", s.FoundLocationID)
		assert.Equal(t, DiscrepancyNone, s.Discrepancy)
	})

	t.Run("unexpected serial stays unexpected", func(t *testing.T) {
		s, err := NewUnexpectedSerial("inv-1", "SN-X", "p9", StageFirst, "C", "alice", now)
		require.NoError(t, err)
		assert.Equal(t, DiscrepancyUnexpectedFound, s.Discrepancy)

		changed, err := s.ApplyScan(StageSecond, "D", "bob", now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, DiscrepancyUnexpectedFound, s.Discrepancy)
	})

	t.Run("audit stage is not a scan stage", func(t *testing.T) {
		s, _ := NewExpectedSerial("inv-1", "SN-004", "p1", "A")
		_, err := s.ApplyScan(StageAudit, "A", "alice", now)
		assert.ErrorIs(t, err, ErrInvalidStage)
	})

	t.Run("empty serial number", func(t *testing.T) {
		_, err := NewExpectedSerial("inv-1", "  ", "p1", "A")
		assert.ErrorIs(t, err, ErrInvalidSerial)
	})
}

func TestSerialItem_MarkNotFound(t *testing.T) {
	now := time.Now()

	missing, _ := NewExpectedSerial("inv-1", "SN-1", "p1", "A")
	assert.True(t, missing.MarkNotFound(now))
	assert.Equal(t, DiscrepancyNotFound, missing.Discrepancy)
	assert.False(t, missing.MarkNotFound(now), "second pass changes nothing")

	found, _ := NewExpectedSerial("inv-1", "SN-2", "p1", "A")
	_, _ = found.ApplyScan(StageFirst, "A", "alice", now)
	assert.False(t, found.MarkNotFound(now))
	assert.Equal(t, DiscrepancyNone, found.Discrepancy)

	unexpected, _ := NewUnexpectedSerial("inv-1", "SN-3", "p1", StageFirst, "B", "alice", now)
	assert.False(t, unexpected.MarkNotFound(now))
}

func TestSerialItem_PromoteToExpected(t *testing.T) {
	now := time.Now()

	t.Run("found at the expected location", func(t *testing.T) {
		s, _ := NewUnexpectedSerial("inv-1", "SN-1", "", StageFirst, "A", "alice", now)
		assert.True(t, s.PromoteToExpected("p1", "A", now))
		assert.True(t, s.Expected)
		assert.Equal(t, "p1", s.ProductID)
		assert.Equal(t, DiscrepancyNone, s.Discrepancy)
	})

	t.Run("found elsewhere", func(t *testing.T) {
		s, _ := NewUnexpectedSerial("inv-1", "SN-2", "p9", StageSecond, "B", "alice", now)
		assert.True(t, s.PromoteToExpected("", "A", now))
		assert.Equal(t, "p9", s.ProductID)
		assert.Equal(t, "A", s.ExpectedLocationID)
		assert.Equal(t, DiscrepancyLocationMismatch, s.Discrepancy)
	})

	t.Run("already expected", func(t *testing.T) {
		s, _ := NewExpectedSerial("inv-1", "SN-3", "p1", "A")
		assert.False(t, s.PromoteToExpected("p1", "B", now))
		assert.Equal(t, "A", s.ExpectedLocationID)
	})

	t.Run("resolved record is left alone", func(t *testing.T) {
		s, _ := NewUnexpectedSerial("inv-1", "SN-4", "p1", StageFirst, "B", "alice", now)
		require.NoError(t, s.Resolve("returned to vendor", "auditor", now))
		assert.False(t, s.PromoteToExpected("p1", "A", now))
		assert.False(t, s.Expected)
		assert.Equal(t, DiscrepancyUnexpectedFound, s.Discrepancy)
	})
}

func TestSerialItem_ResolveAndMigrate(t *testing.T) {
	now := time.Now()

	t.Run("resolve requires a discrepancy", func(t *testing.T) {
		s, _ := NewExpectedSerial("inv-1", "SN-1", "p1", "A")
		_, _ = s.ApplyScan(StageFirst, "A", "alice", now)

		err := s.Resolve("all good", "sup", now)
		assert.ErrorIs(t, err, ErrNoDiscrepancy)
		assert.Equal(t, ResolutionPending, s.Resolution)
	})

	t.Run("resolve requires notes", func(t *testing.T) {
		s, _ := NewExpectedSerial("inv-1", "SN-2", "p1", "A")
		_, _ = s.ApplyScan(StageFirst, "B", "alice", now)

		assert.ErrorIs(t, s.Resolve(" ", "sup", now), ErrResolutionNotesRequired)
	})

	t.Run("resolved then migrated is terminal", func(t *testing.T) {
		s, _ := NewExpectedSerial("inv-1", "SN-3", "p1", "A")
		_, _ = s.ApplyScan(StageFirst, "B", "alice", now)

		assert.ErrorIs(t, s.MarkMigrated(now), ErrSerialNotResolved)

		require.NoError(t, s.Resolve("moved by maintenance", "sup", now))
		assert.Equal(t, ResolutionResolved, s.Resolution)
		assert.Equal(t, "sup", s.ResolvedBy)

		_, err := s.ApplyScan(StageSecond, "A", "bob", now)
		assert.ErrorIs(t, err, ErrSerialResolved)
		assert.ErrorIs(t, s.Resolve("again", "sup", now), ErrSerialResolved)

		require.NoError(t, s.MarkMigrated(now))
		assert.Equal(t, ResolutionMigrated, s.Resolution)

		_, err = s.ApplyScan(StageSecond, "A", "bob", now)
		assert.ErrorIs(t, err, ErrSerialMigrated)
		assert.ErrorIs(t, s.Resolve("again", "sup", now), ErrSerialMigrated)
		assert.ErrorIs(t, s.MarkMigrated(now), ErrSerialMigrated)
		assert.Equal(t, "B", s.FoundLocationID)
	})
}

func TestSummarizeSerials(t *testing.T) {
	now := time.Now()
	ok, _ := NewExpectedSerial("inv-1", "SN-1", "p1", "A")
	_, _ = ok.ApplyScan(StageFirst, "A", "u", now)
	moved, _ := NewExpectedSerial("inv-1", "SN-2", "p1", "A")
	_, _ = moved.ApplyScan(StageFirst, "B", "u", now)
	_ = moved.Resolve("relocated", "sup", now)
	lost, _ := NewExpectedSerial("inv-1", "SN-3", "p1", "A")
	lost.MarkNotFound(now)
	extra, _ := NewUnexpectedSerial("inv-1", "SN-4", "p2", StageFirst, "C", "u", now)

	summary := SummarizeSerials([]*SerialItem{ok, moved, lost, extra})

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Found)
	assert.Equal(t, 3, summary.Expected)
	assert.Equal(t, map[string]int{
		"none":              1,
		"location_mismatch": 1,
		"not_found":         1,
		"unexpected_found":  1,
	}, summary.ByDiscrepancy)
	assert.Equal(t, map[string]int{
		"pending":         3,
		"resolved":        1,
		"migrated_to_erp": 0,
	}, summary.ByResolution)
	assert.Equal(t, 2, summary.OpenDiscrepancies)
}
