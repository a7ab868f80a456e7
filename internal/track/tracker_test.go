package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NetWarden/internal/model"
)

func tupleN(n uint16) model.FiveTuple {
	return model.FiveTuple{
		SrcIP:    0x0100000a,
		DstIP:    0x04030201,
		SrcPort:  1000 + n,
		DstPort:  443,
		Protocol: model.ProtoTCP,
	}
}

func TestGetOrCreateNewConnection(t *testing.T) {
	tr := New(0, 16)

	conn := tr.GetOrCreate(tupleN(1))
	require.NotNil(t, conn)
	assert.Equal(t, model.StateNew, conn.State)
	assert.Equal(t, 1, tr.ActiveCount())

	again := tr.GetOrCreate(tupleN(1))
	assert.Same(t, conn, again)
	assert.Equal(t, 1, tr.ActiveCount())
}

func TestLRUEvictionAtCapacity(t *testing.T) {
	tr := New(0, 4)

	// Six distinct flows, one packet each: the two oldest must go.
	for i := uint16(0); i < 6; i++ {
		tr.GetOrCreate(tupleN(i))
	}

	assert.Equal(t, 4, tr.ActiveCount())
	assert.Equal(t, uint64(2), tr.EvictedCount())

	_, ok := tr.Get(tupleN(0))
	assert.False(t, ok, "oldest tuple should have been evicted")
	_, ok = tr.Get(tupleN(1))
	assert.False(t, ok, "second-oldest tuple should have been evicted")
	_, ok = tr.Get(tupleN(5))
	assert.True(t, ok)
}

func TestLRUTouchOnAccess(t *testing.T) {
	tr := New(0, 3)

	tr.GetOrCreate(tupleN(0))
	tr.GetOrCreate(tupleN(1))
	tr.GetOrCreate(tupleN(2))

	// Touch 0 so 1 becomes the eviction candidate.
	tr.GetOrCreate(tupleN(0))
	tr.GetOrCreate(tupleN(3))

	_, ok := tr.Get(tupleN(0))
	assert.True(t, ok, "touched tuple was evicted")
	_, ok = tr.Get(tupleN(1))
	assert.False(t, ok, "LRU tuple survived")
}

func TestUpdateCounters(t *testing.T) {
	tr := New(0, 8)
	conn := tr.GetOrCreate(tupleN(1))

	tr.Update(conn, 100, true)
	tr.Update(conn, 50, true)
	tr.Update(conn, 60, false)

	assert.Equal(t, uint64(2), conn.PacketsOut)
	assert.Equal(t, uint64(150), conn.BytesOut)
	assert.Equal(t, uint64(1), conn.PacketsIn)
	assert.Equal(t, uint64(60), conn.BytesIn)
	assert.InDelta(t, 70.0, conn.AvgPacketSize, 0.001)
}

func TestClassifyIsMonotone(t *testing.T) {
	tr := New(0, 8)
	conn := tr.GetOrCreate(tupleN(1))

	tr.Classify(conn, model.AppYouTube, "www.youtube.com")
	assert.Equal(t, model.StateClassified, conn.State)
	assert.Equal(t, model.AppYouTube, conn.App)
	assert.Equal(t, "www.youtube.com", conn.ServerName)

	// Blocking absorbs; a later classify must not downgrade the state.
	tr.Block(conn)
	tr.Classify(conn, model.AppGoogle, "www.google.com")
	assert.Equal(t, model.StateBlocked, conn.State)
}

func TestCloseRemovesRecord(t *testing.T) {
	tr := New(0, 8)
	tr.GetOrCreate(tupleN(1))

	tr.Close(tupleN(1))
	assert.Equal(t, 0, tr.ActiveCount())
	assert.Equal(t, uint64(1), tr.ClosedCount())

	// Closing an absent tuple is a no-op.
	tr.Close(tupleN(9))
	assert.Equal(t, uint64(1), tr.ClosedCount())
}

func TestCleanupStale(t *testing.T) {
	tr := New(0, 8)
	old := tr.GetOrCreate(tupleN(1))
	old.LastSeen = time.Now().Add(-10 * time.Minute)
	tr.GetOrCreate(tupleN(2))

	removed := tr.CleanupStale(5 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, tr.ActiveCount())

	_, ok := tr.Get(tupleN(1))
	assert.False(t, ok)
}

func TestAccountingInvariant(t *testing.T) {
	tr := New(0, 4)

	for i := uint16(0); i < 10; i++ {
		tr.GetOrCreate(tupleN(i))
	}
	tr.Close(tupleN(9))

	stats := tr.Stats()
	// Active + evicted + closed covers every connection ever seen.
	assert.Equal(t, stats.Seen, uint64(stats.Active)+stats.Evicted+stats.Closed)
}

func TestLoadFactorAndCapacity(t *testing.T) {
	tr := New(0, 4)
	tr.GetOrCreate(tupleN(1))
	tr.GetOrCreate(tupleN(2))
	tr.GetOrCreate(tupleN(3))

	assert.InDelta(t, 0.75, tr.LoadFactor(), 0.001)
	assert.True(t, tr.IsNearCapacity(0.7))
	assert.False(t, tr.IsNearCapacity(0.9))
}

func TestSnapshotCopies(t *testing.T) {
	tr := New(0, 8)
	conn := tr.GetOrCreate(tupleN(1))
	tr.Classify(conn, model.AppDNS, "example.com")

	snap := tr.Snapshot()
	require.Len(t, snap, 1)

	snap[0].ServerName = "mutated"
	assert.Equal(t, "example.com", conn.ServerName)
}
