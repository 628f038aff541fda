package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistryForCreatesOncePerName(t *testing.T) {
	r := NewRegistry()
	a := r.For("Put")
	b := r.For("Put")
	require.Same(t, a, b)

	c := r.For("Get")
	require.NotSame(t, a, c)
}

func TestSnapshotReportsTotalOps(t *testing.T) {
	r := NewRegistry()
	stats := r.For("Put")
	stats.Record(5 * time.Millisecond)
	stats.Record(10 * time.Millisecond)

	snap := stats.Snapshot()
	require.Equal(t, "Put", snap.Name)
	require.Equal(t, int64(2), snap.TotalOps)
}

func TestRegistrySnapshotsCoversEveryRecordedOp(t *testing.T) {
	r := NewRegistry()
	r.For("Put").Record(time.Millisecond)
	r.For("Get").Record(time.Millisecond)

	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
}

func TestFormatBytes(t *testing.T) {
	require.NotEmpty(t, FormatBytes(4096))
}
