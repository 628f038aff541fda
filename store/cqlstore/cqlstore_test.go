package cqlstore

import (
	"errors"
	"testing"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/require"
)

// TestIsTransientClassification guards the retry/no-retry split withRetry
// relies on: gocql's own transient-connection errors should be retried,
// everything else (including our own sentinel errors) should not.
func TestIsTransientClassification(t *testing.T) {
	require.True(t, isTransient(gocql.ErrTimeoutNoResponse))
	require.True(t, isTransient(gocql.ErrConnectionClosed))
	require.True(t, isTransient(gocql.ErrNoConnections))
	require.False(t, isTransient(gocql.ErrNotFound))
	require.False(t, isTransient(errors.New("some other failure")))
}
