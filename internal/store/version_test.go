package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenBump_Order(t *testing.T) {
	var calls []string
	version, err := writeThenBump(context.Background(),
		func(context.Context) error {
			calls = append(calls, "write")
			return nil
		},
		func(context.Context) (uint64, error) {
			calls = append(calls, "bump")
			return 7, nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), version)
	assert.Equal(t, []string{"write", "bump"}, calls)
}

func TestWriteThenBump_FailedWriteKeepsVersion(t *testing.T) {
	bumped := false
	boom := errors.New("write failed")
	_, err := writeThenBump(context.Background(),
		func(context.Context) error { return boom },
		func(context.Context) (uint64, error) {
			bumped = true
			return 1, nil
		},
	)
	assert.ErrorIs(t, err, boom)
	assert.False(t, bumped)
}

// A rebuild that reads the version while a write is in flight must tag its snapshot
// with a version older than the write's, so the rebuild requested afterwards runs.
func TestWriteThenBump_ConcurrentReaderSeesOlderVersion(t *testing.T) {
	var stored uint64 = 3
	var seenDuringWrite uint64
	version, err := writeThenBump(context.Background(),
		func(context.Context) error {
			seenDuringWrite = stored
			return nil
		},
		func(context.Context) (uint64, error) {
			stored++
			return stored, nil
		},
	)
	require.NoError(t, err)
	assert.Less(t, seenDuringWrite, version)
}
