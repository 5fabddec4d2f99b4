package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/uni-edt/timetable-api/pkg/errors"
)

func TestLeaseRepositoryInProcessExclusion(t *testing.T) {
	repo := NewLeaseRepository(nil, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Acquire(ctx, "all:2026-W05"))

	err := repo.Acquire(ctx, "all:2026-W05")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLeaseHeld.Code, appErrors.FromError(err).Code)

	// A different key is an independent lease.
	require.NoError(t, repo.Acquire(ctx, "g1:2026-W05"))
}

func TestLeaseRepositoryReleaseFreesKey(t *testing.T) {
	repo := NewLeaseRepository(nil, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Acquire(ctx, "all:2026-W05"))
	require.NoError(t, repo.Release(ctx, "all:2026-W05"))
	require.NoError(t, repo.Acquire(ctx, "all:2026-W05"))
}

func TestLeaseRepositoryExpiredLeaseIsReacquirable(t *testing.T) {
	repo := NewLeaseRepository(nil, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, repo.Acquire(ctx, "all:2026-W05"))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, repo.Acquire(ctx, "all:2026-W05"))
}

func TestLeaseRepositoryReleaseUnknownKey(t *testing.T) {
	repo := NewLeaseRepository(nil, time.Minute)
	require.NoError(t, repo.Release(context.Background(), "never-acquired"))
}
