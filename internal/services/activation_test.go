package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/pkg/logger"
)

func TestEnsureActiveWaitsForActive(t *testing.T) {
	store := newFakeFileStore()
	store.activeAt = 3
	store.put(models.RemoteFile{Name: "files/a", State: models.FileStateProcessing})
	store.put(models.RemoteFile{Name: "files/b", State: models.FileStateActive})

	a := NewActivator(store, time.Millisecond, time.Second, logger.NewNopLogger())
	in := []models.RemoteFile{
		{Name: "files/a", State: models.FileStateProcessing},
		{Name: "files/b", State: models.FileStateActive},
	}

	out, err := a.EnsureActive(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, models.FileStateActive, out[0].State)
	assert.Equal(t, models.FileStateActive, out[1].State)
	assert.Equal(t, 3, store.getCount("files/a"))
	assert.Zero(t, store.getCount("files/b"), "active files are not polled")
	assert.Equal(t, models.FileStateProcessing, in[0].State, "input is not mutated")
}

func TestEnsureActiveReturnsOnTimeout(t *testing.T) {
	store := newFakeFileStore()
	store.activeAt = 1000
	store.put(models.RemoteFile{Name: "files/slow", State: models.FileStateProcessing})

	a := NewActivator(store, 5*time.Millisecond, 30*time.Millisecond, logger.NewNopLogger())

	start := time.Now()
	out, err := a.EnsureActive(context.Background(), []models.RemoteFile{{Name: "files/slow", State: models.FileStateProcessing}})

	require.NoError(t, err)
	assert.Equal(t, models.FileStateProcessing, out[0].State)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Greater(t, store.getCount("files/slow"), 1)
}

func TestEnsureActiveIgnoresPollErrors(t *testing.T) {
	store := newFakeFileStore()
	store.getErr = errors.New("503")

	a := NewActivator(store, time.Millisecond, 10*time.Millisecond, logger.NewNopLogger())

	out, err := a.EnsureActive(context.Background(), []models.RemoteFile{{Name: "files/x", State: models.FileStateProcessing}})

	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestEnsureActiveStopsOnCancel(t *testing.T) {
	store := newFakeFileStore()
	store.activeAt = 1000
	store.put(models.RemoteFile{Name: "files/slow", State: models.FileStateProcessing})

	a := NewActivator(store, 5*time.Millisecond, time.Minute, logger.NewNopLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.EnsureActive(ctx, []models.RemoteFile{{Name: "files/slow", State: models.FileStateProcessing}})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnsureActiveSkipsFailedFiles(t *testing.T) {
	store := newFakeFileStore()
	a := NewActivator(store, time.Millisecond, time.Second, logger.NewNopLogger())

	out, err := a.EnsureActive(context.Background(), []models.RemoteFile{{Name: "files/bad", State: models.FileStateFailed}})

	require.NoError(t, err)
	assert.Equal(t, models.FileStateFailed, out[0].State)
	assert.Zero(t, store.getCount("files/bad"))
}
