package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/pkg/logger"
)

type fakeExpiringRepo struct {
	mu      sync.Mutex
	expired []*models.Session
}

func (r *fakeExpiringRepo) Save(context.Context, *models.Session) error { return nil }

func (r *fakeExpiringRepo) FindByID(context.Context, uuid.UUID) (*models.Session, error) {
	return nil, nil
}

func (r *fakeExpiringRepo) Delete(context.Context, uuid.UUID) error { return nil }

func (r *fakeExpiringRepo) PurgeExpired(_ context.Context, _ time.Time, limit int) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.expired) > limit {
		out := r.expired[:limit]
		r.expired = r.expired[limit:]
		return out, nil
	}
	out := r.expired
	r.expired = nil
	return out, nil
}

func TestFileJanitorDrainsQueueOnStop(t *testing.T) {
	store := newFakeFileStore()
	j := NewFileJanitor(store, nil, 2, 0, logger.NewNopLogger())
	j.Start(context.Background())

	j.Enqueue("files/1", "", "files/2", "files/3")
	j.Stop()

	assert.ElementsMatch(t, []string{"files/1", "files/2", "files/3"}, store.deletedNames())
}

func TestFileJanitorDropsAfterStop(t *testing.T) {
	store := newFakeFileStore()
	j := NewFileJanitor(store, nil, 1, 0, logger.NewNopLogger())
	j.Start(context.Background())
	j.Stop()
	j.Stop()

	j.Enqueue("files/late")

	assert.Empty(t, store.deletedNames())
}

func TestFileJanitorReleaseSession(t *testing.T) {
	store := newFakeFileStore()
	j := NewFileJanitor(store, nil, 1, 0, logger.NewNopLogger())
	j.Start(context.Background())

	s := models.NewSession(ModelPro, time.Now())
	s.ResumeFile = &models.UploadedFile{Remote: models.RemoteFile{Name: "files/cv"}}
	s.Attachments = []models.UploadedFile{{Remote: models.RemoteFile{Name: "files/extra"}}}

	j.ReleaseSession(s)
	j.ReleaseSession(nil)
	j.Stop()

	assert.ElementsMatch(t, []string{"files/cv", "files/extra"}, store.deletedNames())
}

func TestFileJanitorSweepsExpiredSessions(t *testing.T) {
	store := newFakeFileStore()
	s := models.NewSession(ModelPro, time.Now())
	s.Attachments = []models.UploadedFile{{Remote: models.RemoteFile{Name: "files/old"}}}
	repo := &fakeExpiringRepo{expired: []*models.Session{s}}

	j := NewFileJanitor(store, repo, 1, 5*time.Millisecond, logger.NewNopLogger())
	j.Start(context.Background())

	assert.Eventually(t, func() bool {
		return len(store.deletedNames()) == 1
	}, time.Second, 5*time.Millisecond)

	j.Stop()
	assert.Equal(t, []string{"files/old"}, store.deletedNames())
}
