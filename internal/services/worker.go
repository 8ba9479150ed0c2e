package services

import (
	"context"
	"sync"
	"time"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/pkg/logger"
	"alfredoptarigan/readysetrole/internal/repositories"
)

const (
	janitorQueueSize  = 100
	janitorSweepLimit = 50
	deleteTimeout     = 10 * time.Second
)

// FileJanitor deletes remote files that no session references anymore.
type FileJanitor interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(names ...string)
	ReleaseSession(session *models.Session)
}

type fileJanitor struct {
	store         FileStore
	sessions      repositories.ExpiringSessionRepository
	queue         chan string
	concurrency   int
	sweepInterval time.Duration
	logger        logger.ILogger
	wg            sync.WaitGroup
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewFileJanitor builds the janitor. sessions may be nil when the session
// store evicts on its own; the expiry sweep is then skipped.
func NewFileJanitor(
	store FileStore,
	sessions repositories.ExpiringSessionRepository,
	concurrency int,
	sweepInterval time.Duration,
	log logger.ILogger,
) FileJanitor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &fileJanitor{
		store:         store,
		sessions:      sessions,
		queue:         make(chan string, janitorQueueSize),
		concurrency:   concurrency,
		sweepInterval: sweepInterval,
		logger:        log,
		stopChan:      make(chan struct{}),
	}
}

// Start implements FileJanitor.
func (j *fileJanitor) Start(ctx context.Context) {
	j.logger.Info("janitor", "starting file janitor", map[string]interface{}{
		"concurrency": j.concurrency,
	})

	for i := 0; i < j.concurrency; i++ {
		j.wg.Add(1)
		go j.processDeletes(ctx, i+1)
	}

	if j.sessions != nil && j.sweepInterval > 0 {
		j.wg.Add(1)
		go j.pollExpiredSessions(ctx)
	}
}

// Stop implements FileJanitor. Queued deletions are finished before it returns.
func (j *fileJanitor) Stop() {
	j.stopOnce.Do(func() {
		j.logger.Info("janitor", "stopping file janitor", nil)
		close(j.stopChan)
		j.wg.Wait()
		j.logger.Info("janitor", "file janitor stopped", nil)
	})
}

// Enqueue implements FileJanitor.
func (j *fileJanitor) Enqueue(names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		select {
		case <-j.stopChan:
			j.logger.Warn("janitor", "janitor stopped, dropping file", map[string]interface{}{"file": name})
			continue
		default:
		}

		select {
		case j.queue <- name:
		case <-j.stopChan:
			j.logger.Warn("janitor", "janitor stopped, dropping file", map[string]interface{}{"file": name})
		}
	}
}

// ReleaseSession implements FileJanitor. It is also the eviction hook of the
// in-memory session store.
func (j *fileJanitor) ReleaseSession(session *models.Session) {
	if session == nil {
		return
	}
	names := session.RemoteFileNames()
	if len(names) == 0 {
		return
	}
	j.logger.Info("janitor", "releasing session files", map[string]interface{}{
		"session_id": session.ID.String(),
		"files":      len(names),
	})
	j.Enqueue(names...)
}

func (j *fileJanitor) processDeletes(ctx context.Context, workerID int) {
	defer j.wg.Done()

	for {
		select {
		case name := <-j.queue:
			j.delete(ctx, workerID, name)
		case <-j.stopChan:
			for {
				select {
				case name := <-j.queue:
					j.delete(ctx, workerID, name)
				default:
					return
				}
			}
		}
	}
}

func (j *fileJanitor) delete(ctx context.Context, workerID int, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()

	if err := j.store.Delete(ctx, name); err != nil {
		j.logger.Warn("janitor", "failed to delete remote file", map[string]interface{}{
			"worker": workerID,
			"file":   name,
			"error":  err.Error(),
		})
		return
	}

	j.logger.Debug("janitor", "remote file deleted", map[string]interface{}{
		"worker": workerID,
		"file":   name,
	})
}

func (j *fileJanitor) pollExpiredSessions(ctx context.Context) {
	defer j.wg.Done()
	ticker := time.NewTicker(j.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := j.sessions.PurgeExpired(ctx, time.Now(), janitorSweepLimit)
			if err != nil {
				j.logger.Warn("janitor", "failed to purge expired sessions", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}

			if len(expired) > 0 {
				j.logger.Info("janitor", "purged expired sessions", map[string]interface{}{
					"count": len(expired),
				})
			}

			for _, s := range expired {
				j.ReleaseSession(s)
			}
		}
	}
}
