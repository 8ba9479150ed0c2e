package services

import (
	"context"
	"time"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/pkg/logger"
)

type Activator struct {
	store    FileStore
	interval time.Duration
	timeout  time.Duration
	logger   logger.ILogger
}

func NewActivator(store FileStore, interval, timeout time.Duration, log logger.ILogger) *Activator {
	return &Activator{
		store:    store,
		interval: interval,
		timeout:  timeout,
		logger:   log,
	}
}

// EnsureActive polls every file that is not ACTIVE until all are, or until the
// timeout passes. Poll errors are skipped and retried on the next tick. The
// refreshed handles are returned in input order; on timeout they are returned
// as they are so the caller can still attach them.
func (a *Activator) EnsureActive(ctx context.Context, files []models.RemoteFile) ([]models.RemoteFile, error) {
	out := make([]models.RemoteFile, len(files))
	copy(out, files)

	if !anyPending(out) {
		return out, nil
	}

	deadline := time.Now().Add(a.timeout)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		for i, f := range out {
			if !isPending(f) {
				continue
			}
			latest, err := a.store.Get(ctx, f.Name)
			if err != nil {
				a.logger.Debug("activation", "poll failed", map[string]interface{}{
					"file":  f.Name,
					"error": err.Error(),
				})
				continue
			}
			out[i] = *latest
		}

		if !anyPending(out) {
			return out, nil
		}

		if !time.Now().Before(deadline) {
			a.logger.Warn("activation", "files not active before timeout, attaching anyway", map[string]interface{}{
				"pending": pendingNames(out),
				"timeout": a.timeout.String(),
			})
			return out, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// A FAILED file will never turn ACTIVE, so polling stops for it.
func isPending(f models.RemoteFile) bool {
	return !f.IsActive() && f.State != models.FileStateFailed
}

func anyPending(files []models.RemoteFile) bool {
	for _, f := range files {
		if isPending(f) {
			return true
		}
	}
	return false
}

func pendingNames(files []models.RemoteFile) []string {
	var names []string
	for _, f := range files {
		if isPending(f) {
			names = append(names, f.Name)
		}
	}
	return names
}
