/*
scheduler.go - Automated database backup scheduler

PURPOSE:
  Periodically snapshots the SQLite database into a timestamped file
  under a backup directory, so a corrupted or fat-fingered database can
  be restored from a recent copy.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Takes one backup immediately on start
  - Each backup is a full, consistent copy (VACUUM INTO)
  - Failures are logged and retried on the next tick, never fatal

CONFIGURATION:
  - Dir:      Where backup files land (created if missing)
  - Interval: Time between backups (default: 24 hours)

USAGE:
  scheduler := NewBackupScheduler(store, dir, interval, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - store/sqlite: Store.Backup
  - cmd/server/main.go: Wires the scheduler from config
*/
package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sigap/procure-engine/store/sqlite"
)

// BackupScheduler writes periodic snapshots of the database.
type BackupScheduler struct {
	Store    *sqlite.Store
	Dir      string
	Interval time.Duration
	Log      zerolog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBackupScheduler creates a scheduler writing into dir every interval.
func NewBackupScheduler(store *sqlite.Store, dir string, interval time.Duration, log zerolog.Logger) *BackupScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &BackupScheduler{
		Store:    store,
		Dir:      dir,
		Interval: interval,
		Log:      log,
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler.
func (bs *BackupScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.Dir == "" {
		bs.Log.Info().Msg("backup scheduler disabled, no backup directory configured")
		return
	}

	bs.ticker = time.NewTicker(bs.Interval)
	bs.wg.Add(1)
	go bs.run()

	bs.Log.Info().Str("dir", bs.Dir).Dur("interval", bs.Interval).Msg("backup scheduler started")
}

// Stop stops the scheduler and waits for an in-flight backup to finish.
func (bs *BackupScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.Log.Info().Msg("backup scheduler stopped")
	}
}

func (bs *BackupScheduler) run() {
	defer bs.wg.Done()

	// Take one backup immediately on start
	bs.backup()

	for {
		select {
		case <-bs.ticker.C:
			bs.backup()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BackupScheduler) backup() {
	if err := os.MkdirAll(bs.Dir, 0o755); err != nil {
		bs.Log.Error().Err(err).Str("dir", bs.Dir).Msg("backup directory unavailable")
		return
	}

	dest := filepath.Join(bs.Dir, fmt.Sprintf("procure-%s.db", time.Now().Format("20060102-150405")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := bs.Store.Backup(ctx, dest); err != nil {
		bs.Log.Error().Err(err).Str("dest", dest).Msg("backup failed")
		return
	}
	bs.Log.Info().Str("dest", dest).Msg("backup written")
}
