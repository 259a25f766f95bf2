// Package resolvd repairs namespace resolver bind mounts after an external
// network manager replaces the global resolv.conf.
//
// Processes started inside a named namespace see /etc/resolv.conf through a
// bind mount of /etc/netns/<ns>/resolv.conf that lives in each process's own
// mount namespace. When a network manager deletes and recreates the global
// file, those mounts are silently lost. The daemon watches for exactly that
// deletion/replacement signal (updates in place are not damage) and
// re-establishes missing mounts in the mount namespace of every affected
// process.
package resolvd

import (
	"context"
	"os"
	"syscall"
	"time"

	retry "github.com/avast/retry-go/v3"
	"github.com/fsnotify/fsnotify"
	"github.com/ifnetns/ifnetns/log"
	"github.com/ifnetns/ifnetns/netns"
	"github.com/ifnetns/ifnetns/platform"
	"github.com/pkg/errors"
)

const (
	defaultWatchPath = "/etc/resolv.conf"
	defaultResolvDir = "/etc/netns"
	defaultLockPath  = "/run/ifnetns/resolvd.pid"
)

// Daemon is the singleton watch-then-repair loop.
type Daemon struct {
	watchPath string
	resolvDir string
	lock      *PidLock

	netnsClient netns.NetnsInterface
	proc        ProcScanner
	plClient    platform.ExecClient

	rearmAttempts uint
	rearmDelay    time.Duration
}

func NewDaemon(lockPath string) *Daemon {
	if lockPath == "" {
		lockPath = defaultLockPath
	}
	return &Daemon{
		watchPath:     defaultWatchPath,
		resolvDir:     defaultResolvDir,
		lock:          NewPidLock(lockPath),
		netnsClient:   netns.NewNetns(),
		proc:          NewProcFS(),
		plClient:      platform.NewExecClient(),
		rearmAttempts: 60,
		rearmDelay:    time.Second,
	}
}

// Run acquires the singleton lock and watches until ctx is canceled. The
// lock is released on every exit path.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.lock.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.lock.Release(); err != nil {
			log.Errorf("Failed to release lock file: %v", err)
		}
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer watcher.Close()

	if err := d.armWatch(ctx, watcher); err != nil {
		return err
	}
	log.Printf("Watching %s", d.watchPath)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Shutting down")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only deletion/replacement signals damage; writes in place do
			// not disturb the bind mounts. A Chmod can be the last event seen
			// for an unlinked file, so it counts only when the file is gone.
			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
			case event.Op&fsnotify.Chmod != 0 && !fileExists(d.watchPath):
			default:
				continue
			}
			log.Printf("%s was replaced, repairing namespaces", d.watchPath)
			d.Repair()
			// The watch died with the file; a fresh one must be established
			// after every event.
			if err := d.armWatch(ctx, watcher); err != nil {
				return err
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("Watcher error: %v", watchErr)
		}
	}
}

// armWatch (re-)adds the watch, retrying while the network manager is still
// recreating the file.
func (d *Daemon) armWatch(ctx context.Context, watcher *fsnotify.Watcher) error {
	err := retry.Do(
		func() error { return watcher.Add(d.watchPath) },
		retry.Attempts(d.rearmAttempts),
		retry.Delay(d.rearmDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	return errors.Wrapf(err, "failed to watch %s", d.watchPath)
}

// Kill signals a live instance to stop.
func (d *Daemon) Kill() (int, error) {
	return d.lock.SignalRunning(syscall.SIGTERM)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
