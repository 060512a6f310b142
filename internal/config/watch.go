package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces editor write bursts into one reload.
const reloadDebounce = 300 * time.Millisecond

// Holder provides lock-free access to the current config and atomic swaps
// on reload. Long-lived components read through it instead of capturing a
// *Config at startup.
type Holder struct {
	cur atomic.Pointer[Config]
}

// NewHolder wraps an initial config.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.cur.Store(cfg)
	return h
}

// Current returns the live config. Callers must not mutate it.
func (h *Holder) Current() *Config { return h.cur.Load() }

// swap installs a new config.
func (h *Holder) swap(cfg *Config) { h.cur.Store(cfg) }

// Watch reloads the config file into the holder whenever it changes on
// disk, until ctx is cancelled. The watcher follows the parent directory so
// atomic save-and-rename editors don't detach it.
func Watch(ctx context.Context, path string, holder *Holder) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		var pending *time.Timer
		reload := func() {
			cfg, err := Load(path)
			if err != nil {
				slog.Warn("config reload failed, keeping previous config", "error", err)
				return
			}
			holder.swap(cfg)
			slog.Info("config reloaded", "path", path)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDebounce, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}
