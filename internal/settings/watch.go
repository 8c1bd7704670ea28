package settings

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path on every write and hands valid settings to onChange
// until ctx is cancelled. A failed reload keeps the previous settings.
// The parent directory is watched so atomic rename-saves are seen.
func Watch(ctx context.Context, path string, logger *log.Logger, onChange func(Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	logf(logger, "settings: watching path=%s", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// A rename onto path surfaces as Create on the directory.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				logf(logger, "settings: reload failed, keeping previous path=%s err=%v", path, err)
				continue
			}
			logf(logger, "settings: reloaded path=%s shift=%d window=%s triggers=%v", path, cfg.ShiftMinutes, cfg.AlertWindow, cfg.TriggerReasons)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logf(logger, "settings: watcher error: %v", err)
		}
	}
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
