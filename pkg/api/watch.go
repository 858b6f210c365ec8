package api

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/telemetry"
)

// catalogReloadDelay debounces bursts of editor writes into one reload.
const catalogReloadDelay = 300 * time.Millisecond

// CatalogLoader reads a catalog file. dsl.Load satisfies it.
type CatalogLoader func(path string) (*catalog.Catalog, error)

// WatchCatalog reloads the catalog into svc whenever path changes, until ctx
// is cancelled. The directory is watched rather than the file so that
// editors replacing the file by rename are seen. A catalog that fails to
// load or validate is logged and the previous one stays in service.
func WatchCatalog(ctx context.Context, svc *Service, path string, load CatalogLoader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	logger := telemetry.FromContext(ctx).NewComponentLogger("catalog-watch").WithField("path", abs)
	var events *telemetry.EventPublisher
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		events = tel.Events
	}

	reload := func() {
		cat, err := load(abs)
		if err != nil {
			logger.WithError(err).Error("Failed to reload catalog; keeping previous")
			return
		}
		for _, issue := range cat.Validate() {
			if issue.Fatal {
				logger.WithField("issue", issue.String()).Error("Reloaded catalog is invalid; keeping previous")
				return
			}
		}
		svc.SetCatalog(cat)
		_ = events.PublishCatalogReloaded(abs, len(cat.Types()), len(cat.Functions()))
		logger.WithFields(map[string]interface{}{
			"types":     len(cat.Types()),
			"functions": len(cat.Functions()),
		}).Info("Catalog reloaded")
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs ||
					event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(catalogReloadDelay, reload)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Watcher error")
			}
		}
	}()

	logger.Info("Watching catalog for changes")
	return nil
}
