package catalog

import (
	"context"
	"os"
	"time"

	"courtbook/internal/metrics"

	"github.com/rs/zerolog"
)

const defaultReload = 30 * time.Second

type watcher struct {
	catalog *Catalog
	path    string
	modTime time.Time
	logger  zerolog.Logger
}

// Watch loads path into c and then polls its mtime, reloading on change.
// Invalid files are logged and the previous snapshot stays in place.
func Watch(ctx context.Context, c *Catalog, path string, interval time.Duration, logger zerolog.Logger) error {
	if interval <= 0 {
		interval = defaultReload
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	f, err := LoadFile(path)
	if err != nil {
		return err
	}
	c.Replace(f)

	w := &watcher{
		catalog: c,
		path:    path,
		modTime: info.ModTime(),
		logger:  logger.With().Str("component", "catalog").Str("path", path).Logger(),
	}
	go w.run(ctx, interval)
	return nil
}

func (w *watcher) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *watcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		// Editors often replace the file; try again next tick.
		return
	}
	if !info.ModTime().After(w.modTime) {
		return
	}
	w.modTime = info.ModTime()

	f, err := LoadFile(w.path)
	if err != nil {
		metrics.IncCatalogReload("invalid")
		w.logger.Warn().Err(err).Msg("catalog reload failed, keeping previous snapshot")
		return
	}
	w.catalog.Replace(f)
	metrics.IncCatalogReload("success")
	w.logger.Info().Str("summary", f.String()).Msg("catalog reloaded")
}
