package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/feedhub/internal/images"
	"github.com/isdelr/feedhub/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// ImageFiles lists and deletes stored images.
type ImageFiles interface {
	List() ([]images.File, error)
	Remove(path string) error
}

// ImageReferences reports which image paths are still used by posts.
type ImageReferences interface {
	ImageURLs(ctx context.Context) (map[string]bool, error)
}

// ImageJanitor removes uploaded images that no post references, once they are
// older than the grace period. Uploads for in-flight requests stay within it.
type ImageJanitor struct {
	files    ImageFiles
	refs     ImageReferences
	schedule string
	grace    time.Duration
	cron     *cron.Cron
	now      func() time.Time
}

// NewImageJanitor creates a janitor that sweeps on the given cron schedule,
// e.g. "@every 1h" or "0 3 * * *".
func NewImageJanitor(files ImageFiles, refs ImageReferences, schedule string, grace time.Duration) *ImageJanitor {
	return &ImageJanitor{
		files:    files,
		refs:     refs,
		schedule: schedule,
		grace:    grace,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start registers the sweep and starts the cron scheduler in its own goroutine.
func (j *ImageJanitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return fmt.Errorf("invalid image sweep schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	log.Info().Str("schedule", j.schedule).Dur("grace", j.grace).Msg("Image janitor started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (j *ImageJanitor) Stop() {
	<-j.cron.Stop().Done()
	log.Info().Msg("Image janitor stopped")
}

func (j *ImageJanitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := j.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Image sweep failed")
		return
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Removed orphaned images")
	}
}

// Sweep deletes unreferenced images older than the grace period and returns how many it removed.
func (j *ImageJanitor) Sweep(ctx context.Context) (int, error) {
	files, err := j.files.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list images: %w", err)
	}
	referenced, err := j.refs.ImageURLs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load image references: %w", err)
	}

	cutoff := j.now().Add(-j.grace)
	removed := 0
	for _, f := range files {
		if referenced[f.Path] || f.ModTime.After(cutoff) {
			continue
		}
		if err := j.files.Remove(f.Path); err != nil {
			log.Warn().Err(err).Str("image", f.Path).Msg("Failed to remove orphaned image")
			continue
		}
		removed++
	}

	metrics.AddImagesSwept(removed)
	return removed, nil
}
