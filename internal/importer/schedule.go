package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RunSchedule runs Sync on the cron spec until ctx is cancelled. An empty
// spec disables scheduled rescans and returns immediately.
func (im *Importer) RunSchedule(ctx context.Context, spec string, loc *time.Location) error {
	if spec == "" {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() {
		sum, err := im.Sync(ctx)
		if err != nil {
			im.logger.Warn("rescan: sync failed", slog.String("error", err.Error()))
			return
		}
		im.logger.Info("rescan: done",
			slog.Int("imported", sum.Imported),
			slog.Int("failed", sum.Failed),
			slog.Int("removed", sum.Removed))
	}); err != nil {
		return fmt.Errorf("importer: schedule %q: %w", spec, err)
	}

	im.logger.Info("rescan: scheduled", slog.String("spec", spec))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// ValidateSchedule reports whether spec is a valid five-field cron spec or
// descriptor such as "@hourly".
func ValidateSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("importer: invalid schedule %q: %w", spec, err)
	}
	return nil
}
