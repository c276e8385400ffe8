package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// startRefresh reloads the bookshelf menu on schedule so book counts stay
// current while the window is open. An empty schedule disables it.
func startRefresh(ctx context.Context, schedule string, refresh func(context.Context) error, logger *zap.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if err := refresh(ctx); err != nil {
			logger.Warn("scheduled refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}
	c.Start()
	logger.Debug("refresh scheduled", zap.String("schedule", schedule))
	return c, nil
}
