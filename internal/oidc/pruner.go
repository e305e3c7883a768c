package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// cronLogger adapts a sugared logger to gocron.Logger.
type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Debug(msg string, args ...any) { c.l.Debugw(msg, args...) }
func (c cronLogger) Info(msg string, args ...any)  { c.l.Infow(msg, args...) }
func (c cronLogger) Warn(msg string, args ...any)  { c.l.Warnw(msg, args...) }
func (c cronLogger) Error(msg string, args ...any) { c.l.Errorw(msg, args...) }

// StartPruner schedules Prune every interval and starts the scheduler.
// The caller owns Shutdown.
func StartPruner(svc *Service, interval time.Duration, logger *zap.SugaredLogger) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithClock(svc.clock),
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(cronLogger{l: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := svc.Prune(ctx)
			if err != nil {
				logger.Warnw("prune sessions failed", "err", err)
				return
			}
			if n > 0 {
				logger.Infow("expired sessions pruned", "count", n)
			}
		}),
		gocron.WithName("prune-sessions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule prune: %w", err)
	}
	s.Start()
	return s, nil
}
