package logx

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"starloc/pkg/logconf"
)

// BuildFunc produces a fresh config for the given moment.
type BuildFunc func(now time.Time) (logconf.Config, error)

// rolloverSchedule is the cron schedule StartDailyRollover runs on.
var rolloverSchedule = "@daily"

// StartDailyRollover re-applies build(now) every midnight (local time) until
// ctx is done, so date-named files follow the calendar.
//
// Without it a Service keeps writing to the files named for the day the
// config was built.
func (s *Service) StartDailyRollover(ctx context.Context, build BuildFunc) error {
	c := cron.New()
	_, err := c.AddFunc(rolloverSchedule, func() {
		cfg, err := build(time.Now())
		if err != nil {
			s.report.printf("daily rollover: build config: %v", err)
			return
		}
		if err := s.Apply(cfg); err != nil {
			s.report.printf("daily rollover: apply config: %v", err)
			return
		}
		s.Logger(logconf.RouteRoot).Debug("log files rolled over", String("date", time.Now().Format("2006-01-02")))
	})
	if err != nil {
		return err
	}

	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
