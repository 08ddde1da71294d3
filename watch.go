package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// RunWatch periodically re-runs analyze plus a repair pass on a cron
// schedule. New commits in the range get scored, and previously failed ones
// get another shot at the real classifier. Blocks until the context is
// cancelled.
// The schedule is a standard 5-field cron expression (minute hour
// day-of-month month day-of-week). Examples: "0 2 * * *" (daily 2am),
// "0 */6 * * *" (every 6 hours).
func RunWatch(ctx context.Context, cfg Config, versionRange string) error {
	schedule := strings.TrimSpace(cfg.WatchSchedule)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return err
	}
	log.Printf("watch scheduled (cron: %s) range=%s", schedule, versionRange)

	for {
		now := time.Now()
		next := sched.Next(now)
		wait := next.Sub(now)
		log.Printf("next run at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

		select {
		case <-ctx.Done():
			log.Printf("watch stopped")
			return nil
		case <-time.After(wait):
		}

		if err := RunAnalyze(ctx, cfg, versionRange); err != nil {
			log.Printf("watch analyze error: %v", err)
			continue
		}
		if err := RunRepairPass(ctx, cfg, versionRange); err != nil {
			log.Printf("watch repair error: %v", err)
		}
	}
}
