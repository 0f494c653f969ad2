// Stale entries are dropped lazily when read, but entries nobody reads again would stay in memory (and in the durable
// slot) until evicted by capacity. A reaper sweeps the whole store periodically to prune them. It either runs on a
// fixed interval or on a cron schedule.

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduler runs `sweep` in the background until stopped or `ctx` is cancelled.
type scheduler interface {
	start(ctx context.Context, sweep func())
	// stop blocks until the background goroutine has exited.
	stop()
}

// tickerScheduler sweeps every `interval`.
type tickerScheduler struct {
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

var _ scheduler = (*tickerScheduler)(nil)

func newTickerScheduler(interval time.Duration) *tickerScheduler {
	return &tickerScheduler{interval: interval}
}

func (t *tickerScheduler) start(ctx context.Context, sweep func()) {
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()
}

func (t *tickerScheduler) stop() {
	t.cancel()
	<-t.done
}

// cronScheduler sweeps on a cron schedule.
type cronScheduler struct {
	schedule cron.Schedule
	runner   *cron.Cron
	cancel   context.CancelFunc
	done     chan struct{}
}

var _ scheduler = (*cronScheduler)(nil)

// newCronScheduler accepts standard 5-field expressions and descriptors such as "@hourly" or "@every 30s".
func newCronScheduler(expression string) (*cronScheduler, error) {
	schedule, err := cron.ParseStandard(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", expression, err)
	}
	return &cronScheduler{schedule: schedule, runner: cron.New()}, nil
}

func (c *cronScheduler) start(ctx context.Context, sweep func()) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.runner.Schedule(c.schedule, cron.FuncJob(sweep))
	c.runner.Start()
	go func() {
		defer close(c.done)
		<-ctx.Done()
		<-c.runner.Stop().Done() // Waits for a running sweep.
	}()
}

func (c *cronScheduler) stop() {
	c.cancel()
	<-c.done
}
