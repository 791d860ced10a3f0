package scheduler

import (
	"context"
	"time"

	"photovault/internal/config"
	"photovault/internal/faces"
	"photovault/internal/logging"
	"photovault/internal/metrics"
	"photovault/internal/tagger"
	"photovault/internal/thumbnail"
	"photovault/internal/walker"
)

// Scheduler drives the two enrichment passes over every user tree. The
// fast pass discovers files and produces thumbnails and metadata; the
// slow pass runs the expensive face and description stages on whatever
// the fast pass has prepared.
type Scheduler struct {
	cfg      *config.Config
	detector faces.Detector
	embedder faces.Embedder
	describe tagger.Tagger
}

// New builds a scheduler. detector and embedder may be nil when face
// models are not configured; describe may be nil when tagging is
// disabled. The corresponding stages then stay pending.
func New(cfg *config.Config, detector faces.Detector, embedder faces.Embedder, describe tagger.Tagger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		detector: detector,
		embedder: embedder,
		describe: describe,
	}
}

// Run executes both pass loops until ctx is cancelled. The slow pass is
// held back briefly so the first fast pass can seed work for it.
func (s *Scheduler) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.loop(ctx, "slow", s.cfg.SlowPassInterval, s.cfg.SlowPassDelay, s.SlowPass)
	}()

	s.loop(ctx, "fast", s.cfg.FastPassInterval, 0, s.FastPass)
	<-done
}

// loop runs one pass immediately after the initial delay, then on every
// tick. A failing pass is logged and retried on the next tick rather
// than taking the daemon down.
func (s *Scheduler) loop(ctx context.Context, name string, interval, delay time.Duration, pass func(context.Context) error) {
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	run := func() {
		start := time.Now()
		if err := pass(ctx); err != nil && ctx.Err() == nil {
			logging.Error("%s pass failed: %v", name, err)
		}
		metrics.PassRunsTotal.WithLabelValues(name).Inc()
		metrics.PassDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			logging.Info("%s pass loop stopped", name)
			return
		}
	}
}

// users lists user directories, logging rather than failing when the
// data root is momentarily unreadable.
func (s *Scheduler) users() []string {
	users, err := walker.Users(s.cfg.DataDir)
	if err != nil {
		logging.Error("failed to list users: %v", err)
		return nil
	}
	return users
}

func (s *Scheduler) generatorFor(user string) *thumbnail.Generator {
	return thumbnail.New(s.cfg.ThumbnailDir(user), s.cfg.VipsEnabled)
}
