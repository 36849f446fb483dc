// Package publish periodically writes the store's ICS export to a file so
// other calendar clients can subscribe to it. The file is never read back.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"slotcal/internal/fsutil"
	"slotcal/internal/ics"
	appLog "slotcal/internal/log"
	"slotcal/internal/metrics"
	"slotcal/internal/model"
)

// DefaultSchedule publishes every five minutes.
const DefaultSchedule = "*/5 * * * *"

// Source supplies the events to publish.
type Source interface {
	List() []model.Event
}

type Config struct {
	// Path is the target file. Required.
	Path string
	// Schedule is a standard five-field cron expression.
	Schedule string
	Location *time.Location
}

type Publisher struct {
	path   string
	source Source
	cron   *cron.Cron
	now    func() time.Time

	// mu serializes writes; a slow run and PublishNow never interleave.
	mu sync.Mutex
}

// New validates cfg and prepares the schedule. Nothing runs until Start.
func New(cfg Config, source Source) (*Publisher, error) {
	if cfg.Path == "" {
		return nil, errors.New("publish: path is empty")
	}
	if source == nil {
		return nil, errors.New("publish: source is nil")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	p := &Publisher{
		path:   cfg.Path,
		source: source,
		cron:   cron.New(cron.WithLocation(cfg.Location)),
		now:    time.Now,
	}
	if _, err := p.cron.AddFunc(cfg.Schedule, p.run); err != nil {
		return nil, fmt.Errorf("publish: schedule %q: %w", cfg.Schedule, err)
	}
	return p, nil
}

// Start begins the scheduled runs in the background.
func (p *Publisher) Start() {
	p.cron.Start()
	appLog.Info("feed publisher started", "path", p.path)
}

// Stop halts the schedule and waits for a running publish to finish or ctx
// to expire.
func (p *Publisher) Stop(ctx context.Context) error {
	done := p.cron.Stop()
	select {
	case <-done.Done():
		appLog.Info("feed publisher stopped", "path", p.path)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishNow writes the feed immediately.
func (p *Publisher) PublishNow() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := p.source.List()
	body, err := ics.Export(events, ics.ExportOptions{Now: p.now})
	if err != nil {
		metrics.RecordPublish(false)
		return err
	}
	if err := fsutil.WriteFileAtomic(p.path, body, 0o644, 0o755); err != nil {
		metrics.RecordPublish(false)
		return fmt.Errorf("publish: write %s: %w", p.path, err)
	}
	metrics.RecordPublish(true)
	appLog.Debug("feed published", "path", p.path, "events", len(events), "bytes", len(body))
	return nil
}

func (p *Publisher) run() {
	if err := p.PublishNow(); err != nil {
		appLog.Error("feed publish failed", err, "path", p.path)
	}
}
