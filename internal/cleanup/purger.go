// Package cleanup removes submission channels once their retention window
// after challenge results has passed.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/cortex-community/cortex-engine/internal/chat"
	"github.com/cortex-community/cortex-engine/internal/storage"
)

// Purger handles periodic deletion of expired submission channels
type Purger struct {
	repo      storage.Repository
	gateway   chat.Gateway
	interval  time.Duration
	retention time.Duration
}

// NewPurger creates a new retention purge worker
func NewPurger(repo storage.Repository, gateway chat.Gateway, interval, retention time.Duration) *Purger {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	return &Purger{
		repo:      repo,
		gateway:   gateway,
		interval:  interval,
		retention: retention,
	}
}

// Start begins the purge worker in a goroutine
func (p *Purger) Start(ctx context.Context) {
	go p.run(ctx)
}

// run is the main loop for the purge worker
func (p *Purger) run(ctx context.Context) {
	slog.Info("purge worker started", "interval", p.interval, "retention", p.retention)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Run immediately on start
	p.Purge(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("purge worker stopped")
			return
		case <-ticker.C:
			p.Purge(ctx)
		}
	}
}

// Purge deletes submission channels whose challenge was graded before the
// retention cutoff. The channel goes first; the record is only removed once
// the channel is gone.
func (p *Purger) Purge(ctx context.Context) {
	slog.Debug("running purge cycle")

	cutoff := time.Now().Add(-p.retention)

	expired, err := p.repo.SubmissionsPastRetention(ctx, cutoff)
	if err != nil {
		slog.Error("failed to list expired submissions", "error", err)
		return
	}

	if len(expired) == 0 {
		slog.Debug("no expired submissions found")
		return
	}

	slog.Info("found expired submissions", "count", len(expired))

	for _, sub := range expired {
		if err := p.gateway.DeleteChannel(ctx, sub.ChannelID); err != nil {
			slog.Error("failed to delete expired channel",
				"error", err,
				"submission_id", sub.ID,
				"channel_id", sub.ChannelID,
			)
			continue
		}

		if err := p.repo.DeleteSubmission(ctx, sub.ID); err != nil {
			slog.Error("failed to delete submission record",
				"error", err,
				"submission_id", sub.ID,
			)
			continue
		}

		slog.Info("expired submission purged", "submission_id", sub.ID, "channel_id", sub.ChannelID)
	}
}
