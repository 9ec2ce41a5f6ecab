package sheets

import (
	"context"
	"time"

	"journeymap/api/internal/logging"
	"journeymap/api/internal/store"
)

const (
	pollBatch = 100
	// minClaimLease bounds how long a crashed instance can hold its claims.
	minClaimLease = time.Minute
)

// Notify is called when a polled connection's value changed.
type Notify func(ctx context.Context, conn store.SheetsConnection)

// Poller refreshes due connections on a fixed interval.
type Poller struct {
	syncer   *Syncer
	store    Store
	notify   Notify
	interval time.Duration
	logger   *logging.Logger
}

func NewPoller(syncer *Syncer, st Store, interval time.Duration, notify Notify, logger *logging.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		syncer:   syncer,
		store:    st,
		notify:   notify,
		interval: interval,
		logger:   logging.OrNop(logger).Named("sheets"),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.logger.Info("sheets poller started", "interval", p.interval.String())

	for {
		if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("sheets poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			p.logger.Info("sheets poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// PollOnce claims the due connections and syncs each once, returning how many
// were fetched. Instances polling together never claim the same row.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	lease := p.interval
	if lease < minClaimLease {
		lease = minClaimLease
	}
	due, err := p.store.ClaimDueSheetsConnections(ctx, p.syncer.now(), pollBatch, lease)
	if err != nil {
		return 0, err
	}
	fetched := 0
	for _, conn := range due {
		if ctx.Err() != nil {
			return fetched, ctx.Err()
		}
		updated, changed, err := p.syncer.Sync(ctx, conn)
		if err != nil {
			p.logger.Warn("sheets sync failed", "connection_id", conn.ID, "error", err)
			continue
		}
		fetched++
		if updated.LastError != "" {
			p.logger.Debug("sheets fetch error recorded", "connection_id", conn.ID, "error", updated.LastError)
		}
		if changed && p.notify != nil {
			p.notify(ctx, updated)
		}
	}
	return fetched, nil
}
