package reconciliation

import (
	"context"
	"sync"
	"time"

	"transitly/pkg/logger"
)

// JobProcessor runs the reconciliation sweeps on independent tickers.
type JobProcessor struct {
	service Service
	log     *logger.Logger

	expiryInterval time.Duration
	orphanInterval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewJobProcessor creates a processor with the given sweep intervals.
func NewJobProcessor(service Service, expiryInterval, orphanInterval time.Duration) *JobProcessor {
	if expiryInterval <= 0 {
		expiryInterval = 5 * time.Minute
	}
	if orphanInterval <= 0 {
		orphanInterval = 15 * time.Minute
	}
	return &JobProcessor{
		service:        service,
		log:            logger.GetDefault(),
		expiryInterval: expiryInterval,
		orphanInterval: orphanInterval,
		stopCh:         make(chan struct{}),
	}
}

// Start launches the background sweeps.
func (p *JobProcessor) Start(ctx context.Context) {
	p.log.InfoWithContext(ctx, "Starting reconciliation jobs", map[string]interface{}{
		"expiry_interval": p.expiryInterval.String(),
		"orphan_interval": p.orphanInterval.String(),
	})

	p.wg.Add(2)
	go p.runLoop(ctx, p.expiryInterval, "hold_expiry", func(ctx context.Context) error {
		_, err := p.service.ExpireOverdueHolds(ctx)
		return err
	})
	go p.runLoop(ctx, p.orphanInterval, "orphan_reconciliation", func(ctx context.Context) error {
		_, err := p.service.ReconcileOrphanedHolds(ctx)
		return err
	})
}

// Stop shuts the sweeps down and waits for in-flight runs to finish.
func (p *JobProcessor) Stop() {
	p.once.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

func (p *JobProcessor) runLoop(ctx context.Context, interval time.Duration, name string, run func(ctx context.Context) error) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := run(ctx); err != nil {
				p.log.ErrorWithContext(ctx, "Reconciliation sweep failed", err, map[string]interface{}{
					"job": name,
				})
			}
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
