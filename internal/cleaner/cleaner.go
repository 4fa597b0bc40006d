// Package cleaner schedules the active expiration path: a single
// background goroutine that periodically asks the store to sweep the TTL
// index. The sweep is a space-reclamation optimization only; correctness
// of reads is carried entirely by the store's lazy path, so the cleaner is
// safe to disable, delay, or stop mid-pass.
package cleaner

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper is the slice of the record store the cleaner drives.
type Sweeper interface {
	SweepExpired(now time.Time, max int) (int, error)
}

const (
	DefaultInterval  = time.Second
	DefaultChunkSize = 1000
)

// Cleaner owns the sweep schedule.
type Cleaner struct {
	sweeper   Sweeper
	interval  time.Duration
	chunkSize int
	log       *zap.SugaredLogger
}

// New builds a Cleaner. Non-positive interval or chunk fall back to the
// defaults.
func New(sweeper Sweeper, interval time.Duration, chunkSize int, log *zap.SugaredLogger) *Cleaner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Cleaner{sweeper: sweeper, interval: interval, chunkSize: chunkSize, log: log}
}

// Start launches the sweep loop. It returns immediately; cancelling ctx
// stops the loop, mid-scan if need be.
func (c *Cleaner) Start(ctx context.Context) {
	t := time.NewTicker(c.interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				c.log.Debug("cleaner stopped")
				return
			case <-t.C:
				c.runOnce()
			}
		}
	}()
}

// runOnce performs one sweep pass. A failed pass is logged and the loop
// carries on; the lazy path keeps expired keys invisible either way.
func (c *Cleaner) runOnce() {
	reclaimed, err := c.sweeper.SweepExpired(time.Now(), c.chunkSize)
	if err != nil {
		c.log.Warnw("sweep pass failed", "err", err)
		return
	}
	if reclaimed > 0 {
		c.log.Debugw("swept expired keys", "reclaimed", reclaimed)
	}
}
