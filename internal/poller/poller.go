// Package poller runs the marketplace poll cycle: fetch stats and sales in
// parallel, aggregate, and publish one total snapshot per cycle.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"salesflow/config"
	"salesflow/internal/cache"
	"salesflow/internal/metrics"
	"salesflow/internal/scheduler"
	"salesflow/logger"
	"salesflow/models"
	"salesflow/processor"
	"salesflow/reader/marketplace"

	"github.com/google/uuid"
)

const component = "poller"

// Fetcher is the slice of the marketplace client a cycle needs.
type Fetcher interface {
	FetchStats(ctx context.Context) (models.Stats, error)
	FetchRecentSales(ctx context.Context, limit int) ([]models.Sale, error)
}

// Listener receives every published snapshot, Loading included.
type Listener func(models.Snapshot)

// Poller owns the cycle state machine Loading -> Success | Failed. At most
// one cycle runs at a time; timer ticks and manual refreshes share the guard.
type Poller struct {
	fetcher    Fetcher
	store      cache.Store
	salesLimit int
	loc        *time.Location
	now        func() time.Time

	inFlight atomic.Bool
	task     *scheduler.Task

	// lifeMu orders cycle admission against Stop so no cycle joins cycles
	// once Stop has begun waiting on it.
	lifeMu  sync.Mutex
	stopped bool
	cycles  sync.WaitGroup

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int

	log *logger.Log
}

func New(cfg *config.Config, fetcher Fetcher, store cache.Store) *Poller {
	p := &Poller{
		fetcher:    fetcher,
		store:      store,
		salesLimit: cfg.Poller.SalesLimit,
		loc:        cfg.Poller.Location(),
		now:        time.Now,
		listeners:  make(map[int]Listener),
		log:        logger.GetLogger(),
	}
	p.task = scheduler.New("poll_cycle", cfg.Poller.Interval, true, func(ctx context.Context) {
		if _, ran := p.RunCycle(ctx); !ran && p.InFlight() {
			p.log.WithComponent(component).Info("previous cycle still running, skipping tick")
		}
	})

	p.log.WithComponent(component).WithFields(logger.Fields{
		"interval":    cfg.Poller.Interval.String(),
		"sales_limit": cfg.Poller.SalesLimit,
		"timezone":    p.loc.String(),
	}).Info("poller initialized")
	return p
}

// Subscribe registers a listener and returns its cancel function.
func (p *Poller) Subscribe(fn Listener) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Start runs a cycle immediately and then every poll interval.
func (p *Poller) Start(ctx context.Context) error {
	p.lifeMu.Lock()
	p.stopped = false
	p.lifeMu.Unlock()

	if err := p.task.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	p.log.WithComponent(component).Info("poller started")
	return nil
}

// Stop halts scheduling and waits for any in-flight cycle to finish. Cycles
// requested after Stop are refused until the next Start.
func (p *Poller) Stop() {
	p.lifeMu.Lock()
	p.stopped = true
	p.lifeMu.Unlock()

	p.task.Stop()
	p.cycles.Wait()
	p.log.WithComponent(component).Info("poller stopped")
}

// InFlight reports whether a cycle is currently running.
func (p *Poller) InFlight() bool {
	return p.inFlight.Load()
}

// RunCycle runs one cycle synchronously. It returns false without doing
// anything when another cycle is already in flight or the poller is stopped.
func (p *Poller) RunCycle(ctx context.Context) (models.Snapshot, bool) {
	if !p.acquire() {
		return models.Snapshot{}, false
	}
	defer p.release()
	return p.cycle(ctx), true
}

// Refresh starts a cycle in the background. It returns false when one is
// already running or the poller is stopped; the request is dropped, not queued.
func (p *Poller) Refresh(ctx context.Context) bool {
	if !p.acquire() {
		return false
	}
	go func() {
		defer p.release()
		p.cycle(context.WithoutCancel(ctx))
	}()
	return true
}

func (p *Poller) acquire() bool {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.stopped || !p.inFlight.CompareAndSwap(false, true) {
		return false
	}
	p.cycles.Add(1)
	return true
}

func (p *Poller) release() {
	p.inFlight.Store(false)
	p.cycles.Done()
}

func (p *Poller) cycle(ctx context.Context) (snap models.Snapshot) {
	cycleID := uuid.NewString()
	started := p.now()
	log := p.log.WithComponent(component).WithFields(logger.Fields{"cycle_id": cycleID})

	p.publish(ctx, models.LoadingSnapshot(cycleID, started))

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("cycle panicked")
			snap = models.FailedSnapshot(cycleID, started, p.now(), fmt.Errorf("cycle panic: %v", r))
			p.finish(ctx, log, snap)
		}
	}()

	var (
		wg       sync.WaitGroup
		stats    models.Stats
		sales    []models.Sale
		statsErr error
		salesErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer recoverInto(&statsErr)
		stats, statsErr = p.fetcher.FetchStats(ctx)
	}()
	go func() {
		defer wg.Done()
		defer recoverInto(&salesErr)
		sales, salesErr = p.fetcher.FetchRecentSales(ctx, p.salesLimit)
	}()
	wg.Wait()

	if err := errors.Join(statsErr, salesErr); err != nil {
		rateLimited := marketplace.IsRateLimited(err)
		log.WithError(err).WithField("rate_limited", rateLimited).Warn("cycle failed")
		if rateLimited {
			metrics.EmitMetric(p.log, component, "cycle_rate_limited", int64(1), "counter", nil)
		}
		snap = models.FailedSnapshot(cycleID, started, p.now(), err)
		p.finish(ctx, log, snap)
		return snap
	}

	if sales == nil {
		sales = []models.Sale{}
	}
	completed := p.now()
	snap = models.Snapshot{
		CycleID:     cycleID,
		State:       models.StateSuccess,
		Stats:       stats,
		Sales:       sales,
		Summary:     processor.Aggregate(sales, stats, processor.StartOfDay(completed, p.loc)),
		StartedAt:   started,
		CompletedAt: completed,
	}
	p.finish(ctx, log, snap)
	return snap
}

func (p *Poller) finish(ctx context.Context, log *logger.Entry, snap models.Snapshot) {
	duration := snap.CompletedAt.Sub(snap.StartedAt)
	success := snap.State == models.StateSuccess

	logger.IncrementCycle(success)
	metrics.ObserveCycle(string(snap.State), duration, len(snap.Sales))
	if success {
		metrics.EmitMetric(p.log, component, "cycle_success", int64(1), "counter", nil)
		metrics.EmitMetric(p.log, component, "sales_fetched", len(snap.Sales), "gauge", nil)
	} else {
		metrics.EmitMetric(p.log, component, "cycle_failed", int64(1), "counter", nil)
	}
	metrics.EmitMetric(p.log, component, "cycle_duration", float64(duration.Milliseconds()), "duration_ms", nil)

	logger.LogPerformanceEntry(log, component, "poll_cycle", duration, logger.Fields{
		"state": string(snap.State),
		"sales": len(snap.Sales),
		"view":  string(snap.View()),
	})

	p.publish(ctx, snap)
}

func (p *Poller) publish(ctx context.Context, snap models.Snapshot) {
	if p.store != nil {
		if err := p.store.Save(ctx, snap); err != nil {
			p.log.WithComponent(component).WithError(err).Warn("failed to store snapshot")
		}
	}

	p.mu.RLock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.RUnlock()

	for _, l := range listeners {
		l(snap)
	}
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("fetch panic: %v", r)
	}
}
