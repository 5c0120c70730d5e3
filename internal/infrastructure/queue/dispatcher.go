package queue

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-management/internal/api/metrics"
	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

const (
	defaultWorkers     = 4
	channelBuffer      = 256
	defaultMaxAttempts = 3
	defaultBackoff     = 200 * time.Millisecond
	defaultMaxParks    = 5
	replayBatch        = 100
	parkTimeout        = 5 * time.Second
)

var (
	errClosed    = errors.New("dispatcher closed")
	errQueueFull = errors.New("audit queue full")
)

// Dispatcher fans audit events out to a fixed set of workers. Events are
// sharded by target user id so the trail of one user is written in order.
//
// A worker retries a failing event with exponential backoff. When every
// attempt fails the event is parked in the retry store, if one is set, and
// comes back through Replay.
type Dispatcher struct {
	workers []chan domain.PendingAuditEvent
	service ports.AuditService
	store   ports.AuditRetryStore
	log     zerolog.Logger

	maxAttempts int
	backoff     time.Duration
	maxParks    int

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

var _ ports.AuditPublisher = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRetryStore parks events whose delivery failed instead of dropping them.
func WithRetryStore(store ports.AuditRetryStore) Option {
	return func(d *Dispatcher) { d.store = store }
}

// WithRetryPolicy sets how many times a worker tries an event and the delay
// before the first retry. The delay doubles on every further retry.
func WithRetryPolicy(maxAttempts int, backoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			d.backoff = backoff
		}
	}
}

// WithMaxParks bounds how often one event may be parked before it is dropped.
func WithMaxParks(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.maxParks = n
		}
	}
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.AuditService, log zerolog.Logger, opts ...Option) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:     make([]chan domain.PendingAuditEvent, numWorkers),
		service:     service,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		maxParks:    defaultMaxParks,
		done:        make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.PendingAuditEvent, channelBuffer)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker goroutines. Each worker drains its channel until
// Close is called; ctx is handed to the AuditService.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// StartReplayer replays parked events every interval until ctx is done or
// the dispatcher is closed. It does nothing without a retry store.
func (d *Dispatcher) StartReplayer(ctx context.Context, interval time.Duration) {
	if d.store == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.done:
				return
			case <-ticker.C:
				n, err := d.Replay(ctx, replayBatch)
				if err != nil {
					d.log.Warn().Err(err).Msg("audit replay failed")
					continue
				}
				if n > 0 {
					d.log.Info().Int("events", n).Msg("parked audit events replayed")
				}
			}
		}
	}()
}

// Publish queues an event without blocking. When the worker's buffer is full
// the event is dropped and counted.
func (d *Dispatcher) Publish(event domain.AuditEvent) {
	idx, err := d.enqueue(domain.PendingAuditEvent{Event: event})
	if errors.Is(err, errQueueFull) {
		metrics.AuditEventsDroppedTotal.Inc()
		d.log.Warn().
			Str("event_id", event.ID).
			Str("action", string(event.Action)).
			Int("worker_id", idx).
			Msg("audit queue full, event dropped")
	}
}

// Replay moves up to max parked events back into the worker queues and
// returns how many were queued. Events that find their queue full or the
// dispatcher closed go back to the store unchanged.
func (d *Dispatcher) Replay(ctx context.Context, max int) (int, error) {
	if d.store == nil {
		return 0, nil
	}
	batch, err := d.store.Take(ctx, max)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, p := range batch {
		if _, err := d.enqueue(p); err == nil {
			queued++
			metrics.AuditRetriesTotal.WithLabelValues("replayed").Inc()
			continue
		}
		d.storePark(ctx, p)
	}
	return queued, nil
}

// Close stops accepting events and waits for queued ones to be processed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(p domain.PendingAuditEvent) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return 0, errClosed
	}

	idx := d.shardIndex(p.Event.TargetID)
	select {
	case d.workers[idx] <- p:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return idx, nil
	default:
		return idx, errQueueFull
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(targetID int64) int {
	n := targetID % int64(len(d.workers))
	if n < 0 {
		n = -n
	}
	return int(n)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.PendingAuditEvent) {
	defer d.wg.Done()
	worker := strconv.Itoa(id)

	for p := range ch {
		metrics.AuditQueueDepth.WithLabelValues(worker).Set(float64(len(ch)))
		d.deliver(ctx, id, p)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, p domain.PendingAuditEvent) {
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.AuditRetriesTotal.WithLabelValues("retried").Inc()
			if !sleep(ctx, d.backoff<<(attempt-2)) {
				break
			}
		}

		start := time.Now()
		err = d.service.Process(ctx, p.Event)
		metrics.AuditProcessingDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.AuditEventsProcessedTotal.WithLabelValues("stored").Inc()
			return
		}
	}

	metrics.AuditEventsProcessedTotal.WithLabelValues("error").Inc()
	d.log.Error().Err(err).
		Str("event_id", p.Event.ID).
		Int64("target_id", p.Event.TargetID).
		Int("worker_id", id).
		Int("parks", p.Parks).
		Msg("audit event processing failed")
	d.park(ctx, p)
}

// park sets a failed event aside for a later replay, or drops it once it has
// been parked maxParks times.
func (d *Dispatcher) park(ctx context.Context, p domain.PendingAuditEvent) {
	if d.store == nil || p.Parks >= d.maxParks {
		metrics.AuditRetriesTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().
			Str("event_id", p.Event.ID).
			Int("parks", p.Parks).
			Msg("audit event dropped")
		return
	}
	p.Parks++
	d.storePark(ctx, p)
}

func (d *Dispatcher) storePark(ctx context.Context, p domain.PendingAuditEvent) {
	// Parking runs during shutdown too, when ctx may already be cancelled.
	parkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), parkTimeout)
	defer cancel()

	if err := d.store.Park(parkCtx, p); err != nil {
		metrics.AuditRetriesTotal.WithLabelValues("dropped").Inc()
		d.log.Error().Err(err).Str("event_id", p.Event.ID).Msg("audit event could not be parked, dropped")
		return
	}
	metrics.AuditRetriesTotal.WithLabelValues("parked").Inc()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Noop is the publisher used when no audit store is configured.
type Noop struct{}

func (Noop) Publish(domain.AuditEvent) {}
