package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"medassist/internal/eventbus"
	"medassist/internal/transport"
	"medassist/pkg/logx"
)

var (
	ErrPushDisabled  = errors.New("push disabled")
	ErrPushQueueFull = errors.New("push queue full")
	ErrPushStopped   = errors.New("push queue stopped")
)

type pushJob struct {
	to transport.Target
	p  transport.Payload
}

// PushQueue is the async push pipeline: queue + worker pool + rate
// limit + retry. Duplicate suppression happens upstream (the
// at-most-once confirmation record), so the queue itself sends
// everything it accepts.
type PushQueue struct {
	mu sync.Mutex

	log     logx.Logger
	adapter transport.Adapter
	bus     eventbus.Bus

	cfg     PushConfig
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan pushJob
	stopDone chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func NewPushQueue(cfg PushConfig, adapter transport.Adapter, log logx.Logger, bus eventbus.Bus) *PushQueue {
	q := &PushQueue{adapter: adapter, log: log, bus: bus}
	q.applyLocked(cfg)
	return q
}

func (q *PushQueue) Enabled() bool {
	q.mu.Lock()
	en := q.cfg.Enabled
	q.mu.Unlock()
	return en
}

func (q *PushQueue) applyLocked(cfg PushConfig) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	q.cfg = cfg
	q.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (q *PushQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.queue != nil || !q.cfg.Enabled {
		q.mu.Unlock()
		return
	}
	q.queue = make(chan pushJob, q.cfg.QueueSize)
	q.accepting = true
	q.stopDone = make(chan struct{})
	q.runCtx, q.runCancel = context.WithCancel(ctx)
	workers := q.cfg.Workers
	q.mu.Unlock()

	for i := 0; i < workers; i++ {
		i := i
		q.workerWG.Add(1)
		go func() {
			defer q.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					q.log.Error("panic in push worker", logx.Int("worker", i), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}()
			q.workerLoop()
		}()
	}
}

// Stop blocks intake and drains the queue best-effort until ctx is done.
func (q *PushQueue) Stop(ctx context.Context) {
	q.mu.Lock()
	ch := q.queue
	done := q.stopDone
	cancel := q.runCancel
	if ch == nil {
		q.mu.Unlock()
		return
	}
	q.accepting = false
	q.mu.Unlock()

	enq := make(chan struct{})
	go func() {
		q.sendWG.Wait()
		close(enq)
	}()
	select {
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return
	case <-enq:
	}

	func() {
		defer func() { _ = recover() }()
		close(ch)
	}()

	go func() {
		q.workerWG.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
	if cancel != nil {
		cancel()
	}

	q.mu.Lock()
	q.queue = nil
	q.stopDone = nil
	q.runCtx = nil
	q.runCancel = nil
	q.mu.Unlock()
}

// Enqueue accepts a reminder for delivery. Non-blocking: a full queue
// returns ErrPushQueueFull rather than stalling the detector tick.
func (q *PushQueue) Enqueue(to transport.Target, p transport.Payload) error {
	q.mu.Lock()
	if !q.cfg.Enabled {
		q.mu.Unlock()
		return ErrPushDisabled
	}
	if !q.accepting || q.queue == nil {
		q.mu.Unlock()
		return ErrPushStopped
	}
	ch := q.queue
	q.sendWG.Add(1)
	q.mu.Unlock()
	defer q.sendWG.Done()

	select {
	case ch <- pushJob{to: to, p: p}:
		return nil
	default:
		q.publishFailed(to, p, ErrPushQueueFull)
		return ErrPushQueueFull
	}
}

func (q *PushQueue) workerLoop() {
	q.mu.Lock()
	ch := q.queue
	runCtx := q.runCtx
	q.mu.Unlock()

	for j := range ch {
		select {
		case <-runCtx.Done():
			return
		default:
		}
		q.sendWithRetry(runCtx, j)
	}
}

func (q *PushQueue) sendWithRetry(runCtx context.Context, j pushJob) {
	q.mu.Lock()
	cfg := q.cfg
	lim := q.limiter
	ad := q.adapter
	q.mu.Unlock()

	if ad == nil {
		return
	}

	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(runCtx); err != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(runCtx, 10*time.Second)
		err := ad.SendReminder(callCtx, j.to, j.p)
		cancel()
		if err == nil {
			if q.bus != nil {
				now := time.Now()
				q.bus.Publish(eventbus.Event{Type: eventbus.TypePushSent, Time: now, Data: PushEvent{ConfirmationID: j.p.ID, Name: j.p.Name, ChatID: j.to.ChatID, At: now}})
			}
			return
		}
		lastErr = err
		q.log.Debug("push send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-runCtx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		}
	}

	if lastErr != nil {
		q.publishFailed(j.to, j.p, lastErr)
	}
}

func (q *PushQueue) publishFailed(to transport.Target, p transport.Payload, err error) {
	if q.bus == nil {
		return
	}
	now := time.Now()
	q.bus.Publish(eventbus.Event{Type: eventbus.TypePushFailed, Time: now, Data: PushEvent{ConfirmationID: p.ID, Name: p.Name, ChatID: to.ChatID, At: now, Error: err.Error()}})
}

func retryDelay(cfg PushConfig, attempt int) time.Duration {
	// Exponential backoff from RetryBase, capped, with 0.7..1.3 jitter.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}
