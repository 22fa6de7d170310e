package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/brcs124/2FacTrac/internal/extract"
	"github.com/brcs124/2FacTrac/internal/model"
	"github.com/brcs124/2FacTrac/internal/source"
)

// SyncState represents the current state of the poller.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "unknown"
	}
}

// SyncStatus holds the state of the most recent check.
type SyncStatus struct {
	SourceType source.SourceType
	State      SyncState
	LastSync   time.Time
	Error      error
}

// Result is sent on the result channel after each check.
type Result struct {
	RunID     string
	Aggregate model.AggregateResult
	Messages  int
	Error     error
	AuthError bool
}

const (
	defaultInterval = 60 * time.Second

	// defaultFetchTimeout is the maximum time allowed for a single check.
	defaultFetchTimeout = 30 * time.Second
)

// Config tunes a Poller.
type Config struct {
	Interval     time.Duration
	Timeout      time.Duration
	Limit        int
	Window       time.Duration
	RetainLast   bool
	TargetDomain string
}

// Poller checks a message source on a schedule or on demand and keeps the
// latest aggregate result for callers that only want to read it.
type Poller struct {
	src    source.Source
	agg    *extract.Aggregator
	cfg    Config
	logger *slog.Logger

	mu      gosync.Mutex
	status  SyncStatus
	latest  model.AggregateResult
	target  string
	running bool

	// runMu serializes checks so scheduled and triggered runs never overlap.
	runMu gosync.Mutex

	resultCh  chan Result
	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a Poller over src.
func New(src source.Source, agg *extract.Aggregator, cfg Config, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		src:       src,
		agg:       agg,
		cfg:       cfg,
		logger:    logger,
		status:    SyncStatus{SourceType: src.Type(), State: SyncIdle},
		target:    cfg.TargetDomain,
		resultCh:  make(chan Result, 16),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start runs an initial check and then keeps checking every interval until
// Stop is called.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.loop(p.stopCh, p.doneCh)
}

// Stop halts the polling goroutine and waits for an in-flight check.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	done := p.doneCh
	p.running = false
	p.mu.Unlock()

	<-done
}

// Refresh asks the polling goroutine for an immediate check without
// waiting for it.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A check is already pending.
	}
}

// Results returns the channel on which check results are delivered.
// Results are dropped when nobody drains the channel.
func (p *Poller) Results() <-chan Result {
	return p.resultCh
}

// SetTargetDomain sets the base domain used to classify links in later
// checks. A URL or hostname is normalized to its base domain.
func (p *Poller) SetTargetDomain(activeURL string) {
	domain := extract.TargetDomain(activeURL)
	p.mu.Lock()
	p.target = domain
	p.mu.Unlock()
	p.logger.Debug("target domain set", "domain", domain)
}

// TargetDomain returns the base domain currently used for link ranking.
func (p *Poller) TargetDomain() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// Latest returns the most recently retained result without checking again.
func (p *Poller) Latest() model.AggregateResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Status returns the state of the most recent check.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// RunNow performs one check and returns the retained result. With
// RetainLast set, a check that finds nothing leaves the previous result in
// place. On an authorization failure the result built from the messages
// processed before the failure is still retained and the error returned.
func (p *Poller) RunNow(ctx context.Context) (model.AggregateResult, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	runID := uuid.New().String()
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	ids, err := p.src.ListRecent(ctx, source.ListOptions{
		Limit:  p.cfg.Limit,
		Window: p.cfg.Window,
	})
	if err != nil {
		err = fmt.Errorf("listing recent messages: %w", err)
		p.finish(runID, model.AggregateResult{}, 0, err)
		return p.Latest(), err
	}

	if len(ids) == 0 {
		p.logger.Debug("no recent messages", "run_id", runID)
	}

	agg, err := p.agg.AggregateFetched(ctx, ids, p.src.Fetch, p.TargetDomain())
	if err != nil {
		err = fmt.Errorf("checking messages: %w", err)
	}
	p.finish(runID, agg, len(ids), err)
	return p.Latest(), err
}

// finish records the outcome of a check and publishes it.
func (p *Poller) finish(runID string, agg model.AggregateResult, n int, err error) {
	p.mu.Lock()
	if !agg.IsEmpty() || !p.cfg.RetainLast {
		p.latest = agg
	}
	p.mu.Unlock()

	authErr := err != nil && source.IsAuthError(err)
	switch {
	case authErr:
		p.setStatus(SyncError, err)
		p.logger.Error("check aborted by authorization failure", "run_id", runID, "err", err)
	case err != nil:
		p.setStatus(SyncError, err)
		p.logger.Warn("check failed", "run_id", runID, "err", err)
	default:
		p.setStatus(SyncIdle, nil)
	}

	if !agg.IsEmpty() {
		p.logger.Info("verification info found",
			"run_id", runID,
			"has_code", agg.Code != "",
			"has_link", agg.Link != "",
			"sender", agg.Sender)
	}

	p.sendResult(Result{
		RunID:     runID,
		Aggregate: agg,
		Messages:  n,
		Error:     err,
		AuthError: authErr,
	})
}

func (p *Poller) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Do an initial check immediately
	_, _ = p.RunNow(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			_, _ = p.RunNow(ctx)
		case <-p.triggerCh:
			_, _ = p.RunNow(ctx)
		}
	}
}

// setStatus updates the sync status.
func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a Result on the result channel without blocking.
func (p *Poller) sendResult(r Result) {
	select {
	case p.resultCh <- r:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
