package auth

import (
	"context"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
)

type PollState int

const (
	PollIdle PollState = iota
	PollRunning
	PollVerified
	PollGaveUp
)

func (s PollState) String() string {
	switch s {
	case PollRunning:
		return "running"
	case PollVerified:
		return "verified"
	case PollGaveUp:
		return "gave-up"
	default:
		return "idle"
	}
}

// Poller re-checks email verification on a timer until the check reports
// verified, the attempt limit runs out, or it is stopped. A failed check is
// logged and the loop keeps going; one flaky tick must not kill the machine.
//
// At most one timer loop runs at a time. Start while running is a no-op, so
// repeated sign-in events cannot stack duplicate timers.
type Poller struct {
	cfg        config.Verification
	check      func(ctx context.Context) (bool, error)
	onVerified func(ctx context.Context)
	onGiveUp   func(ctx context.Context)

	mu     sync.Mutex
	state  PollState
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(
	cfg config.Verification,
	check func(ctx context.Context) (bool, error),
	onVerified func(ctx context.Context),
	onGiveUp func(ctx context.Context),
) *Poller {
	return &Poller{
		cfg:        cfg,
		check:      check,
		onVerified: onVerified,
		onGiveUp:   onGiveUp,
	}
}

// Start begins polling unless a loop is already running. Terminal states do
// not pin the poller: a new unverified sign-in may start it again.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == PollRunning {
		return
	}

	// The loop outlives the call that started it, e.g. an HTTP request
	// handler; only Stop or the terminal states end it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.state = PollRunning
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, p.done)
}

// Stop cancels the timer loop and waits for it to wind down. Stopping an
// idle poller is fine.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			p.setState(PollIdle)
			return
		case <-timer.C:
		}

		verified, err := p.check(ctx)
		if err != nil {
			slogctx.Warn(ctx, "Verification check failed, will retry", "attempt", attempt, "error", err)
		}
		if verified {
			p.setState(PollVerified)
			p.onVerified(ctx)
			return
		}

		if p.cfg.MaxAttempts > 0 && attempt >= p.cfg.MaxAttempts {
			slogctx.Warn(ctx, "Giving up on verification polling", "attempts", attempt)
			p.setState(PollGaveUp)
			p.onGiveUp(ctx)
			return
		}

		interval = p.nextInterval(interval)
		timer.Reset(interval)
	}
}

func (p *Poller) nextInterval(current time.Duration) time.Duration {
	if p.cfg.BackoffFactor <= 1 {
		return current
	}

	next := time.Duration(float64(current) * p.cfg.BackoffFactor)
	if p.cfg.MaxInterval > 0 && next > p.cfg.MaxInterval {
		return p.cfg.MaxInterval
	}

	return next
}

func (p *Poller) setState(state PollState) {
	p.mu.Lock()
	p.state = state
	// The loop exits on every transition out of running; release its context.
	if state != PollRunning && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()
}
