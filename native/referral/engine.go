package referral

import (
	"log/slog"
	"sync"
	"time"

	"refledger/core/events"
	nativecommon "refledger/native/common"
	"refledger/observability/metrics"
)

const moduleName = "referral"

// Engine is the referral ledger: it owns the referral graph, the activity
// timestamps and the reward distribution logic. Mutating operations are
// serialised; read queries may run concurrently with each other.
type Engine struct {
	mu      sync.RWMutex
	cfg     *Config
	st      State
	emitter events.Emitter
	pauses  nativecommon.PauseView
	metrics *metrics.ReferralMetrics
	logger  *slog.Logger
	clock   func() time.Time
}

// NewEngine binds a validated configuration to the supplied state.
func NewEngine(cfg *Config, st State) (*Engine, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if st == nil {
		return nil, ErrNilState
	}
	return &Engine{
		cfg:     cfg,
		st:      st,
		emitter: events.NoopEmitter{},
		metrics: metrics.Referral(),
		logger:  slog.Default().With("module", moduleName),
		clock:   time.Now,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.cfg
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to
// a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses = p
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger.With("module", moduleName)
}

// SetClock overrides the time source used to bootstrap referrer activity at
// registration.
func (e *Engine) SetClock(clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
}

func (e *Engine) emit(event events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}

func unixSeconds(t time.Time) uint64 {
	if t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}
