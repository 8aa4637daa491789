package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/ward/pkg/delivery"
	wardlog "github.com/cuemby/ward/pkg/log"
	"github.com/cuemby/ward/pkg/metrics"
	"github.com/rs/zerolog"
)

const (
	defaultMemoryCeiling = 10000
	defaultTimerDuration = 20 * time.Second
)

// Config holds the values a Coordinator is constructed with. These are
// read once at startup by the coordinator's parent (cmd/auditd); the audit
// package itself never reads a config file or flag.
type Config struct {
	NodeID          string
	Mode            Mode
	MemoryCeiling   int
	MonitorEndpoint string

	LeaderAliveTimeout    time.Duration
	PrimaryAliveTimeout   time.Duration
	LeaderProgressTimeout time.Duration

	Logger  zerolog.Logger
	Metrics *metrics.Registry
}

// Coordinator holds mode selection, identity, the shared lock, the startup
// guard, and wires together the emitter, histories, and timers. It is the
// only exported entrypoint into the audit package.
type Coordinator struct {
	mu sync.Mutex

	mode          Mode
	nodeID        string
	memoryCeiling int

	leaderHistory   *orderedHistory
	primaryHistory  *orderedHistory
	raftCommits     *orderedHistory
	pbftCommits     *orderedHistory
	errors          *errorSequence
	forgottenErrors uint64

	lastLeader                  string
	lastLeaderCommitIndex       uint64
	leaderHasUncommittedEntries bool

	leaderDeadCount  uint64
	primaryDeadCount uint64
	leaderStuckCount uint64

	leaderAliveTimer    *auditTimer
	primaryAliveTimer   *auditTimer
	leaderProgressTimer *auditTimer

	leaderAliveDuration    time.Duration
	primaryAliveDuration   time.Duration
	leaderProgressDuration time.Duration

	emitter    *emitter
	logger     zerolog.Logger
	metricsReg *metrics.Registry
	delivery   delivery.Node

	startOnce sync.Once
}

// NewCoordinator constructs a Coordinator. Construction is lightweight: no
// dispatch handler is registered and no timer is armed until Start runs.
func NewCoordinator(node delivery.Node, cfg Config) (*Coordinator, error) {
	if node == nil {
		return nil, fmt.Errorf("audit: delivery collaborator is required")
	}
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("audit: node id is required")
	}

	ceiling := cfg.MemoryCeiling
	if ceiling <= 0 {
		ceiling = defaultMemoryCeiling
	}

	leaderAlive := durationOrDefault(cfg.LeaderAliveTimeout)
	primaryAlive := durationOrDefault(cfg.PrimaryAliveTimeout)
	leaderProgress := durationOrDefault(cfg.LeaderProgressTimeout)

	em, err := newEmitter(cfg.NodeID, cfg.MonitorEndpoint, cfg.Logger, cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		mode:          cfg.Mode,
		nodeID:        cfg.NodeID,
		memoryCeiling: ceiling,

		leaderHistory:  newOrderedHistory(),
		primaryHistory: newOrderedHistory(),
		raftCommits:    newOrderedHistory(),
		pbftCommits:    newOrderedHistory(),
		errors:         newErrorSequence(),

		leaderAliveTimer:    &auditTimer{},
		primaryAliveTimer:   &auditTimer{},
		leaderProgressTimer: &auditTimer{},

		leaderAliveDuration:    leaderAlive,
		primaryAliveDuration:   primaryAlive,
		leaderProgressDuration: leaderProgress,

		emitter:    em,
		logger:     cfg.Logger,
		metricsReg: cfg.Metrics,
		delivery:   node,
	}, nil
}

func durationOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimerDuration
	}
	return d
}

// Start registers the dispatch entrypoint with the delivery collaborator
// and arms the mode-appropriate alive timer. Idempotent: subsequent calls
// are no-ops.
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		c.delivery.Register("audit", c.dispatch)
		c.logger.Info().
			Str("node_id", c.nodeID).
			Str("mode", c.mode.String()).
			Msg("audit coordinator starting")

		metrics.RegisterComponent("audit", true, "")

		c.mu.Lock()
		defer c.mu.Unlock()
		switch c.mode {
		case ModeRaft:
			c.leaderAliveTimer.arm(c.leaderAliveDuration, c.onLeaderAliveExpiry)
		case ModePBFT:
			c.primaryAliveTimer.arm(c.primaryAliveDuration, c.onPrimaryAliveExpiry)
		}
	})
}

// Close cancels all pending timers and releases the monitor socket.
func (c *Coordinator) Close() error {
	c.leaderAliveTimer.cancel()
	c.primaryAliveTimer.cancel()
	c.leaderProgressTimer.cancel()
	return c.emitter.Close()
}

// ErrorCount returns the number of retained errors plus the forgotten-error
// count.
func (c *Coordinator) ErrorCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(c.errors.len()) + c.forgottenErrors
}

// ErrorStrings returns a snapshot of the currently retained error
// descriptions, oldest first.
func (c *Coordinator) ErrorStrings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors.strings()
}

// CurrentMemorySize returns the sum of the Raft commit history, error
// sequence, and leader history sizes. Primary and PBFT commit histories
// are intentionally excluded from this diagnostic sum.
func (c *Coordinator) CurrentMemorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raftCommits.len() + c.errors.len() + c.leaderHistory.len()
}

// recordHistory implements the shared bounded-history algorithm: if key is
// absent, insert and (optionally) emit newMetric; if present with the same
// value, no-op; if present with a different value, report conflictMetric.
// The caller must hold c.mu.
func (c *Coordinator) recordHistory(h *orderedHistory, key uint64, value, label, newMetric, conflictMetric string) {
	existing, ok := h.get(key)
	if !ok {
		h.put(key, value)
		if newMetric != "" {
			c.emitter.emit(newMetric)
		}
		c.trim()
		return
	}
	if existing == value {
		return
	}

	desc := fmt.Sprintf("%s conflict at key %d: recorded %q, observed %q", label, key, existing, value)
	c.reportError(conflictMetric, desc)
}

// reportError appends description to the error sequence, logs at fatal
// severity, emits metric, then trims. The caller must hold c.mu.
func (c *Coordinator) reportError(metric, description string) {
	c.errors.pushBack(description)
	wardlog.Fatal(c.logger, description)
	c.emitter.emit(metric)
	c.trim()
}

// trim enforces the memory ceiling across the error sequence and the four
// histories, evicting the oldest error / smallest key first. The caller
// must hold c.mu.
func (c *Coordinator) trim() {
	for c.errors.len() > c.memoryCeiling {
		if _, ok := c.errors.popFront(); ok {
			c.forgottenErrors++
		}
	}
	for c.leaderHistory.len() > c.memoryCeiling {
		c.leaderHistory.evictSmallest()
	}
	for c.primaryHistory.len() > c.memoryCeiling {
		c.primaryHistory.evictSmallest()
	}
	for c.raftCommits.len() > c.memoryCeiling {
		c.raftCommits.evictSmallest()
	}
	for c.pbftCommits.len() > c.memoryCeiling {
		c.pbftCommits.evictSmallest()
	}
	c.updateMetricsGauges()
}

func (c *Coordinator) updateMetricsGauges() {
	if c.metricsReg == nil {
		return
	}
	c.metricsReg.Errors.Set(float64(uint64(c.errors.len()) + c.forgottenErrors))
	c.metricsReg.ForgottenErrors.Set(float64(c.forgottenErrors))
	c.metricsReg.MemorySize.Set(float64(c.raftCommits.len() + c.errors.len() + c.leaderHistory.len()))
	c.metricsReg.HistorySize.WithLabelValues("leader").Set(float64(c.leaderHistory.len()))
	c.metricsReg.HistorySize.WithLabelValues("primary").Set(float64(c.primaryHistory.len()))
	c.metricsReg.HistorySize.WithLabelValues("raft_commit").Set(float64(c.raftCommits.len()))
	c.metricsReg.HistorySize.WithLabelValues("pbft_commit").Set(float64(c.pbftCommits.len()))
}
