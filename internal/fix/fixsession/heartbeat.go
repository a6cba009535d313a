package fixsession

import (
	"context"
	"sync"
	"time"

	"github.com/psx-connect/connector/internal/logger"
	"github.com/psx-connect/connector/pkg/metrics"
)

// Sender is the dispatcher-provided hook the heartbeat supervisor uses to
// put frames on the wire; it never touches the socket itself.
type Sender interface {
	SendHeartbeat(testReqID string) error
	SendTestRequest() (testReqID string, err error)
}

// maxTestRequestMisses is the number of supervisor ticks past the
// TestRequest threshold, counting the tick that sent the single
// outstanding TestRequest, after which the connection is declared dead.
const maxTestRequestMisses = 3

// HeartbeatSupervisor fires on a timer at half the configured heartbeat
// interval. Past 1.5x the interval since last activity it sends a
// TestRequest and tracks misses; past 1x it sends a plain Heartbeat.
type HeartbeatSupervisor struct {
	interval time.Duration
	sender   Sender
	metrics  metrics.SessionMetrics
	onDead   func()

	mu               sync.Mutex
	lastActivity     time.Time
	pendingTestReqID string
	misses           int
}

// NewHeartbeatSupervisor returns a supervisor for the given interval.
// onDead is invoked (in a new goroutine) once a TestRequest has stayed
// unanswered for maxTestRequestMisses ticks.
func NewHeartbeatSupervisor(interval time.Duration, sender Sender, m metrics.SessionMetrics, onDead func()) *HeartbeatSupervisor {
	return &HeartbeatSupervisor{
		interval:     interval,
		sender:       sender,
		metrics:      m,
		onDead:       onDead,
		lastActivity: time.Now(),
	}
}

// Touch records inbound activity, which proves the connection alive and
// clears any pending TestRequest/miss bookkeeping.
func (h *HeartbeatSupervisor) Touch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity = time.Now()
	h.pendingTestReqID = ""
	h.misses = 0
}

// Run blocks, ticking until ctx is cancelled. Callers should run it in its
// own goroutine for the lifetime of a LoggedIn session.
func (h *HeartbeatSupervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *HeartbeatSupervisor) tick() {
	h.mu.Lock()
	defer h.mu.Unlock()

	since := time.Since(h.lastActivity)
	testThreshold := time.Duration(float64(h.interval) * 1.5)

	if since >= testThreshold {
		if h.pendingTestReqID != "" {
			// Already have one outstanding: only the miss count advances
			// here. A second TestRequest is never issued while the first
			// is still unanswered (at most one in flight).
			h.misses++
			if h.misses >= maxTestRequestMisses {
				logger.Warn("heartbeat supervisor declaring connection dead", "misses", h.misses)
				if h.metrics != nil {
					h.metrics.RecordTestRequest("sent", "timed_out")
					h.metrics.RecordReconnect("heartbeat_timeout")
				}
				h.pendingTestReqID = ""
				h.misses = 0
				if h.onDead != nil {
					go h.onDead()
				}
			}
			return
		}

		id, err := h.sender.SendTestRequest()
		if err != nil {
			logger.Warn("heartbeat supervisor failed to send TestRequest", logger.Err(err))
			return
		}
		h.pendingTestReqID = id
		h.misses = 1
		if h.metrics != nil {
			h.metrics.RecordTestRequest("sent", "pending")
		}
		return
	}

	if since >= h.interval {
		if err := h.sender.SendHeartbeat(""); err != nil {
			logger.Warn("heartbeat supervisor failed to send Heartbeat", logger.Err(err))
			return
		}
		if h.metrics != nil {
			h.metrics.RecordHeartbeat("sent")
		}
	}
}
