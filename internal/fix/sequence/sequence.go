// Package sequence tracks the outgoing sequence-number streams the PSX
// connector maintains alongside a single inbound server counter, and
// persists a daily snapshot of that state across restarts.
package sequence

import (
	"fmt"
	"sync"

	"github.com/psx-connect/connector/pkg/metrics"
)

// Stream names an outgoing sequence-number family. The gateway interleaves
// session traffic with application sends, so each family is counted
// separately even though the wire ultimately sees a single monotone
// MsgSeqNum per direction.
type Stream string

const (
	StreamMain          Stream = "main"
	StreamMarketData    Stream = "marketData"
	StreamSecurityList  Stream = "securityList"
	StreamTradingStatus Stream = "tradingStatus"
)

// reset-baseline values per §4.C2: a sequence-reset logon consumes
// sequence 1 on each side, so every outbound stream starts its next send
// at 2, except securityList which this gateway offsets to 3 to avoid
// collision with startup session traffic.
const (
	baselineMain          = 2
	baselineMarketData    = 2
	baselineSecurityList  = 3
	baselineTradingStatus = 2
	baselineServer        = 1
)

// State is a point-in-time snapshot of every counter, suitable for
// persistence (see Snapshot) or inspection.
type State struct {
	Main          uint32 `json:"main"`
	Server        uint32 `json:"server"`
	MarketData    uint32 `json:"marketData"`
	SecurityList  uint32 `json:"securityList"`
	TradingStatus uint32 `json:"tradingStatus"`
}

// Manager owns the five counters behind a single mutex. There is exactly
// one Manager per session, accessed only by the dispatcher's owning
// goroutine or under the lock - never split across multiple actors -
// so that a counter read-then-increment and the corresponding wire write
// can be paired atomically (invariant I1).
type Manager struct {
	mu      sync.Mutex
	state   State
	metrics metrics.SessionMetrics
}

// New returns a Manager initialized to first-logon defaults (all outgoing
// streams at 1, server at 0 until the first inbound message is observed).
// m may be nil to disable the sequence gauges.
func New(m metrics.SessionMetrics) *Manager {
	mgr := &Manager{state: State{Main: 1, MarketData: 1, SecurityList: 1, TradingStatus: 1}, metrics: m}
	mgr.recordLocked()
	return mgr
}

// recordLocked pushes every counter to the sequence gauges. Callers must
// hold mu (or, as in New, be the sole owner of a not-yet-shared Manager).
func (m *Manager) recordLocked() {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordSequence(string(StreamMain), int(m.state.Main))
	m.metrics.RecordSequence(string(StreamMarketData), int(m.state.MarketData))
	m.metrics.RecordSequence(string(StreamSecurityList), int(m.state.SecurityList))
	m.metrics.RecordSequence(string(StreamTradingStatus), int(m.state.TradingStatus))
	m.metrics.RecordSequence("server", int(m.state.Server))
}

func (m *Manager) counter(stream Stream) *uint32 {
	switch stream {
	case StreamMain:
		return &m.state.Main
	case StreamMarketData:
		return &m.state.MarketData
	case StreamSecurityList:
		return &m.state.SecurityList
	case StreamTradingStatus:
		return &m.state.TradingStatus
	default:
		panic(fmt.Sprintf("sequence: unknown stream %q", stream))
	}
}

// NextAndInc returns the current value of stream's counter and increments
// it. The returned value is what must be placed in MsgSeqNum(34); the
// caller must write it to the wire before releasing whatever turn
// serializes access to the Manager (invariant I1).
func (m *Manager) NextAndInc(stream Stream) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counter(stream)
	v := *c
	*c++
	m.recordLocked()
	return v
}

// Peek returns stream's current value without incrementing it.
func (m *Manager) Peek(stream Stream) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.counter(stream)
}

// PeekAll returns a copy of every counter.
func (m *Manager) PeekAll() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UpdateServerSeq advances the inbound server counter to n if n is at
// least the current value. A gap (n > server+1) is reported to the
// caller but the counter still advances; recovering from a gap is the
// dispatcher's job (this gateway does not support resend, so the policy
// is a sequence-reset re-logon, not a request for missed messages).
func (m *Manager) UpdateServerSeq(n uint32) (gap bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < m.state.Server {
		return false
	}
	gap = n > m.state.Server+1
	m.state.Server = n
	m.recordLocked()
	return gap
}

// ProcessLogon applies the post-logon baseline. When resetFlag is set,
// every counter is reinitialized to its reset-baseline value (the logon
// itself consumed sequence 1 on each side). Otherwise server is set to
// serverSeq and every outbound stream (main included) is set to
// serverSeq+1, regardless of its pre-logon value.
func (m *Manager) ProcessLogon(serverSeq uint32, resetFlag bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if resetFlag {
		m.state = State{
			Main:          baselineMain,
			Server:        baselineServer,
			MarketData:    baselineMarketData,
			SecurityList:  baselineSecurityList,
			TradingStatus: baselineTradingStatus,
		}
		m.recordLocked()
		return
	}

	m.state.Server = serverSeq
	m.state.Main = serverSeq + 1
	m.state.MarketData = serverSeq + 1
	m.state.SecurityList = serverSeq + 1
	m.state.TradingStatus = serverSeq + 1
	m.recordLocked()
}

// ForceReset re-baselines the outbound streams after a sequence-error
// recovery: main is set to the gateway's expected next sequence, and the
// other streams are derived deterministically so that a subsequent
// sequence-reset logon lands on consistent numbering.
func (m *Manager) ForceReset(expected uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Main = expected
	m.state.MarketData = expected
	m.state.SecurityList = expected + 1
	m.state.TradingStatus = expected
	m.recordLocked()
}

// ResetAll reinitializes every counter to first-logon defaults, used when
// a sequence error's expected number cannot be determined.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{Main: 1, MarketData: 1, SecurityList: 1, TradingStatus: 1}
	m.recordLocked()
}

// Snapshot returns the current state for persistence.
func (m *Manager) Snapshot() State {
	return m.PeekAll()
}

// Restore overwrites the current state from a previously persisted
// snapshot, used at startup when the snapshot is still fresh (see
// snapshot.go).
func (m *Manager) Restore(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.recordLocked()
}
