package sequence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMetrics records the last gauge value seen per stream, enough to
// assert the sequence gauges actually move as counters change.
type fakeMetrics struct {
	mu   sync.Mutex
	seqs map[string]int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{seqs: map[string]int{}} }

func (f *fakeMetrics) RecordSequence(stream string, seq int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seqs[stream] = seq
}
func (f *fakeMetrics) get(stream string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seqs[stream]
}
func (f *fakeMetrics) RecordHeartbeat(string)                      {}
func (f *fakeMetrics) RecordTestRequest(string, string)            {}
func (f *fakeMetrics) RecordReconnect(string)                      {}
func (f *fakeMetrics) RecordFrameError(string)                     {}
func (f *fakeMetrics) RecordMessage(string, string, time.Duration) {}
func (f *fakeMetrics) SetSessionState(string)                      {}

func TestNextAndInc_RecordsSequenceGauge(t *testing.T) {
	fm := newFakeMetrics()
	m := New(fm)
	assert.Equal(t, 1, fm.get(string(StreamMain)))

	m.NextAndInc(StreamMain)
	assert.Equal(t, 2, fm.get(string(StreamMain)))
}

func TestUpdateServerSeq_RecordsServerGauge(t *testing.T) {
	fm := newFakeMetrics()
	m := New(fm)
	m.UpdateServerSeq(7)
	assert.Equal(t, 7, fm.get("server"))
}

func TestNew_StartsAtFirstLogonDefaults(t *testing.T) {
	m := New(nil)
	s := m.PeekAll()
	assert.Equal(t, State{Main: 1, MarketData: 1, SecurityList: 1, TradingStatus: 1}, s)
}

// I1: NextAndInc returns the pre-increment value, and a subsequent call
// returns the next one.
func TestNextAndInc_ReturnsPreIncrementValue(t *testing.T) {
	m := New(nil)
	assert.Equal(t, uint32(1), m.NextAndInc(StreamMain))
	assert.Equal(t, uint32(2), m.NextAndInc(StreamMain))
	assert.Equal(t, uint32(1), m.Peek(StreamMarketData))
}

func TestNextAndInc_StreamsAreIndependent(t *testing.T) {
	m := New(nil)
	m.NextAndInc(StreamMain)
	m.NextAndInc(StreamMain)
	assert.Equal(t, uint32(1), m.Peek(StreamMarketData))
	assert.Equal(t, uint32(3), m.Peek(StreamMain))
}

// P4 / I3: server only moves forward.
func TestUpdateServerSeq_MonotoneAndGapDetection(t *testing.T) {
	m := New(nil)
	gap := m.UpdateServerSeq(1)
	assert.False(t, gap)
	assert.Equal(t, uint32(1), m.Peek(StreamMain)) // unaffected, server tracked separately

	gap = m.UpdateServerSeq(5)
	assert.True(t, gap)
	assert.Equal(t, uint32(5), m.PeekAll().Server)

	gap = m.UpdateServerSeq(3)
	assert.False(t, gap)
	assert.Equal(t, uint32(5), m.PeekAll().Server, "server must not move backward")
}

// I4: reset-flag logon re-baselines every counter to the documented
// post-logon values (logon itself consumed sequence 1 on each side).
func TestProcessLogon_ResetFlag_AppliesBaseline(t *testing.T) {
	m := New(nil)
	m.ProcessLogon(1, true)

	s := m.PeekAll()
	assert.Equal(t, State{
		Main: 2, Server: 1, MarketData: 2, SecurityList: 3, TradingStatus: 2,
	}, s)
}

func TestProcessLogon_NoReset_AlignsToServerSeq(t *testing.T) {
	m := New(nil)
	m.ProcessLogon(9, false)

	s := m.PeekAll()
	assert.Equal(t, uint32(9), s.Server)
	assert.Equal(t, uint32(10), s.Main)
	assert.Equal(t, uint32(10), s.MarketData)
	assert.Equal(t, uint32(10), s.SecurityList)
	assert.Equal(t, uint32(10), s.TradingStatus)
}

func TestForceReset_DerivesStreamsFromExpected(t *testing.T) {
	m := New(nil)
	m.ForceReset(42)

	s := m.PeekAll()
	assert.Equal(t, uint32(42), s.Main)
	assert.Equal(t, uint32(42), s.MarketData)
	assert.Equal(t, uint32(43), s.SecurityList)
	assert.Equal(t, uint32(42), s.TradingStatus)
}

func TestResetAll_ReturnsToFirstLogonDefaults(t *testing.T) {
	m := New(nil)
	m.NextAndInc(StreamMain)
	m.ProcessLogon(9, false)
	m.ResetAll()

	assert.Equal(t, State{Main: 1, MarketData: 1, SecurityList: 1, TradingStatus: 1}, m.PeekAll())
}

func TestSnapshotRestore_RoundTrips(t *testing.T) {
	m := New(nil)
	m.NextAndInc(StreamMain)
	m.UpdateServerSeq(7)
	snap := m.Snapshot()

	m2 := New(nil)
	m2.Restore(snap)
	assert.Equal(t, snap, m2.PeekAll())
}

// Concurrent callers must never observe a torn increment.
func TestNextAndInc_ConcurrentCallsAreSerialized(t *testing.T) {
	m := New(nil)
	const n = 200

	var wg sync.WaitGroup
	seen := make([]uint32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = m.NextAndInc(StreamMain)
		}(i)
	}
	wg.Wait()

	values := make(map[uint32]int, n)
	for _, v := range seen {
		values[v]++
	}
	require.Len(t, values, n, "every increment must return a distinct value")
}
