package sequence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultStoreFilename is the sequence-store file name used when the
// connector's configuration does not override it.
const DefaultStoreFilename = "sequence-store.json"

// Snapshot is the on-disk representation of a SequenceState, stamped with
// the UTC instant it was written.
type Snapshot struct {
	Main          uint32    `json:"main"`
	Server        uint32    `json:"server"`
	MarketData    uint32    `json:"marketData"`
	SecurityList  uint32    `json:"securityList"`
	TradingStatus uint32    `json:"tradingStatus"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

func snapshotFromState(s State, at time.Time) Snapshot {
	return Snapshot{
		Main:          s.Main,
		Server:        s.Server,
		MarketData:    s.MarketData,
		SecurityList:  s.SecurityList,
		TradingStatus: s.TradingStatus,
		LastUpdated:   at,
	}
}

func (s Snapshot) toState() State {
	return State{
		Main:          s.Main,
		Server:        s.Server,
		MarketData:    s.MarketData,
		SecurityList:  s.SecurityList,
		TradingStatus: s.TradingStatus,
	}
}

// Store persists sequence snapshots to a single JSON file. It is meant to
// have exactly one writer (the dispatcher's owning goroutine); readers
// only ever load once, at startup.
type Store struct {
	path string
	last *Snapshot
}

// NewStore returns a Store backed by path.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultStoreFilename
	}
	return &Store{path: path}
}

// Load reads the sequence-store file and returns the persisted State, or
// (State{}, false, nil) if the file is absent or stale. A snapshot is
// stale when its LastUpdated calendar date (UTC) differs from today - the
// gateway resets daily, so yesterday's counters carry no information.
func (s *Store) Load(now time.Time) (State, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("sequence: reading store %s: %w", s.path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return State{}, false, fmt.Errorf("sequence: decoding store %s: %w", s.path, err)
	}

	if !isSameUTCDate(snap.LastUpdated, now) {
		return State{}, false, nil
	}

	s.last = &snap
	return snap.toState(), true, nil
}

// Save writes state to disk if it differs from the last-written
// snapshot, stamping LastUpdated with now. Save is a no-op when nothing
// changed, so a heartbeat-driven caller can invoke it unconditionally
// without wearing a hole in the disk.
func (s *Store) Save(state State, now time.Time) error {
	candidate := snapshotFromState(state, now)
	if s.last != nil && sameCounters(*s.last, candidate) {
		return nil
	}

	data, err := json.MarshalIndent(candidate, "", "  ")
	if err != nil {
		return fmt.Errorf("sequence: encoding store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".sequence-store-*.tmp")
	if err != nil {
		return fmt.Errorf("sequence: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("sequence: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sequence: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("sequence: renaming temp file into place: %w", err)
	}

	s.last = &candidate
	return nil
}

func sameCounters(a, b Snapshot) bool {
	return a.Main == b.Main && a.Server == b.Server && a.MarketData == b.MarketData &&
		a.SecurityList == b.SecurityList && a.TradingStatus == b.TradingStatus
}

func isSameUTCDate(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
