// Package event implements the connector's multi-subscriber event sink:
// every parsed inbound message and session-lifecycle transition is
// delivered, synchronously with respect to parsing, to any number of
// registered channel subscribers.
package event

import (
	"sync"
	"time"

	"github.com/psx-connect/connector/internal/fix/codec"
)

// Kind identifies one of the typed event channels a consumer can
// subscribe to.
type Kind string

const (
	KindConnected          Kind = "connected"
	KindDisconnected       Kind = "disconnected"
	KindLogon              Kind = "logon"
	KindLogout             Kind = "logout"
	KindError              Kind = "error"
	KindMessage            Kind = "message"
	KindRawMessage         Kind = "rawMessage"
	KindMarketData         Kind = "marketData"
	KindKSEData            Kind = "kseData"
	KindSecurityList       Kind = "securityList"
	KindEquitySecurityList Kind = "equitySecurityList"
	KindIndexSecurityList  Kind = "indexSecurityList"
	KindTradingSessionStat Kind = "tradingSessionStatus"
	KindTradingStatus      Kind = "tradingStatus"
	KindMarketDataReject   Kind = "marketDataReject"
	KindReject             Kind = "reject"
	KindCategorizedData    Kind = "categorizedData"
)

// MarketDataItem is a single market-data tick line within a snapshot or
// incremental refresh.
type MarketDataItem struct {
	EntryType string
	Price     float64
	Size      float64
	Date      string
	Time      string
}

// MarketData is emitted for both MarketDataSnapshotFullRefresh(W) and
// MarketDataIncrementalRefresh(X).
type MarketData struct {
	Symbol      string
	Incremental bool
	Entries     []MarketDataItem
}

// SecurityListEntry is a single row of a SecurityList(y) response.
type SecurityListEntry struct {
	Symbol      string
	SecurityType string
	SecurityDesc string
	MarketID    string
}

// SecurityList is emitted for MsgType=y, classified by Product into the
// equity/index sub-channels in addition to the general securityList one.
type SecurityList struct {
	SecurityReqID string
	Product       string
	Entries       []SecurityListEntry
}

// TradingSessionStatus is emitted for MsgType=h.
type TradingSessionStatus struct {
	TradingSessionID string
	Status           string
	StartTime        string
	EndTime          string
}

// TradingStatus is emitted for the per-symbol MsgType=f.
type TradingStatus struct {
	Symbol string
	Status string
	Time   string
}

// MarketDataReject is emitted for MsgType=Y.
type MarketDataReject struct {
	MDReqID string
	Reason  string
	Text    string
}

// Reject is emitted for MsgType=3.
type Reject struct {
	RefSeqNum  int
	RefTagID   int
	Reason     string
	Text       string
}

// CategorizedData wraps any inbound payload this connector does not have a
// dedicated channel for, so consumers can still observe it.
type CategorizedData struct {
	Category  string
	Type      string
	Symbol    string
	Data      any
	Timestamp time.Time
}

// Event is the envelope delivered on every channel; Payload's concrete
// type depends on Kind (see the payload types above and the handlers
// package that publishes them).
type Event struct {
	Kind      Kind
	Payload   any
	Timestamp time.Time
}

// Bus is the concrete multi-subscriber event sink. Each Kind fans out to
// any number of subscriber channels; Publish delivers synchronously, so a
// slow consumer applies back-pressure to the publishing goroutine via the
// channel's buffer.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]chan Event
	bufferSize  int
}

// New returns an empty Bus. bufferSize sets the channel buffer handed to
// every subscriber; 0 means unbuffered (the publisher blocks until the
// consumer receives).
func New(bufferSize int) *Bus {
	return &Bus{subscribers: make(map[Kind][]chan Event), bufferSize: bufferSize}
}

// Subscribe registers a new channel for kind and returns it.
func (b *Bus) Subscribe(kind Kind) <-chan Event {
	ch := make(chan Event, b.bufferSize)
	b.mu.Lock()
	b.subscribers[kind] = append(b.subscribers[kind], ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers an event to every subscriber of its Kind.
func (b *Bus) Publish(kind Kind, payload any) {
	b.mu.RLock()
	subs := append([]chan Event(nil), b.subscribers[kind]...)
	b.mu.RUnlock()

	evt := Event{Kind: kind, Payload: payload, Timestamp: time.Now()}
	for _, ch := range subs {
		ch <- evt
	}
}

// PublishMessage is a convenience for the "message" and "rawMessage"
// channels: "message" carries the parsed *codec.Message, "rawMessage" its
// tag->value map.
func (b *Bus) PublishMessage(msg *codec.Message) {
	b.Publish(KindMessage, msg)
	b.Publish(KindRawMessage, msg.Fields)
}

// Close closes and removes every subscriber channel for kind, or every
// channel on every kind if kind is "".
func (b *Bus) Close(kind Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if kind == "" {
		for k, chans := range b.subscribers {
			for _, ch := range chans {
				close(ch)
			}
			delete(b.subscribers, k)
		}
		return
	}
	for _, ch := range b.subscribers[kind] {
		close(ch)
	}
	delete(b.subscribers, kind)
}
