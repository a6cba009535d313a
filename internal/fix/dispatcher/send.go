package dispatcher

import (
	"fmt"
	"time"

	"github.com/psx-connect/connector/internal/fix/event"
	"github.com/psx-connect/connector/internal/fix/message"
	"github.com/psx-connect/connector/internal/fix/sequence"
)

// logoutFlushDelay gives the socket a moment to drain the outbound Logout
// frame before the connection is torn down.
const logoutFlushDelay = 500 * time.Millisecond

// enqueue runs fn on the dispatcher's owning goroutine and waits for it to
// finish. Every outbound send goes through here so that a stream's
// NextAndInc is never separated from its wire write by another goroutine
// running in between (I1/I2).
func (d *Dispatcher) enqueue(fn func() error) error {
	done := make(chan error, 1)
	job := func() { done <- fn() }
	select {
	case d.mailbox <- job:
	default:
		// Mailbox full: still enqueue, but block rather than drop a send.
		d.mailbox <- job
	}
	return <-done
}

func (d *Dispatcher) sendBuilt(stream sequence.Stream, build func(seqNum uint32) ([]byte, error)) error {
	return d.enqueue(func() error {
		seqNum := d.seq.NextAndInc(stream)
		frame, err := build(seqNum)
		if err != nil {
			return err
		}
		return d.writeFrame(frame)
	})
}

// SendHeartbeat implements fixsession.Sender.
func (d *Dispatcher) SendHeartbeat(testReqID string) error {
	return d.sendBuilt(sequence.StreamMain, func(seqNum uint32) ([]byte, error) {
		return d.builder.Heartbeat(seqNum, testReqID)
	})
}

// SendTestRequest implements fixsession.Sender.
func (d *Dispatcher) SendTestRequest() (string, error) {
	var testReqID string
	err := d.enqueue(func() error {
		seqNum := d.seq.NextAndInc(sequence.StreamMain)
		frame, id, err := d.builder.TestRequest(seqNum)
		if err != nil {
			return err
		}
		testReqID = id
		return d.writeFrame(frame)
	})
	return testReqID, err
}

// RequestTradingSessionStatus implements fixsession.PostLogonRequester.
func (d *Dispatcher) RequestTradingSessionStatus() error {
	return d.sendBuilt(sequence.StreamTradingStatus, func(seqNum uint32) ([]byte, error) {
		frame, _, err := d.builder.TradingSessionStatusRequest(seqNum)
		return frame, err
	})
}

// RequestEquitySecurityList implements fixsession.PostLogonRequester.
func (d *Dispatcher) RequestEquitySecurityList() error {
	return d.sendBuilt(sequence.StreamSecurityList, func(seqNum uint32) ([]byte, error) {
		frame, _, err := d.builder.SecurityListRequestEquity(seqNum)
		return frame, err
	})
}

// RequestIndexSecurityList implements fixsession.PostLogonRequester.
func (d *Dispatcher) RequestIndexSecurityList() error {
	return d.sendBuilt(sequence.StreamSecurityList, func(seqNum uint32) ([]byte, error) {
		frame, _, err := d.builder.SecurityListRequestIndex(seqNum)
		return frame, err
	})
}

// RequestFuturesSecurityList sends a SecurityListRequest for the futures
// universe. Unlike the equity/index requests, this is not part of the
// deterministic post-logon orchestration - callers invoke it on demand.
func (d *Dispatcher) RequestFuturesSecurityList() error {
	return d.sendBuilt(sequence.StreamSecurityList, func(seqNum uint32) ([]byte, error) {
		frame, _, err := d.builder.SecurityListRequestFutures(seqNum)
		return frame, err
	})
}

// SubscribeMarketData sends a MarketDataRequest for the given symbols and
// returns the generated MDReqID so the caller can correlate a later
// MarketDataRequestReject against this subscription.
func (d *Dispatcher) SubscribeMarketData(sub message.MarketDataSubscription) (string, error) {
	if sub.PartyID == "" {
		sub.PartyID = d.cfg.SenderCompID
	}
	var mdReqID string
	err := d.enqueue(func() error {
		seqNum := d.seq.NextAndInc(sequence.StreamMarketData)
		frame, id, err := d.builder.MarketDataRequest(seqNum, sub)
		if err != nil {
			return err
		}
		mdReqID = id
		return d.writeFrame(frame)
	})
	return mdReqID, err
}

// Shutdown requests a graceful logout: send Logout, give the socket a
// moment to flush, then close it. It suppresses any further reconnect
// attempt from Run.
func (d *Dispatcher) Shutdown() error {
	d.shuttingDown.Store(true)
	d.mu.Lock()
	active := d.conn != nil
	d.mu.Unlock()
	if !active {
		// No socket means no serve loop draining the mailbox, so there is
		// nothing to send the Logout on and enqueue would never return.
		return nil
	}
	err := d.enqueue(func() error {
		seqNum := d.seq.NextAndInc(sequence.StreamMain)
		frame, err := d.builder.Logout(seqNum, "client shutdown")
		if err != nil {
			return err
		}
		return d.writeFrame(frame)
	})
	if err != nil {
		// The session is being torn down and the graceful Logout itself
		// failed: there is no further transition to attempt, so mark the
		// machine's terminal state accordingly rather than leave it
		// wherever it happened to be mid-shutdown.
		d.machine.Fail()
		return fmt.Errorf("sending logout: %w", err)
	}

	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return nil
	}

	time.Sleep(logoutFlushDelay)
	return conn.Close()
}

// Subscribe exposes the dispatcher's event bus read-side for external
// consumers (e.g. a broadcaster or internal ops server).
func (d *Dispatcher) Subscribe(kind event.Kind) <-chan event.Event {
	return d.bus.Subscribe(kind)
}
