// Package dispatcher owns the transport loop: the TCP connection, the
// inbound read-and-classify path, the outbound mailbox that serializes
// every application send through a single writer, and sequence-error
// recovery via destroy-socket -> delay -> reset -> reconnect.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/psx-connect/connector/internal/fix/codec"
	"github.com/psx-connect/connector/internal/fix/event"
	"github.com/psx-connect/connector/internal/fix/fixsession"
	"github.com/psx-connect/connector/internal/fix/handlers"
	"github.com/psx-connect/connector/internal/fix/message"
	"github.com/psx-connect/connector/internal/fix/sequence"
	"github.com/psx-connect/connector/internal/logger"
	"github.com/psx-connect/connector/pkg/metrics"
)

// sequenceRecoveryDelay is how long the dispatcher waits after destroying
// the socket on a sequence error before reconnecting, giving the gateway
// time to settle (§4.C6). Variable so tests can shrink it.
var sequenceRecoveryDelay = 2 * time.Second

// Config carries everything the dispatcher needs to dial, authenticate,
// and supervise a session. It is a narrowed, transport-focused view of
// the connector's full configuration - cmd/psxconnect maps pkg/config.Config
// into this shape so this package stays independent of the config layer.
type Config struct {
	Host                 string
	Port                 int
	BeginString          string
	SenderCompID         string
	TargetCompID         string
	Username             string
	Password             string
	HeartBtIntSecs       int
	ConnectTimeout       time.Duration
	ReconnectInterval    time.Duration
	ResetOnLogon         bool
	OnBehalfOfCompID     string
	RawData              string
	RawDataLength        int
	DefaultApplVerID     string
	DefaultCstmApplVerID string
	SequenceStorePath    string
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type sequenceError struct {
	expected *uint32
}

func (e *sequenceError) Error() string {
	if e.expected != nil {
		return fmt.Sprintf("%v: expected=%d", fixsession.ErrSequence, *e.expected)
	}
	return fixsession.ErrSequence.Error()
}

func (e *sequenceError) Unwrap() error { return fixsession.ErrSequence }

// Dispatcher runs one FIX session end to end: connect, logon, read loop,
// heartbeat supervision, reconnect on transport or sequence error.
type Dispatcher struct {
	cfg     Config
	seq     *sequence.Manager
	store   *sequence.Store
	machine *fixsession.Machine
	bus     *event.Bus
	metrics metrics.SessionMetrics

	parser   *codec.Parser
	builder  *message.Builder
	handlers *handlers.Handlers

	mu      sync.Mutex
	conn    net.Conn
	mailbox chan func()

	heartbeatSup *fixsession.HeartbeatSupervisor

	shuttingDown atomic.Bool
}

// New wires a Dispatcher from its collaborators. seq and bus are owned by
// the caller and shared with the rest of the connector (e.g. the event
// bus is also read by an external broadcaster).
func New(cfg Config, seq *sequence.Manager, bus *event.Bus, m metrics.SessionMetrics) *Dispatcher {
	encoder := codec.NewEncoder()
	builder := message.New(message.SessionParams{
		BeginString:          cfg.BeginString,
		SenderCompID:         cfg.SenderCompID,
		TargetCompID:         cfg.TargetCompID,
		Username:             cfg.Username,
		Password:             cfg.Password,
		HeartBtInt:           cfg.HeartBtIntSecs,
		DefaultApplVerID:     cfg.DefaultApplVerID,
		DefaultCstmApplVerID: cfg.DefaultCstmApplVerID,
		OnBehalfOfCompID:     cfg.OnBehalfOfCompID,
		RawData:              cfg.RawData,
		RawDataLength:        cfg.RawDataLength,
		ResetOnLogon:         cfg.ResetOnLogon,
	}, encoder)

	machine := fixsession.New(m)

	d := &Dispatcher{
		cfg:      cfg,
		seq:      seq,
		store:    sequence.NewStore(cfg.SequenceStorePath),
		machine:  machine,
		bus:      bus,
		metrics:  m,
		parser:   codec.NewParser(),
		builder:  builder,
		handlers: handlers.New(seq, bus, builder),
		mailbox:  make(chan func(), 64),
	}
	d.heartbeatSup = fixsession.NewHeartbeatSupervisor(
		time.Duration(cfg.HeartBtIntSecs)*time.Second, d, m, d.onHeartbeatDead)
	return d
}

// Run drives the connector for the lifetime of ctx: connect, logon, serve
// the session, and reconnect on any recoverable error until ctx is
// cancelled or Shutdown is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	if state, ok, err := d.store.Load(time.Now()); err == nil && ok {
		d.seq.Restore(state)
		logger.Info("restored sequence state from store", logger.SeqNum(state.Main))
	} else if err != nil {
		logger.Warn("failed to load sequence store, starting fresh", logger.Err(err))
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.shuttingDown.Load() {
			return nil
		}

		err := d.connectAndServe(ctx)
		_ = d.store.Save(d.seq.Snapshot(), time.Now())

		if d.shuttingDown.Load() || ctx.Err() != nil {
			// A sequence error that lands exactly as shutdown begins would
			// otherwise leave the machine stranded at SequenceReset forever.
			if d.machine.State() == fixsession.StateSequenceReset {
				d.machine.Disconnect()
			}
			return ctx.Err()
		}

		var seqErr *sequenceError
		if errors.As(err, &seqErr) {
			d.recoverSequenceError(seqErr)
			continue
		}

		logger.Warn("session disconnected, scheduling reconnect", logger.Err(err), logger.DurationMs(float64(d.cfg.ReconnectInterval.Milliseconds())))
		if d.metrics != nil {
			d.metrics.RecordReconnect("transport_error")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.cfg.ReconnectInterval):
		}
	}
}

func (d *Dispatcher) recoverSequenceError(seqErr *sequenceError) {
	logger.Warn("recovering from sequence error", logger.Reason("sequence_error"))
	if d.metrics != nil {
		d.metrics.RecordReconnect("sequence_error")
	}
	time.Sleep(sequenceRecoveryDelay)
	if seqErr.expected != nil {
		d.seq.ForceReset(*seqErr.expected)
	} else {
		d.seq.ResetAll()
	}
	// connectAndServe's teardown left the machine at SequenceReset rather
	// than Disconnected for this one path, so the recovery delay and
	// sequence adjustment above happen before the state diagram's
	// SequenceReset -> Connecting edge, matching §4.C5 exactly instead of
	// folding it through a generic Disconnected bounce.
	if err := d.machine.ReconnectFromSequenceReset(); err != nil {
		logger.Warn("unexpected state leaving sequence reset", logger.Err(err))
	}
}

func (d *Dispatcher) connectAndServe(ctx context.Context) error {
	// A sequence-error recovery already moved the machine to Connecting
	// via ReconnectFromSequenceReset; every other entry starts Disconnected.
	if d.machine.State() != fixsession.StateConnecting {
		if err := d.machine.Connect(); err != nil {
			return err
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", d.cfg.addr())
	if err != nil {
		d.machine.Disconnect()
		return fmt.Errorf("%w: dial %s: %v", fixsession.ErrTransport, d.cfg.addr(), err)
	}

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
	defer func() {
		conn.Close()
		d.mu.Lock()
		d.conn = nil
		d.mu.Unlock()
		// A sequence error leaves the machine at SequenceReset on purpose:
		// recoverSequenceError drives it onward from there. Every other
		// exit path (transport error, normal logout, ctx cancellation)
		// bounces to Disconnected, which is always a legal transition.
		if d.machine.State() != fixsession.StateSequenceReset {
			d.machine.Disconnect()
		}
	}()

	if err := d.machine.Connected(); err != nil {
		return err
	}
	d.bus.Publish(event.KindConnected, nil)

	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := d.sendLogon(); err != nil {
		return fmt.Errorf("%w: sending logon: %v", fixsession.ErrTransport, err)
	}

	return d.serve(ctx, conn)
}

func (d *Dispatcher) sendLogon() error {
	seqNum := d.seq.NextAndInc(sequence.StreamMain)
	frame, err := d.builder.Logon(seqNum)
	if err != nil {
		return err
	}
	return d.writeFrame(frame)
}

type readResult struct {
	data []byte
	err  error
}

func (d *Dispatcher) startReader(conn net.Conn) <-chan readResult {
	out := make(chan readResult, 16)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				out <- readResult{data: chunk}
			}
			if err != nil {
				out <- readResult{err: err}
				return
			}
		}
	}()
	return out
}

func (d *Dispatcher) serve(ctx context.Context, conn net.Conn) error {
	readCh := d.startReader(conn)
	framer := codec.NewFramer()

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-readCh:
			if res.err != nil {
				return fmt.Errorf("%w: read: %v", fixsession.ErrTransport, res.err)
			}
			framer.Push(res.data)
			if err := d.drainFrames(framer, heartbeatCtx); err != nil {
				var seqErr *sequenceError
				if errors.As(err, &seqErr) {
					return err
				}
				logger.Warn("error handling inbound frame", logger.Err(err))
			}
		case job := <-d.mailbox:
			job()
		}
	}
}

// drainFrames extracts and handles every complete frame currently
// buffered. It runs TestRequest-triggered logon/heartbeat state
// transitions inline so they happen before any queued mailbox work.
func (d *Dispatcher) drainFrames(framer *codec.Framer, heartbeatCtx context.Context) error {
	for {
		frame, err := framer.Next()
		if err != nil {
			logger.Warn("malformed frame discarded", logger.Err(err))
			if d.metrics != nil {
				d.metrics.RecordFrameError("malformed")
			}
			continue
		}
		if frame == nil {
			return nil
		}

		preMsgType, preSymbol := prescan(frame)
		logger.Debug("frame received", logger.MsgType(preMsgType), logger.Symbol(preSymbol))

		msg, err := d.parser.Parse(frame)
		if err != nil {
			logger.Warn("frame failed validation", logger.Err(err))
			if d.metrics != nil {
				d.metrics.RecordFrameError("checksum_or_length")
			}
			continue
		}

		if err := d.handleMessage(msg, heartbeatCtx); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) handleMessage(msg *codec.Message, heartbeatCtx context.Context) error {
	d.heartbeatSup.Touch()
	d.bus.PublishMessage(msg)

	start := time.Now()
	result, err := d.handlers.Dispatch(msg)
	if d.metrics != nil {
		d.metrics.RecordMessage(msg.MsgType, "in", time.Since(start))
	}
	if err != nil {
		d.bus.Publish(event.KindCategorizedData, event.CategorizedData{
			Category: "UNKNOWN", Type: msg.MsgType, Data: msg.Fields, Timestamp: time.Now(),
		})
		return nil
	}

	if !result.IsSequenceError {
		if seqNum, ok, _ := msg.GetInt(34); ok {
			if gap := d.seq.UpdateServerSeq(uint32(seqNum)); gap {
				logger.Warn("gap detected in inbound sequence", logger.SeqNum(uint32(seqNum)))
			}
		}
	}

	for _, frame := range result.ImmediateSend {
		if err := d.writeFrame(frame); err != nil {
			return fmt.Errorf("%w: immediate send: %v", fixsession.ErrTransport, err)
		}
	}

	if msg.MsgType == "A" {
		if err := d.machine.LoggedIn(); err == nil {
			d.bus.Publish(event.KindConnected, nil)
			go d.heartbeatSup.Run(heartbeatCtx)
			go fixsession.RunPostLogonOrchestration(heartbeatCtx, d.machine, d)
		}
	}

	if result.IsSequenceError {
		_ = d.machine.EnterSequenceReset()
		return &sequenceError{expected: result.ExpectedSeqNum}
	}

	if result.IsNormalLogout {
		if err := d.machine.StartLogout(); err != nil {
			logger.Warn("logout received outside LoggedIn, ignoring state transition", logger.Err(err))
		}
		// Close our end so the reader goroutine unblocks with a read error;
		// serve() then returns a transport error and connectAndServe's
		// teardown carries the machine the rest of the way to Disconnected.
		d.mu.Lock()
		conn := d.conn
		d.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	}
	return nil
}

// writeFrame puts a frame on the wire. Callers must be running on the
// dispatcher's owning goroutine (inline from the read loop, or inside a
// mailbox job) so that a prior SequenceManager.NextAndInc is never
// separated from its wire write by a suspension point.
func (d *Dispatcher) writeFrame(frame []byte) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: no active connection", fixsession.ErrTransport)
	}
	_, err := conn.Write(frame)
	return err
}

func (d *Dispatcher) onHeartbeatDead() {
	logger.Warn("heartbeat supervisor reports connection dead, closing socket")
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// prescan extracts MsgType(35) and Symbol(55) from a frame without a full
// parse, for summary logging only; it never replaces the authoritative
// parse in drainFrames.
func prescan(frame []byte) (msgType, symbol string) {
	fields := map[int]string{}
	pos := 0
	for pos < len(frame) {
		eq := indexByte(frame[pos:], '=')
		if eq < 0 {
			break
		}
		eq += pos
		tagStr := frame[pos:eq]
		valStart := eq + 1
		soh := indexByte(frame[valStart:], codec.SOH)
		if soh < 0 {
			break
		}
		valEnd := valStart + soh
		tag := parseTagFast(tagStr)
		if tag == 35 {
			fields[35] = string(frame[valStart:valEnd])
		} else if tag == 55 {
			fields[55] = string(frame[valStart:valEnd])
		}
		pos = valEnd + 1
	}
	return fields[35], fields[55]
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func parseTagFast(b []byte) int {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}
