package metrics

import "time"

// SessionMetrics provides observability for the FIX session machine and
// dispatcher.
//
// Implementations are optional - pass nil to disable metrics collection
// with zero overhead.
//
// Example usage:
//
//	m := prometheus.NewSessionMetrics()
//	machine := fixsession.New(m)
type SessionMetrics interface {
	// RecordSequence sets the sequence number gauge for a stream: the
	// outbound counters (main, marketData, securityList, tradingStatus) or
	// server, the last sequence number received from the gateway.
	RecordSequence(stream string, seq int)

	// RecordHeartbeat increments the heartbeat counter, tagged by
	// direction ("sent" or "received").
	RecordHeartbeat(direction string)

	// RecordTestRequest increments the test-request counter, tagged by
	// direction and outcome. The heartbeat supervisor records "sent" with
	// "pending" when it issues a TestRequest and with "timed_out" when the
	// reply never comes.
	RecordTestRequest(direction string, outcome string)

	// RecordReconnect increments the reconnect counter, tagged by reason
	// ("sequence_error", "transport_error", "heartbeat_timeout").
	RecordReconnect(reason string)

	// RecordFrameError increments the frame error counter, tagged by cause
	// ("malformed", "checksum_or_length").
	RecordFrameError(cause string)

	// RecordMessage records a single inbound or outbound application
	// message, tagged by MsgType and direction.
	RecordMessage(msgType string, direction string, duration time.Duration)

	// SetSessionState updates the session state gauge; state is one of the
	// SessionMachine's state names.
	SetSessionState(state string)
}
