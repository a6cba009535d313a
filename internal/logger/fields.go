package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the FIX session engine.
// Use these keys consistently so log aggregation and querying stay uniform
// across the codec, sequence manager, session machine, and dispatcher.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// FIX message identity
	// ========================================================================
	KeyMsgType  = "msg_type"   // FIX MsgType(35) value
	KeySeqNum   = "seq_num"    // MsgSeqNum(34) value
	KeyStream   = "stream"     // sequence stream: main, marketData, securityList, tradingStatus
	KeySymbol   = "symbol"     // Symbol(55) value
	KeyReqID    = "req_id"     // MDReqID/SecurityReqID/TradSesReqID/TestReqID
	KeyRefSeq   = "ref_seq"    // RefSeqNum(45) on a Reject
	KeyRefTag   = "ref_tag"    // RefTagID(371) on a Reject

	// ========================================================================
	// Session identity
	// ========================================================================
	KeySenderCompID = "sender_comp_id"
	KeyTargetCompID = "target_comp_id"
	KeySessionState = "session_state"
	KeyRemoteAddr   = "remote_addr"

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyReason     = "reason"   // fallback/heuristic reason, e.g. for TradingSessionStatus defaults
	KeyAttempt    = "attempt"
	KeyExpected   = "expected" // expected sequence number parsed from a Logout/Reject text
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// MsgType returns a slog.Attr for a FIX MsgType(35) value.
func MsgType(t string) slog.Attr {
	return slog.String(KeyMsgType, t)
}

// SeqNum returns a slog.Attr for a MsgSeqNum(34) value.
func SeqNum(n uint32) slog.Attr {
	return slog.Uint64(KeySeqNum, uint64(n))
}

// Stream returns a slog.Attr for a sequence stream name.
func Stream(name string) slog.Attr {
	return slog.String(KeyStream, name)
}

// Symbol returns a slog.Attr for a FIX Symbol(55) value.
func Symbol(sym string) slog.Attr {
	return slog.String(KeySymbol, sym)
}

// ReqID returns a slog.Attr for a correlation request ID.
func ReqID(id string) slog.Attr {
	return slog.String(KeyReqID, id)
}

// SenderCompID returns a slog.Attr for SenderCompID(49).
func SenderCompID(id string) slog.Attr {
	return slog.String(KeySenderCompID, id)
}

// TargetCompID returns a slog.Attr for TargetCompID(56).
func TargetCompID(id string) slog.Attr {
	return slog.String(KeyTargetCompID, id)
}

// SessionState returns a slog.Attr for the session machine's current state.
func SessionState(state string) slog.Attr {
	return slog.String(KeySessionState, state)
}

// RemoteAddr returns a slog.Attr for the remote TCP endpoint.
func RemoteAddr(addr string) slog.Attr {
	return slog.String(KeyRemoteAddr, addr)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Reason returns a slog.Attr describing why a fallback/heuristic fired.
func Reason(reason string) slog.Attr {
	return slog.String(KeyReason, reason)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Expected returns a slog.Attr for an expected sequence number.
func Expected(n uint32) slog.Attr {
	return slog.Uint64(KeyExpected, uint64(n))
}

// RefSeq returns a slog.Attr for RefSeqNum(45).
func RefSeq(n uint32) slog.Attr {
	return slog.Uint64(KeyRefSeq, uint64(n))
}

// RefTag returns a slog.Attr for RefTagID(371).
func RefTag(tag int) slog.Attr {
	return slog.String(KeyRefTag, fmt.Sprintf("%d", tag))
}
