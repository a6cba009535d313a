package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for FIX session/message operations.
const (
	// ========================================================================
	// Transport attributes
	// ========================================================================
	AttrRemoteAddr = "net.peer.address"
	AttrLocalAddr  = "net.host.address"

	// ========================================================================
	// FIX session attributes
	// ========================================================================
	AttrSenderCompID = "fix.sender_comp_id"
	AttrTargetCompID = "fix.target_comp_id"
	AttrSessionState = "fix.session_state"

	// ========================================================================
	// FIX message attributes
	// ========================================================================
	AttrMsgType  = "fix.msg_type"
	AttrSeqNum   = "fix.seq_num"
	AttrStream   = "fix.stream"
	AttrSymbol   = "fix.symbol"
	AttrReqID    = "fix.req_id"
	AttrRefSeq   = "fix.ref_seq_num"
	AttrRefTag   = "fix.ref_tag_id"
	AttrChecksum = "fix.checksum_ok"

	// ========================================================================
	// Sequence manager attributes
	// ========================================================================
	AttrExpectedSeq = "fix.expected_seq"
	AttrReason      = "fix.reason"
	AttrAttempt     = "fix.attempt"
)

// Span names for FIX session operations.
// Format: <component>.<operation>
const (
	SpanSessionConnect  = "session.connect"
	SpanSessionLogon    = "session.logon"
	SpanSessionLogout   = "session.logout"
	SpanSessionReset    = "session.sequence_reset"
	SpanSessionReconnect = "session.reconnect"

	SpanCodecParse  = "codec.parse"
	SpanCodecEncode = "codec.encode"

	SpanDispatcherDispatch = "dispatcher.dispatch"
	SpanDispatcherSend     = "dispatcher.send"

	SpanHeartbeatSupervisor = "heartbeat.supervisor"
	SpanHeartbeatTestReq    = "heartbeat.test_request"

	SpanHandlerExecution = "handler.execute"
)

// RemoteAddr returns an attribute for the remote TCP endpoint.
func RemoteAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrRemoteAddr, addr)
}

// SenderCompID returns an attribute for the local SenderCompID(49).
func SenderCompID(id string) attribute.KeyValue {
	return attribute.String(AttrSenderCompID, id)
}

// TargetCompID returns an attribute for the remote TargetCompID(56).
func TargetCompID(id string) attribute.KeyValue {
	return attribute.String(AttrTargetCompID, id)
}

// SessionState returns an attribute for the current session state.
func SessionState(state string) attribute.KeyValue {
	return attribute.String(AttrSessionState, state)
}

// MsgType returns an attribute for the FIX MsgType(35) value.
func MsgType(msgType string) attribute.KeyValue {
	return attribute.String(AttrMsgType, msgType)
}

// SeqNum returns an attribute for a MsgSeqNum(34) value.
func SeqNum(seq int) attribute.KeyValue {
	return attribute.Int64(AttrSeqNum, int64(seq))
}

// Stream returns an attribute for the sequence stream name
// (main, marketData, securityList, tradingStatus, server).
func Stream(name string) attribute.KeyValue {
	return attribute.String(AttrStream, name)
}

// Symbol returns an attribute for a Symbol(55) value.
func Symbol(sym string) attribute.KeyValue {
	return attribute.String(AttrSymbol, sym)
}

// ReqID returns an attribute for an opaque request ID
// (MDReqID/SecurityReqID/TradSesReqID/TestReqID).
func ReqID(id string) attribute.KeyValue {
	return attribute.String(AttrReqID, id)
}

// RefSeqNum returns an attribute for a RefSeqNum(45) value.
func RefSeqNum(seq int) attribute.KeyValue {
	return attribute.Int64(AttrRefSeq, int64(seq))
}

// RefTagID returns an attribute for a RefTagID(371) value.
func RefTagID(tag int) attribute.KeyValue {
	return attribute.Int64(AttrRefTag, int64(tag))
}

// ChecksumOK returns an attribute for checksum verification result.
func ChecksumOK(ok bool) attribute.KeyValue {
	return attribute.Bool(AttrChecksum, ok)
}

// ExpectedSeq returns an attribute for an expected sequence number.
func ExpectedSeq(seq int) attribute.KeyValue {
	return attribute.Int64(AttrExpectedSeq, int64(seq))
}

// Reason returns an attribute for a free-form diagnostic reason string.
func Reason(reason string) attribute.KeyValue {
	return attribute.String(AttrReason, reason)
}

// Attempt returns an attribute for a retry attempt counter.
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// StartSessionSpan starts a span for a session lifecycle operation
// (connect, logon, logout, sequence reset, reconnect).
func StartSessionSpan(ctx context.Context, name string, sender, target string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		SenderCompID(sender),
		TargetCompID(target),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartMessageSpan starts a span around parsing or encoding a single FIX
// message, tagging it with MsgType and the owning sequence stream.
func StartMessageSpan(ctx context.Context, name, msgType, stream string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		MsgType(msgType),
		Stream(stream),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartHandlerSpan starts a span around a single inbound message handler.
func StartHandlerSpan(ctx context.Context, msgType string, seq int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		MsgType(msgType),
		SeqNum(seq),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanHandlerExecution, trace.WithAttributes(allAttrs...))
}
