package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "psx-connect", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, RemoteAddr("192.168.1.1:12345"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("RemoteAddr", func(t *testing.T) {
		attr := RemoteAddr("192.168.1.100:9001")
		assert.Equal(t, AttrRemoteAddr, string(attr.Key))
		assert.Equal(t, "192.168.1.100:9001", attr.Value.AsString())
	})

	t.Run("SenderCompID", func(t *testing.T) {
		attr := SenderCompID("PSXCLIENT")
		assert.Equal(t, AttrSenderCompID, string(attr.Key))
		assert.Equal(t, "PSXCLIENT", attr.Value.AsString())
	})

	t.Run("TargetCompID", func(t *testing.T) {
		attr := TargetCompID("PSXGATEWAY")
		assert.Equal(t, AttrTargetCompID, string(attr.Key))
		assert.Equal(t, "PSXGATEWAY", attr.Value.AsString())
	})

	t.Run("SessionState", func(t *testing.T) {
		attr := SessionState("LoggedIn")
		assert.Equal(t, AttrSessionState, string(attr.Key))
		assert.Equal(t, "LoggedIn", attr.Value.AsString())
	})

	t.Run("MsgType", func(t *testing.T) {
		attr := MsgType("W")
		assert.Equal(t, AttrMsgType, string(attr.Key))
		assert.Equal(t, "W", attr.Value.AsString())
	})

	t.Run("SeqNum", func(t *testing.T) {
		attr := SeqNum(42)
		assert.Equal(t, AttrSeqNum, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("Stream", func(t *testing.T) {
		attr := Stream("marketData")
		assert.Equal(t, AttrStream, string(attr.Key))
		assert.Equal(t, "marketData", attr.Value.AsString())
	})

	t.Run("Symbol", func(t *testing.T) {
		attr := Symbol("OGDC")
		assert.Equal(t, AttrSymbol, string(attr.Key))
		assert.Equal(t, "OGDC", attr.Value.AsString())
	})

	t.Run("ReqID", func(t *testing.T) {
		attr := ReqID("3fa85f64-5717-4562-b3fc-2c963f66afa6")
		assert.Equal(t, AttrReqID, string(attr.Key))
		assert.Equal(t, "3fa85f64-5717-4562-b3fc-2c963f66afa6", attr.Value.AsString())
	})

	t.Run("RefSeqNum", func(t *testing.T) {
		attr := RefSeqNum(17)
		assert.Equal(t, AttrRefSeq, string(attr.Key))
		assert.Equal(t, int64(17), attr.Value.AsInt64())
	})

	t.Run("RefTagID", func(t *testing.T) {
		attr := RefTagID(34)
		assert.Equal(t, AttrRefTag, string(attr.Key))
		assert.Equal(t, int64(34), attr.Value.AsInt64())
	})

	t.Run("ChecksumOK", func(t *testing.T) {
		attr := ChecksumOK(true)
		assert.Equal(t, AttrChecksum, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("ExpectedSeq", func(t *testing.T) {
		attr := ExpectedSeq(5)
		assert.Equal(t, AttrExpectedSeq, string(attr.Key))
		assert.Equal(t, int64(5), attr.Value.AsInt64())
	})

	t.Run("Reason", func(t *testing.T) {
		attr := Reason("fallback to heuristic parse")
		assert.Equal(t, AttrReason, string(attr.Key))
		assert.Equal(t, "fallback to heuristic parse", attr.Value.AsString())
	})

	t.Run("Attempt", func(t *testing.T) {
		attr := Attempt(2)
		assert.Equal(t, AttrAttempt, string(attr.Key))
		assert.Equal(t, int64(2), attr.Value.AsInt64())
	})
}

func TestStartSessionSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSessionSpan(ctx, SpanSessionLogon, "PSXCLIENT", "PSXGATEWAY")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartSessionSpan(ctx, SpanSessionReconnect, "PSXCLIENT", "PSXGATEWAY", Attempt(1))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartMessageSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartMessageSpan(ctx, SpanCodecParse, "W", "marketData")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartMessageSpan(ctx, SpanCodecEncode, "V", "main", SeqNum(10))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartHandlerSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartHandlerSpan(ctx, "W", 12)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartHandlerSpan(ctx, "f", 13, Symbol("OGDC"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}
