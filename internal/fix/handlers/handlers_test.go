package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psx-connect/connector/internal/fix/codec"
	"github.com/psx-connect/connector/internal/fix/event"
	"github.com/psx-connect/connector/internal/fix/message"
	"github.com/psx-connect/connector/internal/fix/sequence"
)

func testHandlers(t *testing.T) (*Handlers, *event.Bus, *sequence.Manager) {
	t.Helper()
	seq := sequence.New(nil)
	bus := event.New(1)
	builder := message.New(message.SessionParams{
		BeginString: "FIXT.1.1", SenderCompID: "realtime", TargetCompID: "NMDUFISQ0001",
	}, codec.NewEncoder())
	return New(seq, bus, builder), bus, seq
}

func buildFrame(t *testing.T, msgType string, body []codec.Field) *codec.Message {
	t.Helper()
	enc := codec.NewEncoder()
	frame, err := enc.Encode(codec.Header{
		BeginString: "FIXT.1.1", MsgType: msgType, SenderCompID: "NMDUFISQ0001",
		TargetCompID: "realtime", MsgSeqNum: 1,
	}, body)
	require.NoError(t, err)
	msg, err := codec.NewParser().Parse(frame)
	require.NoError(t, err)
	return msg
}

func recvEvent(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return event.Event{}
	}
}

func TestHandleLogon_ProcessesSequenceAndEmits(t *testing.T) {
	h, bus, seq := testHandlers(t)
	sub := bus.Subscribe(event.KindLogon)

	msg := buildFrame(t, "A", []codec.Field{{Tag: 141, Value: "Y"}})
	res, err := h.Dispatch(msg)
	require.NoError(t, err)
	assert.False(t, res.IsSequenceError)

	assert.Equal(t, uint32(2), seq.Peek(sequence.StreamMain))
	recvEvent(t, sub)
}

func TestHandleLogout_NormalEmitsLogout(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindLogout)

	msg := buildFrame(t, "5", []codec.Field{{Tag: 58, Value: "client requested"}})
	res, err := h.Dispatch(msg)
	require.NoError(t, err)
	assert.False(t, res.IsSequenceError)
	recvEvent(t, sub)
}

// Scenario 2: sequence reject recovery via Logout text.
func TestHandleLogout_SequenceErrorExtractsExpectedSeq(t *testing.T) {
	h, _, _ := testHandlers(t)

	msg := buildFrame(t, "5", []codec.Field{{Tag: 58, Value: `MsgSeqNum expected '42'`}})
	res, err := h.Dispatch(msg)
	require.NoError(t, err)
	require.True(t, res.IsSequenceError)
	require.NotNil(t, res.ExpectedSeqNum)
	assert.Equal(t, uint32(42), *res.ExpectedSeqNum)
}

func TestHandleLogout_SequenceErrorWithoutParsableNumber(t *testing.T) {
	h, _, _ := testHandlers(t)

	msg := buildFrame(t, "5", []codec.Field{{Tag: 58, Value: "sequence too large, reconnect"}})
	res, err := h.Dispatch(msg)
	require.NoError(t, err)
	assert.True(t, res.IsSequenceError)
	assert.Nil(t, res.ExpectedSeqNum, "falls back to reset_all when no number is parsable")
}

func TestHandleHeartbeat_ResetsTestRequestMisses(t *testing.T) {
	h, _, _ := testHandlers(t)
	h.testRequestMisses = 2

	_, err := h.Dispatch(buildFrame(t, "0", nil))
	require.NoError(t, err)
	assert.Equal(t, 0, h.TestRequestMisses())
}

// TestRequest handler must echo immediately via Heartbeat.
func TestHandleTestRequest_RepliesImmediately(t *testing.T) {
	h, _, _ := testHandlers(t)

	msg := buildFrame(t, "1", []codec.Field{{Tag: 112, Value: "req-7"}})
	res, err := h.Dispatch(msg)
	require.NoError(t, err)
	require.Len(t, res.ImmediateSend, 1)

	reply, err := codec.NewParser().Parse(res.ImmediateSend[0])
	require.NoError(t, err)
	assert.Equal(t, "0", reply.MsgType)
	assert.Equal(t, "req-7", reply.GetString(112))
}

// Scenario 4: market data snapshot with two entries.
func TestHandleMarketDataSnapshot_ExtractsEntries(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindMarketData)

	msg := buildFrame(t, "W", []codec.Field{
		{Tag: 55, Value: "LUCK"},
		{Tag: 268, Value: "2"},
		{Tag: 269, Value: "0"}, {Tag: 270, Value: "100.5"}, {Tag: 271, Value: "10"},
		{Tag: 269, Value: "1"}, {Tag: 270, Value: "100.6"}, {Tag: 271, Value: "8"},
	})
	res, err := h.Dispatch(msg)
	require.NoError(t, err)
	assert.False(t, res.IsSequenceError)

	evt := recvEvent(t, sub)
	md := evt.Payload.(event.MarketData)
	assert.Equal(t, "LUCK", md.Symbol)
	assert.False(t, md.Incremental)
	require.Len(t, md.Entries, 2)
	assert.Equal(t, 100.5, md.Entries[0].Price)
	assert.Equal(t, 100.6, md.Entries[1].Price)
}

func TestHandleMarketDataSnapshot_KSESymbolAlsoEmitsOnKSEChannel(t *testing.T) {
	h, bus, _ := testHandlers(t)
	kse := bus.Subscribe(event.KindKSEData)

	msg := buildFrame(t, "W", []codec.Field{
		{Tag: 55, Value: "KSE100"},
		{Tag: 268, Value: "1"},
		{Tag: 269, Value: "2"}, {Tag: 270, Value: "45000"}, {Tag: 271, Value: "0"},
	})
	_, err := h.Dispatch(msg)
	require.NoError(t, err)
	recvEvent(t, kse)
}

func TestHandleMarketDataIncrementalRefresh(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindMarketData)

	msg := buildFrame(t, "X", []codec.Field{
		{Tag: 55, Value: "OGDC"},
		{Tag: 268, Value: "1"},
		{Tag: 269, Value: "1"}, {Tag: 270, Value: "99.1"}, {Tag: 271, Value: "5"},
	})
	_, err := h.Dispatch(msg)
	require.NoError(t, err)

	evt := recvEvent(t, sub)
	assert.True(t, evt.Payload.(event.MarketData).Incremental)
}

func TestHandleMarketDataRequestReject(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindMarketDataReject)

	msg := buildFrame(t, "Y", []codec.Field{
		{Tag: 262, Value: "req-1"}, {Tag: 816, Value: "1"}, {Tag: 58, Value: "unknown symbol"},
	})
	_, err := h.Dispatch(msg)
	require.NoError(t, err)

	evt := recvEvent(t, sub)
	reject := evt.Payload.(event.MarketDataReject)
	assert.Equal(t, "req-1", reject.MDReqID)
	assert.Equal(t, "unknown symbol", reject.Text)
}

// Scenario 5: security list classification + dedup on Symbol.
func TestHandleSecurityList_ClassifiesAndDedups(t *testing.T) {
	h, bus, _ := testHandlers(t)
	all := bus.Subscribe(event.KindSecurityList)
	equity := bus.Subscribe(event.KindEquitySecurityList)

	msg := buildFrame(t, "y", []codec.Field{
		{Tag: 320, Value: "req-1"},
		{Tag: 460, Value: "4"},
		{Tag: 146, Value: "2"},
		{Tag: 55, Value: "LUCK"}, {Tag: 167, Value: "CS"},
		{Tag: 55, Value: "LUCK"}, {Tag: 167, Value: "CS"}, // duplicate, must be deduped
	})

	// Rebuild with the intended 2 distinct entries for dedup coverage.
	msg2 := buildFrame(t, "y", []codec.Field{
		{Tag: 320, Value: "req-1"},
		{Tag: 460, Value: "4"},
		{Tag: 146, Value: "2"},
		{Tag: 55, Value: "LUCK"}, {Tag: 167, Value: "CS"},
		{Tag: 55, Value: "OGDC"}, {Tag: 167, Value: "CS"},
	})

	_, err := h.Dispatch(msg)
	require.NoError(t, err)
	evtAll := recvEvent(t, all)
	sl := evtAll.Payload.(event.SecurityList)
	require.Len(t, sl.Entries, 1, "duplicate Symbol rows must be deduped")

	evtEq := recvEvent(t, equity)
	assert.Equal(t, "4", evtEq.Payload.(event.SecurityList).Product)

	_, err = h.Dispatch(msg2)
	require.NoError(t, err)
	evtAll2 := recvEvent(t, all)
	assert.Len(t, evtAll2.Payload.(event.SecurityList).Entries, 2)
	recvEvent(t, equity)
}

func TestHandleSecurityList_IndexProductEmitsOnIndexChannel(t *testing.T) {
	h, bus, _ := testHandlers(t)
	all := bus.Subscribe(event.KindSecurityList)
	index := bus.Subscribe(event.KindIndexSecurityList)

	msg := buildFrame(t, "y", []codec.Field{
		{Tag: 320, Value: "req-2"},
		{Tag: 460, Value: "5"},
		{Tag: 146, Value: "1"},
		{Tag: 55, Value: "KSE100"}, {Tag: 167, Value: "MLEG"},
	})
	_, err := h.Dispatch(msg)
	require.NoError(t, err)
	recvEvent(t, all)
	recvEvent(t, index)
}

func TestHandleTradingSessionStatus_UsesProvidedFields(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindTradingSessionStat)

	msg := buildFrame(t, "h", []codec.Field{
		{Tag: 336, Value: "REG"}, {Tag: 340, Value: "2"},
		{Tag: 341, Value: "20260731-09:30:00.000"}, {Tag: 342, Value: "20260731-15:30:00.000"},
	})
	_, err := h.Dispatch(msg)
	require.NoError(t, err)

	evt := recvEvent(t, sub)
	tss := evt.Payload.(event.TradingSessionStatus)
	assert.Equal(t, "REG", tss.TradingSessionID)
	assert.Equal(t, "2", tss.Status)
}

func TestHandleTradingSessionStatus_FallsBackToMarketIDAndSubID(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindTradingSessionStat)

	msg := buildFrame(t, "h", []codec.Field{
		{Tag: 1301, Value: "PSX"}, {Tag: 625, Value: "OPEN"},
	})
	_, err := h.Dispatch(msg)
	require.NoError(t, err)

	evt := recvEvent(t, sub)
	tss := evt.Payload.(event.TradingSessionStatus)
	assert.Equal(t, "PSX", tss.TradingSessionID)
	assert.Equal(t, "2", tss.Status)
}

func TestHandleTradingSessionStatus_DefaultsWhenNothingPresent(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindTradingSessionStat)

	_, err := h.Dispatch(buildFrame(t, "h", nil))
	require.NoError(t, err)

	evt := recvEvent(t, sub)
	tss := evt.Payload.(event.TradingSessionStatus)
	assert.Equal(t, "REG", tss.TradingSessionID)
	assert.Equal(t, "2", tss.Status)
}

func TestHandleReject_SequenceErrorViaRefTagID(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindReject)

	msg := buildFrame(t, "3", []codec.Field{
		{Tag: 45, Value: "7"}, {Tag: 371, Value: "34"},
		{Tag: 58, Value: `MsgSeqNum expected '42'`}, {Tag: 373, Value: "5"},
	})
	res, err := h.Dispatch(msg)
	require.NoError(t, err)
	require.True(t, res.IsSequenceError)
	require.NotNil(t, res.ExpectedSeqNum)
	assert.Equal(t, uint32(42), *res.ExpectedSeqNum)
	recvEvent(t, sub)
}

func TestHandleReject_NonSequenceErrorStillEmits(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindReject)

	msg := buildFrame(t, "3", []codec.Field{
		{Tag: 45, Value: "9"}, {Tag: 371, Value: "55"}, {Tag: 58, Value: "unsupported tag"},
	})
	res, err := h.Dispatch(msg)
	require.NoError(t, err)
	assert.False(t, res.IsSequenceError)
	recvEvent(t, sub)
}

func TestHandleTradingStatus_PerSymbol(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindTradingStatus)

	msg := buildFrame(t, "f", []codec.Field{
		{Tag: 55, Value: "LUCK"}, {Tag: 102, Value: "17"}, {Tag: 273, Value: "09:30:00.000"},
	})
	_, err := h.Dispatch(msg)
	require.NoError(t, err)

	evt := recvEvent(t, sub)
	ts := evt.Payload.(event.TradingStatus)
	assert.Equal(t, "LUCK", ts.Symbol)
	assert.Equal(t, "17", ts.Status)
}

func TestDispatch_UnknownMsgTypeEmitsCategorizedData(t *testing.T) {
	h, bus, _ := testHandlers(t)
	sub := bus.Subscribe(event.KindCategorizedData)

	_, err := h.Dispatch(buildFrame(t, "Z", nil))
	require.NoError(t, err)
	recvEvent(t, sub)
}
