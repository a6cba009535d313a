// Package handlers implements one handler per inbound FIX MsgType, each
// extracting the fields a given message kind carries and emitting the
// appropriate event on the shared event bus.
package handlers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/psx-connect/connector/internal/fix/codec"
	"github.com/psx-connect/connector/internal/fix/event"
	"github.com/psx-connect/connector/internal/fix/message"
	"github.com/psx-connect/connector/internal/fix/sequence"
	"github.com/psx-connect/connector/internal/logger"
)

// sequenceErrorPattern matches the Text(58) phrasings this gateway (and
// common FIX engines) use to report a sequence mismatch.
var sequenceErrorPattern = regexp.MustCompile(`(?i)(MsgSeqNum|too large|sequence)`)

// expectedSeqPattern extracts the gateway's expected next sequence number
// from text like `expected '42'`. Not every gateway phrases it this way;
// when it doesn't match, the caller falls back to reset_all.
var expectedSeqPattern = regexp.MustCompile(`(?i)expected ['"]?(\d+)['"]?`)

// Result is what a handler reports back to the dispatcher: whether the
// message indicates a sequence error requiring recovery, and any frame
// that must be sent immediately (ahead of queued application work), such
// as a Heartbeat echoing a TestRequest.
type Result struct {
	IsSequenceError bool
	ExpectedSeqNum  *uint32
	ImmediateSend   [][]byte

	// IsNormalLogout reports a Logout(5) that is not a sequence error -
	// the dispatcher drives the session state machine's LoggedIn ->
	// LoggingOut transition on this signal.
	IsNormalLogout bool
}

// Handlers dispatches parsed inbound messages to the per-MsgType logic in
// §4.C4, updating sequence state and publishing events as it goes.
type Handlers struct {
	seq     *sequence.Manager
	bus     *event.Bus
	builder *message.Builder

	testRequestMisses int
}

// New returns a Handlers bound to the given sequence manager, event bus,
// and outbound message builder (used only for the immediate Heartbeat
// echo a TestRequest requires).
func New(seq *sequence.Manager, bus *event.Bus, builder *message.Builder) *Handlers {
	return &Handlers{seq: seq, bus: bus, builder: builder}
}

// Dispatch routes msg to its per-MsgType handler.
func (h *Handlers) Dispatch(msg *codec.Message) (Result, error) {
	switch msg.MsgType {
	case "A":
		return h.handleLogon(msg)
	case "5":
		return h.handleLogout(msg)
	case "0":
		return h.handleHeartbeat(msg)
	case "1":
		return h.handleTestRequest(msg)
	case "W":
		return h.handleMarketDataRefresh(msg, false)
	case "X":
		return h.handleMarketDataRefresh(msg, true)
	case "Y":
		return h.handleMarketDataRequestReject(msg)
	case "y":
		return h.handleSecurityList(msg)
	case "h":
		return h.handleTradingSessionStatus(msg)
	case "3":
		return h.handleReject(msg)
	case "f":
		return h.handleTradingStatus(msg)
	default:
		h.bus.Publish(event.KindCategorizedData, event.CategorizedData{
			Category: "UNKNOWN",
			Type:     msg.MsgType,
			Data:     msg.Fields,
		})
		return Result{}, nil
	}
}

// TestRequestMisses reports the handler-side TestRequest miss counter.
// handleHeartbeat resets it to zero on every inbound Heartbeat; nothing in
// this package increments it (the heartbeat supervisor keeps its own miss
// count).
func (h *Handlers) TestRequestMisses() int {
	return h.testRequestMisses
}

func (h *Handlers) handleLogon(msg *codec.Message) (Result, error) {
	seqNum, _, err := msg.GetInt(34)
	if err != nil {
		return Result{}, err
	}
	resetFlag := msg.GetString(141) == "Y"
	h.seq.ProcessLogon(uint32(seqNum), resetFlag)
	h.bus.Publish(event.KindLogon, msg.Fields)
	return Result{}, nil
}

func (h *Handlers) handleLogout(msg *codec.Message) (Result, error) {
	text := msg.GetString(58)
	if isSequenceErrorText(text) {
		return Result{IsSequenceError: true, ExpectedSeqNum: extractExpectedSeq(text)}, nil
	}
	h.bus.Publish(event.KindLogout, msg.Fields)
	return Result{IsNormalLogout: true}, nil
}

func (h *Handlers) handleHeartbeat(_ *codec.Message) (Result, error) {
	h.testRequestMisses = 0
	return Result{}, nil
}

func (h *Handlers) handleTestRequest(msg *codec.Message) (Result, error) {
	testReqID := msg.GetString(112)
	seqNum := h.seq.NextAndInc(sequence.StreamMain)
	frame, err := h.builder.Heartbeat(seqNum, testReqID)
	if err != nil {
		return Result{}, err
	}
	return Result{ImmediateSend: [][]byte{frame}}, nil
}

func (h *Handlers) handleMarketDataRefresh(msg *codec.Message, incremental bool) (Result, error) {
	symbol := msg.GetString(55)
	entries, err := extractMarketDataEntries(msg)
	if err != nil {
		return Result{}, err
	}

	md := event.MarketData{Symbol: symbol, Incremental: incremental, Entries: entries}
	h.bus.Publish(event.KindMarketData, md)

	if isKSESymbol(symbol) || msg.GetString(96) == "kse" {
		h.bus.Publish(event.KindKSEData, md)
	}
	return Result{}, nil
}

func extractMarketDataEntries(msg *codec.Message) ([]event.MarketDataItem, error) {
	groups, err := msg.Group(268, 269)
	if err != nil {
		return nil, err
	}
	entries := make([]event.MarketDataItem, 0, len(groups))
	for _, g := range groups {
		price, _ := strconv.ParseFloat(g[270], 64)
		size, _ := strconv.ParseFloat(g[271], 64)
		entries = append(entries, event.MarketDataItem{
			EntryType: g[269],
			Price:     price,
			Size:      size,
			Date:      g[272],
			Time:      g[273],
		})
	}
	return entries, nil
}

// isKSESymbol reports whether symbol carries a recognized index prefix
// for this gateway's KSE (Karachi Stock Exchange) index family.
func isKSESymbol(symbol string) bool {
	for _, prefix := range []string{"KSE", "KMI"} {
		if len(symbol) >= len(prefix) && symbol[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func (h *Handlers) handleMarketDataRequestReject(msg *codec.Message) (Result, error) {
	h.bus.Publish(event.KindMarketDataReject, event.MarketDataReject{
		MDReqID: msg.GetString(262),
		Reason:  msg.GetString(816),
		Text:    msg.GetString(58),
	})
	return Result{}, nil
}

func (h *Handlers) handleSecurityList(msg *codec.Message) (Result, error) {
	product := msg.GetString(460)
	groups, err := msg.Group(146, 55)
	if err != nil {
		return Result{}, err
	}

	seen := make(map[string]struct{}, len(groups))
	entries := make([]event.SecurityListEntry, 0, len(groups))
	for _, g := range groups {
		symbol := g[55]
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		entries = append(entries, event.SecurityListEntry{
			Symbol:       symbol,
			SecurityType: g[167],
			SecurityDesc: g[107],
			MarketID:     g[1301],
		})
	}

	sl := event.SecurityList{SecurityReqID: msg.GetString(320), Product: product, Entries: entries}
	h.bus.Publish(event.KindSecurityList, sl)

	switch product {
	case "4":
		h.bus.Publish(event.KindEquitySecurityList, sl)
	case "5":
		h.bus.Publish(event.KindIndexSecurityList, sl)
	}
	return Result{}, nil
}

func (h *Handlers) handleTradingSessionStatus(msg *codec.Message) (Result, error) {
	sessionID := msg.GetString(336)
	if sessionID == "" {
		if marketID := msg.GetString(1301); marketID != "" {
			logger.Warn("trading session status missing TradingSessionID, falling back to MarketID", "fallback", "market_id", "market_id", marketID)
			sessionID = marketID
		} else {
			logger.Warn("trading session status missing TradingSessionID and MarketID, defaulting to REG", "fallback", "default_session")
			sessionID = "REG"
		}
	}

	status := msg.GetString(340)
	if status == "" {
		status = deriveTradingSessionStatus(msg)
	}

	h.bus.Publish(event.KindTradingSessionStat, event.TradingSessionStatus{
		TradingSessionID: sessionID,
		Status:           status,
		StartTime:        msg.GetString(341),
		EndTime:          msg.GetString(342),
	})
	return Result{}, nil
}

// deriveTradingSessionStatus applies the documented fallback policy when
// TradSesStatus(340) is absent: derive from TradingSessionSubID(625) or
// Text(58) keywords, defaulting to "2" (Open) as a last resort. Every
// fallback path is logged so a misclassification is diagnosable.
func deriveTradingSessionStatus(msg *codec.Message) string {
	switch msg.GetString(625) {
	case "OPEN":
		logger.Warn("trading session status missing TradSesStatus, derived from TradingSessionSubID", "fallback", "sub_id", "value", "OPEN")
		return "2"
	case "CLOS":
		logger.Warn("trading session status missing TradSesStatus, derived from TradingSessionSubID", "fallback", "sub_id", "value", "CLOS")
		return "3"
	case "PRE":
		logger.Warn("trading session status missing TradSesStatus, derived from TradingSessionSubID", "fallback", "sub_id", "value", "PRE")
		return "4"
	}

	text := msg.GetString(58)
	switch {
	case containsFold(text, "open"):
		logger.Warn("trading session status missing TradSesStatus, derived from Text keyword", "fallback", "text_keyword", "keyword", "open")
		return "2"
	case containsFold(text, "close") || containsFold(text, "closed"):
		logger.Warn("trading session status missing TradSesStatus, derived from Text keyword", "fallback", "text_keyword", "keyword", "close")
		return "3"
	case containsFold(text, "pre"):
		logger.Warn("trading session status missing TradSesStatus, derived from Text keyword", "fallback", "text_keyword", "keyword", "pre")
		return "4"
	}

	logger.Warn("trading session status missing TradSesStatus, defaulting to Open", "fallback", "default_status")
	return "2"
}

func (h *Handlers) handleReject(msg *codec.Message) (Result, error) {
	refSeqNum, _, _ := msg.GetInt(45)
	refTagID, _, _ := msg.GetInt(371)
	text := msg.GetString(58)
	reason := msg.GetString(373)

	h.bus.Publish(event.KindReject, event.Reject{
		RefSeqNum: refSeqNum,
		RefTagID:  refTagID,
		Reason:    reason,
		Text:      text,
	})

	if refTagID == 34 || isSequenceErrorText(text) {
		return Result{IsSequenceError: true, ExpectedSeqNum: extractExpectedSeq(text)}, nil
	}
	return Result{}, nil
}

func (h *Handlers) handleTradingStatus(msg *codec.Message) (Result, error) {
	h.bus.Publish(event.KindTradingStatus, event.TradingStatus{
		Symbol: msg.GetString(55),
		Status: msg.GetString(102),
		Time:   msg.GetString(273),
	})
	return Result{}, nil
}

func isSequenceErrorText(text string) bool {
	return text != "" && sequenceErrorPattern.MatchString(text)
}

func extractExpectedSeq(text string) *uint32 {
	m := expectedSeqPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return nil
	}
	v := uint32(n)
	return &v
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
