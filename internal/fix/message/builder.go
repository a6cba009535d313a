package message

import (
	"github.com/google/uuid"

	"github.com/psx-connect/connector/internal/fix/codec"
)

// SessionParams carries the identity and credential fields every message
// in this package needs to stamp the header or body with.
type SessionParams struct {
	BeginString          string
	SenderCompID         string
	TargetCompID         string
	Username             string
	Password             string
	HeartBtInt           int
	DefaultApplVerID     string
	DefaultCstmApplVerID string
	OnBehalfOfCompID     string
	RawData              string
	RawDataLength        int
	ResetOnLogon         bool
}

// Builder constructs outbound PSX profile messages. Each method returns
// the encoded frame; the request kinds also return the opaque identifier
// the caller needs to correlate a later response against (MDReqID,
// SecurityReqID, TradSesReqID, or TestRequest's TestReqID). Logon, Logout
// and Heartbeat return the frame only.
type Builder struct {
	params  SessionParams
	encoder *codec.Encoder
}

// New returns a Builder for the given session parameters.
func New(params SessionParams, encoder *codec.Encoder) *Builder {
	return &Builder{params: params, encoder: encoder}
}

func (b *Builder) header(msgType string, seqNum uint32) codec.Header {
	return codec.Header{
		BeginString:  b.params.BeginString,
		MsgType:      msgType,
		SenderCompID: b.params.SenderCompID,
		TargetCompID: b.params.TargetCompID,
		MsgSeqNum:    int(seqNum),
	}
}

func field(tag int, value string) codec.Field {
	return codec.Field{Tag: tag, Value: value}
}

// Logon builds MsgType=A with the configured heartbeat interval, the PSX
// profile's ApplVerID extensions, and ResetSeqNumFlag set to Y when
// SessionParams.ResetOnLogon is true and N otherwise. The flag is the same
// on every Logon this Builder produces, first logon or reconnect.
func (b *Builder) Logon(seqNum uint32) ([]byte, error) {
	resetFlag := "N"
	if b.params.ResetOnLogon {
		resetFlag = "Y"
	}
	body := []codec.Field{
		field(tagEncryptMethod, "0"),
		field(tagHeartBtInt, itoa(b.params.HeartBtInt)),
		field(tagResetSeqNumFlag, resetFlag),
		field(tagUsername, b.params.Username),
		field(tagPassword, b.params.Password),
	}
	if b.params.OnBehalfOfCompID != "" {
		body = append(body, field(tagOnBehalfOfCompID, b.params.OnBehalfOfCompID))
	}
	if b.params.RawData != "" {
		body = append(body,
			field(tagRawDataLength, itoa(b.params.RawDataLength)),
			field(tagRawData, b.params.RawData))
	}
	body = append(body,
		field(tagDefaultApplVerID, b.params.DefaultApplVerID),
		field(tagDefaultCstmApplVerID, b.params.DefaultCstmApplVerID),
	)
	return b.encoder.Encode(b.header("A", seqNum), body)
}

// Logout builds MsgType=5 with an optional Text(58) reason.
func (b *Builder) Logout(seqNum uint32, text string) ([]byte, error) {
	var body []codec.Field
	if text != "" {
		body = append(body, field(tagText, text))
	}
	return b.encoder.Encode(b.header("5", seqNum), body)
}

// Heartbeat builds MsgType=0, optionally echoing a TestReqID(112) when
// responding to a TestRequest.
func (b *Builder) Heartbeat(seqNum uint32, testReqID string) ([]byte, error) {
	var body []codec.Field
	if testReqID != "" {
		body = append(body, field(tagTestReqID, testReqID))
	}
	return b.encoder.Encode(b.header("0", seqNum), body)
}

// TestRequest builds MsgType=1 with a fresh TestReqID, returned for the
// heartbeat supervisor to match against the eventual Heartbeat reply.
func (b *Builder) TestRequest(seqNum uint32) ([]byte, string, error) {
	reqID := uuid.NewString()
	body := []codec.Field{field(tagTestReqID, reqID)}
	frame, err := b.encoder.Encode(b.header("1", seqNum), body)
	return frame, reqID, err
}

// MarketDataSubscription describes the symbols and entry types a
// MarketDataRequest asks the gateway to stream.
type MarketDataSubscription struct {
	Symbols     []string
	EntryTypes  []string // e.g. MDEntryTypeBid, MDEntryTypeOffer, MDEntryTypeTrade
	MarketDepth int
	UpdateType  int // 0 = full refresh, 1 = incremental

	// PartyID identifies the requesting party, as PSX requires on every
	// MarketDataRequest. Left empty, no PartyID group is sent.
	PartyID       string
	PartyIDSource string // defaults to "D" (proprietary/custom code)
	PartyRole     string // defaults to "3" (client ID)
}

// MarketDataRequest builds MsgType=V subscribing to the given symbols.
func (b *Builder) MarketDataRequest(seqNum uint32, sub MarketDataSubscription) ([]byte, string, error) {
	reqID := uuid.NewString()
	body := []codec.Field{
		field(tagMDReqID, reqID),
		field(tagSubscriptionRequestType, "1"), // snapshot + updates
		field(tagMarketDepth, itoa(sub.MarketDepth)),
		field(tagMDUpdateType, itoa(sub.UpdateType)),
	}
	if sub.PartyID != "" {
		source := sub.PartyIDSource
		if source == "" {
			source = "D"
		}
		role := sub.PartyRole
		if role == "" {
			role = "3"
		}
		body = append(body,
			field(tagNoPartyIDs, "1"),
			field(tagPartyID, sub.PartyID),
			field(tagPartyIDSource, source),
			field(tagPartyRole, role),
		)
	}
	body = append(body, field(tagNoMDEntryTypes, itoa(len(sub.EntryTypes))))
	for _, et := range sub.EntryTypes {
		body = append(body, field(tagMDEntryType, et))
	}
	body = append(body, field(tagNoRelatedSym, itoa(len(sub.Symbols))))
	for _, sym := range sub.Symbols {
		body = append(body, field(tagSymbol, sym))
	}
	frame, err := b.encoder.Encode(b.header("V", seqNum), body)
	return frame, reqID, err
}

// SecurityListRequestEquity builds MsgType=x for the equity universe
// (Product=4, TradingSessionID=REG).
func (b *Builder) SecurityListRequestEquity(seqNum uint32) ([]byte, string, error) {
	return b.securityListRequest(seqNum, productEquityOrFutures, tradingSessionIDReg)
}

// SecurityListRequestIndex builds MsgType=x for the index universe
// (Product=5, TradingSessionID=REG).
func (b *Builder) SecurityListRequestIndex(seqNum uint32) ([]byte, string, error) {
	return b.securityListRequest(seqNum, productIndex, tradingSessionIDReg)
}

// SecurityListRequestFutures builds MsgType=x for the futures universe
// (Product=4, TradingSessionID=FUT).
func (b *Builder) SecurityListRequestFutures(seqNum uint32) ([]byte, string, error) {
	return b.securityListRequest(seqNum, productEquityOrFutures, tradingSessionIDFut)
}

func (b *Builder) securityListRequest(seqNum uint32, product, tradingSessionID string) ([]byte, string, error) {
	reqID := uuid.NewString()
	body := []codec.Field{
		field(tagSecurityReqID, reqID),
		field(tagSecurityListRequestType, securityListReqTypeAll),
		field(tagSymbol, symbolNA),
		field(tagProduct, product),
		field(tagTradingSessionID, tradingSessionID),
	}
	frame, err := b.encoder.Encode(b.header("x", seqNum), body)
	return frame, reqID, err
}

// TradingSessionStatusRequest builds MsgType=g for the regular session.
func (b *Builder) TradingSessionStatusRequest(seqNum uint32) ([]byte, string, error) {
	reqID := uuid.NewString()
	body := []codec.Field{
		field(tagTradSesReqID, reqID),
		field(tagSubscriptionRequestType, "0"), // snapshot only
		field(tagTradingSessionID, tradingSessionIDReg),
	}
	frame, err := b.encoder.Encode(b.header("g", seqNum), body)
	return frame, reqID, err
}
