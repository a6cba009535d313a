// Package message builds outbound PSX profile FIX messages. Every
// constructor here produces a complete encoded frame through the codec
// package - nothing is hand-assembled as a raw string.
package message

// Tag numbers used across the outbound message kinds this connector
// builds. Header tags (8, 9, 35, 49, 56, 34, 52) are stamped by
// codec.Encoder and are not listed here.
const (
	tagEncryptMethod           = 98
	tagHeartBtInt              = 108
	tagTestReqID               = 112
	tagResetSeqNumFlag         = 141
	tagUsername                = 553
	tagPassword                = 554
	tagDefaultApplVerID        = 1137
	tagDefaultCstmApplVerID    = 1408
	tagOnBehalfOfCompID        = 115
	tagRawDataLength           = 95
	tagRawData                 = 96
	tagText                    = 58
	tagMDReqID                 = 262
	tagSubscriptionRequestType = 263
	tagMarketDepth             = 264
	tagMDUpdateType            = 265
	tagNoMDEntryTypes          = 267
	tagMDEntryType             = 269
	tagNoRelatedSym            = 146
	tagSymbol                  = 55
	tagSecurityReqID           = 320
	tagSecurityListRequestType = 559
	tagProduct                 = 460
	tagTradingSessionID        = 336
	tagTradSesReqID            = 335
	tagNoPartyIDs              = 453
	tagPartyID                 = 448
	tagPartyIDSource           = 447
	tagPartyRole               = 452
)

// PSX profile constant values (spec §6).
const (
	symbolNA               = "NA"
	tradingSessionIDReg    = "REG"
	tradingSessionIDFut    = "FUT"
	productEquityOrFutures = "4"
	productIndex           = "5"
	securityListReqTypeAll = "0"
)

// MDEntryType values understood by MarketDataRequest (bid/offer/trade).
const (
	MDEntryTypeBid   = "0"
	MDEntryTypeOffer = "1"
	MDEntryTypeTrade = "2"
)
