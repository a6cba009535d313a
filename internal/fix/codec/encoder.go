package codec

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Header carries the fixed-order header fields every outbound message
// shares. Encode stamps SendingTime itself; callers never set it.
type Header struct {
	BeginString  string
	MsgType      string
	SenderCompID string
	TargetCompID string
	MsgSeqNum    int
}

// Encoder serializes a header and an ordered body into a complete,
// checksummed FIX frame. It is stateless and safe for concurrent use.
type Encoder struct{}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode builds a complete wire frame in the fixed field order: BeginString,
// BodyLength, MsgType, SenderCompID, TargetCompID, MsgSeqNum, SendingTime,
// then body in caller-supplied order, then CheckSum.
func (e *Encoder) Encode(h Header, body []Field) ([]byte, error) {
	if h.BeginString == "" || h.MsgType == "" || h.SenderCompID == "" || h.TargetCompID == "" {
		return nil, fmt.Errorf("%w: incomplete header", ErrFrame)
	}

	var bodyBuf bytes.Buffer
	writeField(&bodyBuf, 35, h.MsgType)
	writeField(&bodyBuf, 49, h.SenderCompID)
	writeField(&bodyBuf, 56, h.TargetCompID)
	writeFieldInt(&bodyBuf, 34, h.MsgSeqNum)
	writeField(&bodyBuf, 52, time.Now().UTC().Format(FIXTimeLayout))
	for _, f := range body {
		writeField(&bodyBuf, f.Tag, f.Value)
	}

	var out bytes.Buffer
	writeField(&out, 8, h.BeginString)
	writeFieldInt(&out, 9, bodyBuf.Len())
	out.Write(bodyBuf.Bytes())

	sum := 0
	for _, b := range out.Bytes() {
		sum += int(b)
	}
	fmt.Fprintf(&out, "10=%03d\x01", sum%256)

	return out.Bytes(), nil
}

func writeField(buf *bytes.Buffer, tag int, value string) {
	buf.WriteString(strconv.Itoa(tag))
	buf.WriteByte('=')
	buf.WriteString(value)
	buf.WriteByte(SOH)
}

func writeFieldInt(buf *bytes.Buffer, tag, value int) {
	writeField(buf, tag, strconv.Itoa(value))
}
