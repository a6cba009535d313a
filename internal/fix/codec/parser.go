package codec

import (
	"bytes"
	"fmt"
	"strconv"
)

// Parser turns a single, already-framed byte slice (as produced by Framer)
// into a Message. It is stateless and safe for concurrent use; all state
// lives in the frame being parsed.
type Parser struct{}

// NewParser returns a ready-to-use Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse validates and decodes one complete FIX frame. It verifies
// BodyLength(9) and CheckSum(10) against the actual bytes rather than
// trusting the declared values, so a frame that merely looks well-formed
// but was corrupted in transit is rejected as ErrFrame.
func (p *Parser) Parse(frame []byte) (*Message, error) {
	msg := &Message{
		Fields: make(map[int]string, 32),
		Raw:    make([]Field, 0, 32),
	}

	pos := 0
	bodyLengthFieldEnd := -1
	checksumFieldStart := -1

	for pos < len(frame) {
		eq := bytes.IndexByte(frame[pos:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: missing '=' at offset %d", ErrFrame, pos)
		}
		eq += pos

		tag, err := strconv.Atoi(string(frame[pos:eq]))
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric tag %q: %v", ErrFrame, frame[pos:eq], err)
		}

		valStart := eq + 1
		sohRel := bytes.IndexByte(frame[valStart:], SOH)
		if sohRel < 0 {
			return nil, fmt.Errorf("%w: unterminated field at tag %d", ErrFrame, tag)
		}
		valEnd := valStart + sohRel
		value := string(frame[valStart:valEnd])

		msg.Raw = append(msg.Raw, Field{Tag: tag, Value: value})
		msg.Fields[tag] = value

		switch tag {
		case 9:
			bodyLengthFieldEnd = valEnd + 1
		case 10:
			checksumFieldStart = pos
		}

		pos = valEnd + 1
	}

	if !msg.HasTag(8) {
		return nil, fmt.Errorf("%w: missing BeginString(8)", ErrFrame)
	}
	bodyLenStr, ok := msg.Get(9)
	if !ok {
		return nil, fmt.Errorf("%w: missing BodyLength(9)", ErrFrame)
	}
	msgType, ok := msg.Get(35)
	if !ok {
		return nil, fmt.Errorf("%w: missing MsgType(35)", ErrFrame)
	}
	msg.MsgType = msgType
	checksumStr, ok := msg.Get(10)
	if !ok {
		return nil, fmt.Errorf("%w: missing CheckSum(10)", ErrFrame)
	}
	if bodyLengthFieldEnd < 0 || checksumFieldStart < 0 || checksumFieldStart < bodyLengthFieldEnd {
		return nil, fmt.Errorf("%w: malformed header/trailer layout", ErrFrame)
	}

	bodyLen, err := strconv.Atoi(bodyLenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid BodyLength value %q: %v", ErrFrame, bodyLenStr, err)
	}
	if actual := checksumFieldStart - bodyLengthFieldEnd; actual != bodyLen {
		return nil, fmt.Errorf("%w: BodyLength mismatch: declared=%d actual=%d", ErrFrame, bodyLen, actual)
	}

	checksum, err := strconv.Atoi(checksumStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CheckSum value %q: %v", ErrFrame, checksumStr, err)
	}
	sum := 0
	for i := 0; i < checksumFieldStart; i++ {
		sum += int(frame[i])
	}
	if actual := sum % 256; actual != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch: declared=%d actual=%d", ErrFrame, checksum, actual)
	}

	return msg, nil
}
