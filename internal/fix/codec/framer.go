package codec

import (
	"bytes"
	"fmt"
	"strconv"
)

// maxBufferSize bounds how much unframed data Framer will hold before it
// gives up waiting for a resync point and discards everything buffered.
// A legitimate PSX frame never approaches this size.
const maxBufferSize = 64 * 1024

var (
	beginStringPrefix = []byte("8=")
	bodyLengthPrefix  = []byte("9=")
	checksumPrefix    = []byte("10=")
)

// minTrailerLen is "10=" + three checksum digits + SOH.
const minTrailerLen = 7

// Framer extracts complete FIX frames from a byte stream that may deliver
// partial frames, multiple frames, or corrupted frames across arbitrary
// read boundaries. It never parses field semantics itself - that is the
// Parser's job - it only locates frame boundaries using BeginString(8) and
// BodyLength(9).
type Framer struct {
	buf []byte
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Push appends newly read bytes to the internal buffer.
func (f *Framer) Push(data []byte) {
	f.buf = append(f.buf, data...)
}

// Next returns the next complete frame found in the buffer.
//
// Three outcomes:
//   - (frame, nil): a complete frame was extracted and removed from the buffer.
//   - (nil, nil): not enough data buffered yet for a full frame; stop calling
//     Next until more data is pushed.
//   - (nil, err): a malformed segment was found and discarded; err wraps
//     ErrFrame. Callers should call Next again immediately, since later
//     frames in the buffer may still be well-formed.
func (f *Framer) Next() ([]byte, error) {
	if len(f.buf) == 0 {
		return nil, nil
	}

	if !bytes.HasPrefix(f.buf, beginStringPrefix) {
		idx := f.resyncFrom(1)
		if idx < 0 {
			if len(f.buf) > maxBufferSize {
				discarded := len(f.buf)
				f.buf = nil
				return nil, fmt.Errorf("%w: no BeginString found in %d buffered bytes, discarding", ErrFrame, discarded)
			}
			return nil, nil
		}
		discarded := idx
		f.buf = f.buf[idx:]
		return nil, fmt.Errorf("%w: discarded %d bytes before next BeginString", ErrFrame, discarded)
	}

	firstSOH := bytes.IndexByte(f.buf, SOH)
	if firstSOH < 0 {
		if len(f.buf) > maxBufferSize {
			return f.skipMalformed("BeginString field never terminated")
		}
		return nil, nil
	}

	bodyLenFieldStart := firstSOH + 1
	if !bytes.HasPrefix(f.buf[bodyLenFieldStart:], bodyLengthPrefix) {
		return f.skipMalformed("expected BodyLength(9) field after BeginString")
	}

	secondSOHRel := bytes.IndexByte(f.buf[bodyLenFieldStart:], SOH)
	if secondSOHRel < 0 {
		if len(f.buf) > maxBufferSize {
			return f.skipMalformed("BodyLength field never terminated")
		}
		return nil, nil
	}

	bodyLenValueStart := bodyLenFieldStart + len(bodyLengthPrefix)
	bodyLenValueEnd := bodyLenFieldStart + secondSOHRel
	bodyLen, err := strconv.Atoi(string(f.buf[bodyLenValueStart:bodyLenValueEnd]))
	if err != nil || bodyLen < 0 {
		return f.skipMalformed("non-numeric BodyLength(9) value")
	}

	bodyStart := bodyLenValueEnd + 1
	trailerStart := bodyStart + bodyLen
	totalLen := trailerStart + minTrailerLen

	if bodyLen > maxBufferSize {
		return f.skipMalformed("declared BodyLength exceeds maximum frame size")
	}
	if totalLen > len(f.buf) {
		return nil, nil
	}

	if !bytes.HasPrefix(f.buf[trailerStart:], checksumPrefix) {
		return f.skipMalformed("CheckSum(10) field not found at declared BodyLength boundary")
	}
	if f.buf[totalLen-1] != SOH {
		return f.skipMalformed("CheckSum(10) field not SOH-terminated")
	}

	frame := make([]byte, totalLen)
	copy(frame, f.buf[:totalLen])
	f.buf = f.buf[totalLen:]
	return frame, nil
}

// skipMalformed discards the current frame attempt, resyncing to the next
// BeginString occurrence if one is buffered, so a single corrupt frame
// never wedges frames that follow it.
func (f *Framer) skipMalformed(reason string) ([]byte, error) {
	idx := f.resyncFrom(1)
	if idx < 0 {
		idx = len(f.buf)
	}
	discarded := f.buf[:idx]
	f.buf = f.buf[idx:]
	return nil, fmt.Errorf("%w: %s (discarded %d bytes)", ErrFrame, reason, len(discarded))
}

// resyncFrom returns the absolute index of the next SOH-delimited
// BeginString occurrence at or after start, or -1 if none is buffered yet.
func (f *Framer) resyncFrom(start int) int {
	for i := start; i+len(beginStringPrefix) <= len(f.buf); i++ {
		if f.buf[i-1] == SOH && bytes.HasPrefix(f.buf[i:], beginStringPrefix) {
			return i
		}
	}
	return -1
}
