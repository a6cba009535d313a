package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHeader(seq int) Header {
	return Header{
		BeginString:  "FIXT.1.1",
		MsgType:      "0",
		SenderCompID: "realtime",
		TargetCompID: "NMDUFISQ0001",
		MsgSeqNum:    seq,
	}
}

// P1: encode then decode round trips to the same logical fields.
func TestEncodeDecode_RoundTrip(t *testing.T) {
	enc := NewEncoder()
	frame, err := enc.Encode(sampleHeader(1), []Field{{Tag: 112, Value: "test-req-1"}})
	require.NoError(t, err)

	dec := NewParser()
	msg, err := dec.Parse(frame)
	require.NoError(t, err)

	assert.Equal(t, "0", msg.MsgType)
	assert.Equal(t, "FIXT.1.1", msg.GetString(8))
	assert.Equal(t, "realtime", msg.GetString(49))
	assert.Equal(t, "NMDUFISQ0001", msg.GetString(56))
	assert.Equal(t, "1", msg.GetString(34))
	assert.Equal(t, "test-req-1", msg.GetString(112))
	assert.True(t, msg.HasTag(52))
}

// P2: checksum is the mod-256 sum of every byte before "10=".
func TestParse_ChecksumMismatchRejected(t *testing.T) {
	enc := NewEncoder()
	frame, err := enc.Encode(sampleHeader(1), nil)
	require.NoError(t, err)

	corrupted := bytes.Replace(frame, []byte("49=realtime\x01"), []byte("49=realt1me\x01"), 1)
	require.NotEqual(t, frame, corrupted)

	_, err = NewParser().Parse(corrupted)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrame)
}

// P3: BodyLength counts bytes from after "9=...<SOH>" through the SOH
// preceding "10=".
func TestParse_BodyLengthMismatchRejected(t *testing.T) {
	enc := NewEncoder()
	frame, err := enc.Encode(sampleHeader(1), nil)
	require.NoError(t, err)

	soh := byte(SOH)
	idx := bytes.Index(frame, []byte("9="))
	end := bytes.IndexByte(frame[idx:], soh) + idx
	declared := frame[idx+2 : end]

	tampered := make([]byte, len(frame))
	copy(tampered, frame)
	// Replace the declared BodyLength with a wrong-but-same-width value.
	wrong := []byte(declared)
	if wrong[0] == '9' {
		wrong[0] = '1'
	} else {
		wrong[0]++
	}
	copy(tampered[idx+2:end], wrong)

	_, err = NewParser().Parse(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrame)
}

func TestParse_MissingEqualsSign(t *testing.T) {
	_, err := NewParser().Parse([]byte("8=FIXT.1.1\x019XYZ\x01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrame)
}

func TestParse_NonNumericTag(t *testing.T) {
	_, err := NewParser().Parse([]byte("8=FIXT.1.1\x01AB=1\x01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrame)
}

func TestFramer_PartialFrameAcrossReads(t *testing.T) {
	enc := NewEncoder()
	frame, err := enc.Encode(sampleHeader(1), nil)
	require.NoError(t, err)

	f := NewFramer()
	f.Push(frame[:len(frame)/2])

	got, err := f.Next()
	require.NoError(t, err)
	assert.Nil(t, got)

	f.Push(frame[len(frame)/2:])
	got, err = f.Next()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, frame, got)
}

func TestFramer_MultipleFramesInOneRead(t *testing.T) {
	enc := NewEncoder()
	a, err := enc.Encode(sampleHeader(1), nil)
	require.NoError(t, err)
	b, err := enc.Encode(sampleHeader(2), nil)
	require.NoError(t, err)

	f := NewFramer()
	f.Push(append(append([]byte{}, a...), b...))

	got1, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, a, got1)

	got2, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, b, got2)

	got3, err := f.Next()
	require.NoError(t, err)
	assert.Nil(t, got3)
}

// A malformed frame sitting between two valid frames must not prevent
// either valid frame from being delivered.
func TestFramer_MalformedFrameBetweenValidFrames(t *testing.T) {
	enc := NewEncoder()
	a, err := enc.Encode(sampleHeader(1), nil)
	require.NoError(t, err)
	b, err := enc.Encode(sampleHeader(2), nil)
	require.NoError(t, err)

	garbage := []byte("garbage-not-a-fix-frame\x01")

	f := NewFramer()
	var stream []byte
	stream = append(stream, a...)
	stream = append(stream, garbage...)
	stream = append(stream, b...)
	f.Push(stream)

	got1, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, a, got1)

	got2, err := f.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrame)
	assert.Nil(t, got2)

	got3, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, b, got3)
}

func TestFramer_EmptyBufferReturnsNilNil(t *testing.T) {
	f := NewFramer()
	got, err := f.Next()
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestMessage_GroupExtraction_MarketDataEntries(t *testing.T) {
	enc := NewEncoder()
	body := []Field{
		{Tag: 55, Value: "LUCK"},
		{Tag: 268, Value: "2"},
		{Tag: 269, Value: "0"},
		{Tag: 270, Value: "100.5"},
		{Tag: 271, Value: "10"},
		{Tag: 269, Value: "1"},
		{Tag: 270, Value: "100.6"},
		{Tag: 271, Value: "8"},
	}
	frame, err := enc.Encode(Header{
		BeginString: "FIXT.1.1", MsgType: "W", SenderCompID: "NMDUFISQ0001",
		TargetCompID: "realtime", MsgSeqNum: 5,
	}, body)
	require.NoError(t, err)

	msg, err := NewParser().Parse(frame)
	require.NoError(t, err)

	entries, err := msg.Group(268, 269)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "0", entries[0][269])
	assert.Equal(t, "100.5", entries[0][270])
	assert.Equal(t, "10", entries[0][271])
	assert.Equal(t, "1", entries[1][269])
	assert.Equal(t, "100.6", entries[1][270])
	assert.Equal(t, "8", entries[1][271])
}

func TestMessage_GroupExtraction_SecurityList(t *testing.T) {
	enc := NewEncoder()
	body := []Field{
		{Tag: 320, Value: "req-1"},
		{Tag: 460, Value: "4"},
		{Tag: 146, Value: "2"},
		{Tag: 55, Value: "LUCK"},
		{Tag: 167, Value: "CS"},
		{Tag: 55, Value: "OGDC"},
		{Tag: 167, Value: "CS"},
	}
	frame, err := enc.Encode(Header{
		BeginString: "FIXT.1.1", MsgType: "y", SenderCompID: "NMDUFISQ0001",
		TargetCompID: "realtime", MsgSeqNum: 3,
	}, body)
	require.NoError(t, err)

	msg, err := NewParser().Parse(frame)
	require.NoError(t, err)

	entries, err := msg.Group(146, 55)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "LUCK", entries[0][55])
	assert.Equal(t, "OGDC", entries[1][55])
}

func TestMessage_Group_AbsentCountTagReturnsNil(t *testing.T) {
	msg := &Message{Fields: map[int]string{35: "W"}, Raw: []Field{{Tag: 35, Value: "W"}}}
	entries, err := msg.Group(268, 269)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestEncode_MissingHeaderField(t *testing.T) {
	_, err := NewEncoder().Encode(Header{MsgType: "0"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrame))
}
