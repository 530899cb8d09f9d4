package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kellymclaughlin/tokio-zookeeper/zkerrors"
)

func TestEncodeFrameGetDataWithWatch(t *testing.T) {
	frame, err := EncodeFrame(
		&RequestHeader{Xid: 1, Opcode: OpGetData},
		&GetDataRequest{Path: "/foo", Watch: GlobalWatch()},
	)
	require.NoError(t, err)

	want := []byte{
		0x00, 0x00, 0x00, 0x11, // length 17
		0x00, 0x00, 0x00, 0x01, // xid 1
		0x00, 0x00, 0x00, 0x04, // opcode getData
		0x00, 0x00, 0x00, 0x04, '/', 'f', 'o', 'o',
		0x01, // watch bit set
	}
	assert.Equal(t, want, frame)
}

func TestEncodeFrameWatchBitClear(t *testing.T) {
	frame, err := EncodeFrame(
		&RequestHeader{Xid: 2, Opcode: OpExists},
		&ExistsRequest{Path: "/foo"},
	)
	require.NoError(t, err)
	assert.Equal(t, byte(0), frame[len(frame)-1])
}

func TestCustomWatchEncodesAsSet(t *testing.T) {
	sink := make(chan WatcherEvent, 1)
	var buf [1]byte
	n, err := CustomWatch(sink).Encode(buf[:])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(1), buf[0])

	var w Watch
	_, err = w.Decode(buf[:])
	require.NoError(t, err)
	assert.Equal(t, WatchGlobal, w.Mode)
	assert.Nil(t, w.Custom)
}

func TestCreateRequestRoundTrip(t *testing.T) {
	req := &CreateRequest{
		Path:  "/foo",
		Data:  []byte("bean"),
		ACL:   WorldACL(PermAll),
		Flags: FlagEphemeral,
	}
	frame, err := EncodeFrame(req)
	require.NoError(t, err)

	got, ok := RequestStructForOp(OpCreate).(*CreateRequest)
	require.True(t, ok)
	n, err := DecodePacket(frame[4:], got)
	require.NoError(t, err)
	assert.Equal(t, len(frame)-4, n)
	assert.Equal(t, req, got)
}

func TestConnectHandshakeRoundTrip(t *testing.T) {
	req := &ConnectRequest{
		ProtocolVersion: 0,
		LastZxidSeen:    42,
		TimeOut:         30000,
		SessionID:       0,
		Passwd:          make([]byte, 16),
	}
	frame, err := EncodeFrame(req)
	require.NoError(t, err)
	// int32 len + 4+8+4+8 fixed fields + 4+16 passwd
	assert.Len(t, frame, 4+28+16)

	got := &ConnectRequest{}
	_, err = DecodePacket(frame[4:], got)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestEncodeNilByteSlice(t *testing.T) {
	frame, err := EncodeFrame(&ConnectRequest{})
	require.NoError(t, err)
	// nil Passwd is written as length -1 and decodes back to nil
	got := &ConnectRequest{Passwd: []byte("scratch")}
	_, err = DecodePacket(frame[4:], got)
	require.NoError(t, err)
	assert.Nil(t, got.Passwd)
}

func TestDecodeResponseHeader(t *testing.T) {
	buf := []byte{
		0x00, 0x00, 0x00, 0x03, // xid 3
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x09, // zxid 9
		0xff, 0xff, 0xff, 0x9b, // err -101 (no node)
	}
	header := &ResponseHeader{}
	n, err := DecodePacket(buf, header)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, &ResponseHeader{Xid: 3, Zxid: 9, Err: zkerrors.CodeNoNode}, header)
}

func TestDecodeShortBuffer(t *testing.T) {
	header := &ResponseHeader{}
	_, err := DecodePacket([]byte{0x00, 0x00}, header)
	assert.Equal(t, ErrShortBuffer, err)
}

func TestEncodeUnhandledFieldType(t *testing.T) {
	_, err := EncodeFrame(&struct{ F float64 }{F: 1.5})
	assert.Equal(t, ErrUnhandledFieldType, err)
}

func TestEncodeFrameGrowsBuffer(t *testing.T) {
	data := make([]byte, 4096)
	frame, err := EncodeFrame(&SetDataRequest{Path: "/big", Data: data, Version: -1})
	require.NoError(t, err)

	got := &SetDataRequest{}
	_, err = DecodePacket(frame[4:], got)
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, int32(-1), got.Version)
}
