package zk

import "time"

const (
	// Reserved xids. Watch notifications and ping replies are demultiplexed
	// on these; 0 is only ever used by the close-session packet.
	xidWatcherEvent int32 = -1
	xidPing         int32 = -2

	// bufferSize bounds the length field of an inbound frame.
	bufferSize = 1536 * 1024

	protocolVersion int32 = 0

	// DefaultSessionTimeout is the session timeout negotiated when a dialer
	// is not configured with one.
	DefaultSessionTimeout = 30 * time.Second

	// DefaultPingInterval keeps an idle session alive well inside the
	// session timeout.
	DefaultPingInterval = DefaultSessionTimeout / 3

	defaultConnectTimeout = 5 * time.Second
)

// closePacket is the fixed close-session frame: int32 length 8, xid 0, and
// the close opcode -11. It is appended to the outbox directly, bypassing the
// per-request path.
var closePacket = []byte{
	0x00, 0x00, 0x00, 0x08,
	0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0xf5,
}

// emptyPassword is presented on the first connect, before the server has
// assigned session credentials.
var emptyPassword = make([]byte, 16)
