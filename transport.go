package zk

import (
	"io"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
	"github.com/kellymclaughlin/tokio-zookeeper/zkerrors"
)

// Transport carries one established, authenticated session byte stream.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer produces a fresh Transport for a session. The reconnect policy,
// address choice, and re-authentication live behind it.
type Dialer interface {
	Dial() (Transport, error)
}

// DialerFunc adapts a plain function into a Dialer.
type DialerFunc func() (Transport, error)

// Dial implements Dialer.
func (f DialerFunc) Dial() (Transport, error) { return f() }

// BackoffConfig shapes TCPDialer's retry delays.
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// nextBackoffDelay returns the retry delay for attempt N (1-based).
func nextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// TCPDialer dials the ZooKeeper address over TCP and runs the session
// handshake. The first successful handshake records the server-assigned
// session id and password; later dials present them to re-attach the same
// session. A session has at most one dial in flight, so TCPDialer carries no
// locking.
type TCPDialer struct {
	Addr           string
	SessionTimeout time.Duration
	ConnectTimeout time.Duration
	// MaxAttempts bounds how many connect attempts one Dial call makes.
	// Zero means a single attempt.
	MaxAttempts int
	Backoff     BackoffConfig
	Logger      *zap.Logger

	sessionID int64
	passwd    []byte
	lastZxid  int64
	rng       *rand.Rand
}

// Dial implements Dialer.
func (d *TCPDialer) Dial() (Transport, error) {
	lg := d.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	if d.SessionTimeout <= 0 {
		d.SessionTimeout = DefaultSessionTimeout
	}
	if d.ConnectTimeout <= 0 {
		d.ConnectTimeout = defaultConnectTimeout
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	attempts := d.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(nextBackoffDelay(d.Backoff, attempt, d.rng))
		}
		conn, err := net.DialTimeout("tcp", d.Addr, d.ConnectTimeout)
		if err != nil {
			lastErr = errors.Wrapf(err, "dial %v", d.Addr)
			lg.Warn("dial failed", zap.String("addr", d.Addr), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		t, err := d.handshake(conn)
		if err != nil {
			conn.Close()
			lastErr = err
			lg.Warn("handshake failed", zap.String("addr", d.Addr), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		lg.Debug("session established", zap.String("addr", d.Addr), zap.Int64("sessionID", d.sessionID))
		return t, nil
	}
	return nil, lastErr
}

func (d *TCPDialer) handshake(conn net.Conn) (Transport, error) {
	passwd := d.passwd
	if passwd == nil {
		passwd = emptyPassword
	}
	frame, err := proto.EncodeFrame(&proto.ConnectRequest{
		ProtocolVersion: protocolVersion,
		LastZxidSeen:    d.lastZxid,
		TimeOut:         int32(d.SessionTimeout / time.Millisecond),
		SessionID:       d.sessionID,
		Passwd:          passwd,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode connect request")
	}
	if _, err := conn.Write(frame); err != nil {
		return nil, errors.Wrap(err, "write connect request")
	}

	buf, err := readFrame(conn)
	if err != nil {
		return nil, errors.Wrap(err, "read connect response")
	}
	res := &proto.ConnectResponse{}
	if _, err := proto.DecodePacket(buf, res); err != nil {
		return nil, errors.Wrap(err, "decode connect response")
	}
	if res.SessionID == 0 {
		// the server refused the presented session; forget it so the next
		// attempt starts fresh
		d.sessionID, d.passwd, d.lastZxid = 0, nil, 0
		return nil, zkerrors.ErrSessionExpired
	}
	d.sessionID = res.SessionID
	d.passwd = res.Passwd
	return conn, nil
}
