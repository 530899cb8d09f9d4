package proto

import "go.uber.org/zap/zapcore"

// RequestHeader is the first bytes for all request packets sent after the
// connect handshake.
type RequestHeader struct {
	Xid    int32
	Opcode OpType
}

// MarshalLogObject renders the logging structure for the RequestHeader
func (h *RequestHeader) MarshalLogObject(kv zapcore.ObjectEncoder) error {
	kv.AddInt32("xid", h.Xid)
	kv.AddString("op", h.Opcode.String())
	return nil
}

// ConnectRequest is the packet bytes struct for a connection request. It is
// framed without a RequestHeader and must be answered before any other
// request is written.
type ConnectRequest struct {
	ProtocolVersion int32
	LastZxidSeen    int64
	TimeOut         int32
	SessionID       int64
	Passwd          []byte
}

// Request is one operation of the client vocabulary. Concrete types carry
// the packet bytes layout of their payload; the session core prepends the
// RequestHeader when it assigns the xid.
type Request interface {
	// Opcode returns the operation code the request is sent under.
	Opcode() OpType
}

// WatchMode selects where a triggered watch notification is delivered.
type WatchMode int32

const (
	// WatchNone leaves no watch behind.
	WatchNone WatchMode = iota
	// WatchGlobal delivers the notification on the session's default watch
	// channel.
	WatchGlobal
	// WatchCustom delivers the notification once on a caller-owned sink.
	WatchCustom
)

// Watch is the watch option carried by ExistsRequest, GetDataRequest and
// GetChildren2Request. On the wire it is a single boolean byte: set for
// WatchGlobal and WatchCustom, clear for WatchNone. The Custom sink never
// crosses the wire; the session core strips it before encoding and routes
// the matching notification back to it.
type Watch struct {
	Mode   WatchMode
	Custom chan<- WatcherEvent
}

// GlobalWatch asks for notification on the session's default watch channel.
func GlobalWatch() Watch {
	return Watch{Mode: WatchGlobal}
}

// CustomWatch asks for a single notification on sink.
func CustomWatch(sink chan<- WatcherEvent) Watch {
	return Watch{Mode: WatchCustom, Custom: sink}
}

// Encode writes the single watch byte.
func (w Watch) Encode(buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, ErrShortBuffer
	}
	if w.Mode == WatchNone {
		buf[0] = 0
	} else {
		buf[0] = 1
	}
	return 1, nil
}

// Decode reads the single watch byte. A set byte decodes as WatchGlobal;
// the custom sink is not wire data.
func (w *Watch) Decode(buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, ErrShortBuffer
	}
	if buf[0] != 0 {
		w.Mode = WatchGlobal
	} else {
		w.Mode = WatchNone
	}
	w.Custom = nil
	return 1, nil
}

// GetDataRequest reads the data of a node, optionally leaving a data watch.
type GetDataRequest struct {
	Path  string
	Watch Watch
}

// Opcode implements Request.
func (GetDataRequest) Opcode() OpType { return OpGetData }

// GetChildren2Request lists the children of a node, optionally leaving a
// child watch.
type GetChildren2Request struct {
	Path  string
	Watch Watch
}

// Opcode implements Request.
func (GetChildren2Request) Opcode() OpType { return OpGetChildren2 }

// ExistsRequest checks a node's existence, optionally leaving an exist
// watch. The watch fires for creation as well as for deletion and data
// changes, so it is kept even when the node does not exist yet.
type ExistsRequest struct {
	Path  string
	Watch Watch
}

// Opcode implements Request.
func (ExistsRequest) Opcode() OpType { return OpExists }

// CreateRequest creates a node.
type CreateRequest struct {
	Path  string
	Data  []byte
	ACL   []ACL
	Flags int32
}

// Opcode implements Request.
func (CreateRequest) Opcode() OpType { return OpCreate }

// DeleteRequest deletes a node if its version matches. Version -1 matches
// any version.
type DeleteRequest struct {
	Path    string
	Version int32
}

// Opcode implements Request.
func (DeleteRequest) Opcode() OpType { return OpDelete }

// SetDataRequest replaces the data of a node if its version matches.
type SetDataRequest struct {
	Path    string
	Data    []byte
	Version int32
}

// Opcode implements Request.
func (SetDataRequest) Opcode() OpType { return OpSetData }

// SyncRequest flushes the leader channel for a path so subsequent reads on
// this session observe writes acknowledged before the sync.
type SyncRequest struct {
	Path string
}

// Opcode implements Request.
func (SyncRequest) Opcode() OpType { return OpSync }

// PingRequest is the keepalive request. It carries no payload and is always
// sent under XidPing.
type PingRequest struct{}

// Opcode implements Request.
func (PingRequest) Opcode() OpType { return OpPing }

// Create flags.
const (
	FlagEphemeral int32 = 1 << iota
	FlagSequence
)

// Node permission bits for ACL entries.
const (
	PermRead int32 = 1 << iota
	PermWrite
	PermCreate
	PermDelete
	PermAdmin
)

// PermAll grants every node permission.
const PermAll = PermRead | PermWrite | PermCreate | PermDelete | PermAdmin

// ACL is a single access control entry attached to a node at create time.
type ACL struct {
	Perms  int32
	Scheme string
	ID     string
}

// WorldACL returns an ACL list granting perms to everyone.
func WorldACL(perms int32) []ACL {
	return []ACL{{Perms: perms, Scheme: "world", ID: "anyone"}}
}

// RequestStructForOp returns an empty request payload struct for decoding a
// request packet sent under op, or nil for ops outside the vocabulary.
func RequestStructForOp(op OpType) interface{} {
	switch op {
	case OpCreate:
		return &CreateRequest{}
	case OpDelete:
		return &DeleteRequest{}
	case OpExists:
		return &ExistsRequest{}
	case OpGetData:
		return &GetDataRequest{}
	case OpSetData:
		return &SetDataRequest{}
	case OpGetChildren2:
		return &GetChildren2Request{}
	case OpSync:
		return &SyncRequest{}
	case OpPing:
		return &PingRequest{}
	case OpCreateSession:
		return &ConnectRequest{}
	}
	return nil
}
