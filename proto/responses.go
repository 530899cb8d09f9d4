package proto

import (
	"github.com/kellymclaughlin/tokio-zookeeper/zkerrors"
	"go.uber.org/zap/zapcore"
)

// ResponseHeader is the first bytes for all ZK response packets sent after
// the connect handshake.
type ResponseHeader struct {
	Xid  int32
	Zxid int64
	Err  zkerrors.Code
}

// MarshalLogObject renders the logging structure for the ResponseHeader
func (h *ResponseHeader) MarshalLogObject(kv zapcore.ObjectEncoder) error {
	kv.AddInt32("xid", h.Xid)
	kv.AddInt64("zxid", h.Zxid)
	kv.AddInt32("errorCode", int32(h.Err))
	kv.AddString("errorMsg", zkerrors.Message(h.Err))
	return nil
}

// ConnectResponse is the packet from ZK server connection request. Like
// ConnectRequest it is framed without a header. A zero SessionID means the
// server refused to re-attach the presented session.
type ConnectResponse struct {
	ProtocolVersion int32
	TimeOut         int32
	SessionID       int64
	Passwd          []byte
}

// Stat is the znode metadata returned alongside most successful replies.
type Stat struct {
	Czxid          int64
	Mzxid          int64
	Ctime          int64
	Mtime          int64
	Version        int32
	Cversion       int32
	Aversion       int32
	EphemeralOwner int64
	DataLength     int32
	NumChildren    int32
	Pzxid          int64
}

// CreateResponse carries the path of the created node, which differs from
// the requested path for sequential nodes.
type CreateResponse struct {
	Path string
}

// DeleteResponse has no payload.
type DeleteResponse struct{}

// ExistsResponse carries the node's Stat.
type ExistsResponse struct {
	Stat Stat
}

// GetDataResponse carries the node's data and Stat.
type GetDataResponse struct {
	Data []byte
	Stat Stat
}

// SetDataResponse carries the node's Stat after the write.
type SetDataResponse struct {
	Stat Stat
}

// GetChildren2Response carries the child names and the parent's Stat.
type GetChildren2Response struct {
	Children []string
	Stat     Stat
}

// SyncResponse echoes the synced path.
type SyncResponse struct {
	Path string
}

// PingResponse has no payload.
type PingResponse struct{}

// EventType is the kind of change a watch notification reports.
type EventType int32

const (
	// EventSession marks the synthetic events the client itself emits on the
	// default watch channel around connection-state changes.
	EventSession EventType = -1

	EventNodeCreated         EventType = 1
	EventNodeDeleted         EventType = 2
	EventNodeDataChanged     EventType = 3
	EventNodeChildrenChanged EventType = 4
)

var eventNames = map[EventType]string{
	EventSession:             "session",
	EventNodeCreated:         "nodeCreated",
	EventNodeDeleted:         "nodeDeleted",
	EventNodeDataChanged:     "nodeDataChanged",
	EventNodeChildrenChanged: "nodeChildrenChanged",
}

func (e EventType) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// State is the session state carried by watch notifications.
type State int32

const (
	StateExpired           State = -112
	StateDisconnected      State = 0
	StateSyncConnected     State = 3
	StateAuthFailed        State = 4
	StateConnectedReadOnly State = 5
	// StateHasSession is a client-side state: the session handshake finished
	// and requests may flow again.
	StateHasSession State = 101
)

var stateNames = map[State]string{
	StateExpired:           "expired",
	StateDisconnected:      "disconnected",
	StateSyncConnected:     "syncConnected",
	StateAuthFailed:        "authFailed",
	StateConnectedReadOnly: "connectedReadOnly",
	StateHasSession:        "hasSession",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// WatcherEvent is the payload of an unsolicited notification packet (xid -1),
// and the value delivered on watch channels.
type WatcherEvent struct {
	Type  EventType
	State State
	Path  string
}

// MarshalLogObject renders the logging structure for the WatcherEvent
func (e *WatcherEvent) MarshalLogObject(kv zapcore.ObjectEncoder) error {
	kv.AddString("type", e.Type.String())
	kv.AddString("state", e.State.String())
	kv.AddString("path", e.Path)
	return nil
}

// ResponseStructForOp returns an empty response payload struct for decoding
// the body of a reply to op, or nil for ops outside the vocabulary.
func ResponseStructForOp(op OpType) interface{} {
	switch op {
	case OpCreate:
		return &CreateResponse{}
	case OpDelete:
		return &DeleteResponse{}
	case OpExists:
		return &ExistsResponse{}
	case OpGetData:
		return &GetDataResponse{}
	case OpSetData:
		return &SetDataResponse{}
	case OpGetChildren2:
		return &GetChildren2Response{}
	case OpSync:
		return &SyncResponse{}
	case OpPing:
		return &PingResponse{}
	case OpCreateSession:
		return &ConnectResponse{}
	}
	return nil
}
