package zkerrors

import "errors"

// Code is the error number carried in the Err field of every ZooKeeper
// reply header. Zero means success; negative values are defined by the
// server, per ZooDefs.
type Code int32

const (
	// CodeOk is the OK code from ZK reply headers.
	CodeOk Code = 0
	// System and server-side errors
	CodeSystemError          Code = -1
	CodeRuntimeInconsistency Code = -2
	CodeDataInconsistency    Code = -3
	CodeConnectionLoss       Code = -4
	CodeMarshallingError     Code = -5
	CodeUnimplemented        Code = -6
	CodeOperationTimeout     Code = -7
	CodeBadArguments         Code = -8
	CodeInvalidState         Code = -9

	// API errors
	CodeAPIError                Code = -100
	CodeNoNode                  Code = -101 // *
	CodeNoAuth                  Code = -102
	CodeBadVersion              Code = -103 // *
	CodeNoChildrenForEphemerals Code = -108
	CodeNodeExists              Code = -110 // *
	CodeNotEmpty                Code = -111
	CodeSessionExpired          Code = -112
	CodeInvalidCallback         Code = -113
	CodeInvalidACL              Code = -114
	CodeAuthFailed              Code = -115
	CodeClosing                 Code = -116
	CodeNothing                 Code = -117
	CodeSessionMoved            Code = -118
)

// Sentinel errors for the codes callers are expected to branch on. A reply
// whose header carries one of these codes resolves to the matching value, so
// errors.Is works across the wire boundary.
var (
	ErrConnectionLoss          = errors.New("zk: connection loss")
	ErrMarshallingError        = errors.New("zk: error while marshalling or unmarshalling data")
	ErrUnimplemented           = errors.New("zk: operation is unimplemented")
	ErrOperationTimeout        = errors.New("zk: operation timeout")
	ErrBadArguments            = errors.New("zk: invalid arguments")
	ErrAPIError                = errors.New("zk: api error")
	ErrNoNode                  = errors.New("zk: node does not exist")
	ErrNoAuth                  = errors.New("zk: not authenticated")
	ErrBadVersion              = errors.New("zk: version conflict")
	ErrNoChildrenForEphemerals = errors.New("zk: ephemeral nodes may not have children")
	ErrNodeExists              = errors.New("zk: node already exists")
	ErrNotEmpty                = errors.New("zk: node has children")
	ErrSessionExpired          = errors.New("zk: session has been expired by the server")
	ErrInvalidACL              = errors.New("zk: invalid ACL specified")
	ErrAuthFailed              = errors.New("zk: client authentication failed")
	ErrClosing                 = errors.New("zk: zookeeper is closing")
	ErrNothing                 = errors.New("zk: no server responsees to process")
	ErrSessionMoved            = errors.New("zk: session moved to another server, so operation is ignored")
	ErrUnknown                 = errors.New("zk: unknown error")
)

var errCodeToString = map[Code]string{
	CodeOk:                      "",
	CodeConnectionLoss:          "connection loss",
	CodeMarshallingError:        "error while marshalling or unmarshalling data",
	CodeAPIError:                "api error",
	CodeNoNode:                  "node does not exist",
	CodeNoAuth:                  "not authenticated",
	CodeBadVersion:              "version conflict",
	CodeNoChildrenForEphemerals: "ephemeral nodes may not have children",
	CodeNodeExists:              "node already exists",
	CodeNotEmpty:                "node has children",
	CodeSessionExpired:          "session has been expired by the server",
	CodeInvalidACL:              "invalid ACL specified",
	CodeAuthFailed:              "client authentication failed",
	CodeClosing:                 "zookeeper is closing",
	CodeNothing:                 "no server responsees to process",
	CodeSessionMoved:            "session moved to another server, so operation is ignored",
}

var errCodeToError = map[Code]error{
	CodeOk:                      nil,
	CodeConnectionLoss:          ErrConnectionLoss,
	CodeMarshallingError:        ErrMarshallingError,
	CodeUnimplemented:           ErrUnimplemented,
	CodeOperationTimeout:        ErrOperationTimeout,
	CodeBadArguments:            ErrBadArguments,
	CodeAPIError:                ErrAPIError,
	CodeNoNode:                  ErrNoNode,
	CodeNoAuth:                  ErrNoAuth,
	CodeBadVersion:              ErrBadVersion,
	CodeNoChildrenForEphemerals: ErrNoChildrenForEphemerals,
	CodeNodeExists:              ErrNodeExists,
	CodeNotEmpty:                ErrNotEmpty,
	CodeSessionExpired:          ErrSessionExpired,
	CodeInvalidACL:              ErrInvalidACL,
	CodeAuthFailed:              ErrAuthFailed,
	CodeClosing:                 ErrClosing,
	CodeNothing:                 ErrNothing,
	CodeSessionMoved:            ErrSessionMoved,
}

// Message converts the ZK error code to a message.
func Message(c Code) string {
	if msg, ok := errCodeToString[c]; ok {
		return msg
	}
	return "unknown error"
}

// Error maps a reply code to its sentinel error. CodeOk maps to nil; codes
// without a sentinel map to ErrUnknown.
func Error(c Code) error {
	if err, ok := errCodeToError[c]; ok {
		return err
	}
	return ErrUnknown
}
