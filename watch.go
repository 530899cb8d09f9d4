package zk

import (
	"go.uber.org/zap/zapcore"

	"github.com/kellymclaughlin/tokio-zookeeper/proto"
)

// watchType classifies which server-side watch a request leaves behind.
type watchType int

const (
	watchTypeData watchType = iota
	watchTypeExist
	watchTypeChild
)

var watchTypeNames = map[watchType]string{
	watchTypeData:  "data",
	watchTypeExist: "exist",
	watchTypeChild: "child",
}

func (w watchType) String() string {
	if name, ok := watchTypeNames[w]; ok {
		return name
	}
	return "unknown"
}

// MarshalLogObject renders the logging structure for the watchType
func (w watchType) MarshalLogObject(kv zapcore.ObjectEncoder) error {
	kv.AddInt("code", int(w))
	kv.AddString("name", w.String())
	return nil
}

// watchPathType keys the installed-watcher table.
type watchPathType struct {
	path  string
	wType watchType
}

// watchRegistration is a pending watcher entry: where to deliver the
// notification once the server confirms the watch, keyed by the xid of the
// request that asked for it.
type watchRegistration struct {
	path  string
	sink  chan<- proto.WatcherEvent
	wType watchType
}

// stripCustomWatch rewrites a custom watch to a global one, since the wire
// form is a single boolean, and returns the registration to track under the
// request's xid. Requests without a custom watch pass through untouched with
// a nil registration.
func stripCustomWatch(req proto.Request) *watchRegistration {
	switch r := req.(type) {
	case *proto.GetDataRequest:
		if r.Watch.Mode == proto.WatchCustom {
			reg := &watchRegistration{path: r.Path, sink: r.Watch.Custom, wType: watchTypeData}
			r.Watch = proto.GlobalWatch()
			return reg
		}
	case *proto.ExistsRequest:
		if r.Watch.Mode == proto.WatchCustom {
			reg := &watchRegistration{path: r.Path, sink: r.Watch.Custom, wType: watchTypeExist}
			r.Watch = proto.GlobalWatch()
			return reg
		}
	case *proto.GetChildren2Request:
		if r.Watch.Mode == proto.WatchCustom {
			reg := &watchRegistration{path: r.Path, sink: r.Watch.Custom, wType: watchTypeChild}
			r.Watch = proto.GlobalWatch()
			return reg
		}
	}
	return nil
}

// watchPathTypes lists the installed-watcher keys a server event fires.
func watchPathTypes(ev proto.WatcherEvent) []watchPathType {
	switch ev.Type {
	case proto.EventNodeCreated:
		return []watchPathType{{ev.Path, watchTypeExist}}
	case proto.EventNodeDeleted:
		return []watchPathType{
			{ev.Path, watchTypeData},
			{ev.Path, watchTypeExist},
			{ev.Path, watchTypeChild},
		}
	case proto.EventNodeDataChanged:
		return []watchPathType{
			{ev.Path, watchTypeData},
			{ev.Path, watchTypeExist},
		}
	case proto.EventNodeChildrenChanged:
		return []watchPathType{{ev.Path, watchTypeChild}}
	}
	return nil
}
