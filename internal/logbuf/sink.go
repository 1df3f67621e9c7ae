// internal/logbuf/sink.go
package logbuf

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

const (
	DefaultCapacity      = 100
	DefaultDebugCapacity = 500
)

const (
	SeverityInfo  = "info"
	SeverityError = "error"
)

type store struct {
	main  *Buffer
	debug *Buffer
	now   func() time.Time
}

// Sink is a logr.LogSink that records every line it is given and passes
// it on to a delegate. Level 0 lines and errors land in the main buffer;
// the debug buffer keeps everything. Level filtering is left to the caller
// (klog checks -v before the sink sees a line).
type Sink struct {
	delegate logr.LogSink
	store    *store
	name     string
	values   []interface{}
}

var (
	_ logr.LogSink          = (*Sink)(nil)
	_ logr.CallDepthLogSink = (*Sink)(nil)
)

// NewSink returns a sink teeing into delegate. A nil delegate only records.
func NewSink(delegate logr.LogSink, capacity, debugCapacity int) *Sink {
	return &Sink{
		delegate: delegate,
		store: &store{
			main:  NewBuffer(capacity),
			debug: NewBuffer(debugCapacity),
			now:   time.Now,
		},
	}
}

// Logs returns the newest n main entries, or the debug entries when debug
// is set. n <= 0 means all.
func (s *Sink) Logs(debug bool, n int) []Entry {
	if debug {
		return s.store.debug.Tail(n)
	}
	return s.store.main.Tail(n)
}

// ---- logr.LogSink ----

func (s *Sink) Init(info logr.RuntimeInfo) {
	if s.delegate != nil {
		info.CallDepth++
		s.delegate.Init(info)
	}
}

func (s *Sink) Enabled(level int) bool { return true }

func (s *Sink) Info(level int, msg string, kv ...interface{}) {
	s.record(Entry{Level: level, Severity: SeverityInfo, Message: msg}, kv)
	if s.delegate != nil {
		s.delegate.Info(level, msg, kv...)
	}
}

func (s *Sink) Error(err error, msg string, kv ...interface{}) {
	e := Entry{Severity: SeverityError, Message: msg}
	if err != nil {
		e.Error = err.Error()
	}
	s.record(e, kv)
	if s.delegate != nil {
		s.delegate.Error(err, msg, kv...)
	}
}

func (s *Sink) WithName(name string) logr.LogSink {
	out := *s
	if out.name == "" {
		out.name = name
	} else {
		out.name += "/" + name
	}
	if s.delegate != nil {
		out.delegate = s.delegate.WithName(name)
	}
	return &out
}

func (s *Sink) WithValues(kv ...interface{}) logr.LogSink {
	out := *s
	out.values = append(append(make([]interface{}, 0, len(s.values)+len(kv)), s.values...), kv...)
	if s.delegate != nil {
		out.delegate = s.delegate.WithValues(kv...)
	}
	return &out
}

func (s *Sink) WithCallDepth(depth int) logr.LogSink {
	out := *s
	if d, ok := s.delegate.(logr.CallDepthLogSink); ok {
		out.delegate = d.WithCallDepth(depth)
	}
	return &out
}

// ---- recording ----

func (s *Sink) record(e Entry, kv []interface{}) {
	e.At = s.store.now()
	e.Logger = s.name
	e.Fields = fields(s.values, kv)

	s.store.debug.Add(e)
	if e.Severity == SeverityError || e.Level == 0 {
		s.store.main.Add(e)
	}
}

func fields(lists ...[]interface{}) map[string]string {
	var out map[string]string
	for _, kv := range lists {
		for i := 0; i < len(kv); i += 2 {
			if out == nil {
				out = make(map[string]string)
			}
			key := fmt.Sprint(kv[i])
			if i+1 == len(kv) {
				out[key] = "(MISSING)"
				continue
			}
			out[key] = fmt.Sprint(kv[i+1])
		}
	}
	return out
}
