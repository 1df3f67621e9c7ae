// internal/logbuf/logbuf_test.go
package logbuf

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2/textlogger"
)

func messages(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}

func TestBuffer_TailKeepsNewest(t *testing.T) {
	b := NewBuffer(3)
	assert.Empty(t, b.Tail(0))

	for i := 1; i <= 5; i++ {
		b.Add(Entry{Message: fmt.Sprint(i)})
	}

	assert.Equal(t, 3, b.Cap())
	assert.Equal(t, []string{"3", "4", "5"}, messages(b.Tail(0)))
	assert.Equal(t, []string{"4", "5"}, messages(b.Tail(2)))
	assert.Equal(t, []string{"3", "4", "5"}, messages(b.Tail(10)))
}

func TestBuffer_TailBeforeWrap(t *testing.T) {
	b := NewBuffer(4)
	b.Add(Entry{Message: "a"})
	b.Add(Entry{Message: "b"})

	assert.Equal(t, []string{"a", "b"}, messages(b.Tail(0)))
	assert.Equal(t, []string{"b"}, messages(b.Tail(1)))
}

func TestSink_MainHoldsLevelZeroAndErrors(t *testing.T) {
	s := NewSink(nil, 2, 10)
	log := logr.New(s)

	log.Info("a")
	log.V(2).Info("b", "k", 1)
	log.Error(errors.New("boom"), "c")
	log.Info("d")

	assert.Equal(t, []string{"c", "d"}, messages(s.Logs(false, 0)))

	debug := s.Logs(true, 0)
	require.Equal(t, []string{"a", "b", "c", "d"}, messages(debug))
	assert.Equal(t, 2, debug[1].Level)
	assert.Equal(t, map[string]string{"k": "1"}, debug[1].Fields)
	assert.Equal(t, SeverityError, debug[2].Severity)
	assert.Equal(t, "boom", debug[2].Error)
	assert.False(t, debug[0].At.IsZero())

	assert.Equal(t, []string{"d"}, messages(s.Logs(false, 1)))
}

func TestSink_NameAndValues(t *testing.T) {
	s := NewSink(nil, 5, 5)
	log := logr.New(s).WithName("poller").WithName("real").WithValues("mode", "real")

	log.Info("switched", "dangling")

	got := s.Logs(false, 0)
	require.Len(t, got, 1)
	assert.Equal(t, "poller/real", got[0].Logger)
	assert.Equal(t, map[string]string{"mode": "real", "dangling": "(MISSING)"}, got[0].Fields)
}

func TestSink_TeesToDelegate(t *testing.T) {
	var out bytes.Buffer
	delegate := textlogger.NewLogger(textlogger.NewConfig(textlogger.Output(&out))).GetSink()

	s := NewSink(delegate, 5, 5)
	log := logr.New(s).WithName("poller").WithValues("mode", "real")

	log.Info("switched")
	log.Error(errors.New("boom"), "failed")

	text := out.String()
	assert.Contains(t, text, `"poller: switched"`)
	assert.Contains(t, text, `mode="real"`)
	assert.Contains(t, text, `err="boom"`)
	assert.Len(t, s.Logs(false, 0), 2)
}
