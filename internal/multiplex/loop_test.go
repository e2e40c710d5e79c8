package multiplex

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"echo-server/internal/metrics"
	"echo-server/pkg/log"
)

func init() {
	log.Init("debug", "")
}

// fakeHandle 脚本化的连接，不对应真实描述符
type fakeHandle struct {
	fd         int
	reads      [][]byte
	readErr    error
	writeLimit int
	writeErr   error
	written    bytes.Buffer
	closed     bool
	closeErr   error
	order      *[]int
}

func newFakeHandle(fd int, reads ...string) *fakeHandle {
	h := &fakeHandle{fd: fd, writeLimit: -1}
	for _, r := range reads {
		h.reads = append(h.reads, []byte(r))
	}
	return h
}

func (h *fakeHandle) FD() int { return h.fd }

func (h *fakeHandle) Read(p []byte) (int, error) {
	if h.order != nil {
		*h.order = append(*h.order, h.fd)
	}
	if h.readErr != nil {
		return 0, h.readErr
	}
	if len(h.reads) == 0 {
		return 0, nil
	}
	n := copy(p, h.reads[0])
	h.reads = h.reads[1:]
	return n, nil
}

func (h *fakeHandle) Write(p []byte) (int, error) {
	if h.writeErr != nil {
		return 0, h.writeErr
	}
	n := len(p)
	if h.writeLimit >= 0 && n > h.writeLimit {
		n = h.writeLimit
	}
	h.written.Write(p[:n])
	return n, nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return h.closeErr
}

// fakePoller 按顺序返回预设的就绪列表，用完后报错
type fakePoller struct {
	script    [][]int
	snapshots [][]int
}

func (p *fakePoller) Wait(fds []int) ([]int, error) {
	p.snapshots = append(p.snapshots, append([]int(nil), fds...))
	if len(p.script) == 0 {
		return nil, fmt.Errorf("%w: script exhausted", ErrWait)
	}
	ready := p.script[0]
	p.script = p.script[1:]
	return ready, nil
}

func newTestLoop(t *testing.T, opts ...Option) *Loop {
	t.Helper()
	ln, err := Listen(0, 16)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return NewLoop(ln, opts...)
}

func metricValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
		return total
	}
	return 0
}

func TestServiceEchoesAndClearsBuffer(t *testing.T) {
	l := newTestLoop(t, WithBufferSize(16))
	h := newFakeHandle(1001, "hello")
	_, err := l.set.Add(h)
	require.NoError(t, err)

	require.NoError(t, l.service(h))

	assert.Equal(t, "hello", h.written.String())
	assert.Equal(t, make([]byte, 16), l.buf)
	assert.False(t, h.closed)
	_, ok := l.set.Get(1001)
	assert.True(t, ok)
}

func TestServiceHangupRemovesConnection(t *testing.T) {
	m := metrics.New("test")
	l := newTestLoop(t, WithMetrics(m))
	h := newFakeHandle(1001)
	_, err := l.set.Add(h)
	require.NoError(t, err)

	require.NoError(t, l.service(h))

	assert.True(t, h.closed)
	assert.Equal(t, 0, l.set.Len())
	assert.Equal(t, 1.0, metricValue(t, m, "echo_hangups_total"))
}

func TestServiceCloseFailureIsOnlyLogged(t *testing.T) {
	l := newTestLoop(t)
	h := newFakeHandle(1001)
	h.closeErr = unix.EBADF
	_, err := l.set.Add(h)
	require.NoError(t, err)

	require.NoError(t, l.service(h))
	assert.Equal(t, 0, l.set.Len())
}

func TestServiceSpuriousWakeup(t *testing.T) {
	l := newTestLoop(t)
	h := newFakeHandle(1001)
	h.readErr = unix.EAGAIN
	_, err := l.set.Add(h)
	require.NoError(t, err)

	require.NoError(t, l.service(h))
	assert.False(t, h.closed)
	assert.Equal(t, 1, l.set.Len())
}

func TestServiceFailFast(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *fakeHandle)
		wantErr error
	}{
		{"short write", func(h *fakeHandle) { h.writeLimit = 2 }, ErrShortWrite},
		{"write error", func(h *fakeHandle) { h.writeErr = unix.EPIPE }, ErrShortWrite},
		{"receive error", func(h *fakeHandle) { h.readErr = unix.ECONNRESET }, ErrReceive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New("test")
			l := newTestLoop(t, WithMetrics(m))
			h := newFakeHandle(1001, "payload")
			other := newFakeHandle(1002)
			tt.setup(h)
			_, err := l.set.Add(h)
			require.NoError(t, err)
			_, err = l.set.Add(other)
			require.NoError(t, err)

			err = l.service(h)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))

			assert.True(t, h.closed)
			assert.True(t, other.closed)
			assert.True(t, l.listener.closed)
			assert.Equal(t, 0, l.set.Len())
			assert.Equal(t, 1.0, metricValue(t, m, "echo_fatal_total"))
		})
	}
}

func TestServiceDropPolicy(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *fakeHandle)
	}{
		{"short write", func(h *fakeHandle) { h.writeLimit = 0 }},
		{"receive error", func(h *fakeHandle) { h.readErr = unix.ECONNRESET }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New("test")
			l := newTestLoop(t, WithPolicy(DropConn{}), WithMetrics(m))
			h := newFakeHandle(1001, "payload")
			other := newFakeHandle(1002)
			tt.setup(h)
			_, err := l.set.Add(h)
			require.NoError(t, err)
			_, err = l.set.Add(other)
			require.NoError(t, err)

			require.NoError(t, l.service(h))

			assert.True(t, h.closed)
			assert.False(t, other.closed)
			assert.False(t, l.listener.closed)
			assert.Equal(t, 1, l.set.Len())
			assert.Equal(t, 1.0, metricValue(t, m, "echo_dropped_total"))
		})
	}
}

func TestRunDispatchesInAscendingOrder(t *testing.T) {
	var order []int
	poller := &fakePoller{script: [][]int{{1001, 1002, 1003}}}
	l := newTestLoop(t, WithPoller(poller))

	handles := []*fakeHandle{
		newFakeHandle(1001, "a"),
		newFakeHandle(1002, "b"),
		newFakeHandle(1003, "c"),
	}
	for _, h := range handles {
		h.order = &order
		_, err := l.set.Add(h)
		require.NoError(t, err)
	}

	err := l.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWait))

	assert.Equal(t, []int{1001, 1002, 1003}, order)
	require.Len(t, poller.snapshots, 2)
	assert.Equal(t, []int{l.listener.FD(), 1001, 1002, 1003}, poller.snapshots[0])
	for _, h := range handles {
		assert.True(t, h.closed, "fatal wait closes every connection")
	}
	assert.True(t, l.listener.closed)
}

func TestRunAcceptsWithoutReadingInSameIteration(t *testing.T) {
	poller := &fakePoller{}
	m := metrics.New("test")
	l := newTestLoop(t, WithPoller(poller), WithMetrics(m))
	poller.script = [][]int{{l.listener.FD()}}

	client, err := net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", l.listener.Port()))
	require.NoError(t, err)
	defer client.Close()

	err = l.Run()
	require.True(t, errors.Is(err, ErrWait))

	require.Len(t, poller.snapshots, 2)
	assert.Equal(t, []int{l.listener.FD()}, poller.snapshots[0])
	next := poller.snapshots[1]
	require.Len(t, next, 2, "accepted connection joins the next snapshot")
	assert.Contains(t, next, l.listener.FD())
	assert.Less(t, next[0], next[1])
	assert.Equal(t, 1.0, metricValue(t, m, "echo_accepted_total"))
	assert.Equal(t, float64(next[1]), metricValue(t, m, "echo_max_descriptor"))
}

func TestRunAcceptFailureContinues(t *testing.T) {
	poller := &fakePoller{}
	m := metrics.New("test")
	l := newTestLoop(t, WithPoller(poller), WithMetrics(m))
	// 没有待处理连接，非阻塞 accept 返回 EAGAIN
	poller.script = [][]int{{l.listener.FD()}, {l.listener.FD()}}

	err := l.Run()
	require.True(t, errors.Is(err, ErrWait))

	assert.Len(t, poller.snapshots, 3)
	assert.Equal(t, 2.0, metricValue(t, m, "echo_accept_errors_total"))
	assert.Equal(t, 0.0, metricValue(t, m, "echo_accepted_total"))
}
