package multiplex

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"echo-server/internal/metrics"
	"echo-server/pkg/log"
)

// DefaultBufferSize 默认接收缓冲区大小
const DefaultBufferSize = 4096

// Loop 单线程的就绪多路复用回显循环
// 集合、最大描述符和接收缓冲区都只归 Run 所在的 goroutine 所有。
type Loop struct {
	listener *Listener
	set      *ConnSet
	poller   Poller
	policy   Policy
	metrics  *metrics.Metrics
	buf      []byte
}

// WithBufferSize 设置每次接收使用的缓冲区大小
func WithBufferSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.buf = make([]byte, n)
		}
	}
}

// WithPolicy 设置出错策略
func WithPolicy(p Policy) Option {
	return func(l *Loop) {
		if p != nil {
			l.policy = p
		}
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// WithPoller 替换就绪通知原语
func WithPoller(p Poller) Option {
	return func(l *Loop) {
		if p != nil {
			l.poller = p
		}
	}
}

// NewLoop 创建回显循环，监听描述符是集合的唯一初始成员
func NewLoop(ln *Listener, opts ...Option) *Loop {
	l := &Loop{
		listener: ln,
		set:      NewConnSet(ln.FD()),
		poller:   NewPoller(),
		policy:   FailFast{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.buf == nil {
		l.buf = make([]byte, DefaultBufferSize)
	}
	l.metrics.MaxDescriptor(l.set.Max())
	return l
}

// Run 运行循环，只在致命错误时返回
// 返回前已关闭所有客户端连接和监听套接字。
func (l *Loop) Run() error {
	log.Infof("Echo loop running on port %d (buffer=%d, policy=%s)",
		l.listener.Port(), len(l.buf), l.policy.Name())

	for {
		ready, err := l.poller.Wait(l.set.Snapshot())
		if err != nil {
			return l.terminate(nil, "wait", err)
		}

		for _, fd := range ready {
			if l.set.IsListener(fd) {
				l.accept()
				continue
			}

			h, ok := l.set.Get(fd)
			if !ok {
				continue
			}
			if err := l.service(h); err != nil {
				return err
			}
		}
	}
}

// accept 接受一个新连接；失败只记录日志
func (l *Loop) accept() {
	conn, err := l.listener.Accept()
	if err != nil {
		log.Errorf("Error accepting connection: %v", err)
		l.metrics.AcceptFailed()
		return
	}

	grew, err := l.set.Add(conn)
	if err != nil {
		log.Errorf("Error tracking connection: %v", err)
		l.metrics.AcceptFailed()
		l.closeHandle(conn)
		return
	}
	if grew {
		log.Debugf("New fdmax is %d", l.set.Max())
		l.metrics.MaxDescriptor(l.set.Max())
	}

	l.metrics.Accepted()
	log.Infof("New connection from %s on socket %d", conn.RemoteAddr(), conn.FD())
}

// service 对一个就绪连接执行一次接收-回显或关闭
func (l *Loop) service(h Handle) error {
	fd := h.FD()

	n, err := h.Read(l.buf)
	switch {
	case errors.Is(err, unix.EAGAIN):
		// 虚假就绪，什么也没读到
		return nil
	case err != nil:
		failure := fmt.Errorf("%w: socket %d: %v", ErrReceive, fd, err)
		return l.fail(h, l.policy.OnReceiveError(fd, err), "receive", failure)
	case n == 0:
		log.Warnf("Socket %d hung up", fd)
		l.set.Remove(fd)
		if l.closeHandle(h) {
			log.Warnf("Socket %d closed.", fd)
		}
		l.metrics.HungUp()
		return nil
	}

	sent, err := h.Write(l.buf[:n])
	if err != nil || sent != n {
		failure := fmt.Errorf("%w: socket %d: sent %d of %d bytes", ErrShortWrite, fd, sent, n)
		if err != nil {
			failure = fmt.Errorf("%w: %v", failure, err)
		}
		return l.fail(h, l.policy.OnShortWrite(fd, sent, n), "short_write", failure)
	}

	l.metrics.Echoed(n)
	// 只有前 n 字节被写入过
	clear(l.buf[:n])
	return nil
}

// fail 按策略处理接收错误或短写
func (l *Loop) fail(h Handle, action Action, reason string, err error) error {
	if action == Drop {
		log.Errorf("Dropping socket %d: %v", h.FD(), err)
		l.set.Remove(h.FD())
		l.closeHandle(h)
		l.metrics.Dropped()
		return nil
	}
	return l.terminate(h, reason, err)
}

// terminate 关闭出错连接、监听套接字以及其余连接，返回致命错误
func (l *Loop) terminate(h Handle, reason string, err error) error {
	if h != nil {
		l.set.Remove(h.FD())
		l.closeHandle(h)
	}
	if cerr := l.listener.Close(); cerr != nil {
		log.Errorf("Failed closing socket %d: %v", l.listener.FD(), cerr)
	}
	for _, rest := range l.set.Handles() {
		l.set.Remove(rest.FD())
		l.closeHandle(rest)
	}

	l.metrics.Fatal(reason)
	return err
}

// closeHandle 关闭连接，失败只记录日志
func (l *Loop) closeHandle(h Handle) bool {
	if err := h.Close(); err != nil {
		log.Errorf("Failed closing socket %d: %v", h.FD(), err)
		return false
	}
	return true
}
