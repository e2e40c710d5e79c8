package multiplex

import (
	"fmt"

	"golang.org/x/sys/unix"

	utilnet "echo-server/pkg/util/net"
)

// Listener 监听在 0.0.0.0:<port> 上的 IPv4 流套接字
type Listener struct {
	fd     int
	port   int
	closed bool
}

// Listen 创建套接字、绑定通配地址并进入监听状态
// 任何一步失败都会关闭已创建的描述符并返回错误，不做重试。
func Listen(port, backlog int) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("failed creating socket: %w", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed setting socket non-blocking: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed binding socket to port %d: %w", port, err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error listening on socket: %w", err)
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed reading socket name: %w", err)
	}

	return &Listener{fd: fd, port: utilnet.SockaddrPort(sa)}, nil
}

// FD 返回监听描述符
func (l *Listener) FD() int {
	return l.fd
}

// Port 返回实际绑定的端口，port 传 0 时由内核分配
func (l *Listener) Port() int {
	return l.port
}

// Accept 接受一个待处理连接，新连接被设置为非阻塞
func (l *Listener) Accept() (*Conn, error) {
	nfd, sa, err := unix.Accept(l.fd)
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(nfd)

	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return nil, fmt.Errorf("failed setting socket %d non-blocking: %w", nfd, err)
	}
	return newConn(nfd, utilnet.FormatSockaddr(sa)), nil
}

// Close 关闭监听套接字，重复调用无副作用
func (l *Listener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return unix.Close(l.fd)
}
