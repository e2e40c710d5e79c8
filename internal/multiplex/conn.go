package multiplex

import (
	"golang.org/x/sys/unix"
)

// Conn 已接受的客户端连接
type Conn struct {
	fd     int
	remote string
}

func newConn(fd int, remote string) *Conn {
	return &Conn{fd: fd, remote: remote}
}

// FD 返回连接描述符
func (c *Conn) FD() int {
	return c.fd
}

// RemoteAddr 返回对端地址
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// Read 执行一次接收；返回 0, nil 表示对端已关闭写端
func (c *Conn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// Write 执行一次发送，不重试剩余部分
func (c *Conn) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(c.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// Close 关闭连接
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}
