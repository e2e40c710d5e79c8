package net

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// IsPortAvailable 检查端口是否可用
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// FreePort 向内核申请一个当前空闲的本地端口
// 端口在返回前已被释放，调用方拿到时没有任何进程监听它。
func FreePort() (int, error) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("no available port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// FormatSockaddr 把原始套接字地址格式化为 host:port
func FormatSockaddr(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrUnix:
		return a.Name
	case nil:
		return "unknown"
	default:
		return fmt.Sprintf("%T", sa)
	}
}

// SockaddrPort 返回 IPv4/IPv6 地址中的端口，其他类型返回 -1
func SockaddrPort(sa unix.Sockaddr) int {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port
	case *unix.SockaddrInet6:
		return a.Port
	default:
		return -1
	}
}

// IsConnRefused 判断错误是否为连接被拒绝
func IsConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
