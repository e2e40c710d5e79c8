package multiplex

import (
	"errors"
)

// 致命错误，Run 返回时通过 errors.Is 区分
var (
	ErrWait       = errors.New("select error")
	ErrReceive    = errors.New("error reading from client socket")
	ErrShortWrite = errors.New("error sending to client")
)

// Handle 一个客户端连接对回显循环暴露的能力集合
// 可读性由 Poller 判断，不属于 Handle 本身。
type Handle interface {
	FD() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Poller 就绪通知原语
type Poller interface {
	// Wait 无超时阻塞，直到 fds 中至少一个描述符可读。
	// 返回的就绪描述符保持 fds 中的相对顺序；返回的切片在下次调用前有效。
	Wait(fds []int) ([]int, error)
}

// Option 回显循环的可选项
type Option func(*Loop)
