package multiplex

import (
	"fmt"
)

// Action 出错后对连接采取的动作
type Action int

const (
	// Terminate 关闭当前连接和监听套接字，Run 返回错误
	Terminate Action = iota
	// Drop 只关闭并移除当前连接，循环继续
	Drop
)

func (a Action) String() string {
	switch a {
	case Terminate:
		return "terminate"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

// Policy 决定接收错误和短写的处理方式
type Policy interface {
	Name() string
	OnReceiveError(fd int, err error) Action
	OnShortWrite(fd, sent, want int) Action
}

// FailFast 任何接收错误或短写都终止进程
type FailFast struct{}

func (FailFast) Name() string { return "fail-fast" }

func (FailFast) OnReceiveError(int, error) Action { return Terminate }

func (FailFast) OnShortWrite(int, int, int) Action { return Terminate }

// DropConn 出错时只丢弃对应的连接
type DropConn struct{}

func (DropConn) Name() string { return "drop" }

func (DropConn) OnReceiveError(int, error) Action { return Drop }

func (DropConn) OnShortWrite(int, int, int) Action { return Drop }

// ParsePolicy 根据名称返回策略
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "fail-fast":
		return FailFast{}, nil
	case "drop":
		return DropConn{}, nil
	default:
		return nil, fmt.Errorf("unknown policy: %q", name)
	}
}
