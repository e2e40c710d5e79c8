package multiplex

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pollPoller 基于 poll(2) 的 Poller
type pollPoller struct {
	pfds  []unix.PollFd
	ready []int
}

// NewPoller 创建默认的就绪通知原语
func NewPoller() Poller {
	return &pollPoller{}
}

// Wait 实现 Poller
// EINTR 直接重试：Go 运行时会向所有线程发送信号。
func (p *pollPoller) Wait(fds []int) ([]int, error) {
	p.pfds = p.pfds[:0]
	for _, fd := range fds {
		p.pfds = append(p.pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}

	for {
		_, err := unix.Poll(p.pfds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWait, err)
		}
		break
	}

	p.ready = p.ready[:0]
	for i := range p.pfds {
		revents := p.pfds[i].Revents
		if revents == 0 {
			continue
		}
		if revents&unix.POLLNVAL != 0 {
			return nil, fmt.Errorf("%w: descriptor %d is not open", ErrWait, p.pfds[i].Fd)
		}
		// POLLHUP/POLLERR 也按可读处理，随后的 read 会返回 0 或错误
		p.ready = append(p.ready, int(p.pfds[i].Fd))
	}
	return p.ready, nil
}
