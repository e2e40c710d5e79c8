package multiplex

import (
	"fmt"
	"slices"
)

// ConnSet 回显循环关心可读事件的描述符集合
// 总是包含监听描述符，外加零个或多个打开的客户端连接。
// 只由循环所在的 goroutine 访问，不加锁。
type ConnSet struct {
	listener int
	conns    map[int]Handle
	order    []int // 客户端描述符，升序
	max      int
	snap     []int
}

// NewConnSet 创建只包含监听描述符的集合
func NewConnSet(listenerFD int) *ConnSet {
	return &ConnSet{
		listener: listenerFD,
		conns:    make(map[int]Handle),
		max:      listenerFD,
	}
}

// Add 加入新连接，返回最大描述符是否因此增长
func (s *ConnSet) Add(h Handle) (bool, error) {
	fd := h.FD()
	if fd == s.listener {
		return false, fmt.Errorf("descriptor %d is the listener", fd)
	}
	if _, exists := s.conns[fd]; exists {
		return false, fmt.Errorf("descriptor %d already tracked", fd)
	}

	s.conns[fd] = h
	i, _ := slices.BinarySearch(s.order, fd)
	s.order = slices.Insert(s.order, i, fd)

	if fd > s.max {
		s.max = fd
		return true, nil
	}
	return false, nil
}

// Remove 移除连接，不负责关闭
func (s *ConnSet) Remove(fd int) (Handle, bool) {
	h, ok := s.conns[fd]
	if !ok {
		return nil, false
	}
	delete(s.conns, fd)
	if i, found := slices.BinarySearch(s.order, fd); found {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return h, true
}

// Get 查找客户端连接
func (s *ConnSet) Get(fd int) (Handle, bool) {
	h, ok := s.conns[fd]
	return h, ok
}

// IsListener 判断描述符是否为监听描述符
func (s *ConnSet) IsListener(fd int) bool {
	return fd == s.listener
}

// Len 返回客户端连接数
func (s *ConnSet) Len() int {
	return len(s.conns)
}

// Max 返回曾经跟踪过的最大描述符
func (s *ConnSet) Max() int {
	return s.max
}

// Snapshot 按升序复制当前集合（含监听描述符）
// 返回的切片由集合复用，下一次 Snapshot 前有效；之后的 Add/Remove 不影响它。
func (s *ConnSet) Snapshot() []int {
	s.snap = s.snap[:0]
	inserted := false
	for _, fd := range s.order {
		if !inserted && s.listener < fd {
			s.snap = append(s.snap, s.listener)
			inserted = true
		}
		s.snap = append(s.snap, fd)
	}
	if !inserted {
		s.snap = append(s.snap, s.listener)
	}
	return s.snap
}

// Handles 按升序返回所有客户端连接
func (s *ConnSet) Handles() []Handle {
	hs := make([]Handle, 0, len(s.order))
	for _, fd := range s.order {
		hs = append(hs, s.conns[fd])
	}
	return hs
}
