package io

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"time"
)

// RoundTrip 写出 payload 并读回同样长度的数据
// 回显服务没有消息边界，读取侧按长度收齐，而不是依赖单次 Read。
func RoundTrip(conn net.Conn, payload []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		defer conn.SetDeadline(time.Time{})
	}

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("write error: %v", err)
	}

	buf := make([]byte, len(payload))
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, fmt.Errorf("read error: %v", err)
	}
	return buf, nil
}

// Verify 执行一次 RoundTrip 并检查回显内容完全一致
func Verify(conn net.Conn, payload []byte, timeout time.Duration) error {
	got, err := RoundTrip(conn, payload, timeout)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, payload) {
		return fmt.Errorf("echo mismatch: sent %q, got %q", payload, got)
	}
	return nil
}
