package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echo-server/config"
	utilio "echo-server/pkg/util/io"
	utilnet "echo-server/pkg/util/net"
)

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPort, cfg.Listener.Port)
	assert.Equal(t, config.DefaultBacklog, cfg.Listener.Backlog)
}

func TestNewLoopServesConfiguredPort(t *testing.T) {
	port, err := utilnet.FreePort()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "echo.yaml")
	doc := fmt.Sprintf("listener:\n  port: %d\n  buffer_size: 8\ncommon:\n  admin_addr: 127.0.0.1:0\n", port)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	loop, err := newLoop(cfg)
	require.NoError(t, err)
	go loop.Run()

	conn, err := net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer conn.Close()

	// 大于缓冲区的消息要经过多轮回显
	assert.NoError(t, utilio.Verify(conn, []byte("longer than eight bytes"), 5*time.Second))
}

func TestNewLoopBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp4", "0.0.0.0:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Default()
	cfg.Listener.Port = ln.Addr().(*net.TCPAddr).Port

	_, err = newLoop(cfg)
	assert.Error(t, err)
}

func TestNewLoopRejectsUnknownPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Listener.Policy = "retry"

	_, err := newLoop(cfg)
	assert.Error(t, err)
}
