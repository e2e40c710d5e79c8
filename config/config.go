package config

import (
	"fmt"

	"github.com/google/uuid"

	"echo-server/pkg/log"
)

// 默认值
const (
	DefaultPort       = 9999
	DefaultBacklog    = 2048
	DefaultBufferSize = 4096
	DefaultPolicy     = "fail-fast"
)

// Config 回显服务配置
type Config struct {
	Common   CommonConfig   `json:"common" yaml:"common"`
	Listener ListenerConfig `json:"listener" yaml:"listener"`
}

// CommonConfig 通用配置
type CommonConfig struct {
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFile   string `json:"log_file" yaml:"log_file"`
	AdminAddr string `json:"admin_addr" yaml:"admin_addr"` // 为空时不暴露指标
	NodeID    string `json:"node_id" yaml:"node_id"`
}

// ListenerConfig 监听器配置
type ListenerConfig struct {
	Port       int    `json:"port" yaml:"port"`
	Backlog    int    `json:"backlog" yaml:"backlog"`
	BufferSize int    `json:"buffer_size" yaml:"buffer_size"`
	Policy     string `json:"policy" yaml:"policy"` // fail-fast | drop
}

// Default 返回不读取任何文件时使用的配置
func Default() *Config {
	cfg := &Config{}
	cfg.Listener.Port = DefaultPort
	setDefaultValues(cfg)
	return cfg
}

// Validate 检查配置是否合法
func (c *Config) Validate() error {
	if c.Listener.Port < 0 || c.Listener.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Listener.Port)
	}
	if c.Listener.Backlog < 1 {
		return fmt.Errorf("invalid backlog: %d", c.Listener.Backlog)
	}
	if c.Listener.BufferSize < 1 {
		return fmt.Errorf("invalid buffer_size: %d", c.Listener.BufferSize)
	}
	switch c.Listener.Policy {
	case "fail-fast", "drop":
	default:
		return fmt.Errorf("unknown policy: %q", c.Listener.Policy)
	}
	if !log.ValidLevel(c.Common.LogLevel) {
		return fmt.Errorf("unknown log level: %q", c.Common.LogLevel)
	}
	return nil
}

func defaultNodeID() string {
	return "echo-" + uuid.NewString()[:8]
}
