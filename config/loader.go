package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig 从文件加载配置
// 文件中未出现的 port 字段保持默认端口，显式写 0 表示由内核分配。
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file error: %v", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 配置内容
func Parse(data []byte) (*Config, error) {
	cfg := Config{Listener: ListenerConfig{Port: DefaultPort}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config error: %v", err)
	}

	// 设置默认值
	setDefaultValues(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}
	return &cfg, nil
}

// setDefaultValues 设置配置的默认值
func setDefaultValues(cfg *Config) {
	if cfg.Common.LogLevel == "" {
		cfg.Common.LogLevel = "info"
	}
	if cfg.Common.NodeID == "" {
		cfg.Common.NodeID = defaultNodeID()
	}

	if cfg.Listener.Backlog == 0 {
		cfg.Listener.Backlog = DefaultBacklog
	}
	if cfg.Listener.BufferSize == 0 {
		cfg.Listener.BufferSize = DefaultBufferSize
	}
	if cfg.Listener.Policy == "" {
		cfg.Listener.Policy = DefaultPolicy
	}
}
