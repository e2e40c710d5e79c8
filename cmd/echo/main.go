package main

import (
	"flag"
	"fmt"
	"os"

	"echo-server/config"
	"echo-server/internal/metrics"
	"echo-server/internal/multiplex"
	"echo-server/pkg/log"
)

var (
	configFile = flag.String("c", "", "config file path (optional)")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := log.Init(cfg.Common.LogLevel, cfg.Common.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	fmt.Fprintln(os.Stdout, "----- Echo Server -----")

	loop, err := newLoop(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// 只在致命错误时返回
	if err := loop.Run(); err != nil {
		log.Fatalf("%v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// newLoop 创建监听套接字并组装回显循环
func newLoop(cfg *config.Config) (*multiplex.Loop, error) {
	policy, err := multiplex.ParsePolicy(cfg.Listener.Policy)
	if err != nil {
		return nil, err
	}

	ln, err := multiplex.Listen(cfg.Listener.Port, cfg.Listener.Backlog)
	if err != nil {
		return nil, err
	}
	log.Infof("Node %s listening on 0.0.0.0:%d (backlog=%d)",
		cfg.Common.NodeID, ln.Port(), cfg.Listener.Backlog)

	var m *metrics.Metrics
	if cfg.Common.AdminAddr != "" {
		m = metrics.New(cfg.Common.NodeID)
		if _, err := m.Serve(cfg.Common.AdminAddr); err != nil {
			ln.Close()
			return nil, err
		}
	}

	return multiplex.NewLoop(ln,
		multiplex.WithBufferSize(cfg.Listener.BufferSize),
		multiplex.WithPolicy(policy),
		multiplex.WithMetrics(m),
	), nil
}
