package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	utilio "echo-server/pkg/util/io"
	utilnet "echo-server/pkg/util/net"
)

var (
	addr    = flag.String("addr", "127.0.0.1:9999", "echo server address")
	clients = flag.Int("n", 1, "number of concurrent clients")
	message = flag.String("msg", "hello", "message each client sends")
	timeout = flag.Duration("timeout", 5*time.Second, "per-client timeout")
)

func main() {
	flag.Parse()

	failures := probe(*addr, *clients, []byte(*message), *timeout)
	for _, err := range failures {
		fmt.Fprintln(os.Stderr, err)
	}
	fmt.Printf("%d/%d clients echoed correctly\n", *clients-len(failures), *clients)
	if len(failures) > 0 {
		os.Exit(1)
	}
}

// probe 并发连接 n 个客户端，每个客户端发送带序号的消息并校验回显
func probe(addr string, n int, msg []byte, timeout time.Duration) []error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := probeOne(addr, id, msg, timeout); err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return failures
}

func probeOne(addr string, id int, msg []byte, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		if utilnet.IsConnRefused(err) {
			return fmt.Errorf("client %d: connection refused by %s (server not running?)", id, addr)
		}
		return fmt.Errorf("client %d: %v", id, err)
	}
	defer conn.Close()

	payload := append([]byte(fmt.Sprintf("[%d] ", id)), msg...)
	if err := utilio.Verify(conn, payload, timeout); err != nil {
		return fmt.Errorf("client %d: %v", id, err)
	}
	return nil
}
