// Package portscan implements a bounded-concurrency TCP connect scan with
// service name resolution and opportunistic banner grabbing.
package portscan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidRange is returned for port ranges outside [1,65535] or with
// start > end.
var ErrInvalidRange = errors.New("invalid port range")

// PortResult describes a single probed port. Closed and filtered ports are
// not distinguished; both report Open=false.
type PortResult struct {
	Port    int    `json:"port"`
	Open    bool   `json:"open"`
	Service string `json:"service,omitempty"`
	Banner  string `json:"banner,omitempty"`
}

// Scanner performs concurrent TCP connect scans of a single host. A Scanner
// is safe for concurrent scans of different hosts; concurrent scans of the
// same host are the caller's responsibility to serialize.
type Scanner struct {
	logger      *zap.Logger
	timeout     time.Duration
	concurrency int
}

// NewScanner creates a Scanner. Zero or negative timeout and concurrency
// fall back to 500ms and 100 workers.
func NewScanner(logger *zap.Logger, timeout time.Duration, concurrency int) *Scanner {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	if concurrency <= 0 {
		concurrency = 100
	}
	return &Scanner{logger: logger, timeout: timeout, concurrency: concurrency}
}

// Scan probes every port in [startPort, endPort] on host exactly once and
// returns the open ports mapped to their service names. emit (optional) is
// called from worker goroutines as each open port is found; completion order
// is unspecified.
//
// Cancelling ctx stops workers from claiming new ports; dials already in
// flight are allowed to finish or time out naturally.
func (s *Scanner) Scan(ctx context.Context, host string, startPort, endPort int, emit func(PortResult)) (map[int]string, error) {
	if startPort < 1 || endPort > 65535 || startPort > endPort {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidRange, startPort, endPort)
	}

	size := endPort - startPort + 1
	workers := s.concurrency
	if size < workers {
		workers = size
	}

	s.logger.Debug("port scan starting",
		zap.String("host", host),
		zap.Int("start_port", startPort),
		zap.Int("end_port", endPort),
		zap.Int("workers", workers),
	)
	started := time.Now()

	jobs := make(chan int, size)
	for port := startPort; port <= endPort; port++ {
		jobs <- port
	}
	close(jobs)

	var mu sync.Mutex
	open := make(map[int]string)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				// Poll for cancellation before claiming new work.
				if ctx.Err() != nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case port, ok := <-jobs:
					if !ok {
						return
					}
					service, found := s.probePort(host, port)
					if !found {
						continue
					}
					mu.Lock()
					open[port] = service
					mu.Unlock()
					if emit != nil {
						emit(PortResult{Port: port, Open: true, Service: service})
					}
				}
			}
		}()
	}
	wg.Wait()

	s.logger.Debug("port scan complete",
		zap.String("host", host),
		zap.Int("open_ports", len(open)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return open, nil
}

// probePort attempts one timeout-bounded TCP connect. A failed dial means
// the port is recorded as not open; the failure itself is swallowed.
func (s *Scanner) probePort(host string, port int) (service string, open bool) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, s.timeout)
	if err != nil {
		return "", false
	}
	conn.Close()
	return ServiceName(port), true
}
