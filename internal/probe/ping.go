package probe

import (
	"context"
	"runtime"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ Prober = (*PingProber)(nil)

// PingProber discovers hosts with a bounded pool of ICMP echo workers.
// It doubles as the TTL reader for OS classification.
type PingProber struct {
	logger      *zap.Logger
	timeout     time.Duration
	concurrency int
}

// NewPingProber creates a PingProber. Zero or negative timeout and
// concurrency fall back to 1s and 100 workers.
func NewPingProber(logger *zap.Logger, timeout time.Duration, concurrency int) *PingProber {
	if timeout <= 0 {
		timeout = time.Second
	}
	if concurrency <= 0 {
		concurrency = 100
	}
	return &PingProber{logger: logger, timeout: timeout, concurrency: concurrency}
}

func (p *PingProber) Method() string { return "icmp" }

// Probe pings every candidate once from a bounded worker pool. Hosts that
// answer are emitted with their reply TTL; silent hosts are skipped.
// Workers poll ctx before claiming new work; in-flight pings finish or time
// out on their own.
func (p *PingProber) Probe(ctx context.Context, addrs []string, emit func(Result)) error {
	if len(addrs) == 0 {
		return nil
	}

	workers := p.concurrency
	if len(addrs) < workers {
		workers = len(addrs)
	}

	p.logger.Debug("icmp sweep starting",
		zap.Int("candidates", len(addrs)),
		zap.Int("workers", workers),
	)
	started := time.Now()

	jobs := make(chan string, len(addrs))
	for _, addr := range addrs {
		jobs <- addr
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case addr, ok := <-jobs:
					if !ok {
						return
					}
					if ttl, alive := p.echo(ctx, addr); alive {
						emit(Result{IP: addr, TTL: ttl})
					}
				}
			}
		}()
	}
	wg.Wait()

	p.logger.Debug("icmp sweep complete", zap.Duration("elapsed", time.Since(started)))
	return nil
}

// ReadTTL sends a single echo and reports the reply TTL, for the OS
// classifier's TTL signal.
func (p *PingProber) ReadTTL(ctx context.Context, addr string) (int, bool) {
	return p.echo(ctx, addr)
}

// echo runs one pro-bing ping with a single packet. The pinger runs in its
// own goroutine so ctx cancellation can stop it early.
func (p *PingProber) echo(ctx context.Context, addr string) (ttl int, alive bool) {
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		p.logger.Debug("create pinger failed", zap.String("addr", addr), zap.Error(err))
		return 0, false
	}

	pinger.Count = 1
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	var replyTTL int
	pinger.OnRecv = func(pkt *probing.Packet) {
		replyTTL = pkt.TTL
	}

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case runErr := <-done:
		if runErr != nil {
			return 0, false
		}
		stats := pinger.Statistics()
		if stats.PacketsRecv == 0 {
			return 0, false
		}
		return replyTTL, true
	case <-ctx.Done():
		pinger.Stop()
		return 0, false
	}
}
