// Package probe implements host liveness discovery. Two interchangeable
// strategies sit behind the Prober contract: a link-layer ARP broadcast
// sweep (fast, needs packet capture privileges) and an ICMP echo worker
// pool (works anywhere). Detect picks one by capability at startup.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// Result is one liveness event: an address that answered a probe. MAC is
// only populated by the link-layer strategy; TTL only by the ICMP strategy.
type Result struct {
	IP  string
	MAC string
	TTL int
}

// Prober discovers live hosts among candidate addresses and emits a Result
// for each as it answers. emit may be called from multiple goroutines.
// Probe returns when the candidate set is exhausted, the collection window
// elapses, or ctx is cancelled; per-address silence is not an error.
type Prober interface {
	Probe(ctx context.Context, addrs []string, emit func(Result)) error

	// Method names the strategy ("arp" or "icmp") for logs and status lines.
	Method() string
}

// Detect returns the best available prober: the ARP sweep when the local
// interface can be opened for packet capture, otherwise the ICMP pool.
// The fallback keeps an identical external contract, just without MAC
// addresses in its results.
func Detect(localIP string, window, pingTimeout time.Duration, concurrency int, logger *zap.Logger) Prober {
	arp, err := NewARPProber(localIP, window, logger)
	if err != nil {
		logger.Warn("link-layer probe unavailable, falling back to ICMP",
			zap.String("local_ip", localIP),
			zap.Error(err),
		)
		return NewPingProber(logger, pingTimeout, concurrency)
	}
	logger.Info("using link-layer discovery", zap.String("interface", arp.ifaceName))
	return arp
}

// interfaceForIP finds the network interface that carries the given IPv4
// address.
func interfaceForIP(localIP string) (*net.Interface, net.IP, error) {
	want := net.ParseIP(localIP)
	if want == nil || want.To4() == nil {
		return nil, nil, fmt.Errorf("not an IPv4 address: %q", localIP)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, fmt.Errorf("list interfaces: %w", err)
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ipnet.IP.Equal(want) {
				return &ifaces[i], want.To4(), nil
			}
		}
	}
	return nil, nil, fmt.Errorf("no interface carries %s", localIP)
}
