// Package scan owns the scan session lifecycle: it sequences host
// discovery, on-demand port scans, and OS classification, and exposes
// cancellation, snapshots, and a serializable summary to collaborators.
package scan

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mribeiro/lanscout/internal/netinfo"
	"github.com/mribeiro/lanscout/internal/osdetect"
	"github.com/mribeiro/lanscout/internal/portscan"
	"github.com/mribeiro/lanscout/internal/probe"
	"github.com/mribeiro/lanscout/pkg/models"
)

// Callbacks notify collaborators of engine progress. All three may be nil.
// They are invoked from worker goroutines with copies of engine state;
// receivers marshal into their own execution context (UI thread, channel).
type Callbacks struct {
	HostDiscovered func(addr string, record models.HostRecord)
	PortFound      func(addr string, port int, service string)
	ScanStatus     func(message string)
}

// Classifier scores a host's evidence into an OS guess.
type Classifier interface {
	Classify(ctx context.Context, addr string, openPorts []int) models.OSGuess
}

// Coordinator runs at most one scan session at a time. Discovery runs in
// the background; port scans run on the caller's goroutine and may overlap
// across hosts (concurrent scans of the same host are the caller's to
// serialize).
type Coordinator struct {
	logger     *zap.Logger
	cfg        Config
	callbacks  Callbacks
	prober     probe.Prober
	scanner    *portscan.Scanner
	classifier Classifier

	mu            sync.Mutex
	session       *Session
	discovering   bool
	discoveryDone chan struct{}
}

// Option overrides a Coordinator collaborator, mainly for tests.
type Option func(*Coordinator)

// WithProber replaces the capability-detected prober.
func WithProber(p probe.Prober) Option {
	return func(c *Coordinator) { c.prober = p }
}

// WithClassifier replaces the default OS classifier.
func WithClassifier(cl Classifier) Option {
	return func(c *Coordinator) { c.classifier = cl }
}

// New wires a Coordinator with production collaborators: a
// capability-detected prober, a TCP connect scanner, and the signal-driven
// OS classifier.
func New(cfg Config, logger *zap.Logger, callbacks Callbacks, opts ...Option) *Coordinator {
	cfg = cfg.withDefaults()

	c := &Coordinator{
		logger:    logger,
		cfg:       cfg,
		callbacks: callbacks,
		scanner:   portscan.NewScanner(logger, cfg.PortTimeout, cfg.Concurrency),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.prober == nil {
		c.prober = probe.Detect(netinfo.LocalIP(), cfg.DiscoveryWindow,
			cfg.PingTimeout, cfg.Concurrency, logger)
	}
	if c.classifier == nil {
		var ttl osdetect.TTLReader
		if r, ok := c.prober.(osdetect.TTLReader); ok {
			ttl = r
		} else {
			ttl = probe.NewPingProber(logger, cfg.PingTimeout, 1)
		}
		grabber := portscan.NewBannerGrabber(logger, cfg.BannerTimeout, cfg.BannerSettle)
		c.classifier = osdetect.NewClassifier(logger, ttl, grabber)
	}
	return c
}

// Start begins a discovery pass over the configured network, replacing any
// previous session's results. Fails fast with ErrAlreadyScanning while a
// pass is active (existing state untouched) or with
// netinfo.ErrInvalidNetwork for a bad CIDR.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.discovering {
		c.mu.Unlock()
		return ErrAlreadyScanning
	}
	c.mu.Unlock()

	localIP := netinfo.LocalIP()
	network := c.cfg.Network
	if network == "" {
		network = netinfo.DefaultNetwork(localIP)
	}
	addrs, err := netinfo.HostAddresses(network)
	if err != nil {
		return fmt.Errorf("enumerate %q: %w", network, err)
	}
	gateway := netinfo.Gateway()

	c.mu.Lock()
	if c.discovering {
		c.mu.Unlock()
		return ErrAlreadyScanning
	}
	sess := newSession(ctx, network, localIP, gateway)
	done := make(chan struct{})
	c.session = sess
	c.discovering = true
	c.discoveryDone = done
	c.mu.Unlock()

	c.logger.Info("scan session started",
		zap.String("session_id", sess.ID),
		zap.String("network", network),
		zap.String("method", c.prober.Method()),
		zap.Int("candidates", len(addrs)),
	)
	c.status(fmt.Sprintf("scanning %s (%s)", network, c.prober.Method()))

	go c.runDiscovery(sess, addrs, done)
	return nil
}

// runDiscovery drives the prober and folds its liveness events into the
// session.
func (c *Coordinator) runDiscovery(sess *Session, addrs []string, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		c.discovering = false
		c.mu.Unlock()
	}()

	started := time.Now()
	err := c.prober.Probe(sess.Context(), addrs, func(r probe.Result) {
		c.handleLiveHost(sess, r)
	})
	if err != nil {
		c.logger.Warn("discovery pass failed", zap.Error(err))
		c.status("discovery failed: " + err.Error())
		return
	}

	devices, _ := sess.counts()
	c.logger.Info("discovery complete",
		zap.String("session_id", sess.ID),
		zap.Int("hosts_online", devices),
		zap.Duration("elapsed", time.Since(started)),
	)
	c.status(fmt.Sprintf("discovery complete: %d hosts online", devices))
}

// handleLiveHost upserts the record for a liveness event and notifies the
// collaborator. Repeat events update in place, never duplicate.
func (c *Coordinator) handleLiveHost(sess *Session, r probe.Result) {
	mac := r.MAC
	if mac == "" {
		mac = netinfo.MACForIP(r.IP)
	}
	hostname := lookupHostname(sess.Context(), r.IP)

	record := sess.upsert(r.IP, func(h *models.HostRecord) {
		h.Status = models.LivenessOnline
		if mac != "" {
			h.MAC = strings.ToUpper(mac)
			if v := netinfo.Vendor(mac); v != "" {
				h.Vendor = v
			}
		}
		if hostname != "" {
			h.Hostname = hostname
		}
	})

	if c.callbacks.HostDiscovered != nil {
		c.callbacks.HostDiscovered(r.IP, record)
	}
}

// ScanPorts probes [startPort, endPort] on host within the current session,
// then classifies the host's OS if anything is open. It returns the open
// ports mapped to service names. The scan observes both the caller's ctx
// and the session's cancellation.
func (c *Coordinator) ScanPorts(ctx context.Context, host string, startPort, endPort int) (map[int]string, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil, ErrNoSession
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sess.Context(), cancel)
	defer stop()

	// The record exists from the first port-scan event even if discovery
	// never saw the host; liveness stays unknown until a port answers.
	sess.upsert(host, nil)

	open, err := c.scanner.Scan(scanCtx, host, startPort, endPort, func(r portscan.PortResult) {
		sess.upsert(host, func(h *models.HostRecord) {
			h.Ports[r.Port] = r.Service
			h.Status = models.LivenessOnline
		})
		if c.callbacks.PortFound != nil {
			c.callbacks.PortFound(host, r.Port, r.Service)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan ports on %s: %w", host, err)
	}

	c.status(fmt.Sprintf("%s: %d open ports", host, len(open)))

	if len(open) > 0 {
		ports := make([]int, 0, len(open))
		for port := range open {
			ports = append(ports, port)
		}
		guess := c.classifier.Classify(scanCtx, host, ports)
		sess.upsert(host, func(h *models.HostRecord) {
			h.OS = guess
		})
		c.status(fmt.Sprintf("%s: %s (%.1f%% confidence)", host, guess.Name, guess.Confidence))
	}

	return open, nil
}

// Stop cancels the session and waits up to the configured grace period for
// the discovery pass to drain. Reports whether it drained in time.
// In-flight network I/O is never force-aborted, only left to time out.
func (c *Coordinator) Stop() bool {
	c.mu.Lock()
	sess := c.session
	done := c.discoveryDone
	c.mu.Unlock()

	if sess == nil {
		return true
	}
	c.logger.Info("stop requested", zap.String("session_id", sess.ID))
	sess.Cancel()

	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(c.cfg.StopGrace):
		c.logger.Warn("workers did not drain within grace period",
			zap.Duration("grace", c.cfg.StopGrace))
		return false
	}
}

// Active reports whether a discovery pass is currently running.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discovering
}

// Snapshot returns a deep copy of the session's host records; callers may
// iterate it freely. Empty (not nil) without a session.
func (c *Coordinator) Snapshot() map[string]models.HostRecord {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return map[string]models.HostRecord{}
	}
	return sess.snapshot()
}

// Summary builds the serializable scan summary consumed by persistence and
// export collaborators.
func (c *Coordinator) Summary() models.ScanSummary {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	summary := models.ScanSummary{
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
		Devices:   map[string]models.HostRecord{},
	}
	if sess == nil {
		return summary
	}

	summary.Network = sess.Network
	summary.LocalIP = sess.LocalIP
	summary.Gateway = sess.Gateway
	summary.Devices = sess.snapshot()
	summary.TotalDevices, summary.TotalOpenPorts = sess.counts()
	return summary
}

func (c *Coordinator) status(message string) {
	if c.callbacks.ScanStatus != nil {
		c.callbacks.ScanStatus(message)
	}
}

// lookupHostname resolves a best-effort reverse DNS name with a short
// deadline.
func lookupHostname(ctx context.Context, ip string) string {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}
