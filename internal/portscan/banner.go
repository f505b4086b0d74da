package portscan

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// bannerPorts is the priority order in which open ports are considered for
// banner grabbing. Services on these ports usually volunteer an initial
// greeting line.
var bannerPorts = []int{21, 22, 23, 25, 80, 110, 143, 443, 8080}

// maxBannerTargets caps how many ports are probed per host so classification
// stays fast.
const maxBannerTargets = 5

const bannerReadLimit = 1024

// BannerGrabber opportunistically reads service greetings from open ports.
type BannerGrabber struct {
	logger  *zap.Logger
	timeout time.Duration
	settle  time.Duration
}

// NewBannerGrabber creates a BannerGrabber. Zero or negative timeout and
// settle delay fall back to 1s and 200ms.
func NewBannerGrabber(logger *zap.Logger, timeout, settle time.Duration) *BannerGrabber {
	if timeout <= 0 {
		timeout = time.Second
	}
	if settle <= 0 {
		settle = 200 * time.Millisecond
	}
	return &BannerGrabber{logger: logger, timeout: timeout, settle: settle}
}

// Grab connects to host:port and reads whatever the service volunteers,
// up to 1KB, decoded as UTF-8 with replacement of invalid bytes. Returns
// empty string (never an error) when the service is unreachable or silent.
func (g *BannerGrabber) Grab(host string, port int) string {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, g.timeout)
	if err != nil {
		return ""
	}
	defer conn.Close()

	// Give the service a moment to send its greeting.
	time.Sleep(g.settle)

	if err := conn.SetReadDeadline(time.Now().Add(g.timeout)); err != nil {
		return ""
	}

	buf := make([]byte, bannerReadLimit)
	n, err := conn.Read(buf)
	if n <= 0 {
		if err != nil {
			g.logger.Debug("banner read failed",
				zap.String("addr", addr),
				zap.Error(err),
			)
		}
		return ""
	}

	banner := strings.TrimSpace(strings.ToValidUTF8(string(buf[:n]), "�"))
	return banner
}

// GrabAll collects banners for the host's open ports that appear on the
// priority list, at most maxBannerTargets of them. Silent or unreachable
// ports are simply absent from the result.
func (g *BannerGrabber) GrabAll(ctx context.Context, host string, openPorts []int) map[int]string {
	openSet := make(map[int]bool, len(openPorts))
	for _, p := range openPorts {
		openSet[p] = true
	}

	banners := make(map[int]string)
	attempts := 0
	for _, port := range bannerPorts {
		if attempts >= maxBannerTargets || ctx.Err() != nil {
			break
		}
		if !openSet[port] {
			continue
		}
		attempts++
		if banner := g.Grab(host, port); banner != "" {
			banners[port] = banner
		}
	}
	return banners
}
