package portscan

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mribeiro/lanscout/internal/testutil"
)

// bannerServer accepts connections and writes payload to each one.
func bannerServer(t *testing.T, payload []byte) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				c.Write(payload)
				time.Sleep(time.Second)
			}(conn)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestGrabBanner(t *testing.T) {
	port := bannerServer(t, []byte("SSH-2.0-OpenSSH_9.6 Ubuntu\r\n"))

	g := NewBannerGrabber(testutil.Logger(), 500*time.Millisecond, 50*time.Millisecond)
	banner := g.Grab("127.0.0.1", port)
	if banner != "SSH-2.0-OpenSSH_9.6 Ubuntu" {
		t.Errorf("banner = %q, want trimmed SSH greeting", banner)
	}
}

func TestGrabBannerLossyDecode(t *testing.T) {
	// Invalid UTF-8 bytes must be substituted, never fail the grab.
	port := bannerServer(t, []byte{'2', '2', '0', ' ', 0xff, 0xfe, 'f', 't', 'p'})

	g := NewBannerGrabber(testutil.Logger(), 500*time.Millisecond, 50*time.Millisecond)
	banner := g.Grab("127.0.0.1", port)
	if banner == "" {
		t.Fatal("banner empty, want lossy-decoded text")
	}
	if !strings.Contains(banner, "�") {
		t.Errorf("banner = %q, want replacement characters for invalid bytes", banner)
	}
	if !strings.HasPrefix(banner, "220 ") {
		t.Errorf("banner = %q, want valid prefix preserved", banner)
	}
}

func TestGrabBannerSilentService(t *testing.T) {
	port := bannerServer(t, nil)

	g := NewBannerGrabber(testutil.Logger(), 200*time.Millisecond, 20*time.Millisecond)
	if banner := g.Grab("127.0.0.1", port); banner != "" {
		t.Errorf("banner from silent service = %q, want empty", banner)
	}
}

func TestGrabBannerUnreachable(t *testing.T) {
	g := NewBannerGrabber(testutil.Logger(), 200*time.Millisecond, 20*time.Millisecond)
	if banner := g.Grab("192.0.2.1", 80); banner != "" {
		t.Errorf("banner from unreachable host = %q, want empty", banner)
	}
}

func TestGrabAllFiltersToPriorityPorts(t *testing.T) {
	port := bannerServer(t, []byte("hello\r\n"))

	g := NewBannerGrabber(testutil.Logger(), 300*time.Millisecond, 20*time.Millisecond)

	// The listener's ephemeral port is not on the priority list, so it must
	// not be probed even though it is open.
	banners := g.GrabAll(context.Background(), "127.0.0.1", []int{port})
	if len(banners) != 0 {
		t.Errorf("banners = %v, want none for off-list ports", banners)
	}
}

func TestGrabAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewBannerGrabber(testutil.Logger(), 300*time.Millisecond, 20*time.Millisecond)
	banners := g.GrabAll(ctx, "192.0.2.1", []int{21, 22, 23, 25, 80})
	if len(banners) != 0 {
		t.Errorf("banners after cancellation = %v, want none", banners)
	}
}
