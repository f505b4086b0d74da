package scan_test

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mribeiro/lanscout/internal/netinfo"
	"github.com/mribeiro/lanscout/internal/portscan"
	"github.com/mribeiro/lanscout/internal/probe"
	"github.com/mribeiro/lanscout/internal/scan"
	"github.com/mribeiro/lanscout/internal/testutil"
	"github.com/mribeiro/lanscout/pkg/models"
)

// fakeProber emits scripted results, then optionally blocks until its
// context is cancelled or release is closed.
type fakeProber struct {
	results []probe.Result
	block   chan struct{} // nil = return immediately after emitting
}

func (f *fakeProber) Method() string { return "fake" }

func (f *fakeProber) Probe(ctx context.Context, addrs []string, emit func(probe.Result)) error {
	for _, r := range f.results {
		if ctx.Err() != nil {
			return nil
		}
		emit(r)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	return nil
}

// fixedClassifier returns a canned guess without touching the network.
type fixedClassifier struct {
	guess models.OSGuess
}

func (f *fixedClassifier) Classify(_ context.Context, _ string, _ []int) models.OSGuess {
	return f.guess
}

func testConfig() scan.Config {
	cfg := scan.DefaultConfig()
	cfg.Network = "127.0.0.0/30" // two candidates, keeps tests fast
	cfg.StopGrace = 2 * time.Second
	return cfg
}

func waitIdle(t *testing.T, c *scan.Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool { return !c.Active() },
		5*time.Second, 10*time.Millisecond, "discovery did not finish")
}

func TestStartDiscoversHosts(t *testing.T) {
	prober := &fakeProber{results: []probe.Result{
		{IP: "10.0.0.7", MAC: "b8:27:eb:11:22:33", TTL: 64},
	}}

	var mu sync.Mutex
	discovered := map[string]models.HostRecord{}
	c := scan.New(testConfig(), testutil.Logger(), scan.Callbacks{
		HostDiscovered: func(addr string, rec models.HostRecord) {
			mu.Lock()
			discovered[addr] = rec
			mu.Unlock()
		},
	}, scan.WithProber(prober), scan.WithClassifier(&fixedClassifier{}))

	require.NoError(t, c.Start(context.Background()))
	waitIdle(t, c)

	mu.Lock()
	rec, ok := discovered["10.0.0.7"]
	mu.Unlock()
	require.True(t, ok, "HostDiscovered callback not fired")
	require.Equal(t, models.LivenessOnline, rec.Status)
	require.Equal(t, "B8:27:EB:11:22:33", rec.MAC)
	require.Equal(t, "Raspberry Pi Foundation", rec.Vendor)
	require.Equal(t, models.OSUnknown, rec.OS.Name, "OS must stay default until classification")

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	require.Contains(t, snap, "10.0.0.7")
}

func TestStartWhileActive(t *testing.T) {
	release := make(chan struct{})
	prober := &fakeProber{
		results: []probe.Result{{IP: "10.0.0.1"}},
		block:   release,
	}
	c := scan.New(testConfig(), testutil.Logger(), scan.Callbacks{},
		scan.WithProber(prober), scan.WithClassifier(&fixedClassifier{}))

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return len(c.Snapshot()) == 1 },
		5*time.Second, 10*time.Millisecond)

	before := c.Snapshot()
	err := c.Start(context.Background())
	require.ErrorIs(t, err, scan.ErrAlreadyScanning)
	require.Equal(t, before, c.Snapshot(), "rejected start must not touch state")

	close(release)
	waitIdle(t, c)
}

func TestStopDrainsWithinGrace(t *testing.T) {
	prober := &fakeProber{
		results: []probe.Result{{IP: "10.0.0.1"}},
		block:   make(chan struct{}), // only ctx cancellation releases it
	}
	c := scan.New(testConfig(), testutil.Logger(), scan.Callbacks{},
		scan.WithProber(prober), scan.WithClassifier(&fixedClassifier{}))

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return len(c.Snapshot()) == 1 },
		5*time.Second, 10*time.Millisecond)

	require.True(t, c.Stop(), "workers must drain within the grace period")
	require.False(t, c.Active())

	// Only the host whose worker ran has a record.
	require.Len(t, c.Snapshot(), 1)
}

func TestScanPortsFindsListenerAndClassifies(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	classifier := &fixedClassifier{guess: models.OSGuess{Name: "Windows", Confidence: 30}}
	var mu sync.Mutex
	var found []int
	c := scan.New(testConfig(), testutil.Logger(), scan.Callbacks{
		PortFound: func(addr string, p int, service string) {
			mu.Lock()
			found = append(found, p)
			mu.Unlock()
		},
	}, scan.WithProber(&fakeProber{}), scan.WithClassifier(classifier))

	require.NoError(t, c.Start(context.Background()))
	waitIdle(t, c)

	open, err := c.ScanPorts(context.Background(), "127.0.0.1", port, port)
	require.NoError(t, err)
	require.Contains(t, open, port)

	mu.Lock()
	require.Equal(t, []int{port}, found)
	mu.Unlock()

	rec := c.Snapshot()["127.0.0.1"]
	require.Equal(t, models.LivenessOnline, rec.Status)
	require.Contains(t, rec.Ports, port)
	require.Equal(t, "Windows", rec.OS.Name)
	require.Equal(t, 30.0, rec.OS.Confidence)
}

func TestScanPortsValidation(t *testing.T) {
	c := scan.New(testConfig(), testutil.Logger(), scan.Callbacks{},
		scan.WithProber(&fakeProber{}), scan.WithClassifier(&fixedClassifier{}))

	_, err := c.ScanPorts(context.Background(), "127.0.0.1", 1, 10)
	require.ErrorIs(t, err, scan.ErrNoSession)

	require.NoError(t, c.Start(context.Background()))
	waitIdle(t, c)

	_, err = c.ScanPorts(context.Background(), "127.0.0.1", 10, 5)
	require.ErrorIs(t, err, portscan.ErrInvalidRange)
}

func TestSnapshotIsACopy(t *testing.T) {
	prober := &fakeProber{results: []probe.Result{{IP: "10.0.0.9"}}}
	c := scan.New(testConfig(), testutil.Logger(), scan.Callbacks{},
		scan.WithProber(prober), scan.WithClassifier(&fixedClassifier{}))

	require.NoError(t, c.Start(context.Background()))
	waitIdle(t, c)

	snap := c.Snapshot()
	rec := snap["10.0.0.9"]
	rec.Ports[80] = "HTTP"
	rec.Status = models.LivenessOffline
	snap["10.0.0.9"] = rec
	delete(snap, "nonexistent")

	fresh := c.Snapshot()["10.0.0.9"]
	require.Empty(t, fresh.Ports, "mutating a snapshot must not touch session state")
	require.Equal(t, models.LivenessOnline, fresh.Status)
}

func TestSummaryContract(t *testing.T) {
	prober := &fakeProber{results: []probe.Result{{IP: "10.0.0.2"}}}
	c := scan.New(testConfig(), testutil.Logger(), scan.Callbacks{},
		scan.WithProber(prober), scan.WithClassifier(&fixedClassifier{}))

	require.NoError(t, c.Start(context.Background()))
	waitIdle(t, c)

	summary := c.Summary()
	require.Equal(t, "127.0.0.0/30", summary.Network)
	require.Equal(t, 1, summary.TotalDevices)
	require.Equal(t, 0, summary.TotalOpenPorts)
	require.Contains(t, summary.Devices, "10.0.0.2")

	// The JSON field set is a durable contract for export/history tooling.
	raw, err := json.Marshal(summary)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{
		"timestamp", "network", "local_ip", "gateway", "total_devices", "total_open_ports", "devices",
	} {
		require.Contains(t, decoded, key)
	}
}

func TestStatusCallback(t *testing.T) {
	var mu sync.Mutex
	var messages []string
	c := scan.New(testConfig(), testutil.Logger(), scan.Callbacks{
		ScanStatus: func(msg string) {
			mu.Lock()
			messages = append(messages, msg)
			mu.Unlock()
		},
	}, scan.WithProber(&fakeProber{}), scan.WithClassifier(&fixedClassifier{}))

	require.NoError(t, c.Start(context.Background()))
	waitIdle(t, c)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, messages)
}

func TestStartInvalidNetwork(t *testing.T) {
	cfg := testConfig()
	cfg.Network = "not-a-cidr"
	c := scan.New(cfg, testutil.Logger(), scan.Callbacks{},
		scan.WithProber(&fakeProber{}), scan.WithClassifier(&fixedClassifier{}))

	err := c.Start(context.Background())
	require.ErrorIs(t, err, netinfo.ErrInvalidNetwork)
	require.False(t, c.Active())
}
