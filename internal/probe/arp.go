package probe

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ Prober = (*ARPProber)(nil)

// ARPProber discovers hosts with one broadcast ARP request per candidate
// and a bounded reply-collection window. Replies carry the responder's MAC
// address. Requires packet capture access on the local interface.
type ARPProber struct {
	logger    *zap.Logger
	ifaceName string
	srcMAC    net.HardwareAddr
	srcIP     net.IP
	window    time.Duration
}

// NewARPProber binds to the interface carrying localIP and verifies that a
// capture handle can be opened. Permission or driver problems surface here
// so the caller can fall back to the ICMP strategy.
func NewARPProber(localIP string, window time.Duration, logger *zap.Logger) (*ARPProber, error) {
	if window <= 0 {
		window = 3 * time.Second
	}

	iface, srcIP, err := interfaceForIP(localIP)
	if err != nil {
		return nil, fmt.Errorf("resolve capture interface: %w", err)
	}
	if len(iface.HardwareAddr) == 0 {
		return nil, fmt.Errorf("interface %s has no hardware address", iface.Name)
	}

	// Opening and closing a handle up front is the capability check.
	handle, err := pcap.OpenLive(iface.Name, 65536, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("open capture on %s: %w", iface.Name, err)
	}
	handle.Close()

	return &ARPProber{
		logger:    logger,
		ifaceName: iface.Name,
		srcMAC:    iface.HardwareAddr,
		srcIP:     srcIP,
		window:    window,
	}, nil
}

func (a *ARPProber) Method() string { return "arp" }

// Probe broadcasts one ARP request per candidate address and emits a Result
// for every distinct reply received before the window elapses or ctx is
// cancelled.
func (a *ARPProber) Probe(ctx context.Context, addrs []string, emit func(Result)) error {
	if len(addrs) == 0 {
		return nil
	}

	handle, err := pcap.OpenLive(a.ifaceName, 65536, true, pcap.BlockForever)
	if err != nil {
		return fmt.Errorf("open capture on %s: %w", a.ifaceName, err)
	}
	var closeOnce sync.Once
	closeHandle := func() { closeOnce.Do(handle.Close) }
	defer closeHandle()

	if err := handle.SetBPFFilter("arp"); err != nil {
		return fmt.Errorf("set BPF filter: %w", err)
	}

	a.logger.Debug("arp sweep starting",
		zap.String("interface", a.ifaceName),
		zap.Int("candidates", len(addrs)),
		zap.Duration("window", a.window),
	)

	// Collect replies until the window closes. Closing the handle at the
	// end of the window unblocks the packet source.
	var (
		wg   sync.WaitGroup
		seen sync.Map
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		src := gopacket.NewPacketSource(handle, handle.LinkType())
		for packet := range src.Packets() {
			arpLayer := packet.Layer(layers.LayerTypeARP)
			if arpLayer == nil {
				continue
			}
			reply := arpLayer.(*layers.ARP)
			if reply.Operation != layers.ARPReply {
				continue
			}
			ip := net.IP(reply.SourceProtAddress).String()
			if _, dup := seen.LoadOrStore(ip, struct{}{}); dup {
				continue
			}
			emit(Result{
				IP:  ip,
				MAC: net.HardwareAddr(reply.SourceHwAddress).String(),
			})
		}
	}()

	for _, addr := range addrs {
		if ctx.Err() != nil {
			break
		}
		if err := a.sendRequest(handle, addr); err != nil {
			a.logger.Debug("arp request failed", zap.String("addr", addr), zap.Error(err))
		}
	}

	select {
	case <-time.After(a.window):
	case <-ctx.Done():
	}

	closeHandle()
	wg.Wait()

	a.logger.Debug("arp sweep complete", zap.String("interface", a.ifaceName))
	return nil
}

// sendRequest broadcasts a single who-has request for target.
func (a *ARPProber) sendRequest(handle *pcap.Handle, target string) error {
	dstIP := net.ParseIP(target).To4()
	if dstIP == nil {
		return fmt.Errorf("not an IPv4 address: %q", target)
	}

	eth := layers.Ethernet{
		SrcMAC:       a.srcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(a.srcMAC),
		SourceProtAddress: []byte(a.srcIP),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(dstIP),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		return fmt.Errorf("serialize ARP request: %w", err)
	}
	return handle.WritePacketData(buf.Bytes())
}
