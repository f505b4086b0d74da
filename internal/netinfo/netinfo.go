// Package netinfo provides local network environment discovery: usable host
// enumeration for a CIDR, local IP and default gateway autodetection, and
// ARP cache lookups for MAC enrichment.
package netinfo

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrInvalidNetwork is returned when a CIDR cannot be parsed or is not an
// IPv4 network.
var ErrInvalidNetwork = errors.New("invalid network CIDR")

// HostAddresses expands an IPv4 CIDR into its usable host addresses in
// ascending order, excluding the network and broadcast addresses. A /24
// yields exactly 254 addresses; /31 and /32 yield none.
func HostAddresses(cidr string) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, cidr)
	}
	base := ipnet.IP.To4()
	mask := net.IP(ipnet.Mask).To4()
	if base == nil || mask == nil {
		return nil, fmt.Errorf("%w: %q is not IPv4", ErrInvalidNetwork, cidr)
	}

	network := ipToUint32(base) & ipToUint32(mask)
	broadcast := network | ^ipToUint32(mask)

	if broadcast <= network+1 {
		return nil, nil
	}

	addrs := make([]string, 0, broadcast-network-1)
	for u := network + 1; u < broadcast; u++ {
		addrs = append(addrs, uint32ToIP(u).String())
	}
	return addrs, nil
}

func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uint32ToIP(u uint32) net.IP {
	return net.IPv4(byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

// LocalIP returns the machine's primary outbound IPv4 address. It opens a UDP
// "connection" to a public resolver, which never sends a packet but forces
// the kernel to pick a source address. Falls back to loopback.
func LocalIP() string {
	conn, err := net.DialTimeout("udp", "8.8.8.8:80", 2*time.Second)
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.To4() == nil {
		return "127.0.0.1"
	}
	return addr.IP.String()
}

// DefaultNetwork returns the /24 around the given local IP, the usual scope
// for a home or small office scan. Falls back to 192.168.1.0/24 when the
// local address could not be determined.
func DefaultNetwork(localIP string) string {
	ip := net.ParseIP(localIP)
	if ip == nil || ip.To4() == nil || ip.IsLoopback() {
		return "192.168.1.0/24"
	}
	v4 := ip.To4()
	return fmt.Sprintf("%d.%d.%d.0/24", v4[0], v4[1], v4[2])
}
