package netinfo

import (
	"context"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ARPTable reads the system ARP cache and returns an IP -> MAC map. MACs are
// normalized to uppercase colon-separated form. Entries without a resolved
// hardware address are skipped. Best effort: an unreadable cache yields an
// empty table.
func ARPTable() map[string]string {
	if runtime.GOOS == "linux" {
		data, err := os.ReadFile("/proc/net/arp")
		if err != nil {
			return map[string]string{}
		}
		return ParseARPOutput(string(data), "linux")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		return map[string]string{}
	}
	return ParseARPOutput(string(out), runtime.GOOS)
}

// MACForIP returns the cached MAC address for an IP, or empty string if the
// cache has no complete entry for it.
func MACForIP(ip string) string {
	return ARPTable()[ip]
}

// ParseARPOutput parses ARP cache output for the given platform ("linux" is
// /proc/net/arp format, "windows" is `arp -a`, "darwin" is BSD `arp -a`).
// Unknown platforms yield an empty table.
func ParseARPOutput(output, platform string) map[string]string {
	table := make(map[string]string)
	switch platform {
	case "linux":
		parseLinuxARP(output, table)
	case "windows":
		parseWindowsARP(output, table)
	case "darwin":
		parseDarwinARP(output, table)
	}
	return table
}

// parseLinuxARP reads /proc/net/arp rows:
// "192.168.1.1  0x1  0x2  aa:bb:cc:dd:ee:ff  *  eth0".
// Flags 0x0 marks an incomplete entry.
func parseLinuxARP(output string, table map[string]string) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || !isIPv4(fields[0]) {
			continue
		}
		if fields[2] == "0x0" {
			continue
		}
		if mac := normalizeTableMAC(fields[3]); mac != "" {
			table[fields[0]] = mac
		}
	}
}

// parseWindowsARP reads `arp -a` rows:
// "  192.168.1.1   aa-bb-cc-dd-ee-ff   dynamic".
func parseWindowsARP(output string, table map[string]string) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || !isIPv4(fields[0]) {
			continue
		}
		if mac := normalizeTableMAC(fields[1]); mac != "" {
			table[fields[0]] = mac
		}
	}
}

// parseDarwinARP reads BSD `arp -a` rows:
// "? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]".
func parseDarwinARP(output string, table map[string]string) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[2] != "at" {
			continue
		}
		ip := strings.Trim(fields[1], "()")
		if !isIPv4(ip) {
			continue
		}
		if mac := normalizeTableMAC(fields[3]); mac != "" {
			table[ip] = mac
		}
	}
}

// normalizeTableMAC converts a cache entry's hardware address to uppercase
// colon-separated form. Returns empty string for incomplete, broadcast, or
// unparsable addresses.
func normalizeTableMAC(raw string) string {
	raw = strings.ReplaceAll(raw, "-", ":")
	hw, err := net.ParseMAC(raw)
	if err != nil {
		return ""
	}
	mac := strings.ToUpper(hw.String())
	switch mac {
	case "FF:FF:FF:FF:FF:FF", "00:00:00:00:00:00":
		return ""
	}
	return mac
}
