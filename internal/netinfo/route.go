package netinfo

import (
	"context"
	"net"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Gateway returns the default gateway's IPv4 address by querying the OS
// routing table, or empty string if it cannot be determined. Best effort:
// callers treat an empty gateway as "not known", never as an error.
func Gateway() string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "route", "print", "0.0.0.0")
	case "darwin":
		cmd = exec.CommandContext(ctx, "netstat", "-rn")
	default:
		cmd = exec.CommandContext(ctx, "ip", "route", "show", "default")
	}

	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return ParseRouteOutput(string(out), runtime.GOOS)
}

// ParseRouteOutput extracts the default gateway from routing table output.
// The platform argument selects the expected format: "windows" (route print),
// "darwin" (netstat -rn), anything else is treated as iproute2 output.
// Returns empty string when no gateway is present.
func ParseRouteOutput(output, platform string) string {
	switch platform {
	case "windows":
		return parseWindowsRoute(output)
	case "darwin":
		return parseDarwinRoute(output)
	default:
		return parseLinuxRoute(output)
	}
}

// parseWindowsRoute scans `route print 0.0.0.0` output for the active
// default route row: "0.0.0.0  0.0.0.0  <gateway>  <interface>  <metric>".
func parseWindowsRoute(output string) string {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "0.0.0.0" || fields[1] != "0.0.0.0" {
			continue
		}
		if gw := fields[2]; isIPv4(gw) {
			return gw
		}
	}
	return ""
}

// parseLinuxRoute reads `ip route show default` output:
// "default via 192.168.1.1 dev eth0 proto dhcp metric 100".
func parseLinuxRoute(output string) string {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "default" || fields[1] != "via" {
			continue
		}
		if gw := fields[2]; isIPv4(gw) {
			return gw
		}
	}
	return ""
}

// parseDarwinRoute reads `netstat -rn` output:
// "default  192.168.1.1  UGScg  en0".
func parseDarwinRoute(output string) string {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "default" {
			continue
		}
		if gw := fields[1]; isIPv4(gw) {
			return gw
		}
	}
	return ""
}

func isIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
