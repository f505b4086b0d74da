package netinfo

import (
	"bufio"
	"bytes"
	_ "embed"
	"strings"
	"sync"
)

//go:embed oui_data.txt
var ouiRawData []byte

var (
	ouiOnce  sync.Once
	ouiTable map[string]string
)

// Vendor returns the NIC manufacturer for a MAC address, looked up by OUI
// prefix. The MAC can be in any common format (AA:BB:CC:DD:EE:FF,
// AA-BB-CC-DD-EE-FF, AABBCCDDEEFF). Returns empty string if unknown.
//
// The embedded table covers the vendors most often seen on home and small
// office networks; it is a convenience, not an exhaustive registry.
func Vendor(mac string) string {
	ouiOnce.Do(loadOUI)

	prefix := macPrefix(mac)
	if prefix == "" {
		return ""
	}
	return ouiTable[prefix]
}

// loadOUI parses the embedded tab-separated prefix/vendor data.
func loadOUI() {
	ouiTable = make(map[string]string, 64)
	scanner := bufio.NewScanner(bytes.NewReader(ouiRawData))
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), "\t", 2)
		if len(parts) != 2 {
			continue
		}
		prefix := strings.ToUpper(strings.TrimSpace(parts[0]))
		vendor := strings.TrimSpace(parts[1])
		if prefix != "" && vendor != "" {
			ouiTable[prefix] = vendor
		}
	}
}

// macPrefix extracts the first 3 octets of a MAC in uppercase
// colon-separated form (e.g. "AA:BB:CC").
func macPrefix(mac string) string {
	mac = strings.ToUpper(mac)
	mac = strings.ReplaceAll(mac, ":", "")
	mac = strings.ReplaceAll(mac, "-", "")
	mac = strings.ReplaceAll(mac, ".", "")
	if len(mac) < 6 {
		return ""
	}
	return mac[0:2] + ":" + mac[2:4] + ":" + mac[4:6]
}
