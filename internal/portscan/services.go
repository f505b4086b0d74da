package portscan

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
)

// commonServices covers well-known ports that are frequently missing from or
// inconsistently named in the system services database.
var commonServices = map[int]string{
	21:   "FTP",
	22:   "SSH",
	23:   "Telnet",
	25:   "SMTP",
	53:   "DNS",
	80:   "HTTP",
	110:  "POP3",
	115:  "SFTP",
	135:  "RPC",
	139:  "NetBIOS",
	143:  "IMAP",
	194:  "IRC",
	443:  "HTTPS",
	445:  "SMB",
	1433: "MSSQL",
	3306: "MySQL",
	3389: "RDP",
	5900: "VNC",
	8080: "HTTP-Proxy",
}

var (
	servicesOnce sync.Once
	servicesDB   map[int]string
)

// ServiceName resolves a TCP port to a service name: the system services
// database first, then the fixed common-port table, then "unknown".
// It never fails.
func ServiceName(port int) string {
	servicesOnce.Do(loadServicesDB)

	if name, ok := servicesDB[port]; ok {
		return name
	}
	if name, ok := commonServices[port]; ok {
		return name
	}
	return "unknown"
}

// loadServicesDB parses /etc/services for TCP entries. Hosts without the
// file (or with an unreadable one) just fall through to the fixed table.
func loadServicesDB() {
	servicesDB = make(map[int]string, 512)

	f, err := os.Open("/etc/services")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		portProto := strings.SplitN(fields[1], "/", 2)
		if len(portProto) != 2 || portProto[1] != "tcp" {
			continue
		}
		port, err := strconv.Atoi(portProto[0])
		if err != nil {
			continue
		}
		if _, ok := servicesDB[port]; !ok {
			servicesDB[port] = fields[0]
		}
	}
}
