package models

// ScanSummary is the serializable result of a scan session. The field set and
// nesting are a durable contract: export and history tooling depends on these
// exact keys.
type ScanSummary struct {
	Timestamp      string                `json:"timestamp"`
	Network        string                `json:"network"`
	LocalIP        string                `json:"local_ip"`
	Gateway        string                `json:"gateway"`
	TotalDevices   int                   `json:"total_devices"`
	TotalOpenPorts int                   `json:"total_open_ports"`
	Devices        map[string]HostRecord `json:"devices"`
}
