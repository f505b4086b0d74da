package models

import "time"

// Liveness represents what the scanner currently knows about a host's
// reachability.
type Liveness string

const (
	LivenessUnknown Liveness = "unknown"
	LivenessOnline  Liveness = "online"
	LivenessOffline Liveness = "offline"
)

// HostRecord is the per-address state accumulated by a scan session.
// Records are created on first discovery (or first port scan) of an address
// and updated in place; they are only discarded when a new session starts.
type HostRecord struct {
	IP           string         `json:"ip"`
	MAC          string         `json:"mac,omitempty"`
	Hostname     string         `json:"hostname,omitempty"`
	Vendor       string         `json:"vendor,omitempty"`
	Status       Liveness       `json:"status"`
	Ports        map[int]string `json:"ports"`
	OS           OSGuess        `json:"os"`
	DiscoveredAt time.Time      `json:"discovered_at"`
}

// Clone returns a deep copy of the record. Snapshot readers get clones so
// they never iterate a map that scan workers are still mutating.
func (r *HostRecord) Clone() HostRecord {
	out := *r
	out.Ports = make(map[int]string, len(r.Ports))
	for port, svc := range r.Ports {
		out.Ports[port] = svc
	}
	if r.OS.Detail != nil {
		detail := r.OS.Detail.clone()
		out.OS.Detail = &detail
	}
	return out
}
