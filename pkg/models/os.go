package models

// OSUnknown is the classification a host carries until the classifier has
// at least one usable signal for it.
const OSUnknown = "Unknown"

// OSGuess is a best-effort operating system classification built from weak
// signals (reply TTL, open-port set, service banners). Confidence is a
// heuristic 0-100 score, not a calibrated probability.
type OSGuess struct {
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	Detail     *OSDetail `json:"detail,omitempty"`
}

// UnknownOS returns the default classification for a freshly discovered host.
func UnknownOS() OSGuess {
	return OSGuess{Name: OSUnknown, Confidence: 0}
}

// OSDetail records the per-signal evidence behind an OSGuess, for diagnostics
// and UI drill-down.
type OSDetail struct {
	TTL           int                `json:"ttl,omitempty"`
	TTLCandidates []string           `json:"ttl_candidates,omitempty"`
	PortScores    map[string]float64 `json:"port_scores,omitempty"`
	BannerScores  map[string]float64 `json:"banner_scores,omitempty"`
}

func (d *OSDetail) clone() OSDetail {
	out := *d
	out.TTLCandidates = append([]string(nil), d.TTLCandidates...)
	if d.PortScores != nil {
		out.PortScores = make(map[string]float64, len(d.PortScores))
		for k, v := range d.PortScores {
			out.PortScores[k] = v
		}
	}
	if d.BannerScores != nil {
		out.BannerScores = make(map[string]float64, len(d.BannerScores))
		for k, v := range d.BannerScores {
			out.BannerScores[k] = v
		}
	}
	return out
}
