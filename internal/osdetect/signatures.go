package osdetect

import "regexp"

// ttlCeilings maps reply-TTL ceilings to the operating systems whose default
// initial TTL sits at that ceiling. An observed TTL is matched to the
// smallest ceiling greater than or equal to it (replies lose one TTL unit
// per hop, so the observed value sits at or just under the sender's
// initial TTL on a LAN).
var ttlCeilings = []struct {
	ceiling    int
	candidates []string
}{
	{64, []string{"Linux", "Unix", "macOS", "iOS"}},
	{128, []string{"Windows"}},
	{254, []string{"Solaris", "AIX"}},
	{255, []string{"FreeBSD", "Network Equipment"}},
}

// portSignatures lists ports statistically associated with each OS's default
// service set.
var portSignatures = map[string][]int{
	"Windows":           {135, 139, 445, 3389},
	"Linux":             {22, 111, 2049},
	"macOS":             {22, 548, 5009, 7000},
	"FreeBSD":           {22, 80},
	"Network Equipment": {22, 23, 80, 443},
}

// bannerSignatures holds per-OS patterns matched against captured service
// banners. A banner counts for an OS when any of its patterns match.
var bannerSignatures = map[string][]*regexp.Regexp{
	"Windows": {
		regexp.MustCompile(`(?i)Microsoft|Windows`),
		regexp.MustCompile(`(?i)IIS`),
	},
	"Linux": {
		regexp.MustCompile(`(?i)Linux|Ubuntu|Debian|CentOS|Fedora|Red Hat|RHEL`),
		regexp.MustCompile(`(?i)Apache`),
	},
	"macOS": {
		regexp.MustCompile(`(?i)Mac OS|macOS|Darwin`),
	},
	"FreeBSD": {
		regexp.MustCompile(`(?i)FreeBSD|OpenBSD|NetBSD`),
	},
	"Network Equipment": {
		regexp.MustCompile(`(?i)Cisco|Juniper|Huawei|Mikrotik|RouterOS`),
	},
}

// ttlCandidates returns the candidate set for an observed TTL: the smallest
// ceiling >= ttl, or the largest ceiling's set when the value is above all
// of them.
func ttlCandidates(ttl int) []string {
	for _, sig := range ttlCeilings {
		if ttl <= sig.ceiling {
			return sig.candidates
		}
	}
	return ttlCeilings[len(ttlCeilings)-1].candidates
}
