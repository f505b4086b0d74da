// Package osdetect produces a best-effort operating system classification
// from three weak signals: reply TTL, the open-port set, and service
// banners. Scores are heuristic (TTL weight 40, ports 30, banners 30) and
// the result is a name plus a 0-100 confidence, never an error.
package osdetect

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/mribeiro/lanscout/pkg/models"
)

const (
	ttlPoints    = 40.0
	portWeight   = 0.30
	bannerWeight = 0.30
)

// TTLReader obtains the reply TTL for an address, typically via one ICMP
// echo. ok is false when the host did not answer.
type TTLReader interface {
	ReadTTL(ctx context.Context, addr string) (ttl int, ok bool)
}

// BannerSource collects service banners for a host's open ports.
type BannerSource interface {
	GrabAll(ctx context.Context, host string, openPorts []int) map[int]string
}

// Classifier gathers the live signals for a host and scores them.
// The scoring itself is the pure Score function.
type Classifier struct {
	logger  *zap.Logger
	ttl     TTLReader
	banners BannerSource
}

// NewClassifier creates a Classifier. ttl and banners may be nil, in which
// case the corresponding signal is simply absent.
func NewClassifier(logger *zap.Logger, ttl TTLReader, banners BannerSource) *Classifier {
	return &Classifier{logger: logger, ttl: ttl, banners: banners}
}

// Classify probes the host for a TTL reading and banners, then scores the
// combined evidence. It never fails: with no usable signal the result is
// {Unknown, 0}.
func (c *Classifier) Classify(ctx context.Context, addr string, openPorts []int) models.OSGuess {
	var (
		ttl   int
		ttlOK bool
	)
	if c.ttl != nil {
		ttl, ttlOK = c.ttl.ReadTTL(ctx, addr)
	}

	var banners []string
	if len(openPorts) > 0 && c.banners != nil {
		for _, b := range c.banners.GrabAll(ctx, addr, openPorts) {
			banners = append(banners, b)
		}
	}

	guess := Score(ttl, ttlOK, openPorts, banners)
	c.logger.Debug("os classification",
		zap.String("addr", addr),
		zap.String("os", guess.Name),
		zap.Float64("confidence", guess.Confidence),
		zap.Int("ttl", ttl),
		zap.Int("open_ports", len(openPorts)),
		zap.Int("banners", len(banners)),
	)
	return guess
}

// Score combines the three signals deterministically: identical inputs
// always yield the identical guess. Per-OS contributions are summed
// (absence from a signal contributes zero); the winner is the highest
// total, ties broken by lexicographically smallest OS name; confidence
// saturates at 100.
func Score(ttl int, ttlOK bool, openPorts []int, banners []string) models.OSGuess {
	detail := &models.OSDetail{}

	var candidates []string
	if ttlOK {
		candidates = ttlCandidates(ttl)
		detail.TTL = ttl
		detail.TTLCandidates = append([]string(nil), candidates...)
	}

	// Without open ports the port and banner signals do not exist; the TTL
	// signal alone gives a flat low-confidence answer.
	if len(openPorts) == 0 {
		if !ttlOK || len(candidates) == 0 {
			return models.OSGuess{Name: models.OSUnknown, Confidence: 0, Detail: detail}
		}
		return models.OSGuess{
			Name:       smallestName(candidates),
			Confidence: ttlPoints,
			Detail:     detail,
		}
	}

	portScores := scorePorts(openPorts)
	bannerScores := scoreBanners(banners)
	detail.PortScores = portScores
	detail.BannerScores = bannerScores

	combined := make(map[string]float64)
	for _, name := range candidates {
		combined[name] += ttlPoints
	}
	for name, score := range portScores {
		combined[name] += score * portWeight
	}
	for name, score := range bannerScores {
		combined[name] += score * bannerWeight
	}

	if len(combined) == 0 {
		return models.OSGuess{Name: models.OSUnknown, Confidence: 0, Detail: detail}
	}

	winner, total := pickWinner(combined)
	if total > 100 {
		total = 100
	}
	return models.OSGuess{Name: winner, Confidence: total, Detail: detail}
}

// scorePorts scores each OS by the fraction of its signature ports present
// in the open set, as a 0-100 value. OSes with no matching port are absent.
func scorePorts(openPorts []int) map[string]float64 {
	open := make(map[int]bool, len(openPorts))
	for _, p := range openPorts {
		open[p] = true
	}

	scores := make(map[string]float64)
	for name, signature := range portSignatures {
		matches := 0
		for _, p := range signature {
			if open[p] {
				matches++
			}
		}
		if matches > 0 {
			scores[name] = float64(matches) / float64(len(signature)) * 100
		}
	}
	return scores
}

// scoreBanners scores each OS by the fraction of captured banners matching
// any of its patterns, as a 0-100 value. OSes with no matching banner are
// absent; with no banners at all the signal is empty.
func scoreBanners(banners []string) map[string]float64 {
	if len(banners) == 0 {
		return map[string]float64{}
	}

	scores := make(map[string]float64)
	for name, patterns := range bannerSignatures {
		matches := 0
		for _, banner := range banners {
			for _, pattern := range patterns {
				if pattern.MatchString(banner) {
					matches++
					break
				}
			}
		}
		if matches > 0 {
			scores[name] = float64(matches) / float64(len(banners)) * 100
		}
	}
	return scores
}

// pickWinner returns the highest-scoring name; equal scores resolve to the
// lexicographically smallest name so classification is order-independent.
func pickWinner(scores map[string]float64) (string, float64) {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	winner, best := "", -1.0
	for _, name := range names {
		if scores[name] > best {
			winner, best = name, scores[name]
		}
	}
	return winner, best
}

// smallestName picks the lexicographically smallest candidate, the same
// tie-break rule pickWinner uses.
func smallestName(candidates []string) string {
	smallest := candidates[0]
	for _, name := range candidates[1:] {
		if name < smallest {
			smallest = name
		}
	}
	return smallest
}
