package scan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mribeiro/lanscout/pkg/models"
)

// Session owns the host records of one scan. All mutation goes through the
// session's lock; record handles never escape, only clones do. Records are
// created on first sight of an address and live until a new session
// replaces this one.
type Session struct {
	ID        string
	Network   string
	LocalIP   string
	Gateway   string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	records map[string]*models.HostRecord
}

func newSession(parent context.Context, network, localIP, gateway string) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:        uuid.New().String(),
		Network:   network,
		LocalIP:   localIP,
		Gateway:   gateway,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		records:   make(map[string]*models.HostRecord),
	}
}

// Context returns the session's cancellation context. Workers derive their
// lifetime from it.
func (s *Session) Context() context.Context { return s.ctx }

// Cancel flags the session as cancelled. Cooperative: workers observe it
// before claiming new work; in-flight probes finish or time out naturally.
func (s *Session) Cancel() { s.cancel() }

// upsert creates the record for ip if needed, applies update under the
// session lock, and returns a clone of the result. Addresses stay unique:
// repeated events for one address converge on one record.
func (s *Session) upsert(ip string, update func(*models.HostRecord)) models.HostRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ip]
	if !ok {
		rec = &models.HostRecord{
			IP:           ip,
			Status:       models.LivenessUnknown,
			Ports:        make(map[int]string),
			OS:           models.UnknownOS(),
			DiscoveredAt: time.Now(),
		}
		s.records[ip] = rec
	}
	if update != nil {
		update(rec)
	}
	return rec.Clone()
}

// get returns a clone of the record for ip, if present.
func (s *Session) get(ip string) (models.HostRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ip]
	if !ok {
		return models.HostRecord{}, false
	}
	return rec.Clone(), true
}

// snapshot returns a deep copy of the record map, safe to iterate while
// workers keep writing.
func (s *Session) snapshot() map[string]models.HostRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.HostRecord, len(s.records))
	for ip, rec := range s.records {
		out[ip] = rec.Clone()
	}
	return out
}

// counts returns the device total and the open-port total across records.
func (s *Session) counts() (devices, openPorts int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		devices++
		openPorts += len(rec.Ports)
	}
	return devices, openPorts
}
