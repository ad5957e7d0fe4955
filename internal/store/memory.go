package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-display/internal/weather"
)

var (
	// ErrNotFound is returned when no reports are available for a device.
	ErrNotFound = errors.New("no reports for device")
)

// ReportHistory holds a time-ordered list of reports for a device.
type ReportHistory struct {
	Reports []weather.Report
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: device id
	data map[string]*ReportHistory

	// retention configuration
	maxHistory int           // max number of reports per device
	maxAge     time.Duration // optional max age for reports

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*ReportHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveReport appends a report for its device and enforces retention.
func (s *MemoryStore) SaveReport(r weather.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[r.DeviceID]
	if !ok {
		history = &ReportHistory{}
		s.data[r.DeviceID] = history
	}

	history.Reports = append(history.Reports, r)

	if s.maxHistory > 0 && len(history.Reports) > s.maxHistory {
		over := len(history.Reports) - s.maxHistory
		history.Reports = history.Reports[over:]
	}

	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Reports); i++ {
			if !history.Reports[i].ReceivedAt.Before(cutoff) {
				break
			}
		}
		// The report just saved is always kept.
		if i > 0 && i < len(history.Reports) {
			history.Reports = history.Reports[i:]
		}
	}
}

// GetLatest returns the most recent report for a device.
func (s *MemoryStore) GetLatest(deviceID string) (weather.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[deviceID]
	if !ok || len(history.Reports) == 0 {
		return weather.Report{}, ErrNotFound
	}
	return history.Reports[len(history.Reports)-1], nil
}

// GetRange returns all reports for a device received between from and to
// (inclusive).
func (s *MemoryStore) GetRange(deviceID string, from, to time.Time) ([]weather.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[deviceID]
	if !ok || len(history.Reports) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Report
	for _, r := range history.Reports {
		if !r.ReceivedAt.Before(from) && !r.ReceivedAt.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Devices lists the ids of every device with at least one report.
func (s *MemoryStore) Devices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id, h := range s.data {
		if len(h.Reports) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
