// Package session tracks per-user conversation state: whether the daily
// greeting has been sent and at most one pending image description.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMaxEntries = 4096
	defaultTTL        = 48 * time.Hour
)

type record struct {
	lastGreetedDate     string
	pendingImageContext string
}

// Service owns the bounded session table. Entries expire after TTL and the
// oldest entries are evicted once the table is full, so the table cannot grow
// with distinct users for the process lifetime.
type Service struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, *record]
}

func New(maxEntries int, ttl time.Duration) *Service {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		entries: expirable.NewLRU[string, *record](maxEntries, nil, ttl),
	}
}

func (s *Service) get(userID string) *record {
	if entry, ok := s.entries.Get(userID); ok {
		return entry
	}
	entry := &record{}
	s.entries.Add(userID, entry)
	return entry
}

// ShouldGreet reports whether the user has not yet been greeted on the given
// date and, if so, marks the date as greeted in the same critical section.
func (s *Service) ShouldGreet(userID string, today time.Time) bool {
	if strings.TrimSpace(userID) == "" {
		return false
	}
	date := today.Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.get(userID)
	if entry.lastGreetedDate == date {
		return false
	}
	entry.lastGreetedDate = date
	return true
}

// StorePendingImage overwrites any pending image description for the user.
func (s *Service) StorePendingImage(userID, description string) {
	if strings.TrimSpace(userID) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(userID).pendingImageContext = strings.TrimSpace(description)
}

// TakePendingImage returns the pending image description and clears it.
func (s *Service) TakePendingImage(userID string) (string, bool) {
	if strings.TrimSpace(userID) == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.get(userID)
	if entry.pendingImageContext == "" {
		return "", false
	}
	pending := entry.pendingImageContext
	entry.pendingImageContext = ""
	return pending, true
}

// Len reports the number of live session records.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}
