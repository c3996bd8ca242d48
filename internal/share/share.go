// Package share issues time-limited read-only links to a single vehicle.
package share

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrLinkNotFound = errors.New("share link not found")
	ErrLinkExpired  = errors.New("share link expired")
)

// Link is a share token for one vehicle.
type Link struct {
	Token     string    `json:"token"`
	VehicleID string    `json:"vehicleId"`
	ExpiresAt time.Time `json:"expiresAt"`
	URL       string    `json:"url"`
}

// Store keeps share links in memory.
type Store struct {
	ttl     time.Duration
	baseURL string
	now     func() time.Time

	mu    sync.Mutex
	links map[string]Link
}

// NewStore creates a store whose links live for ttl (DefaultTTL when zero)
// and whose URLs are rooted at baseURL.
func NewStore(ttl time.Duration, baseURL string) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
		links:   make(map[string]Link),
	}
}

// Create issues a new link for vehicleID.
func (s *Store) Create(vehicleID string) Link {
	link := Link{
		Token:     uuid.NewString(),
		VehicleID: vehicleID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	link.URL = s.baseURL + "/shared/" + link.Token

	s.mu.Lock()
	s.links[link.Token] = link
	s.mu.Unlock()
	return link
}

// Resolve returns the vehicle id behind token. Expired links are removed.
func (s *Store) Resolve(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[token]
	if !ok {
		return "", ErrLinkNotFound
	}
	if s.now().After(link.ExpiresAt) {
		delete(s.links, token)
		return "", ErrLinkExpired
	}
	return link.VehicleID, nil
}

// Revoke removes every link pointing at vehicleID and returns how many were
// removed.
func (s *Store) Revoke(vehicleID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, link := range s.links {
		if link.VehicleID == vehicleID {
			delete(s.links, token)
			n++
		}
	}
	return n
}
