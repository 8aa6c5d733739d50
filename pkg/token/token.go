package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TTL is how long an issued link token stays valid.
const TTL = 30 * time.Minute

const tokenBytes = 6

// ErrInvalidToken is returned by Consume for unknown or expired tokens.
// The text is shown verbatim to Discord users.
var ErrInvalidToken = errors.New("Invalid or expired token")

// Entry binds a token to the game account it was issued for.
type Entry struct {
	Token    string
	UUID     uuid.UUID
	MCName   string // "" when the name was not known at issue time
	IssuedAt time.Time
}

// Active is the listing form of an entry.
type Active struct {
	Token     string
	UUID      uuid.UUID
	MCName    string
	IssuedAt  time.Time
	ExpiresIn time.Duration
}

// Service issues and consumes one-time link tokens. Both directions
// (token -> entry, uuid -> entry) are kept consistent under one lock, and
// every public operation purges expired entries first.
type Service struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	byToken map[string]*Entry
	byUUID  map[uuid.UUID]*Entry
}

// NewService creates a token service with the default TTL.
func NewService() *Service {
	return &Service{
		ttl:     TTL,
		now:     time.Now,
		byToken: make(map[string]*Entry),
		byUUID:  make(map[uuid.UUID]*Entry),
	}
}

// Issue returns a token for id. If a live token already exists for the same
// UUID it is reused; a changed mcName updates the entry in place. mcName may
// be empty when the caller does not know the player's name.
func (s *Service) Issue(id uuid.UUID, mcName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	if e, ok := s.byUUID[id]; ok {
		if mcName != "" && e.MCName != mcName {
			e.MCName = mcName
		}
		return e.Token, nil
	}

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	e := &Entry{
		Token:    hex.EncodeToString(buf),
		UUID:     id,
		MCName:   mcName,
		IssuedAt: s.now(),
	}
	s.byToken[e.Token] = e
	s.byUUID[id] = e
	return e.Token, nil
}

// Consume removes and returns the entry for tok, or ErrInvalidToken if the
// token is unknown or expired.
func (s *Service) Consume(tok string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.byToken[tok]
	if !ok {
		return Entry{}, ErrInvalidToken
	}
	delete(s.byToken, tok)
	delete(s.byUUID, e.UUID)
	return *e, nil
}

// ListActive returns the live tokens sorted by ascending time to expiry.
func (s *Service) ListActive() []Active {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	now := s.now()
	out := make([]Active, 0, len(s.byToken))
	for _, e := range s.byToken {
		remaining := e.IssuedAt.Add(s.ttl).Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Active{
			Token:     e.Token,
			UUID:      e.UUID,
			MCName:    e.MCName,
			IssuedAt:  e.IssuedAt,
			ExpiresIn: remaining,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresIn < out[j].ExpiresIn })
	return out
}

func (s *Service) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for tok, e := range s.byToken {
		if e.IssuedAt.Before(cutoff) {
			delete(s.byToken, tok)
			delete(s.byUUID, e.UUID)
		}
	}
}
